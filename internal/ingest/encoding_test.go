package ingest

import (
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

func TestDetectEncoding_BOM(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Encoding
	}{
		{name: "utf8 bom", data: []byte{0xEF, 0xBB, 0xBF, 'a'}, want: EncodingUTF8},
		{name: "utf16le bom", data: []byte{0xFF, 0xFE, 'a', 0}, want: EncodingUTF16LE},
		{name: "utf16be bom", data: []byte{0xFE, 0xFF, 0, 'a'}, want: EncodingUTF16BE},
		{name: "plain ascii", data: []byte("Hour,PASS,FAIL"), want: EncodingUTF8},
		{name: "nul bytes", data: []byte{'a', 0, 'b'}, want: EncodingBinary},
	}
	for _, tc := range cases {
		if got := DetectEncoding(tc.data); got != tc.want {
			t.Fatalf("%s: 期望编码 %s，实际为 %s", tc.name, tc.want, got)
		}
	}
}

func TestDecodeBytes_GBK(t *testing.T) {
	raw, err := simplifiedchinese.GBK.NewEncoder().String("小时,良品,不良\n08:00,50,2\n")
	if err != nil {
		t.Fatalf("编码测试数据失败: %v", err)
	}
	data := []byte(raw)
	if got := DetectEncoding(data); got != EncodingGBK {
		t.Fatalf("期望识别为 GBK 系编码，实际为 %s", got)
	}
	if got := DecodeBytes(data); got != "小时,良品,不良\n08:00,50,2\n" {
		t.Fatalf("GBK 解码结果不符合预期: %q", got)
	}
}

func TestDecodeBytes_UTF16LE(t *testing.T) {
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("Hour,PASS,FAIL\n")
	if err != nil {
		t.Fatalf("编码测试数据失败: %v", err)
	}
	if got := DecodeBytes([]byte(raw)); got != "Hour,PASS,FAIL\n" {
		t.Fatalf("UTF-16 解码结果不符合预期: %q", got)
	}
}

func TestDecodeBytes_StripsUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("良品")...)
	if got := DecodeBytes(data); got != "良品" {
		t.Fatalf("期望去掉 BOM，实际为 %q", got)
	}
}

func TestDecodeBytes_BinaryReturnsEmpty(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0xFF, 0x00, 0x9C}
	if got := DecodeBytes(data); got != "" {
		t.Fatalf("期望二进制内容解码为空，实际为 %q", got)
	}
	if got := DecodeBytes(nil); got != "" {
		t.Fatalf("期望空输入解码为空，实际为 %q", got)
	}
}

func TestHeadSample_TrimsPartialRune(t *testing.T) {
	data := []byte("ab良")
	sample := headSample(data, 3)
	if string(sample) != "ab" {
		t.Fatalf("期望截掉不完整字符，实际为 %q", sample)
	}
}
