// 本文件用于日文件的文本编码识别与解码
package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
)

const (
	encodingSampleSize = 64 * 1024
	// 解码结果中替换字符占比超过该值视为二进制垃圾
	maxReplacementRatio = 0.1
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// Encoding 表示识别出的文本编码
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF16LE Encoding = "utf-16le"
	EncodingUTF16BE Encoding = "utf-16be"
	EncodingGBK     Encoding = "gb18030"
	EncodingBinary  Encoding = "binary"
)

// DetectEncoding 依次检查 BOM、UTF-8 采样合法性 最后回退到 GBK 系编码
func DetectEncoding(data []byte) Encoding {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return EncodingUTF8
	case bytes.HasPrefix(data, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(data, bomUTF16BE):
		return EncodingUTF16BE
	}
	sample := headSample(data, encodingSampleSize)
	if bytes.IndexByte(sample, 0) >= 0 {
		return EncodingBinary
	}
	if utf8.Valid(sample) && (len(sample) == len(data) || utf8.Valid(data)) {
		return EncodingUTF8
	}
	return EncodingGBK
}

// DecodeBytes 把原始字节解码为 UTF-8 文本 无法识别的内容返回空串
func DecodeBytes(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var (
		out []byte
		err error
	)
	switch DetectEncoding(data) {
	case EncodingUTF8:
		return strings.ToValidUTF8(string(bytes.TrimPrefix(data, bomUTF8)), "\uFFFD")
	case EncodingUTF16LE:
		out, err = unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
	case EncodingUTF16BE:
		out, err = unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
	case EncodingGBK:
		out, err = simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	text := string(out)
	if looksGarbled(text) {
		return ""
	}
	return text
}

// headSample 截取头部样本 并去掉末尾被截断的不完整字符
func headSample(data []byte, size int) []byte {
	if len(data) <= size {
		return data
	}
	sample := data[:size]
	for i := 1; i <= utf8.UTFMax && i <= len(sample); i++ {
		idx := len(sample) - i
		if utf8.RuneStart(sample[idx]) {
			if !utf8.FullRune(sample[idx:]) {
				sample = sample[:idx]
			}
			break
		}
	}
	return sample
}

func looksGarbled(text string) bool {
	if text == "" {
		return false
	}
	total := 0
	bad := 0
	for _, r := range text {
		total++
		if r == utf8.RuneError || (r < 0x20 && r != '\n' && r != '\r' && r != '\t') {
			bad++
		}
	}
	return float64(bad)/float64(total) > maxReplacementRatio
}
