package ingest

import (
	"reflect"
	"testing"
)

func TestDetectDelimiter(t *testing.T) {
	cases := []struct {
		header string
		want   rune
	}{
		{header: "Hour,PASS,FAIL", want: ','},
		{header: "Hour;PASS;FAIL", want: ';'},
		{header: "Hour\tPASS\tFAIL", want: '\t'},
		{header: "小时，良品，不良", want: '，'},
		{header: `"a;b;c",x,y`, want: ','},
		{header: "single", want: ','},
	}
	for _, tc := range cases {
		if got := DetectDelimiter(tc.header); got != tc.want {
			t.Fatalf("表头 %q 期望分隔符 %q，实际为 %q", tc.header, tc.want, got)
		}
	}
}

func TestSplitLine(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		delim rune
		want  []string
	}{
		{name: "plain", line: "a, b ,c", delim: ',', want: []string{"a", "b", "c"}},
		{name: "quoted delimiter", line: `"x,y",z`, delim: ',', want: []string{"x,y", "z"}},
		{name: "doubled quote", line: `"a""b",c`, delim: ',', want: []string{`a"b`, "c"}},
		{name: "full width quotes", line: "“x，y”，z", delim: '，', want: []string{"x，y", "z"}},
		{name: "quote in middle", line: `ab"c,d`, delim: ',', want: []string{`ab"c`, "d"}},
		{name: "trailing empty", line: "a,b,", delim: ',', want: []string{"a", "b", ""}},
	}
	for _, tc := range cases {
		got := SplitLine(tc.line, tc.delim)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: 期望 %q，实际为 %q", tc.name, tc.want, got)
		}
	}
}

func TestSplitLines_NormalizesNewlines(t *testing.T) {
	got := splitLines("\uFEFFa\r\nb\rc\n")
	want := []string{"a", "b", "c", ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("期望 %q，实际为 %q", want, got)
	}
}
