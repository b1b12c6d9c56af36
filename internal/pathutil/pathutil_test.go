// 本文件用于路径工具的单元测试
package pathutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandPattern(t *testing.T) {
	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		pattern string
		want    string
	}{
		{pattern: "", want: "2026-03-07.csv"},
		{pattern: "{yyyyMMdd}.csv", want: "20260307.csv"},
		{pattern: "prod_{yyyy}{MM}{dd}.txt", want: "prod_20260307.txt"},
		{pattern: "{yyyy}/{MM}/{yyyy-MM-dd}.csv", want: "2026/03/2026-03-07.csv"},
	}
	for _, tc := range cases {
		if got := ExpandPattern(tc.pattern, date); got != tc.want {
			t.Errorf("模板 %q 期望 %q, 实际 %q", tc.pattern, tc.want, got)
		}
	}
}

func TestDayFile_ReturnsAbsolutePathForMissingFile(t *testing.T) {
	root := t.TempDir()
	date := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	path, err := DayFile(root, "{yyyyMMdd}.csv", date)
	if err != nil {
		t.Fatalf("意外错误: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("期望绝对路径, 实际 %s", path)
	}
	if filepath.Base(path) != "20260307.csv" {
		t.Fatalf("文件名不符合预期: %s", path)
	}
}

func TestDayFile_EmptyRoot(t *testing.T) {
	if _, err := DayFile("  ", "", time.Now()); err == nil {
		t.Fatal("空根目录应返回错误")
	}
}

func TestListDataFiles_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.log", "skip.xlsx", ".hidden.csv", "~$lock.csv"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("写入文件失败: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	files, err := ListDataFiles(dir)
	if err != nil {
		t.Fatalf("意外错误: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("期望 2 个数据文件, 实际 %v", files)
	}
	if filepath.Base(files[0]) != "a.log" || filepath.Base(files[1]) != "b.csv" {
		t.Fatalf("排序不符合预期: %v", files)
	}
}

func TestUniqueDirs(t *testing.T) {
	dir := t.TempDir()
	got := UniqueDirs(dir, dir+string(filepath.Separator), "", "  ")
	if len(got) != 1 {
		t.Fatalf("期望去重后 1 个目录, 实际 %v", got)
	}
}
