// 本文件用于命令行参数与单次模式的测试用例
package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-c", "prod.yaml", "--once", "--export-tickets", "out.xlsx", "--view", "pending"})
	if err != nil {
		t.Fatalf("解析参数失败: %v", err)
	}
	if opts.configPath != "prod.yaml" || !opts.once || opts.exportTickets != "out.xlsx" || opts.exportView != "pending" {
		t.Fatalf("参数解析结果错误: %+v", opts)
	}

	opts, err = parseFlags(nil)
	if err != nil || opts.configPath != "config.yaml" || opts.exportView != "all" {
		t.Fatalf("默认参数错误: %+v, %v", opts, err)
	}

	if _, err := parseFlags([]string{"extra"}); err == nil {
		t.Fatalf("多余的位置参数应返回错误")
	}
	if _, err := parseFlags([]string{"--help"}); !errors.Is(err, pflag.ErrHelp) {
		t.Fatalf("期望 --help 返回 ErrHelp，实际为 %v", err)
	}
}

func TestRun_OnceExportTickets(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("创建数据目录失败: %v", err)
	}
	configPath := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"production_root: " + dataDir,
		"timezone: UTC",
		"ticket_file: " + filepath.Join(dir, "tickets.json"),
		"log_level: error",
		"",
	}, "\n")
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}

	out := filepath.Join(dir, "export", "tickets.xlsx")
	if err := run([]string{"--config", configPath, "--export-tickets", out}); err != nil {
		t.Fatalf("单次导出失败: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Fatalf("期望生成工单导出文件: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tickets.json")); err != nil {
		t.Fatalf("期望单次刷新写入工单快照: %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("production_root: /path/not/exist\n"), 0o644); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	if err := run([]string{"--config", configPath, "--once"}); err == nil {
		t.Fatalf("数据目录不存在应返回错误")
	}
}
