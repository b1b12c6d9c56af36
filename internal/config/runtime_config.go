// 本文件用于运行时阈值配置的读取与持久化
// 接口修改的预警阈值写入 <config>.runtime.yaml 重启后仍然生效
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"prod-watch/internal/models"
)

type runtimeConfig struct {
	WatchEnabled    *bool                      `yaml:"watch_enabled"`
	RefreshSchedule *string                    `yaml:"refresh_schedule"`
	WarningRules    *models.WarningRuleOptions `yaml:"warning_rules"`
}

// RuntimeConfigPath 返回运行时配置文件路径
func RuntimeConfigPath(configPath string) string {
	cleaned := strings.TrimSpace(configPath)
	if cleaned == "" {
		return ""
	}
	ext := filepath.Ext(cleaned)
	if ext == "" {
		return cleaned + ".runtime.yaml"
	}
	return strings.TrimSuffix(cleaned, ext) + ".runtime" + ext
}

func loadRuntimeConfig(configPath string) (*runtimeConfig, error) {
	path := RuntimeConfigPath(configPath)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取运行时配置文件失败: %s: %w", path, err)
	}
	var cfg runtimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析运行时配置文件失败: %s: %w", path, err)
	}
	return &cfg, nil
}

func applyRuntimeConfig(cfg *models.Config, runtime *runtimeConfig) {
	if cfg == nil || runtime == nil {
		return
	}
	if runtime.WatchEnabled != nil {
		cfg.WatchEnabled = *runtime.WatchEnabled
	}
	if runtime.RefreshSchedule != nil && strings.TrimSpace(*runtime.RefreshSchedule) != "" {
		cfg.RefreshSchedule = strings.TrimSpace(*runtime.RefreshSchedule)
	}
	if runtime.WarningRules != nil {
		cfg.WarningRules = *runtime.WarningRules
	}
}

// SaveRuntimeConfig 把可在线调整的配置写入运行时文件
func SaveRuntimeConfig(configPath string, cfg *models.Config) error {
	if cfg == nil {
		return nil
	}
	path := RuntimeConfigPath(configPath)
	if path == "" {
		return nil
	}
	data, err := yaml.Marshal(buildRuntimeConfig(cfg))
	if err != nil {
		return fmt.Errorf("序列化运行时配置失败: %w", err)
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("写入运行时配置文件失败: %s: %w", path, err)
	}
	return nil
}

func buildRuntimeConfig(cfg *models.Config) *runtimeConfig {
	rules := cfg.WarningRules.Normalize()
	return &runtimeConfig{
		WatchEnabled:    boolPtr(cfg.WatchEnabled),
		RefreshSchedule: stringPtr(strings.TrimSpace(cfg.RefreshSchedule)),
		WarningRules:    &rules,
	}
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, "pw-config-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func stringPtr(value string) *string {
	return &value
}

func boolPtr(value bool) *bool {
	return &value
}
