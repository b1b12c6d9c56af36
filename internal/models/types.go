// 本文件用于定义配置结构
package models

import (
	"strings"
	"time"
)

// Config 配置结构体
type Config struct {
	ProductionRoot    string             `yaml:"production_root"`    // 产量日文件根目录
	ProductionPattern string             `yaml:"production_pattern"` // 产量文件命名模板
	AlarmRoot         string             `yaml:"alarm_root"`         // 报警日文件根目录
	AlarmPattern      string             `yaml:"alarm_pattern"`      // 报警文件命名模板
	AlarmPerDayFolder bool               `yaml:"alarm_per_day_folder"`
	Timezone          string             `yaml:"timezone"`
	TicketStore       string             `yaml:"ticket_store"` // json 或 sqlite
	TicketFile        string             `yaml:"ticket_file"`
	RefreshSchedule   string             `yaml:"refresh_schedule"`
	WatchEnabled      bool               `yaml:"watch_enabled"`
	WatchDebounce     string             `yaml:"watch_debounce"`
	APIBind           string             `yaml:"api_bind"`
	LogLevel          string             `yaml:"log_level"`
	LogFile           string             `yaml:"log_file"`
	LogToStd          *bool              `yaml:"log_to_std"`
	DingTalkWebhook   string             `yaml:"dingtalk_webhook"` // 为空时不发送工单通知
	DingTalkSecret    string             `yaml:"dingtalk_secret"`
	WarningRules      WarningRuleOptions `yaml:"warning_rules"`
}

const (
	// TicketStoreJSON 表示 JSON 快照文件存储
	TicketStoreJSON = "json"
	// TicketStoreSQLite 表示 SQLite 存储
	TicketStoreSQLite = "sqlite"
)

// Location 返回配置的时区 未配置或无效时使用本地时区
func (c *Config) Location() *time.Location {
	if c == nil {
		return time.Local
	}
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// DebounceDuration 返回文件变更触发刷新的防抖间隔
func (c *Config) DebounceDuration() time.Duration {
	if c == nil {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.WatchDebounce))
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
