// 本文件用于配置文件的加载与校验
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"

	"prod-watch/internal/models"
	"prod-watch/internal/pathutil"
)

const (
	defaultTicketFile      = "data/warning_tickets.json"
	defaultRefreshSchedule = "@every 1m"
	defaultWatchDebounce   = "5s"
	defaultAPIBind         = ":8080"
)

// LoadConfig 加载配置文件 并叠加同目录的运行时配置
func LoadConfig(configFile string) (*models.Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	runtime, err := loadRuntimeConfig(configFile)
	if err != nil {
		return nil, err
	}
	applyRuntimeConfig(&config, runtime)
	applyEnvOverrides(&config)
	applyDefaults(&config)
	return &config, nil
}

// applyEnvOverrides 环境变量优先于文件配置 便于容器部署时覆盖路径
func applyEnvOverrides(config *models.Config) {
	if v, ok := stringFromEnv("PW_PRODUCTION_ROOT"); ok {
		config.ProductionRoot = v
	}
	if v, ok := stringFromEnv("PW_ALARM_ROOT"); ok {
		config.AlarmRoot = v
	}
	if v, ok := stringFromEnv("PW_TICKET_FILE"); ok {
		config.TicketFile = v
	}
	if v, ok := stringFromEnv("PW_API_BIND"); ok {
		config.APIBind = v
	}
	if v, ok := stringFromEnv("PW_LOG_LEVEL"); ok {
		config.LogLevel = v
	}
	if v, ok := stringFromEnv("PW_TIMEZONE"); ok {
		config.Timezone = v
	}
	if v, ok := stringFromEnv("PW_DINGTALK_WEBHOOK"); ok {
		config.DingTalkWebhook = v
	}
	if v, ok := stringFromEnv("PW_DINGTALK_SECRET"); ok {
		config.DingTalkSecret = v
	}
}

func stringFromEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// applyDefaults 填充默认值
func applyDefaults(config *models.Config) {
	config.ProductionRoot = strings.TrimSpace(config.ProductionRoot)
	config.AlarmRoot = strings.TrimSpace(config.AlarmRoot)
	if config.AlarmRoot == "" {
		config.AlarmRoot = config.ProductionRoot
	}
	if strings.TrimSpace(config.ProductionPattern) == "" {
		config.ProductionPattern = pathutil.DefaultPattern
	}
	if strings.TrimSpace(config.AlarmPattern) == "" {
		config.AlarmPattern = pathutil.DefaultAlarmPattern
	}
	if strings.TrimSpace(config.TicketStore) == "" {
		config.TicketStore = models.TicketStoreJSON
	}
	config.TicketStore = strings.ToLower(strings.TrimSpace(config.TicketStore))
	if strings.TrimSpace(config.TicketFile) == "" {
		config.TicketFile = defaultTicketFile
		if config.TicketStore == models.TicketStoreSQLite {
			config.TicketFile = "data/warning_tickets.db"
		}
	}
	if strings.TrimSpace(config.RefreshSchedule) == "" {
		config.RefreshSchedule = defaultRefreshSchedule
	}
	if strings.TrimSpace(config.WatchDebounce) == "" {
		config.WatchDebounce = defaultWatchDebounce
	}
	if strings.TrimSpace(config.APIBind) == "" {
		config.APIBind = defaultAPIBind
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	config.WarningRules = config.WarningRules.Normalize()
}

// ValidateConfig 验证配置
func ValidateConfig(config *models.Config) error {
	if config == nil {
		return fmt.Errorf("配置为空")
	}
	if config.ProductionRoot == "" {
		return fmt.Errorf("产量数据目录不能为空")
	}
	if err := requireDir(config.ProductionRoot, "产量数据目录"); err != nil {
		return err
	}
	if config.AlarmRoot != "" {
		if err := requireDir(config.AlarmRoot, "报警数据目录"); err != nil {
			return err
		}
	}
	if err := checkDistinctSources(config); err != nil {
		return err
	}
	if webhook := strings.TrimSpace(config.DingTalkWebhook); webhook != "" {
		if u, err := url.Parse(webhook); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("钉钉 webhook 地址无效: %s", webhook)
		}
	}
	switch config.TicketStore {
	case models.TicketStoreJSON, models.TicketStoreSQLite:
	default:
		return fmt.Errorf("工单存储类型仅支持 json 或 sqlite: %s", config.TicketStore)
	}
	if tz := strings.TrimSpace(config.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("时区无效: %s: %w", tz, err)
		}
	}
	if _, err := cron.ParseStandard(config.RefreshSchedule); err != nil {
		return fmt.Errorf("刷新计划格式错误: %s: %w", config.RefreshSchedule, err)
	}
	if d, err := time.ParseDuration(strings.TrimSpace(config.WatchDebounce)); err != nil || d <= 0 {
		return fmt.Errorf("文件变更防抖间隔格式错误: %s", config.WatchDebounce)
	}
	switch strings.ToLower(strings.TrimSpace(config.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("日志级别无效: %s", config.LogLevel)
	}
	return ValidateRules(config.WarningRules)
}

// ValidateRules 校验阈值取值范围 零值视为使用默认值
func ValidateRules(rules models.WarningRuleOptions) error {
	if rules.YieldThresholdPercent < 0 || rules.YieldThresholdPercent > 100 {
		return fmt.Errorf("良率阈值需在 0-100 之间: %v", rules.YieldThresholdPercent)
	}
	if rules.ThroughputRatio < 0 || rules.ThroughputRatio > 1 {
		return fmt.Errorf("产量比例阈值需在 0-1 之间: %v", rules.ThroughputRatio)
	}
	if rules.LookbackHours < 0 || rules.LookbackHours > 24*31 {
		return fmt.Errorf("回看窗口需在 1-744 小时之间: %d", rules.LookbackHours)
	}
	if rules.YieldMinSamples < 0 || rules.PlanPerHour < 0 || rules.AlarmCountThreshold < 0 ||
		rules.AlarmDowntimeMinutes < 0 || rules.TrendWindowHours < 0 || rules.SuppressionHours < 0 ||
		rules.TicketGraceMinutes < 0 || rules.TopAlarmCodes < 0 {
		return fmt.Errorf("预警阈值不能为负数")
	}
	return nil
}

// checkDistinctSources 产量文件与报警文件不能解析到同一路径
func checkDistinctSources(config *models.Config) error {
	if config.AlarmPerDayFolder {
		return nil
	}
	alarmRoot := config.AlarmRoot
	if alarmRoot == "" {
		alarmRoot = config.ProductionRoot
	}
	sample := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	prodPath, err := pathutil.DayFile(config.ProductionRoot, config.ProductionPattern, sample)
	if err != nil {
		return err
	}
	alarmPattern := config.AlarmPattern
	if strings.TrimSpace(alarmPattern) == "" {
		alarmPattern = pathutil.DefaultAlarmPattern
	}
	alarmPath, err := pathutil.DayFile(alarmRoot, alarmPattern, sample)
	if err != nil {
		return err
	}
	if prodPath == alarmPath {
		return fmt.Errorf("产量文件与报警文件解析到同一路径，请区分 production_pattern 与 alarm_pattern: %s", prodPath)
	}
	return nil
}

func requireDir(path, label string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%s不可访问: %s: %w", label, path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s不是目录: %s", label, path)
	}
	return nil
}
