// 本文件用于定义预警规则阈值配置
package models

import "time"

// 预警规则默认阈值
const (
	DefaultLookbackHours         = 24
	DefaultYieldThresholdPercent = 97.0
	DefaultYieldMinSamples       = 30
	DefaultPlanPerHour           = 100
	DefaultThroughputRatio       = 0.9
	DefaultAlarmCountThreshold   = 5
	DefaultAlarmDowntimeMinutes  = 10.0
	DefaultTrendWindowHours      = 3
	DefaultSuppressionHours      = 2
	DefaultTicketGraceMinutes    = 120
	DefaultTopAlarmCodes         = 5
)

// WarningRuleOptions 表示预警规则阈值
type WarningRuleOptions struct {
	LookbackHours         int     `yaml:"lookback_hours" json:"lookbackHours"`                 // 回看窗口
	YieldThresholdPercent float64 `yaml:"yield_threshold_percent" json:"yieldThresholdPercent"` // 低良率阈值
	YieldMinSamples       int     `yaml:"yield_min_samples" json:"yieldMinSamples"`             // 判定良率的最小产量
	PlanPerHour           int     `yaml:"plan_per_hour" json:"planPerHour"`                     // 记录未提供计划时的小时计划产量
	ThroughputRatio       float64 `yaml:"throughput_ratio" json:"throughputRatio"`             // 产量低于计划的比例阈值
	AlarmCountThreshold   int     `yaml:"alarm_count_threshold" json:"alarmCountThreshold"`
	AlarmDowntimeMinutes  float64 `yaml:"alarm_downtime_minutes" json:"alarmDowntimeMinutes"`
	TrendWindowHours      int     `yaml:"trend_window_hours" json:"trendWindowHours"` // 良率基线窗口
	SuppressionHours      int     `yaml:"suppression_hours" json:"suppressionHours"`  // 忽略工单的默认抑制时长
	TicketGraceMinutes    int     `yaml:"ticket_grace_minutes" json:"ticketGraceMinutes"`
	TopAlarmCodes         int     `yaml:"top_alarm_codes" json:"topAlarmCodes"`
}

// DefaultWarningRuleOptions 返回默认阈值
func DefaultWarningRuleOptions() WarningRuleOptions {
	return WarningRuleOptions{
		LookbackHours:         DefaultLookbackHours,
		YieldThresholdPercent: DefaultYieldThresholdPercent,
		YieldMinSamples:       DefaultYieldMinSamples,
		PlanPerHour:           DefaultPlanPerHour,
		ThroughputRatio:       DefaultThroughputRatio,
		AlarmCountThreshold:   DefaultAlarmCountThreshold,
		AlarmDowntimeMinutes:  DefaultAlarmDowntimeMinutes,
		TrendWindowHours:      DefaultTrendWindowHours,
		SuppressionHours:      DefaultSuppressionHours,
		TicketGraceMinutes:    DefaultTicketGraceMinutes,
		TopAlarmCodes:         DefaultTopAlarmCodes,
	}
}

// Normalize 把非正数的阈值替换为默认值
func (o WarningRuleOptions) Normalize() WarningRuleOptions {
	def := DefaultWarningRuleOptions()
	if o.LookbackHours <= 0 {
		o.LookbackHours = def.LookbackHours
	}
	if o.YieldThresholdPercent <= 0 {
		o.YieldThresholdPercent = def.YieldThresholdPercent
	}
	if o.YieldMinSamples <= 0 {
		o.YieldMinSamples = def.YieldMinSamples
	}
	if o.PlanPerHour <= 0 {
		o.PlanPerHour = def.PlanPerHour
	}
	if o.ThroughputRatio <= 0 {
		o.ThroughputRatio = def.ThroughputRatio
	}
	if o.AlarmCountThreshold <= 0 {
		o.AlarmCountThreshold = def.AlarmCountThreshold
	}
	if o.AlarmDowntimeMinutes <= 0 {
		o.AlarmDowntimeMinutes = def.AlarmDowntimeMinutes
	}
	if o.TrendWindowHours <= 0 {
		o.TrendWindowHours = def.TrendWindowHours
	}
	if o.SuppressionHours <= 0 {
		o.SuppressionHours = def.SuppressionHours
	}
	if o.TicketGraceMinutes <= 0 {
		o.TicketGraceMinutes = def.TicketGraceMinutes
	}
	if o.TopAlarmCodes <= 0 {
		o.TopAlarmCodes = def.TopAlarmCodes
	}
	return o
}

// Lookback 返回回看窗口时长
func (o WarningRuleOptions) Lookback() time.Duration {
	return time.Duration(o.Normalize().LookbackHours) * time.Hour
}

// TicketGrace 返回工单自动解决的宽限期
func (o WarningRuleOptions) TicketGrace() time.Duration {
	return time.Duration(o.Normalize().TicketGraceMinutes) * time.Minute
}

// Suppression 返回忽略工单的默认时长
func (o WarningRuleOptions) Suppression() time.Duration {
	return time.Duration(o.Normalize().SuppressionHours) * time.Hour
}
