// 本文件用于定义预警规则相关的数据结构

package warning

import (
	"time"

	"prod-watch/internal/models"
)

// 规则标识
const (
	RuleYieldLow      = "yield.low"
	RuleThroughputLow = "throughput.low"
	RuleAlarmFrequent = "alarm.frequent"
)

// 指标名称
const (
	MetricYield         = "YieldPercent"
	MetricTotalOutput   = "TotalOutput"
	MetricAlarmCount    = "AlarmCount"
	MetricAlarmDowntime = "AlarmDowntimeMinutes"
)

const (
	keyHourLayout     = "2006010215"
	summaryHourLayout = "2006-01-02 15:00"
)

var ruleNames = map[string]string{
	RuleYieldLow:      "低良率",
	RuleThroughputLow: "产量未达计划",
	RuleAlarmFrequent: "报警频发",
}

// RuleName 返回规则的显示名称
func RuleName(ruleID string) string {
	if name, ok := ruleNames[ruleID]; ok {
		return name
	}
	return ruleID
}

// RuleIDs 返回全部规则标识
func RuleIDs() []string {
	return []string{RuleYieldLow, RuleThroughputLow, RuleAlarmFrequent}
}

// HourSample 为一个小时槽的输入数据
type HourSample struct {
	Start         time.Time
	Production    models.HourlyProductionRecord
	HasProduction bool
	Alarms        models.HourlyAlarmAggregate
	HasAlarms     bool
}

// End 返回小时槽的结束时间
func (s HourSample) End() time.Time {
	return s.Start.Add(time.Hour)
}

// RuleKey 返回规则在某个小时的键
func RuleKey(ruleID string, hourStart time.Time) string {
	return ruleID + "|" + hourStart.Format(keyHourLayout)
}
