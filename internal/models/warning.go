// 本文件用于定义预警与工单模型
package models

import (
	"strings"
	"time"
)

// WarningLevel 表示预警级别
type WarningLevel string

const (
	// LevelCritical 表示严重
	LevelCritical WarningLevel = "Critical"
	// LevelWarning 表示警告
	LevelWarning WarningLevel = "Warning"
	// LevelInfo 表示提示
	LevelInfo WarningLevel = "Info"
)

// WarningType 表示预警类型
type WarningType string

const (
	TypeYield      WarningType = "Yield"
	TypeThroughput WarningType = "Throughput"
	TypeAlarm      WarningType = "Alarm"
	TypeCombined   WarningType = "Combined"
)

// TicketStatus 表示工单状态
type TicketStatus string

const (
	StatusActive       TicketStatus = "Active"
	StatusAcknowledged TicketStatus = "Acknowledged"
	StatusIgnored      TicketStatus = "Ignored"
	StatusProcessed    TicketStatus = "Processed"
	StatusResolved     TicketStatus = "Resolved"
)

// ParseTicketStatus 解析工单状态 大小写不敏感
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	for _, status := range []TicketStatus{StatusActive, StatusAcknowledged, StatusIgnored, StatusProcessed, StatusResolved} {
		if strings.EqualFold(strings.TrimSpace(raw), string(status)) {
			return status, true
		}
	}
	return "", false
}

// WarningItem 表示单次评估周期内的一条预警 不做持久化
type WarningItem struct {
	Key            string       `json:"key"`
	RuleID         string       `json:"ruleId"`
	RuleName       string       `json:"ruleName"`
	Level          WarningLevel `json:"level"`
	Type           WarningType  `json:"type"`
	StartTime      time.Time    `json:"startTime"`
	EndTime        time.Time    `json:"endTime"`
	FirstDetected  time.Time    `json:"firstDetected"`
	LastDetected   time.Time    `json:"lastDetected"`
	MetricName     string       `json:"metricName"`
	CurrentValue   float64      `json:"currentValue"`
	BaselineValue  *float64     `json:"baselineValue,omitempty"`
	ThresholdValue *float64     `json:"thresholdValue,omitempty"`
	Status         TicketStatus `json:"status"`
	Summary        string       `json:"summary"`
}

// WarningTicketRecord 表示持久化的预警工单
type WarningTicketRecord struct {
	Fingerprint     string       `json:"fingerprint"`
	Key             string       `json:"key"`
	RuleID          string       `json:"ruleId"`
	RuleName        string       `json:"ruleName"`
	Level           WarningLevel `json:"level"`
	Type            WarningType  `json:"type"`
	StartTime       time.Time    `json:"startTime"`
	EndTime         time.Time    `json:"endTime"`
	FirstDetected   time.Time    `json:"firstDetected"`
	LastDetected    time.Time    `json:"lastDetected"`
	MetricName      string       `json:"metricName"`
	CurrentValue    float64      `json:"currentValue"`
	BaselineValue   *float64     `json:"baselineValue,omitempty"`
	ThresholdValue  *float64     `json:"thresholdValue,omitempty"`
	Status          TicketStatus `json:"status"`
	Summary         string       `json:"summary"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	FirstSeen       time.Time    `json:"firstSeen"`
	LastSeen        time.Time    `json:"lastSeen"`
	AcknowledgedAt  *time.Time   `json:"acknowledgedAt,omitempty"`
	ProcessedAt     *time.Time   `json:"processedAt,omitempty"`
	IgnoredUntil    *time.Time   `json:"ignoredUntil,omitempty"`
	ResolvedAt      *time.Time   `json:"resolvedAt,omitempty"`
	OccurrenceCount int          `json:"occurrenceCount"`
}

// Clone 返回工单的深拷贝 指针字段不共享
func (r WarningTicketRecord) Clone() WarningTicketRecord {
	out := r
	out.BaselineValue = cloneFloat(r.BaselineValue)
	out.ThresholdValue = cloneFloat(r.ThresholdValue)
	out.AcknowledgedAt = cloneTime(r.AcknowledgedAt)
	out.ProcessedAt = cloneTime(r.ProcessedAt)
	out.IgnoredUntil = cloneTime(r.IgnoredUntil)
	out.ResolvedAt = cloneTime(r.ResolvedAt)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	val := *v
	return &val
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	val := *v
	return &val
}

// Float64Ptr 返回浮点数指针
func Float64Ptr(v float64) *float64 {
	return &v
}

// TimePtr 返回时间指针
func TimePtr(v time.Time) *time.Time {
	return &v
}
