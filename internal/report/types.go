// 本文件用于定义查询结果的 JSON 结构 每种结果带 type 字段区分
package report

import (
	"errors"
	"strings"
	"time"

	"prod-watch/internal/models"
)

// 结果类型
const (
	TypeProdSummary      = "prod.summary"
	TypeRangeSummary     = "prod.range.summary"
	TypeHourlyWithAlarms = "prod.hourly.with.alarms"
	TypeAlarmImpact      = "prod.alarm.impact"
	TypeAlarmTop         = "alarm.top"
	TypeWarningTickets   = "warning.tickets"
	TypeError            = "error"
)

// DateLayout 为结果中的日期格式
const DateLayout = "2006-01-02"

// Report 为所有结果的公共接口
type Report interface {
	ReportType() string
}

// ProdSummary 为单日产量汇总
type ProdSummary struct {
	Type  string  `json:"type"`
	Date  string  `json:"date"`
	Pass  int     `json:"pass"`
	Fail  int     `json:"fail"`
	Total int     `json:"total"`
	Yield float64 `json:"yield"`
}

// HourlyItem 为单小时产量与报警
type HourlyItem struct {
	Hour             int     `json:"hour"`
	Pass             int     `json:"pass"`
	Fail             int     `json:"fail"`
	Total            int     `json:"total"`
	Yield            float64 `json:"yield"`
	AlarmCount       int     `json:"alarmCount"`
	AlarmDurationSec int     `json:"alarmDurationSec"`
	TopAlarmCode     string  `json:"topAlarmCode"`
	TopAlarmSeconds  int     `json:"topAlarmSeconds"`
}

// HourlyWithAlarms 为单日逐小时产量与报警
type HourlyWithAlarms struct {
	Type      string       `json:"type"`
	Date      string       `json:"date"`
	StartHour int          `json:"startHour"`
	EndHour   int          `json:"endHour"`
	Items     []HourlyItem `json:"items"`
	Warnings  []string     `json:"warnings,omitempty"`
}

// DateRange 为日期区间
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Window 为时段窗口 两端包含 起点大于终点时跨零点
type Window struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Correlation 为报警时长与产量、良率的相关系数
type Correlation struct {
	AlarmSecondsVsTotal float64 `json:"alarmSeconds_vs_total"`
	AlarmSecondsVsYield float64 `json:"alarmSeconds_vs_yield"`
}

// LowYieldRow 为一条低良率小时
type LowYieldRow struct {
	Date         string  `json:"date"`
	Hour         int     `json:"hour"`
	Pass         int     `json:"pass"`
	Fail         int     `json:"fail"`
	Total        int     `json:"total"`
	Yield        float64 `json:"yield"`
	AlarmSeconds int     `json:"alarmSeconds"`
}

// CodeSeconds 为报警代码的累计并集时长
type CodeSeconds struct {
	Code    string `json:"code"`
	Seconds int    `json:"seconds"`
	Hours   int    `json:"hours"`
}

// LowYield 为低良率小时及其期间的主要报警
type LowYield struct {
	Threshold     float64       `json:"threshold"`
	Rows          []LowYieldRow `json:"rows"`
	TopAlarmCodes []CodeSeconds `json:"topAlarmCodes"`
}

// DayRollup 为按天汇总
type DayRollup struct {
	Date         string  `json:"date"`
	Pass         int     `json:"pass"`
	Fail         int     `json:"fail"`
	Total        int     `json:"total"`
	Yield        float64 `json:"yield"`
	AlarmSeconds int     `json:"alarmSeconds"`
	AlarmCount   int     `json:"alarmCount"`
}

// AlarmImpact 为区间内报警对产量影响的分析结果
type AlarmImpact struct {
	Type          string      `json:"type"`
	Range         DateRange   `json:"range"`
	Window        *Window     `json:"window"`
	Samples       int         `json:"samples"`
	Correlation   Correlation `json:"correlation"`
	HourlyLoadSec [24]int     `json:"hourlyLoadSec"`
	LowYield      LowYield    `json:"lowYield"`
	ByDay         []DayRollup `json:"byDay"`
	Warnings      []string    `json:"warnings"`
}

// RangeSummary 为区间产量汇总
type RangeSummary struct {
	Type     string      `json:"type"`
	Range    DateRange   `json:"range"`
	Pass     int         `json:"pass"`
	Fail     int         `json:"fail"`
	Total    int         `json:"total"`
	Yield    float64     `json:"yield"`
	ByDay    []DayRollup `json:"byDay"`
	Warnings []string    `json:"warnings"`
}

// AlarmTopItem 为单个报警代码的全天统计
type AlarmTopItem struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Count    int    `json:"count"`
	Seconds  int    `json:"seconds"`
}

// AlarmTop 为单日报警排行
type AlarmTop struct {
	Type         string         `json:"type"`
	Date         string         `json:"date"`
	TotalCount   int            `json:"totalCount"`
	TotalSeconds int            `json:"totalSeconds"`
	Items        []AlarmTopItem `json:"items"`
}

// WarningTickets 为工单列表
type WarningTickets struct {
	Type  string                       `json:"type"`
	View  string                       `json:"view"`
	Count int                          `json:"count"`
	Items []models.WarningTicketRecord `json:"items"`
}

// Error 为错误结果
type Error struct {
	Type    string `json:"type"`
	Where   string `json:"where"`
	Message string `json:"message"`
}

func (ProdSummary) ReportType() string { return TypeProdSummary }
func (HourlyWithAlarms) ReportType() string { return TypeHourlyWithAlarms }
func (AlarmImpact) ReportType() string { return TypeAlarmImpact }
func (RangeSummary) ReportType() string { return TypeRangeSummary }
func (AlarmTop) ReportType() string { return TypeAlarmTop }
func (WarningTickets) ReportType() string { return TypeWarningTickets }
func (Error) ReportType() string { return TypeError }

// NewError 构建错误结果
func NewError(where string, err error) Error {
	msg := "未知错误"
	if err != nil {
		msg = err.Error()
	}
	return Error{Type: TypeError, Where: strings.TrimSpace(where), Message: msg}
}

// IsError 判断结果是否为错误
func IsError(r Report) bool {
	var e Error
	switch v := r.(type) {
	case Error:
		e = v
	case *Error:
		if v == nil {
			return false
		}
		e = *v
	default:
		return false
	}
	return e.Type == TypeError
}

// FormatDate 格式化日期
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ErrInvalidRequest 表示请求参数不合法
var ErrInvalidRequest = errors.New("请求参数不合法")
