// 本文件用于定义产量与报警的日数据模型
package models

import (
	"sort"
	"time"
)

// HourlyProductionRecord 表示单小时的产量记录
type HourlyProductionRecord struct {
	Date time.Time `json:"date"`
	Hour int       `json:"hour"`
	Pass int       `json:"pass"`
	Fail int       `json:"fail"`
	Plan int       `json:"plan,omitempty"` // 0 表示文件未提供计划产量
}

// Total 返回总产量
func (r HourlyProductionRecord) Total() int {
	return r.Pass + r.Fail
}

// Yield 返回良率百分比 总产量为零时返回 0
func (r HourlyProductionRecord) Yield() float64 {
	return YieldPercent(r.Pass, r.Fail)
}

// YieldPercent 计算良率百分比
func YieldPercent(pass, fail int) float64 {
	total := pass + fail
	if total <= 0 {
		return 0
	}
	return float64(pass) / float64(total) * 100
}

// DayProduction 表示一天的产量快照 构建后只读
type DayProduction struct {
	Date       time.Time
	SourceFile string
	Hours      map[int]HourlyProductionRecord
}

// Hour 返回指定小时的记录
func (d *DayProduction) Hour(hour int) (HourlyProductionRecord, bool) {
	if d == nil || d.Hours == nil {
		return HourlyProductionRecord{}, false
	}
	rec, ok := d.Hours[hour]
	return rec, ok
}

// Records 按小时升序返回全部记录
func (d *DayProduction) Records() []HourlyProductionRecord {
	if d == nil {
		return nil
	}
	out := make([]HourlyProductionRecord, 0, len(d.Hours))
	for _, rec := range d.Hours {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// Totals 汇总全天良品与不良数量
func (d *DayProduction) Totals() (pass, fail int) {
	if d == nil {
		return 0, 0
	}
	for _, rec := range d.Hours {
		pass += rec.Pass
		fail += rec.Fail
	}
	return pass, fail
}

// AlarmRecord 表示一条设备报警
type AlarmRecord struct {
	Code            string    `json:"code"`
	Category        string    `json:"category"`
	Content         string    `json:"content"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationSeconds int       `json:"durationSeconds"`
	SourceFile      string    `json:"sourceFile"`
}

// DayAlarms 表示一天的报警记录
type DayAlarms struct {
	Date    time.Time
	Sources []string
	Records []AlarmRecord
}

// HourlyAlarmAggregate 表示单小时的报警聚合
// UnionDurationSeconds 为该小时内所有报警区间并集的长度 不超过 3600
type HourlyAlarmAggregate struct {
	Hour                 int            `json:"hour"`
	Count                int            `json:"count"`
	UnionDurationSeconds int            `json:"unionDurationSeconds"`
	PerCodeCount         map[string]int `json:"perCodeCount"`
	PerCodeUnionSeconds  map[string]int `json:"perCodeUnionSeconds"`
}

// TopCode 返回并集时长最长的报警代码 时长相同时取字典序较小者
func (a HourlyAlarmAggregate) TopCode() (string, int) {
	bestCode := ""
	bestSec := -1
	for code, sec := range a.PerCodeUnionSeconds {
		if sec > bestSec || (sec == bestSec && code < bestCode) {
			bestCode = code
			bestSec = sec
		}
	}
	if bestSec < 0 {
		return "", 0
	}
	return bestCode, bestSec
}
