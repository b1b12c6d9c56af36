// 本文件用于区间内报警与产量的关联分析
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"prod-watch/internal/ingest"
	"prod-watch/internal/logger"
	"prod-watch/internal/models"
	"prod-watch/internal/report"
	"prod-watch/internal/stats"
)

// MaxRangeDays 为单次区间查询允许的最大天数
const MaxRangeDays = 366

// DaySource 提供按天读取的产量与报警数据
type DaySource interface {
	LoadProductionDay(date time.Time) (*models.DayProduction, error)
	LoadAlarmDay(date time.Time) (*models.DayAlarms, error)
	DayStart(date time.Time) time.Time
}

// Analyzer 基于日数据源构建各类查询结果
type Analyzer struct {
	source DaySource
	topN   int
}

// NewAnalyzer 创建分析器 topN 为排行返回的报警代码数
func NewAnalyzer(source DaySource, topN int) *Analyzer {
	if topN <= 0 {
		topN = models.DefaultTopAlarmCodes
	}
	return &Analyzer{source: source, topN: topN}
}

type codeAccumulator struct {
	seconds int
	hours   int
}

// Analyze 逐天逐小时关联报警并集时长与产量
// 任一文件缺失的日期整体跳过并记录警告 不做补零
// 没有产量记录的小时不参与采样
func (a *Analyzer) Analyze(start, end time.Time, window *HourWindow, lowYieldThreshold float64) report.AlarmImpact {
	if lowYieldThreshold <= 0 {
		lowYieldThreshold = models.DefaultYieldThresholdPercent
	}
	days, warnings := a.days(start, end)
	out := report.AlarmImpact{
		Type:     report.TypeAlarmImpact,
		Window:   window.toReport(),
		LowYield: report.LowYield{Threshold: lowYieldThreshold, Rows: []report.LowYieldRow{}, TopAlarmCodes: []report.CodeSeconds{}},
		ByDay:    []report.DayRollup{},
		Warnings: warnings,
	}
	if len(days) > 0 {
		out.Range = report.DateRange{Start: report.FormatDate(days[0]), End: report.FormatDate(days[len(days)-1])}
	}

	var alarmSeries, totalSeries, yieldSeries []float64
	codes := make(map[string]*codeAccumulator)
	hours := window.Hours()

	for _, day := range days {
		prod, alarms, err := a.loadPair(day)
		if err != nil {
			out.Warnings = append(out.Warnings, err.Error())
			continue
		}
		agg := stats.AggregateHourly(alarms.Records, day)
		rollup := report.DayRollup{Date: report.FormatDate(day)}
		for _, h := range hours {
			slot := agg[h]
			out.HourlyLoadSec[h] += slot.UnionDurationSeconds
			rollup.AlarmSeconds += slot.UnionDurationSeconds
			rollup.AlarmCount += slot.Count

			rec, ok := prod.Hour(h)
			if !ok {
				continue
			}
			rollup.Pass += rec.Pass
			rollup.Fail += rec.Fail
			alarmSeries = append(alarmSeries, float64(slot.UnionDurationSeconds))
			totalSeries = append(totalSeries, float64(rec.Total()))
			yieldSeries = append(yieldSeries, rec.Yield())

			if rec.Total() > 0 && rec.Yield() < lowYieldThreshold {
				out.LowYield.Rows = append(out.LowYield.Rows, report.LowYieldRow{
					Date:         rollup.Date,
					Hour:         h,
					Pass:         rec.Pass,
					Fail:         rec.Fail,
					Total:        rec.Total(),
					Yield:        stats.Round(rec.Yield(), 2),
					AlarmSeconds: slot.UnionDurationSeconds,
				})
				for code, sec := range slot.PerCodeUnionSeconds {
					acc := codes[code]
					if acc == nil {
						acc = &codeAccumulator{}
						codes[code] = acc
					}
					acc.seconds += sec
					acc.hours++
				}
			}
		}
		rollup.Total = rollup.Pass + rollup.Fail
		rollup.Yield = stats.Round(models.YieldPercent(rollup.Pass, rollup.Fail), 2)
		out.ByDay = append(out.ByDay, rollup)
	}

	out.Samples = len(alarmSeries)
	out.Correlation = report.Correlation{
		AlarmSecondsVsTotal: stats.Round(stats.Pearson(alarmSeries, totalSeries), 4),
		AlarmSecondsVsYield: stats.Round(stats.Pearson(alarmSeries, yieldSeries), 4),
	}
	out.LowYield.TopAlarmCodes = rankCodes(codes, a.topN)
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out
}

// RangeSummary 汇总区间内每天的产量 缺失日期记录警告
func (a *Analyzer) RangeSummary(start, end time.Time) report.RangeSummary {
	days, warnings := a.days(start, end)
	out := report.RangeSummary{
		Type:     report.TypeRangeSummary,
		ByDay:    []report.DayRollup{},
		Warnings: warnings,
	}
	if len(days) > 0 {
		out.Range = report.DateRange{Start: report.FormatDate(days[0]), End: report.FormatDate(days[len(days)-1])}
	}
	for _, day := range days {
		prod, err := a.source.LoadProductionDay(day)
		if err != nil {
			out.Warnings = append(out.Warnings, dayWarning(day, "产量", err))
			continue
		}
		pass, fail := prod.Totals()
		out.Pass += pass
		out.Fail += fail
		out.ByDay = append(out.ByDay, report.DayRollup{
			Date:  report.FormatDate(day),
			Pass:  pass,
			Fail:  fail,
			Total: pass + fail,
			Yield: stats.Round(models.YieldPercent(pass, fail), 2),
		})
	}
	out.Total = out.Pass + out.Fail
	out.Yield = stats.Round(models.YieldPercent(out.Pass, out.Fail), 2)
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out
}

// days 返回区间内的日期 起止颠倒时交换 超过上限时截断并给出警告
func (a *Analyzer) days(start, end time.Time) ([]time.Time, []string) {
	first := a.source.DayStart(start)
	last := a.source.DayStart(end)
	if last.Before(first) {
		first, last = last, first
	}
	var warnings []string
	out := make([]time.Time, 0, 8)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if len(out) >= MaxRangeDays {
			warnings = append(warnings, fmt.Sprintf("查询区间超过 %d 天，已截断到 %s", MaxRangeDays, report.FormatDate(out[len(out)-1])))
			break
		}
		out = append(out, d)
	}
	return out, warnings
}

func (a *Analyzer) loadPair(day time.Time) (*models.DayProduction, *models.DayAlarms, error) {
	prod, err := a.source.LoadProductionDay(day)
	if err != nil {
		return nil, nil, errors.New(dayWarning(day, "产量", err))
	}
	alarms, err := a.source.LoadAlarmDay(day)
	if err != nil {
		return nil, nil, errors.New(dayWarning(day, "报警", err))
	}
	return prod, alarms, nil
}

func dayWarning(day time.Time, kind string, err error) string {
	if errors.Is(err, ingest.ErrFileNotFound) {
		return fmt.Sprintf("%s: %s文件缺失，已跳过", report.FormatDate(day), kind)
	}
	logger.Warn("读取%s数据失败: %s: %v", kind, report.FormatDate(day), err)
	return fmt.Sprintf("%s: %s文件读取失败: %v", report.FormatDate(day), kind, err)
}

// rankCodes 按累计秒数降序排列 相同时按代码升序
func rankCodes(codes map[string]*codeAccumulator, topN int) []report.CodeSeconds {
	out := make([]report.CodeSeconds, 0, len(codes))
	for code, acc := range codes {
		out = append(out, report.CodeSeconds{Code: code, Seconds: acc.seconds, Hours: acc.hours})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seconds != out[j].Seconds {
			return out[i].Seconds > out[j].Seconds
		}
		return out[i].Code < out[j].Code
	})
	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}
