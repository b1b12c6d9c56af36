// 本文件用于单日查询结果构建
package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"prod-watch/internal/ingest"
	"prod-watch/internal/models"
	"prod-watch/internal/report"
	"prod-watch/internal/stats"
)

// DaySummary 返回单日产量汇总 文件缺失时返回错误
func (a *Analyzer) DaySummary(date time.Time) (report.ProdSummary, error) {
	day := a.source.DayStart(date)
	prod, err := a.source.LoadProductionDay(day)
	if err != nil {
		return report.ProdSummary{}, err
	}
	pass, fail := prod.Totals()
	return report.ProdSummary{
		Type:  report.TypeProdSummary,
		Date:  report.FormatDate(day),
		Pass:  pass,
		Fail:  fail,
		Total: pass + fail,
		Yield: stats.Round(models.YieldPercent(pass, fail), 2),
	}, nil
}

// HourlyWithAlarms 返回单日窗口内逐小时的产量与报警
// 产量文件缺失返回错误 报警文件缺失时按无报警处理并给出警告
func (a *Analyzer) HourlyWithAlarms(date time.Time, window *HourWindow) (report.HourlyWithAlarms, error) {
	day := a.source.DayStart(date)
	prod, err := a.source.LoadProductionDay(day)
	if err != nil {
		return report.HourlyWithAlarms{}, err
	}
	out := report.HourlyWithAlarms{
		Type:      report.TypeHourlyWithAlarms,
		Date:      report.FormatDate(day),
		StartHour: 0,
		EndHour:   23,
		Items:     []report.HourlyItem{},
	}
	if window != nil {
		out.StartHour = window.Start
		out.EndHour = window.End
	}

	var agg [stats.HoursPerDay]models.HourlyAlarmAggregate
	alarms, err := a.source.LoadAlarmDay(day)
	switch {
	case err == nil:
		agg = stats.AggregateHourly(alarms.Records, day)
	case errors.Is(err, ingest.ErrFileNotFound):
		out.Warnings = append(out.Warnings, fmt.Sprintf("%s: 报警文件缺失，按无报警处理", out.Date))
	default:
		return report.HourlyWithAlarms{}, err
	}

	for _, h := range window.Hours() {
		rec, _ := prod.Hour(h)
		slot := agg[h]
		code, sec := slot.TopCode()
		out.Items = append(out.Items, report.HourlyItem{
			Hour:             h,
			Pass:             rec.Pass,
			Fail:             rec.Fail,
			Total:            rec.Total(),
			Yield:            stats.Round(rec.Yield(), 2),
			AlarmCount:       slot.Count,
			AlarmDurationSec: slot.UnionDurationSeconds,
			TopAlarmCode:     code,
			TopAlarmSeconds:  sec,
		})
	}
	return out, nil
}

// TopAlarms 返回单日按并集时长排序的报警代码
// 每个代码的时长为逐小时并集之和 不会超过报警实际覆盖的时间
func (a *Analyzer) TopAlarms(date time.Time, topN int) (report.AlarmTop, error) {
	day := a.source.DayStart(date)
	alarms, err := a.source.LoadAlarmDay(day)
	if err != nil {
		return report.AlarmTop{}, err
	}
	if topN <= 0 {
		topN = a.topN
	}
	categories := make(map[string]string)
	counts := make(map[string]int)
	for _, rec := range alarms.Records {
		if _, ok := categories[rec.Code]; !ok {
			categories[rec.Code] = rec.Category
		}
		counts[rec.Code]++
	}
	seconds := make(map[string]int)
	agg := stats.AggregateHourly(alarms.Records, day)
	out := report.AlarmTop{
		Type:  report.TypeAlarmTop,
		Date:  report.FormatDate(day),
		Items: []report.AlarmTopItem{},
	}
	for _, slot := range agg {
		out.TotalSeconds += slot.UnionDurationSeconds
		for code, sec := range slot.PerCodeUnionSeconds {
			seconds[code] += sec
		}
	}
	for code, n := range counts {
		out.TotalCount += n
		out.Items = append(out.Items, report.AlarmTopItem{
			Code:     code,
			Category: categories[code],
			Count:    n,
			Seconds:  seconds[code],
		})
	}
	sort.Slice(out.Items, func(i, j int) bool {
		if out.Items[i].Seconds != out.Items[j].Seconds {
			return out.Items[i].Seconds > out.Items[j].Seconds
		}
		if out.Items[i].Count != out.Items[j].Count {
			return out.Items[i].Count > out.Items[j].Count
		}
		return out.Items[i].Code < out.Items[j].Code
	})
	if len(out.Items) > topN {
		out.Items = out.Items[:topN]
	}
	return out, nil
}
