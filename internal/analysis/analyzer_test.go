package analysis

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"prod-watch/internal/ingest"
	"prod-watch/internal/models"
)

type fakeSource struct {
	production map[string]*models.DayProduction
	alarms     map[string]*models.DayAlarms
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		production: make(map[string]*models.DayProduction),
		alarms:     make(map[string]*models.DayAlarms),
	}
}

func (f *fakeSource) DayStart(date time.Time) time.Time {
	d := date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func (f *fakeSource) LoadProductionDay(date time.Time) (*models.DayProduction, error) {
	day, ok := f.production[f.DayStart(date).Format("2006-01-02")]
	if !ok {
		return nil, fmt.Errorf("%w: prod", ingest.ErrFileNotFound)
	}
	return day, nil
}

func (f *fakeSource) LoadAlarmDay(date time.Time) (*models.DayAlarms, error) {
	day, ok := f.alarms[f.DayStart(date).Format("2006-01-02")]
	if !ok {
		return nil, fmt.Errorf("%w: alarm", ingest.ErrFileNotFound)
	}
	return day, nil
}

func (f *fakeSource) addProduction(day time.Time, rows map[int][2]int) {
	dp := &models.DayProduction{Date: day, Hours: make(map[int]models.HourlyProductionRecord)}
	for h, v := range rows {
		dp.Hours[h] = models.HourlyProductionRecord{Date: day, Hour: h, Pass: v[0], Fail: v[1]}
	}
	f.production[day.Format("2006-01-02")] = dp
}

func (f *fakeSource) addAlarms(day time.Time, records ...models.AlarmRecord) {
	f.alarms[day.Format("2006-01-02")] = &models.DayAlarms{Date: day, Records: records}
}

var day1 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func span(code string, day time.Time, h, startMin, endMin int) models.AlarmRecord {
	start := day.Add(time.Duration(h)*time.Hour + time.Duration(startMin)*time.Minute)
	end := day.Add(time.Duration(h)*time.Hour + time.Duration(endMin)*time.Minute)
	return models.AlarmRecord{Code: code, Category: "Unknown", Start: start, End: end, DurationSeconds: int(end.Sub(start).Seconds())}
}

func TestAnalyze_ConstantYieldCorrelationIsZero(t *testing.T) {
	src := newFakeSource()
	src.addProduction(day1, map[int][2]int{8: {96, 4}, 9: {96, 4}, 10: {96, 4}})
	src.addAlarms(day1, span("A", day1, 8, 0, 10), span("A", day1, 9, 0, 40))

	out := NewAnalyzer(src, 5).Analyze(day1, day1, nil, 97)
	if out.Samples != 3 {
		t.Fatalf("期望 3 个采样小时，实际为 %d", out.Samples)
	}
	if out.Correlation.AlarmSecondsVsYield != 0 || out.Correlation.AlarmSecondsVsTotal != 0 {
		t.Fatalf("期望常数良率与产量的相关系数为 0，实际为 %+v", out.Correlation)
	}
}

func TestAnalyze_NegativeCorrelation(t *testing.T) {
	src := newFakeSource()
	src.addProduction(day1, map[int][2]int{8: {100, 0}, 9: {80, 0}, 10: {60, 0}})
	src.addAlarms(day1, span("A", day1, 9, 0, 10), span("A", day1, 10, 0, 20))

	out := NewAnalyzer(src, 5).Analyze(day1, day1, nil, 97)
	if out.Correlation.AlarmSecondsVsTotal > -0.99 {
		t.Fatalf("期望报警时长与产量强负相关，实际为 %v", out.Correlation.AlarmSecondsVsTotal)
	}
	if out.Type != "prod.alarm.impact" {
		t.Fatalf("结果类型不符合预期: %s", out.Type)
	}
}

func TestAnalyze_SkipsDaysWithMissingFiles(t *testing.T) {
	src := newFakeSource()
	day2 := day1.AddDate(0, 0, 1)
	day3 := day1.AddDate(0, 0, 2)
	src.addProduction(day1, map[int][2]int{8: {50, 2}})
	src.addAlarms(day1)
	src.addProduction(day2, map[int][2]int{8: {50, 2}})
	src.addProduction(day3, map[int][2]int{8: {40, 10}})
	src.addAlarms(day3, span("X", day3, 8, 0, 30))

	out := NewAnalyzer(src, 5).Analyze(day3, day1, nil, 97)
	if len(out.ByDay) != 2 {
		t.Fatalf("期望跳过缺失报警文件的一天，实际天数为 %d", len(out.ByDay))
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "2024-05-02") {
		t.Fatalf("期望一条包含日期的警告，实际为 %v", out.Warnings)
	}
	if out.Range.Start != "2024-05-01" || out.Range.End != "2024-05-03" {
		t.Fatalf("期望起止日期被纠正，实际为 %+v", out.Range)
	}
	if out.HourlyLoadSec[8] != 1800 {
		t.Fatalf("期望 8 点累计报警 1800 秒，实际为 %d", out.HourlyLoadSec[8])
	}
}

func TestAnalyze_LowYieldRankingScopedToBadHours(t *testing.T) {
	src := newFakeSource()
	src.addProduction(day1, map[int][2]int{8: {40, 10}, 9: {100, 0}, 10: {45, 5}})
	src.addAlarms(day1,
		span("A", day1, 8, 0, 10),
		span("C", day1, 8, 5, 20),
		span("B", day1, 9, 0, 50),
		span("A", day1, 10, 0, 5),
	)

	out := NewAnalyzer(src, 5).Analyze(day1, day1, nil, 97)
	if len(out.LowYield.Rows) != 2 {
		t.Fatalf("期望 2 个低良率小时，实际为 %d", len(out.LowYield.Rows))
	}
	codes := out.LowYield.TopAlarmCodes
	if len(codes) != 2 {
		t.Fatalf("期望排行只包含低良率小时的代码，实际为 %+v", codes)
	}
	if codes[0].Code != "A" || codes[0].Seconds != 900 || codes[0].Hours != 2 {
		t.Fatalf("期望 A 排第一 共 900 秒 2 小时，实际为 %+v", codes[0])
	}
	if codes[1].Code != "C" || codes[1].Seconds != 900 {
		t.Fatalf("期望 C 排第二 共 900 秒，实际为 %+v", codes[1])
	}
}

func TestAnalyze_WindowWrapsMidnight(t *testing.T) {
	src := newFakeSource()
	src.addProduction(day1, map[int][2]int{1: {10, 0}, 12: {10, 0}, 23: {10, 0}})
	src.addAlarms(day1, span("A", day1, 12, 0, 30))
	window, err := ParseHourWindow("22-2")
	if err != nil {
		t.Fatalf("解析时段失败: %v", err)
	}
	out := NewAnalyzer(src, 5).Analyze(day1, day1, window, 97)
	if out.Samples != 2 {
		t.Fatalf("期望跨零点窗口采样 2 个小时，实际为 %d", out.Samples)
	}
	if out.HourlyLoadSec[12] != 0 {
		t.Fatalf("窗口外的小时不应累计报警")
	}
	if out.Window == nil || out.Window.StartHour != 22 || out.Window.EndHour != 2 {
		t.Fatalf("期望结果中带有窗口信息，实际为 %+v", out.Window)
	}
}

func TestHourWindow(t *testing.T) {
	w := &HourWindow{Start: 22, End: 2}
	if got := w.Hours(); len(got) != 5 || got[0] != 22 || got[4] != 2 {
		t.Fatalf("跨零点窗口小时不符合预期: %v", got)
	}
	if !w.Contains(23) || !w.Contains(0) || w.Contains(12) {
		t.Fatalf("跨零点窗口包含判断错误")
	}
	var all *HourWindow
	if len(all.Hours()) != 24 || !all.Contains(0) {
		t.Fatalf("空窗口应包含全天")
	}
	if _, err := ParseHourWindow("8-24"); err == nil {
		t.Fatalf("期望越界小时返回错误")
	}
	if w, err := ParseHourWindow(""); err != nil || w != nil {
		t.Fatalf("期望空串返回 nil 窗口")
	}
}

func TestHourlyWithAlarms_MissingAlarmFileDegrades(t *testing.T) {
	src := newFakeSource()
	src.addProduction(day1, map[int][2]int{8: {50, 2}, 9: {40, 10}})
	window := &HourWindow{Start: 8, End: 9}

	out, err := NewAnalyzer(src, 5).HourlyWithAlarms(day1, window)
	if err != nil {
		t.Fatalf("构建逐小时结果失败: %v", err)
	}
	if len(out.Items) != 2 || out.Items[1].Yield != 80 {
		t.Fatalf("逐小时结果不符合预期: %+v", out.Items)
	}
	if len(out.Warnings) != 1 {
		t.Fatalf("期望报警文件缺失时给出警告")
	}
	if _, err := NewAnalyzer(src, 5).HourlyWithAlarms(day1.AddDate(0, 0, 1), nil); !errors.Is(err, ingest.ErrFileNotFound) {
		t.Fatalf("期望产量缺失时返回 ErrFileNotFound，实际为 %v", err)
	}
}

func TestHourlyWithAlarms_TopCodePerHour(t *testing.T) {
	src := newFakeSource()
	src.addProduction(day1, map[int][2]int{8: {50, 2}})
	src.addAlarms(day1, span("A", day1, 8, 10, 25), span("A", day1, 8, 20, 40), span("B", day1, 8, 0, 5))

	out, err := NewAnalyzer(src, 5).HourlyWithAlarms(day1, &HourWindow{Start: 8, End: 8})
	if err != nil {
		t.Fatalf("构建逐小时结果失败: %v", err)
	}
	item := out.Items[0]
	if item.AlarmCount != 3 || item.AlarmDurationSec != 2100 {
		t.Fatalf("期望 3 次报警 并集 2100 秒，实际为 %d/%d", item.AlarmCount, item.AlarmDurationSec)
	}
	if item.TopAlarmCode != "A" || item.TopAlarmSeconds != 1800 {
		t.Fatalf("期望主报警为 A 1800 秒，实际为 %s/%d", item.TopAlarmCode, item.TopAlarmSeconds)
	}
}

func TestTopAlarmsAndSummaries(t *testing.T) {
	src := newFakeSource()
	src.addProduction(day1, map[int][2]int{8: {50, 2}, 9: {40, 10}})
	src.addAlarms(day1, span("A", day1, 8, 0, 10), span("B", day1, 9, 0, 30), span("B", day1, 9, 10, 20), span("C", day1, 10, 0, 10))
	analyzer := NewAnalyzer(src, 2)

	top, err := analyzer.TopAlarms(day1, 0)
	if err != nil {
		t.Fatalf("构建报警排行失败: %v", err)
	}
	if len(top.Items) != 2 || top.Items[0].Code != "B" || top.Items[0].Seconds != 1800 || top.Items[0].Count != 2 {
		t.Fatalf("报警排行不符合预期: %+v", top.Items)
	}
	if top.Items[1].Code != "A" {
		t.Fatalf("期望时长相同时按次数再按代码排序，实际为 %+v", top.Items)
	}

	summary, err := analyzer.DaySummary(day1)
	if err != nil {
		t.Fatalf("构建日汇总失败: %v", err)
	}
	if summary.Total != 102 || summary.Yield != 88.24 {
		t.Fatalf("日汇总不符合预期: %+v", summary)
	}

	rng := analyzer.RangeSummary(day1, day1.AddDate(0, 0, 1))
	if len(rng.ByDay) != 1 || len(rng.Warnings) != 1 || rng.Total != 102 {
		t.Fatalf("区间汇总不符合预期: %+v", rng)
	}
}
