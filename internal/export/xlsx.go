// 本文件用于把工单与报警影响分析导出为 XLSX
package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"prod-watch/internal/models"
	"prod-watch/internal/report"
)

const (
	ticketSheet   = "工单"
	summarySheet  = "概览"
	lowYieldSheet = "低良率小时"
	codesSheet    = "主要报警"
	byDaySheet    = "按天汇总"
	hourlySheet   = "时段负载"
)

const cellTimeLayout = "2006-01-02 15:04:05"

var ticketHeaders = []string{
	"指纹", "规则", "级别", "类型", "状态", "开始时间", "结束时间",
	"指标", "当前值", "基线", "阈值", "次数", "首次检测", "最近检测", "忽略至", "摘要",
}

// TicketsXLSX 把工单写入单个工作表 时间按 loc 显示
func TicketsXLSX(tickets []models.WarningTicketRecord, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ticketSheet); err != nil {
		return nil, fmt.Errorf("设置工作表名称失败: %w", err)
	}
	if err := writeRow(f, ticketSheet, 1, toAny(ticketHeaders)); err != nil {
		return nil, err
	}
	for i, rec := range tickets {
		row := []any{
			rec.Fingerprint,
			rec.RuleName,
			string(rec.Level),
			string(rec.Type),
			string(rec.Status),
			formatTime(rec.StartTime, loc),
			formatTime(rec.EndTime, loc),
			rec.MetricName,
			rec.CurrentValue,
			floatCell(rec.BaselineValue),
			floatCell(rec.ThresholdValue),
			rec.OccurrenceCount,
			formatTime(rec.FirstSeen, loc),
			formatTime(rec.LastSeen, loc),
			formatTimePtr(rec.IgnoredUntil, loc),
			rec.Summary,
		}
		if err := writeRow(f, ticketSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	_ = f.SetPanes(ticketSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	_ = f.SetColWidth(ticketSheet, "A", "A", 40)
	_ = f.SetColWidth(ticketSheet, "P", "P", 60)
	return writeBuffer(f)
}

// ImpactXLSX 把报警影响分析拆成多个工作表
func ImpactXLSX(impact report.AlarmImpact) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("设置工作表名称失败: %w", err)
	}
	for _, name := range []string{lowYieldSheet, codesSheet, byDaySheet, hourlySheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("创建工作表失败: %s: %w", name, err)
		}
	}

	window := "全天"
	if impact.Window != nil {
		window = fmt.Sprintf("%d-%d", impact.Window.StartHour, impact.Window.EndHour)
	}
	summary := [][]any{
		{"区间", impact.Range.Start + " ~ " + impact.Range.End},
		{"时段", window},
		{"样本小时数", impact.Samples},
		{"报警时长与产量相关系数", impact.Correlation.AlarmSecondsVsTotal},
		{"报警时长与良率相关系数", impact.Correlation.AlarmSecondsVsYield},
		{"低良率阈值", impact.LowYield.Threshold},
	}
	for i, row := range summary {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}
	for i, w := range impact.Warnings {
		if err := writeRow(f, summarySheet, len(summary)+2+i, []any{"警告", w}); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, lowYieldSheet, 1, []any{"日期", "小时", "良品", "不良", "合计", "良率", "报警秒数"}); err != nil {
		return nil, err
	}
	for i, r := range impact.LowYield.Rows {
		if err := writeRow(f, lowYieldSheet, i+2, []any{r.Date, r.Hour, r.Pass, r.Fail, r.Total, r.Yield, r.AlarmSeconds}); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, codesSheet, 1, []any{"报警代码", "并集秒数", "涉及小时数"}); err != nil {
		return nil, err
	}
	for i, c := range impact.LowYield.TopAlarmCodes {
		if err := writeRow(f, codesSheet, i+2, []any{c.Code, c.Seconds, c.Hours}); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, byDaySheet, 1, []any{"日期", "良品", "不良", "合计", "良率", "报警秒数", "报警次数"}); err != nil {
		return nil, err
	}
	for i, d := range impact.ByDay {
		if err := writeRow(f, byDaySheet, i+2, []any{d.Date, d.Pass, d.Fail, d.Total, d.Yield, d.AlarmSeconds, d.AlarmCount}); err != nil {
			return nil, err
		}
	}

	if err := writeRow(f, hourlySheet, 1, []any{"小时", "报警秒数"}); err != nil {
		return nil, err
	}
	for hour, sec := range impact.HourlyLoadSec {
		if err := writeRow(f, hourlySheet, hour+2, []any{hour, sec}); err != nil {
			return nil, err
		}
	}
	return writeBuffer(f)
}

// WriteFile 把导出内容写入文件
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建导出目录失败: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入导出文件失败: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("写入工作表 %s 第 %d 行失败: %w", sheet, row, err)
	}
	return nil
}

func writeBuffer(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("生成 XLSX 失败: %w", err)
	}
	return buf.Bytes(), nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(cellTimeLayout)
}

func formatTimePtr(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return formatTime(*t, loc)
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
