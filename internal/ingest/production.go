// 本文件用于解析每日产量文件
package ingest

import (
	"fmt"
	"strings"
	"time"

	"prod-watch/internal/models"
)

// headerScanLines 为查找表头时最多扫描的非空行数 兼容表头前的标题行
const headerScanLines = 5

// totalRowMarkers 为汇总行的首列标记 这类行不参与按小时统计
var totalRowMarkers = []string{"total", "总数", "合计", "总计"}

// ProductionParseResult 为产量文件解析结果
type ProductionParseResult struct {
	Day         *models.DayProduction
	Delimiter   rune
	SkippedRows int
}

// ParseProduction 解析一天的产量文本
// 内容为空时返回空数据 找不到良品或不良列时返回 ErrHeaderNotFound
func ParseProduction(content string, day time.Time) (ProductionParseResult, error) {
	result := ProductionParseResult{
		Day: &models.DayProduction{
			Date:  day,
			Hours: make(map[int]models.HourlyProductionRecord),
		},
		Delimiter: ',',
	}
	lines := splitLines(content)
	headerIdx, delim, columns := findHeader(lines, productionColumns, func(m ColumnMap, _ []string) bool {
		return isProductionHeader(m)
	})
	if headerIdx < 0 {
		if strings.TrimSpace(content) == "" {
			return result, nil
		}
		return result, fmt.Errorf("%w: 产量文件缺少良品或不良列", ErrHeaderNotFound)
	}
	result.Delimiter = delim
	if !columns.Has(FieldHour) && !columnUsed(columns, 0) {
		// 未识别到小时列时默认首列为小时标记
		columns[FieldHour] = 0
	}

	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := SplitLine(line, delim)
		if isBlankRow(row) || isTotalRow(row) {
			continue
		}
		rec, skip := parseProductionRow(row, columns, day)
		if skip {
			result.SkippedRows++
			continue
		}
		if prev, exists := result.Day.Hours[rec.Hour]; exists {
			// 同一小时出现多行时累加
			rec.Pass += prev.Pass
			rec.Fail += prev.Fail
			rec.Plan += prev.Plan
		}
		result.Day.Hours[rec.Hour] = rec
	}
	return result, nil
}

func parseProductionRow(row []string, columns ColumnMap, day time.Time) (models.HourlyProductionRecord, bool) {
	hour := parseHourCell(columns.Cell(row, FieldHour))
	if hour.skipped() {
		return models.HourlyProductionRecord{}, true
	}
	pass := parseCountCell(columns.Cell(row, FieldPass))
	fail := parseCountCell(columns.Cell(row, FieldFail))
	plan := parseCountCell(columns.Cell(row, FieldPlan))
	if pass.skipped() || fail.skipped() {
		return models.HourlyProductionRecord{}, true
	}
	// 计划列是可选字段 无法解析时视为未提供
	planValue := 0
	if !plan.skipped() {
		planValue = plan.value
	}
	return models.HourlyProductionRecord{
		Date: day,
		Hour: hour.value,
		Pass: pass.value,
		Fail: fail.value,
		Plan: planValue,
	}, false
}

func isTotalRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	for _, marker := range totalRowMarkers {
		if strings.Contains(first, marker) {
			return true
		}
	}
	return false
}

// findHeader 在前几行非空行中寻找满足条件的表头 返回表头行下标、分隔符与列映射
func findHeader(lines []string, wanted []fieldAliases, accept func(ColumnMap, []string) bool) (int, rune, ColumnMap) {
	scanned := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if scanned >= headerScanLines {
			break
		}
		scanned++
		delim := DetectDelimiter(line)
		cells := SplitLine(line, delim)
		columns := resolveColumns(cells, wanted)
		if accept(columns, cells) {
			return i, delim, columns
		}
	}
	return -1, ',', nil
}

func isProductionHeader(m ColumnMap) bool {
	return m.Has(FieldPass) && m.Has(FieldFail)
}

func columnUsed(columns ColumnMap, idx int) bool {
	for _, used := range columns {
		if used == idx {
			return true
		}
	}
	return false
}
