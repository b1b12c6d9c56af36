// 本文件用于解析每日报警文件
package ingest

import (
	"fmt"
	"strings"
	"time"

	"prod-watch/internal/models"
)

// UnknownValue 为缺失类别或代码时使用的占位值
const UnknownValue = "Unknown"

// AlarmParseResult 为报警文件解析结果
type AlarmParseResult struct {
	Records     []models.AlarmRecord
	Delimiter   rune
	SkippedRows int
}

// ParseAlarms 解析一个报警文本
// 缺少可选列时降级处理 表头需要开始时间列加上代码 内容 结束或持续时间中的至少一列
// 能按产量表头解析的行不算报警表头 找不到时返回 ErrHeaderNotFound
func ParseAlarms(content string, day time.Time, loc *time.Location, source string) (AlarmParseResult, error) {
	if loc == nil {
		loc = time.Local
	}
	result := AlarmParseResult{Delimiter: ','}
	lines := splitLines(content)
	headerIdx, delim, columns := findHeader(lines, alarmColumns, isAlarmHeader)
	if headerIdx < 0 {
		if strings.TrimSpace(content) == "" {
			return result, nil
		}
		return result, fmt.Errorf("%w: 报警文件缺少开始时间列或表头为产量格式", ErrHeaderNotFound)
	}
	result.Delimiter = delim

	for _, line := range lines[headerIdx+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := SplitLine(line, delim)
		if isBlankRow(row) {
			continue
		}
		rec, skip := parseAlarmRow(row, columns, day, loc)
		if skip {
			result.SkippedRows++
			continue
		}
		rec.SourceFile = source
		result.Records = append(result.Records, rec)
	}
	return result, nil
}

func isAlarmHeader(m ColumnMap, cells []string) bool {
	if !m.Has(FieldStart) {
		return false
	}
	if !m.Has(FieldCode) && !m.Has(FieldContent) && !m.Has(FieldEnd) && !m.Has(FieldDuration) {
		return false
	}
	// 产量文件的 "时间" 列同样能匹配开始时间 良品与不良列同时出现时拒绝
	return !isProductionHeader(resolveColumns(cells, productionColumns))
}

func parseAlarmRow(row []string, columns ColumnMap, day time.Time, loc *time.Location) (models.AlarmRecord, bool) {
	start, _ := parseTimeCell(columns.Cell(row, FieldStart), day, loc)
	if start.outcome != fieldOK {
		return models.AlarmRecord{}, true
	}
	end, endTimeOnly := parseTimeCell(columns.Cell(row, FieldEnd), day, loc)
	duration := parseDurationCell(columns.Cell(row, FieldDuration))

	endAt := end.value
	if end.outcome == fieldOK && endAt.Before(start.value) && endTimeOnly {
		// 仅有时刻且早于开始 视为跨零点
		endAt = endAt.Add(24 * time.Hour)
	}
	if end.outcome != fieldOK || endAt.Before(start.value) {
		// 结束时间缺失或早于开始时 用持续时间推算
		endAt = start.value.Add(time.Duration(duration.value) * time.Second)
	}

	content := strings.TrimSpace(columns.Cell(row, FieldContent))
	code := strings.TrimSpace(columns.Cell(row, FieldCode))
	if code == "" {
		code = content
	}
	if code == "" {
		code = UnknownValue
	}
	category := strings.TrimSpace(columns.Cell(row, FieldCategory))
	if category == "" {
		category = UnknownValue
	}
	return models.AlarmRecord{
		Code:            code,
		Category:        category,
		Content:         content,
		Start:           start.value,
		End:             endAt,
		DurationSeconds: int(endAt.Sub(start.value) / time.Second),
	}, false
}
