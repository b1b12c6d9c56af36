// 本文件用于表头列名别名匹配
package ingest

import (
	"strings"
)

// Field 表示逻辑字段
type Field string

const (
	FieldHour     Field = "hour"
	FieldPass     Field = "pass"
	FieldFail     Field = "fail"
	FieldPlan     Field = "plan"
	FieldCode     Field = "code"
	FieldContent  Field = "content"
	FieldCategory Field = "category"
	FieldStart    Field = "start"
	FieldEnd      Field = "end"
	FieldDuration Field = "duration"
)

type fieldAliases struct {
	field   Field
	aliases []string
}

// productionColumns 为产量文件的字段别名 匹配时按顺序优先
var productionColumns = []fieldAliases{
	{field: FieldPass, aliases: []string{"pass", "良品", "良率pass", "ok"}},
	{field: FieldFail, aliases: []string{"fail", "不良", "报废", "抛料", "ng"}},
	{field: FieldHour, aliases: []string{"hour", "小时", "时段", "时间", "时刻", "time"}},
	{field: FieldPlan, aliases: []string{"plan", "计划", "target", "目标"}},
}

// alarmColumns 为报警文件的字段别名
var alarmColumns = []fieldAliases{
	{field: FieldCode, aliases: []string{"报警代码", "报警编号", "故障代码", "错误代码", "alarm code", "alarmcode", "alarm id", "alarmid", "error code", "代码", "编号", "code"}},
	{field: FieldContent, aliases: []string{"报警内容", "报警信息", "故障描述", "报警描述", "alarm message", "alarm text", "message", "content", "description", "内容", "描述", "信息", "msg"}},
	{field: FieldCategory, aliases: []string{"报警类型", "报警类别", "报警分类", "类别", "分类", "类型", "模块", "category", "module", "group", "type"}},
	{field: FieldStart, aliases: []string{"开始时间", "发生时间", "报警时间", "起始时间", "start time", "starttime", "start", "begin", "occurred", "发生", "开始", "time", "时间"}},
	{field: FieldEnd, aliases: []string{"结束时间", "恢复时间", "解除时间", "复位时间", "end time", "endtime", "end", "finish", "recover", "clear", "结束", "恢复"}},
	{field: FieldDuration, aliases: []string{"持续时间(s)", "持续时间", "持续秒数", "持续时长", "时长", "duration(s)", "duration", "seconds", "secs", "耗时"}},
}

// ColumnMap 记录逻辑字段到列下标的映射
type ColumnMap map[Field]int

// Index 返回字段所在列 未匹配返回 -1
func (m ColumnMap) Index(field Field) int {
	if idx, ok := m[field]; ok {
		return idx
	}
	return -1
}

// Has 判断字段是否已匹配
func (m ColumnMap) Has(field Field) bool {
	_, ok := m[field]
	return ok
}

// Cell 返回字段对应的单元格 缺列或越界时返回空串
func (m ColumnMap) Cell(row []string, field Field) string {
	idx := m.Index(field)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// resolveColumns 先做精确匹配 再做包含匹配 每列最多绑定一个字段
func resolveColumns(header []string, wanted []fieldAliases) ColumnMap {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = normalizeHeaderCell(cell)
	}
	result := make(ColumnMap)
	used := make(map[int]bool)

	for _, fa := range wanted {
		if idx := findColumn(normalized, fa.aliases, used, func(cell, alias string) bool {
			return cell == alias
		}); idx >= 0 {
			result[fa.field] = idx
			used[idx] = true
		}
	}
	for _, fa := range wanted {
		if result.Has(fa.field) {
			continue
		}
		if idx := findColumn(normalized, fa.aliases, used, strings.Contains); idx >= 0 {
			result[fa.field] = idx
			used[idx] = true
		}
	}
	return result
}

func findColumn(cells, aliases []string, used map[int]bool, match func(cell, alias string) bool) int {
	for _, alias := range aliases {
		for i, cell := range cells {
			if used[i] || cell == "" {
				continue
			}
			if match(cell, alias) {
				return i
			}
		}
	}
	return -1
}

func normalizeHeaderCell(cell string) string {
	cleaned := strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF"))
	cleaned = strings.ToLower(cleaned)
	// 统一全角括号 便于匹配 "持续时间（s）" 这类表头
	cleaned = strings.NewReplacer("（", "(", "）", ")", "\u3000", " ").Replace(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}
