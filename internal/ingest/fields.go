// 本文件用于单元格字段解析
// 每个解析器返回 fieldResult 明确区分三种结果
//   - fieldOK      解析成功
//   - fieldDefault 单元格为空或缺列 使用默认值
//   - fieldSkip    单元格无法解析 整行丢弃
// 整个文件失败的情况 例如产量表头缺列 由解析入口直接返回错误
package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

type fieldOutcome int

const (
	fieldOK fieldOutcome = iota
	fieldDefault
	fieldSkip
)

type fieldResult[T any] struct {
	value   T
	outcome fieldOutcome
}

func parsedValue[T any](v T) fieldResult[T] {
	return fieldResult[T]{value: v, outcome: fieldOK}
}

func useDefault[T any](v T) fieldResult[T] {
	return fieldResult[T]{value: v, outcome: fieldDefault}
}

func skipRow[T any]() fieldResult[T] {
	return fieldResult[T]{outcome: fieldSkip}
}

func (r fieldResult[T]) skipped() bool {
	return r.outcome == fieldSkip
}

// dateTimeLayouts 为报警时间与小时列支持的日期时间格式
var dateTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/01/02 15:04",
	"2006/1/2 15:04",
	"2006.01.02 15:04:05",
	"20060102150405",
}

// timeOnlyLayouts 为仅含时刻的格式 需结合文件日期
var timeOnlyLayouts = []string{
	"15:04:05",
	"15:04:05.000",
	"15:04",
}

// parseHourCell 宽松解析小时列 支持 HH:mm、纯数字、前导数字与日期时间 结果钳制到 0..23
func parseHourCell(raw string) fieldResult[int] {
	cell := strings.TrimSpace(raw)
	if cell == "" {
		return skipRow[int]()
	}
	if strings.ContainsAny(cell, "-/.") && strings.Contains(cell, ":") {
		for _, layout := range dateTimeLayouts {
			if ts, err := time.Parse(layout, cell); err == nil {
				return parsedValue(ts.Hour())
			}
		}
	}
	digits := leadingDigits(cell)
	if digits == "" {
		return skipRow[int]()
	}
	hour, err := strconv.Atoi(digits)
	if err != nil {
		return skipRow[int]()
	}
	return parsedValue(clampInt(hour, 0, 23))
}

// parseCountCell 解析计数列 空值取 0 负数或无法解析时丢弃整行
func parseCountCell(raw string) fieldResult[int] {
	cell := strings.TrimSpace(raw)
	if cell == "" || cell == "-" {
		return useDefault(0)
	}
	cell = strings.ReplaceAll(cell, ",", "")
	cell = strings.ReplaceAll(cell, "，", "")
	if n, err := strconv.Atoi(cell); err == nil {
		if n < 0 {
			return skipRow[int]()
		}
		return parsedValue(n)
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return skipRow[int]()
	}
	return parsedValue(int(math.Round(f)))
}

// parseTimeCell 解析报警时间 仅含时刻时使用 day 的日期
// 第二个返回值表示单元格是否只有时刻部分
func parseTimeCell(raw string, day time.Time, loc *time.Location) (fieldResult[time.Time], bool) {
	cell := strings.TrimSpace(raw)
	if cell == "" {
		return useDefault(time.Time{}), false
	}
	for _, layout := range dateTimeLayouts {
		if ts, err := time.ParseInLocation(layout, cell, loc); err == nil {
			return parsedValue(ts), false
		}
	}
	for _, layout := range timeOnlyLayouts {
		if ts, err := time.ParseInLocation(layout, cell, loc); err == nil {
			y, m, d := day.Date()
			return parsedValue(time.Date(y, m, d, ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), loc)), true
		}
	}
	return skipRow[time.Time](), false
}

// parseDurationCell 解析持续时间 单位为秒 支持 hh:mm:ss、mm:ss 与中英文单位后缀
// 持续时间是可选字段 无法解析时按缺省处理 不丢弃整行
func parseDurationCell(raw string) fieldResult[int] {
	cell := strings.ToLower(strings.TrimSpace(raw))
	if cell == "" {
		return useDefault(0)
	}
	if strings.Contains(cell, ":") {
		parts := strings.Split(cell, ":")
		total := 0
		for _, part := range parts {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 0 {
				return useDefault(0)
			}
			total = total*60 + n
		}
		return parsedValue(total)
	}
	multiplier := 1.0
	for _, unit := range []struct {
		suffix string
		factor float64
	}{
		{suffix: "小时", factor: 3600},
		{suffix: "分钟", factor: 60},
		{suffix: "min", factor: 60},
		{suffix: "分", factor: 60},
		{suffix: "秒", factor: 1},
		{suffix: "h", factor: 3600},
		{suffix: "m", factor: 60},
		{suffix: "s", factor: 1},
	} {
		if strings.HasSuffix(cell, unit.suffix) {
			cell = strings.TrimSpace(strings.TrimSuffix(cell, unit.suffix))
			multiplier = unit.factor
			break
		}
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return useDefault(0)
	}
	return parsedValue(int(math.Round(f * multiplier)))
}

func leadingDigits(s string) string {
	end := 0
	for i, r := range s {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			break
		}
		end = i + 1
	}
	return s[:end]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
