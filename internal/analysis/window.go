// 本文件用于时段窗口解析
package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"prod-watch/internal/report"
)

// HourWindow 为一天内的时段 两端包含 Start 大于 End 时跨零点
// 例如 22-6 表示当天 22、23 点与 0 到 6 点
type HourWindow struct {
	Start int
	End   int
}

// NewHourWindow 创建时段窗口 小时必须在 0..23
func NewHourWindow(start, end int) (*HourWindow, error) {
	if start < 0 || start > 23 || end < 0 || end > 23 {
		return nil, fmt.Errorf("%w: 时段小时超出范围 %d-%d", report.ErrInvalidRequest, start, end)
	}
	return &HourWindow{Start: start, End: end}, nil
}

// ParseHourWindow 解析 "8-20" 或 "22-6" 格式 空串返回 nil
func ParseHourWindow(raw string) (*HourWindow, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.SplitN(raw, "-", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: 时段格式应为 起始-结束: %s", report.ErrInvalidRequest, raw)
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: 起始小时无效: %s", report.ErrInvalidRequest, parts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: 结束小时无效: %s", report.ErrInvalidRequest, parts[1])
	}
	return NewHourWindow(start, end)
}

// Contains 判断小时是否在窗口内 nil 窗口包含全部小时
func (w *HourWindow) Contains(hour int) bool {
	if w == nil {
		return hour >= 0 && hour <= 23
	}
	if w.Start <= w.End {
		return hour >= w.Start && hour <= w.End
	}
	return hour >= w.Start || hour <= w.End
}

// Hours 按从起点到终点的顺序返回窗口内的小时
func (w *HourWindow) Hours() []int {
	if w == nil {
		out := make([]int, 24)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, 24)
	for h := w.Start; ; h = (h + 1) % 24 {
		out = append(out, h)
		if h == w.End {
			break
		}
	}
	return out
}

func (w *HourWindow) toReport() *report.Window {
	if w == nil {
		return nil
	}
	return &report.Window{StartHour: w.Start, EndHour: w.End}
}

// String 返回 "起始-结束" 形式
func (w *HourWindow) String() string {
	if w == nil {
		return "0-23"
	}
	return fmt.Sprintf("%d-%d", w.Start, w.End)
}
