// 本文件用于把查询请求分发到分析器与工单存储 统一返回带 type 的结果
package query

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"prod-watch/internal/analysis"
	"prod-watch/internal/models"
	"prod-watch/internal/report"
	"prod-watch/internal/ticket"
)

// Request 表示一次查询
type Request struct {
	Type      string   `json:"type"`
	Date      string   `json:"date,omitempty"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
	Window    string   `json:"window,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
	View      string   `json:"view,omitempty"`
	TopN      int      `json:"topN,omitempty"`
}

// TicketLister 提供工单视图
type TicketLister interface {
	List(view ticket.View, now time.Time) []models.WarningTicketRecord
}

// Dispatcher 负责解析参数并调用对应的构建函数
type Dispatcher struct {
	mu               sync.RWMutex
	analyzer         *analysis.Analyzer
	tickets          TicketLister
	location         *time.Location
	defaultThreshold float64
	defaultTopN      int
	now              func() time.Time
}

// NewDispatcher 创建查询分发器 tickets 为空时工单查询返回错误结果
func NewDispatcher(analyzer *analysis.Analyzer, tickets TicketLister, loc *time.Location, options models.WarningRuleOptions) *Dispatcher {
	if loc == nil {
		loc = time.Local
	}
	opts := options.Normalize()
	return &Dispatcher{
		analyzer:         analyzer,
		tickets:          tickets,
		location:         loc,
		defaultThreshold: opts.YieldThresholdPercent,
		defaultTopN:      opts.TopAlarmCodes,
		now:              time.Now,
	}
}

// SetOptions 更新默认良率阈值与排行数量
func (d *Dispatcher) SetOptions(options models.WarningRuleOptions) {
	opts := options.Normalize()
	d.mu.Lock()
	d.defaultThreshold = opts.YieldThresholdPercent
	d.defaultTopN = opts.TopAlarmCodes
	d.mu.Unlock()
}

// SetClock 替换时钟 用于测试
func (d *Dispatcher) SetClock(now func() time.Time) {
	if now != nil {
		d.now = now
	}
}

// Dispatch 执行查询 任何失败都以 error 结果返回
func (d *Dispatcher) Dispatch(req Request) report.Report {
	typ := strings.TrimSpace(req.Type)
	switch typ {
	case report.TypeProdSummary:
		date, err := d.parseDate(req.Date, "date")
		if err != nil {
			return report.NewError(typ, err)
		}
		out, err := d.analyzer.DaySummary(date)
		if err != nil {
			return report.NewError(typ, err)
		}
		return out
	case report.TypeHourlyWithAlarms:
		date, err := d.parseDate(req.Date, "date")
		if err != nil {
			return report.NewError(typ, err)
		}
		window, err := analysis.ParseHourWindow(req.Window)
		if err != nil {
			return report.NewError(typ, err)
		}
		out, err := d.analyzer.HourlyWithAlarms(date, window)
		if err != nil {
			return report.NewError(typ, err)
		}
		return out
	case report.TypeAlarmTop:
		date, err := d.parseDate(req.Date, "date")
		if err != nil {
			return report.NewError(typ, err)
		}
		out, err := d.analyzer.TopAlarms(date, d.topN(req.TopN))
		if err != nil {
			return report.NewError(typ, err)
		}
		return out
	case report.TypeRangeSummary:
		start, end, err := d.parseRange(req)
		if err != nil {
			return report.NewError(typ, err)
		}
		return d.analyzer.RangeSummary(start, end)
	case report.TypeAlarmImpact:
		start, end, err := d.parseRange(req)
		if err != nil {
			return report.NewError(typ, err)
		}
		window, err := analysis.ParseHourWindow(req.Window)
		if err != nil {
			return report.NewError(typ, err)
		}
		d.mu.RLock()
		threshold := d.defaultThreshold
		d.mu.RUnlock()
		if req.Threshold != nil {
			if *req.Threshold <= 0 || *req.Threshold > 100 {
				return report.NewError(typ, fmt.Errorf("%w: 良率阈值需在 (0,100] 之间: %v", report.ErrInvalidRequest, *req.Threshold))
			}
			threshold = *req.Threshold
		}
		return d.analyzer.Analyze(start, end, window, threshold)
	case report.TypeWarningTickets:
		if d.tickets == nil {
			return report.NewError(typ, fmt.Errorf("工单存储未启用"))
		}
		view, err := ticket.ParseView(req.View)
		if err != nil {
			return report.NewError(typ, fmt.Errorf("%w: %v", report.ErrInvalidRequest, err))
		}
		items := d.tickets.List(view, d.now())
		return report.WarningTickets{Type: report.TypeWarningTickets, View: string(view), Count: len(items), Items: items}
	case "":
		return report.NewError("query", fmt.Errorf("%w: 缺少查询类型", report.ErrInvalidRequest))
	default:
		return report.NewError("query", fmt.Errorf("%w: 未知的查询类型 %s", report.ErrInvalidRequest, typ))
	}
}

func (d *Dispatcher) topN(n int) int {
	if n > 0 {
		return n
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultTopN
}

// parseDate 解析 yyyy-MM-dd 或 today/yesterday
func (d *Dispatcher) parseDate(raw, field string) (time.Time, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	now := d.now().In(d.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.location)
	switch trimmed {
	case "":
		return time.Time{}, fmt.Errorf("%w: 缺少参数 %s", report.ErrInvalidRequest, field)
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	for _, layout := range []string{report.DateLayout, "20060102", "2006/01/02"} {
		if t, err := time.ParseInLocation(layout, trimmed, d.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s 日期格式错误: %s", report.ErrInvalidRequest, field, raw)
}

func (d *Dispatcher) parseRange(req Request) (time.Time, time.Time, error) {
	start, err := d.parseDate(req.Start, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start
	if strings.TrimSpace(req.End) != "" {
		if end, err = d.parseDate(req.End, "end"); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// ParseThreshold 解析可选的阈值参数 空串返回 nil
func ParseThreshold(raw string) (*float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: 阈值格式错误: %s", report.ErrInvalidRequest, raw)
	}
	return &v, nil
}
