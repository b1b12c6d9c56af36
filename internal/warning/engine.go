// 本文件用于按回看窗口收集小时数据并执行预警规则
package warning

import (
	"errors"
	"sync"
	"time"

	"prod-watch/internal/ingest"
	"prod-watch/internal/logger"
	"prod-watch/internal/models"
	"prod-watch/internal/stats"
)

// DaySource 提供按天读取的产量与报警数据
type DaySource interface {
	LoadProductionDay(date time.Time) (*models.DayProduction, error)
	LoadAlarmDay(date time.Time) (*models.DayAlarms, error)
	DayStart(date time.Time) time.Time
}

// Engine 负责预警规则评估 不持有任何工单状态
type Engine struct {
	mu      sync.Mutex
	source  DaySource
	options models.WarningRuleOptions
}

// NewEngine 构建预警规则引擎
func NewEngine(source DaySource, options models.WarningRuleOptions) *Engine {
	return &Engine{
		source:  source,
		options: options.Normalize(),
	}
}

// Options 返回当前阈值
func (e *Engine) Options() models.WarningRuleOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.options
}

// SetOptions 替换阈值 非正数项回落到默认值
func (e *Engine) SetOptions(options models.WarningRuleOptions) {
	e.mu.Lock()
	e.options = options.Normalize()
	e.mu.Unlock()
}

// Evaluate 评估截至 now 的回看窗口 返回按开始时间与规则排序的预警
// 缺失的日文件静默跳过 规则本身不会返回错误
func (e *Engine) Evaluate(now time.Time) []models.WarningItem {
	opts := e.Options()
	samples := e.collectSamples(now, opts.LookbackHours)
	return evaluateSamples(samples, now, opts)
}

// collectSamples 取包含当前小时在内的最近 hours 个小时槽
func (e *Engine) collectSamples(now time.Time, hours int) []HourSample {
	current := now.Truncate(time.Hour)
	if loc := e.source.DayStart(now).Location(); loc != nil {
		local := now.In(loc)
		current = time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
	}
	first := current.Add(-time.Duration(hours-1) * time.Hour)

	type dayData struct {
		production *models.DayProduction
		alarms     *[stats.HoursPerDay]models.HourlyAlarmAggregate
	}
	days := make(map[time.Time]*dayData)
	load := func(slot time.Time) *dayData {
		day := e.source.DayStart(slot)
		if data, ok := days[day]; ok {
			return data
		}
		data := &dayData{}
		if prod, err := e.source.LoadProductionDay(day); err == nil {
			data.production = prod
		} else if !errors.Is(err, ingest.ErrFileNotFound) {
			logger.Warn("预警评估读取产量失败: %s: %v", day.Format("2006-01-02"), err)
		}
		if alarms, err := e.source.LoadAlarmDay(day); err == nil {
			agg := stats.AggregateHourly(alarms.Records, day)
			data.alarms = &agg
		} else if !errors.Is(err, ingest.ErrFileNotFound) {
			logger.Warn("预警评估读取报警失败: %s: %v", day.Format("2006-01-02"), err)
		}
		days[day] = data
		return data
	}

	samples := make([]HourSample, 0, hours)
	for slot := first; !slot.After(current); slot = slot.Add(time.Hour) {
		data := load(slot)
		day := e.source.DayStart(slot)
		hour := int(slot.Sub(day) / time.Hour)
		if hour < 0 || hour >= stats.HoursPerDay {
			continue
		}
		sample := HourSample{Start: slot}
		if rec, ok := data.production.Hour(hour); ok {
			sample.Production = rec
			sample.HasProduction = true
		}
		if data.alarms != nil {
			sample.Alarms = data.alarms[hour]
			sample.HasAlarms = sample.Alarms.Count > 0
		}
		samples = append(samples, sample)
	}
	return samples
}
