// 本文件用于三条阈值规则的判定与合并

package warning

import (
	"fmt"
	"sort"
	"time"

	"prod-watch/internal/models"
	"prod-watch/internal/stats"
)

// evaluateSamples 对小时槽逐条判定 同一键的多次命中按规则的合并策略处理
func evaluateSamples(samples []HourSample, now time.Time, opts models.WarningRuleOptions) []models.WarningItem {
	opts = opts.Normalize()
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].Start.Before(samples[j].Start) })

	merged := make(map[string]*models.WarningItem)
	for i, sample := range samples {
		if item := yieldRule(samples[:i], sample, now, opts); item != nil {
			mergeItem(merged, item, keepMin)
		}
		if item := throughputRule(sample, now, opts); item != nil {
			mergeItem(merged, item, keepMin)
		}
		if item := alarmRule(sample, now, opts); item != nil {
			mergeItem(merged, item, keepMax)
		}
	}

	out := make([]models.WarningItem, 0, len(merged))
	for _, item := range merged {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// yieldRule 产量达到最小样本且良率低于阈值时触发
// 基线为此前若干个有产量小时的平均良率
func yieldRule(history []HourSample, sample HourSample, now time.Time, opts models.WarningRuleOptions) *models.WarningItem {
	if !sample.HasProduction {
		return nil
	}
	rec := sample.Production
	total := rec.Total()
	if total < opts.YieldMinSamples {
		return nil
	}
	yield := rec.Yield()
	if yield >= opts.YieldThresholdPercent {
		return nil
	}
	item := newItem(RuleYieldLow, models.LevelCritical, models.TypeYield, sample, now)
	item.MetricName = MetricYield
	item.CurrentValue = stats.Round(yield, 2)
	item.ThresholdValue = models.Float64Ptr(opts.YieldThresholdPercent)
	if baseline, ok := yieldBaseline(history, opts.TrendWindowHours); ok {
		item.BaselineValue = models.Float64Ptr(stats.Round(baseline, 2))
	}
	item.Summary = fmt.Sprintf("%s 良率 %.1f%% 低于阈值 %.1f%%（良品 %d，不良 %d）",
		sample.Start.Format(summaryHourLayout), yield, opts.YieldThresholdPercent, rec.Pass, rec.Fail)
	return item
}

func yieldBaseline(history []HourSample, window int) (float64, bool) {
	values := make([]float64, 0, window)
	for i := len(history) - 1; i >= 0 && len(values) < window; i-- {
		h := history[i]
		if !h.HasProduction || h.Production.Total() <= 0 {
			continue
		}
		values = append(values, h.Production.Yield())
	}
	if len(values) == 0 {
		return 0, false
	}
	return stats.Mean(values), true
}

// throughputRule 已结束的小时产量低于计划的一定比例时触发
// 记录未提供计划时使用默认小时计划
func throughputRule(sample HourSample, now time.Time, opts models.WarningRuleOptions) *models.WarningItem {
	if !sample.HasProduction || sample.End().After(now) {
		return nil
	}
	rec := sample.Production
	plan := rec.Plan
	if plan <= 0 {
		plan = opts.PlanPerHour
	}
	threshold := opts.ThroughputRatio * float64(plan)
	total := rec.Total()
	if float64(total) >= threshold {
		return nil
	}
	item := newItem(RuleThroughputLow, models.LevelWarning, models.TypeThroughput, sample, now)
	item.MetricName = MetricTotalOutput
	item.CurrentValue = float64(total)
	item.BaselineValue = models.Float64Ptr(float64(plan))
	item.ThresholdValue = models.Float64Ptr(stats.Round(threshold, 2))
	item.Summary = fmt.Sprintf("%s 产量 %d 低于计划 %d 的 %.0f%%",
		sample.Start.Format(summaryHourLayout), total, plan, opts.ThroughputRatio*100)
	return item
}

// alarmRule 某个报警代码在小时内次数或停机分钟超过阈值时触发
// 多个代码同时超限时取超限倍数最大的代码与指标
func alarmRule(sample HourSample, now time.Time, opts models.WarningRuleOptions) *models.WarningItem {
	if !sample.HasAlarms {
		return nil
	}
	countLimit := float64(opts.AlarmCountThreshold)
	downtimeLimit := opts.AlarmDowntimeMinutes

	bestRatio := -1.0
	var bestCode, bestMetric string
	var bestValue, bestLimit float64
	codes := make([]string, 0, len(sample.Alarms.PerCodeCount))
	for code := range sample.Alarms.PerCodeCount {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		count := float64(sample.Alarms.PerCodeCount[code])
		minutes := float64(sample.Alarms.PerCodeUnionSeconds[code]) / 60
		if count < countLimit && minutes < downtimeLimit {
			continue
		}
		countRatio := count / countLimit
		downtimeRatio := minutes / downtimeLimit
		metric, value, limit, ratio := MetricAlarmCount, count, countLimit, countRatio
		if downtimeRatio > countRatio {
			metric, value, limit, ratio = MetricAlarmDowntime, minutes, downtimeLimit, downtimeRatio
		}
		if ratio > bestRatio {
			bestCode, bestRatio, bestMetric, bestValue, bestLimit = code, ratio, metric, value, limit
		}
	}
	if bestRatio < 0 {
		return nil
	}
	item := newItem(RuleAlarmFrequent, models.LevelWarning, models.TypeAlarm, sample, now)
	item.MetricName = bestMetric
	item.CurrentValue = stats.Round(bestValue, 2)
	item.ThresholdValue = models.Float64Ptr(bestLimit)
	if bestMetric == MetricAlarmCount {
		item.Summary = fmt.Sprintf("%s 报警 %s 发生 %d 次 达到阈值 %d 次",
			sample.Start.Format(summaryHourLayout), bestCode, int(bestValue), opts.AlarmCountThreshold)
	} else {
		item.Summary = fmt.Sprintf("%s 报警 %s 停机 %.1f 分钟 超过阈值 %.1f 分钟",
			sample.Start.Format(summaryHourLayout), bestCode, bestValue, opts.AlarmDowntimeMinutes)
	}
	return item
}

func newItem(ruleID string, level models.WarningLevel, typ models.WarningType, sample HourSample, now time.Time) *models.WarningItem {
	return &models.WarningItem{
		Key:           RuleKey(ruleID, sample.Start),
		RuleID:        ruleID,
		RuleName:      RuleName(ruleID),
		Level:         level,
		Type:          typ,
		StartTime:     sample.Start,
		EndTime:       sample.End(),
		FirstDetected: now,
		LastDetected:  now,
		Status:        models.StatusActive,
	}
}

type mergePolicy func(current, incoming float64) bool

// keepMin 新值更小时替换 用于良率与产量
func keepMin(current, incoming float64) bool { return incoming < current }

// keepMax 新值更大时替换 用于报警指标
func keepMax(current, incoming float64) bool { return incoming > current }

// mergeItem 同一键只保留一条 时间跨度取并集 数值按策略保留最差值
func mergeItem(merged map[string]*models.WarningItem, item *models.WarningItem, better mergePolicy) {
	existing, ok := merged[item.Key]
	if !ok {
		merged[item.Key] = item
		return
	}
	start := minTime(existing.StartTime, item.StartTime)
	end := maxTime(existing.EndTime, item.EndTime)
	if better(existing.CurrentValue, item.CurrentValue) {
		*existing = *item
	}
	existing.StartTime = start
	existing.EndTime = end
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
