// 本文件用于预警工单的指纹计算与合并
// 合并是纯函数 不修改入参 便于在持锁区间外单独测试
package ticket

import (
	"strings"
	"time"

	"prod-watch/internal/models"
)

// DefaultMetricDimension 为指标名缺失时的指纹维度
const DefaultMetricDimension = "default"

const fingerprintHourLayout = "2006010215"

// Fingerprint 计算预警的稳定标识 同一事件在多次刷新中得到相同指纹
func Fingerprint(item models.WarningItem) string {
	metric := strings.TrimSpace(item.MetricName)
	if metric == "" {
		metric = DefaultMetricDimension
	}
	return strings.Join([]string{
		item.RuleID,
		string(item.Type),
		item.StartTime.Format(fingerprintHourLayout),
		metric,
	}, "|")
}

// Reconcile 把本轮检测结果合并进已有工单
//  1. 超过宽限期未再检测到且未解决的工单置为 Resolved 忽略期内的工单除外
//  2. 新指纹创建 Active 工单 已有指纹刷新字段与最近检测时间
//     Resolved 与 Processed 重新打开 Ignored 仅在忽略期满后重新打开
//
// 同一时刻重复合并相同检测不会改变状态与次数
func Reconcile(existing []models.WarningTicketRecord, detections []models.WarningItem, now time.Time, grace time.Duration) []models.WarningTicketRecord {
	out := make([]models.WarningTicketRecord, 0, len(existing)+len(detections))
	index := make(map[string]int, len(existing))
	for _, rec := range existing {
		cloned := rec.Clone()
		if _, dup := index[cloned.Fingerprint]; dup {
			continue
		}
		index[cloned.Fingerprint] = len(out)
		out = append(out, cloned)
	}

	for i := range out {
		rec := &out[i]
		if rec.Status == models.StatusResolved || Suppressed(*rec, now) {
			continue
		}
		if now.Sub(rec.LastSeen) > grace {
			rec.Status = models.StatusResolved
			rec.ResolvedAt = models.TimePtr(now)
			rec.UpdatedAt = now
		}
	}

	seen := make(map[string]struct{}, len(detections))
	for _, item := range detections {
		fp := Fingerprint(item)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}

		idx, ok := index[fp]
		if !ok {
			index[fp] = len(out)
			out = append(out, newTicket(fp, item, now))
			continue
		}
		redetect(&out[idx], item, now)
	}
	return out
}

func newTicket(fp string, item models.WarningItem, now time.Time) models.WarningTicketRecord {
	rec := models.WarningTicketRecord{
		Fingerprint:     fp,
		Status:          models.StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
		FirstSeen:       now,
		LastSeen:        now,
		OccurrenceCount: 1,
		FirstDetected:   item.FirstDetected,
	}
	applyItem(&rec, item)
	if rec.FirstDetected.IsZero() {
		rec.FirstDetected = now
	}
	return rec
}

func redetect(rec *models.WarningTicketRecord, item models.WarningItem, now time.Time) {
	applyItem(rec, item)
	if now.After(rec.LastSeen) {
		rec.OccurrenceCount++
		rec.LastSeen = now
		rec.UpdatedAt = now
	}
	if rec.OccurrenceCount < 1 {
		rec.OccurrenceCount = 1
	}
	switch rec.Status {
	case models.StatusResolved, models.StatusProcessed:
		reopen(rec, now)
	case models.StatusIgnored:
		if rec.IgnoredUntil == nil || !now.Before(*rec.IgnoredUntil) {
			reopen(rec, now)
		}
	}
}

func reopen(rec *models.WarningTicketRecord, now time.Time) {
	rec.Status = models.StatusActive
	rec.IgnoredUntil = nil
	rec.ResolvedAt = nil
	rec.UpdatedAt = now
}

// applyItem 刷新描述性字段 首次检测时间与计数不在此处处理
func applyItem(rec *models.WarningTicketRecord, item models.WarningItem) {
	rec.Key = item.Key
	rec.RuleID = item.RuleID
	rec.RuleName = item.RuleName
	rec.Level = item.Level
	rec.Type = item.Type
	rec.StartTime = item.StartTime
	rec.EndTime = item.EndTime
	rec.LastDetected = item.LastDetected
	rec.MetricName = item.MetricName
	rec.CurrentValue = item.CurrentValue
	rec.BaselineValue = copyFloat(item.BaselineValue)
	rec.ThresholdValue = copyFloat(item.ThresholdValue)
	rec.Summary = item.Summary
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return models.Float64Ptr(*v)
}

// Opened 返回本轮新建或从 Resolved Processed Ignored 重新打开的工单
// 忽略期内的工单不计入
func Opened(before, after []models.WarningTicketRecord, now time.Time) []models.WarningTicketRecord {
	prev := make(map[string]models.TicketStatus, len(before))
	for _, rec := range before {
		prev[rec.Fingerprint] = rec.Status
	}
	var out []models.WarningTicketRecord
	for _, rec := range after {
		if rec.Status != models.StatusActive || Suppressed(rec, now) {
			continue
		}
		status, existed := prev[rec.Fingerprint]
		if existed && status != models.StatusResolved && status != models.StatusProcessed && status != models.StatusIgnored {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out
}
