// 本文件用于工单视图过滤
package ticket

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"prod-watch/internal/models"
)

// View 表示工单视图
type View string

const (
	ViewAll          View = "all"
	ViewPending      View = "pending"
	ViewActive       View = "active"
	ViewAcknowledged View = "acknowledged"
	ViewProcessed    View = "processed"
	ViewResolved     View = "resolved"
)

// ParseView 解析视图名称 空串视为 pending
func ParseView(raw string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return ViewPending, nil
	case ViewAll:
		return ViewAll, nil
	case ViewPending:
		return ViewPending, nil
	case ViewActive:
		return ViewActive, nil
	case ViewAcknowledged:
		return ViewAcknowledged, nil
	case ViewProcessed:
		return ViewProcessed, nil
	case ViewResolved:
		return ViewResolved, nil
	default:
		return "", fmt.Errorf("未知的工单视图: %s", raw)
	}
}

// Suppressed 判断工单是否处于忽略期内
func Suppressed(rec models.WarningTicketRecord, now time.Time) bool {
	return rec.Status == models.StatusIgnored && rec.IgnoredUntil != nil && now.Before(*rec.IgnoredUntil)
}

// Filter 按视图筛选工单 忽略期内的工单不出现在任何视图
// 结果按最近检测时间倒序
func Filter(tickets []models.WarningTicketRecord, view View, now time.Time) []models.WarningTicketRecord {
	out := make([]models.WarningTicketRecord, 0, len(tickets))
	for _, rec := range tickets {
		if Suppressed(rec, now) || !view.matches(rec.Status) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})
	return out
}

func (v View) matches(status models.TicketStatus) bool {
	switch v {
	case ViewAll:
		return true
	case ViewPending:
		return status == models.StatusActive || status == models.StatusAcknowledged
	case ViewActive:
		return status == models.StatusActive
	case ViewAcknowledged:
		return status == models.StatusAcknowledged
	case ViewProcessed:
		return status == models.StatusProcessed
	case ViewResolved:
		return status == models.StatusResolved
	default:
		return false
	}
}

// CountByStatus 统计各状态工单数量
func CountByStatus(tickets []models.WarningTicketRecord) map[string]int {
	out := make(map[string]int, 5)
	for _, rec := range tickets {
		out[string(rec.Status)]++
	}
	return out
}

// Statuses 返回全部工单状态
func Statuses() []string {
	return []string{
		string(models.StatusActive),
		string(models.StatusAcknowledged),
		string(models.StatusIgnored),
		string(models.StatusProcessed),
		string(models.StatusResolved),
	}
}
