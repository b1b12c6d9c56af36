// 本文件用于监控服务刷新流程测试
package service

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"prod-watch/internal/config"
	"prod-watch/internal/metrics"
	"prod-watch/internal/models"
	"prod-watch/internal/ticket"
)

var fixedNow = time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

func newTestMonitor(t *testing.T, watch bool, mutators ...func(cfg *models.Config)) (*Monitor, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "2024-05-01.csv"), []byte("Hour,PASS,FAIL\n08:00,50,2\n09:00,40,10\n"), 0o644); err != nil {
		t.Fatalf("写入产量文件失败: %v", err)
	}
	cfg := &models.Config{
		ProductionRoot:    root,
		ProductionPattern: "{yyyy-MM-dd}.csv",
		AlarmRoot:         root,
		AlarmPattern:      "alarm_{yyyyMMdd}.csv",
		Timezone:          "UTC",
		TicketStore:       models.TicketStoreJSON,
		TicketFile:        filepath.Join(t.TempDir(), "tickets.json"),
		RefreshSchedule:   "@every 1h",
		WatchEnabled:      watch,
		WatchDebounce:     "50ms",
		WarningRules:      models.DefaultWarningRuleOptions(),
	}
	for _, mutate := range mutators {
		mutate(cfg)
	}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	m, err := NewMonitor(cfg, configPath, metrics.NewCollector())
	if err != nil {
		t.Fatalf("创建监控服务失败: %v", err)
	}
	m.SetClock(func() time.Time { return fixedNow })
	return m, configPath
}

func TestMonitor_RefreshOnceCreatesTickets(t *testing.T) {
	m, _ := newTestMonitor(t, false)
	defer m.Stop()

	result, ok := m.RefreshOnce(TriggerManual)
	if !ok {
		t.Fatalf("期望刷新执行")
	}
	if result.Warnings == 0 || result.Trigger != TriggerManual {
		t.Fatalf("刷新摘要不符合预期: %+v", result)
	}
	if result.Tickets[string(models.StatusActive)] != result.Warnings {
		t.Fatalf("首次刷新的工单应全部为 active，实际为 %+v", result.Tickets)
	}

	var found bool
	for _, rec := range m.Tickets().All() {
		if rec.RuleID == "yield.low" && rec.StartTime.Equal(fixedNow.Truncate(time.Hour).Add(-time.Hour)) {
			found = true
		}
	}
	if !found {
		t.Fatalf("期望生成 9 点的低良率工单，实际为 %+v", m.Tickets().All())
	}
	if _, err := os.Stat(m.Tickets().Path()); err != nil {
		t.Fatalf("期望写入工单快照: %v", err)
	}

	last, ok := m.LastRefresh()
	if !ok || !last.FinishedAt.Equal(fixedNow) {
		t.Fatalf("最近一次刷新摘要错误: %+v", last)
	}
}

func TestMonitor_RefreshIdempotent(t *testing.T) {
	m, _ := newTestMonitor(t, false)
	defer m.Stop()

	m.RefreshOnce(TriggerManual)
	first := m.Tickets().All()
	m.RefreshOnce(TriggerSchedule)
	second := m.Tickets().All()
	if len(first) != len(second) {
		t.Fatalf("同一时刻重复刷新不应改变工单数量: %d -> %d", len(first), len(second))
	}
	for i := range second {
		if second[i].OccurrenceCount != 1 {
			t.Fatalf("同一时刻重复刷新不应累加次数: %+v", second[i])
		}
	}
}

func TestMonitor_ConcurrentRefreshSkipped(t *testing.T) {
	m, _ := newTestMonitor(t, false)
	defer m.Stop()

	m.refreshMu.Lock()
	_, ok := m.RefreshOnce(TriggerWatch)
	m.refreshMu.Unlock()
	if ok {
		t.Fatalf("已有刷新执行时应跳过")
	}
	if _, ok := m.LastRefresh(); ok {
		t.Fatalf("跳过的刷新不应记录摘要")
	}
}

func TestMonitor_UpdateRules(t *testing.T) {
	m, configPath := newTestMonitor(t, false)
	defer m.Stop()

	bad := m.Rules()
	bad.YieldThresholdPercent = 120
	if _, err := m.UpdateRules(bad); err == nil {
		t.Fatalf("良率阈值超出范围应返回错误")
	}

	next := m.Rules()
	next.YieldThresholdPercent = 70
	next.TopAlarmCodes = 0
	applied, err := m.UpdateRules(next)
	if err != nil {
		t.Fatalf("更新阈值失败: %v", err)
	}
	if applied.TopAlarmCodes != models.DefaultTopAlarmCodes {
		t.Fatalf("期望零值回落到默认值，实际为 %d", applied.TopAlarmCodes)
	}
	if got := m.Rules().YieldThresholdPercent; got != 70 {
		t.Fatalf("期望引擎阈值为 70，实际为 %v", got)
	}
	if _, err := os.Stat(config.RuntimeConfigPath(configPath)); err != nil {
		t.Fatalf("期望写入运行时配置: %v", err)
	}

	// 阈值放宽到 70 后 9 点的 80% 良率不再告警
	m.RefreshOnce(TriggerManual)
	for _, rec := range m.Tickets().List(ticket.ViewAll, fixedNow) {
		if rec.RuleID == "yield.low" {
			t.Fatalf("阈值放宽后不应生成低良率工单: %+v", rec)
		}
	}
}

func TestMonitor_StartStop(t *testing.T) {
	m, _ := newTestMonitor(t, true)
	if m.watcher == nil {
		t.Fatalf("开启监控时应创建文件监控器")
	}
	if err := m.Start(); err != nil {
		t.Fatalf("启动服务失败: %v", err)
	}
	if last, ok := m.LastRefresh(); !ok || last.Trigger != TriggerStartup {
		t.Fatalf("启动时应执行一次刷新，实际为 %+v", last)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("停止服务失败: %v", err)
	}
}

func TestNewMonitor_InvalidStore(t *testing.T) {
	cfg := &models.Config{ProductionRoot: t.TempDir(), TicketStore: "redis", TicketFile: filepath.Join(t.TempDir(), "t")}
	if _, err := NewMonitor(cfg, "", nil); err == nil {
		t.Fatalf("未知的工单存储类型应返回错误")
	}
	if _, err := NewMonitor(nil, "", nil); err == nil {
		t.Fatalf("配置为空应返回错误")
	}
}

func TestMonitor_DingTalkNotifiesOpenedTickets(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer srv.Close()

	m, _ := newTestMonitor(t, false, func(cfg *models.Config) {
		cfg.DingTalkWebhook = srv.URL
	})
	defer m.Stop()

	if _, ok := m.RefreshOnce(TriggerManual); !ok {
		t.Fatalf("期望刷新执行")
	}
	if got := posts.Load(); got != 1 {
		t.Fatalf("首次刷新应发送 1 条通知，实际为 %d", got)
	}
	m.RefreshOnce(TriggerManual)
	if got := posts.Load(); got != 1 {
		t.Fatalf("没有新打开的工单时不应再次通知，实际为 %d", got)
	}
}
