// 本文件用于组装读取 分析 预警与工单各组件 并按计划执行刷新
package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"prod-watch/internal/analysis"
	"prod-watch/internal/config"
	"prod-watch/internal/dingtalk"
	"prod-watch/internal/ingest"
	"prod-watch/internal/logger"
	"prod-watch/internal/metrics"
	"prod-watch/internal/models"
	"prod-watch/internal/query"
	"prod-watch/internal/ticket"
	"prod-watch/internal/warning"
	"prod-watch/internal/watcher"
)

// 刷新触发来源
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerWatch    = "watch"
	TriggerManual   = "manual"
)

// RefreshResult 为一次刷新的摘要
type RefreshResult struct {
	Trigger    string         `json:"trigger"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Warnings   int            `json:"warnings"`
	Tickets    map[string]int `json:"tickets"`
}

// Monitor 以组合方式持有各组件 NewMonitor 负责初始化和连接它们
type Monitor struct {
	config     *models.Config
	configPath string
	metrics    *metrics.Collector
	repo       *ingest.Repository
	analyzer   *analysis.Analyzer
	engine     *warning.Engine
	store      *ticket.Store
	dispatcher *query.Dispatcher
	watcher    *watcher.FileWatcher
	cron       *cron.Cron

	// refreshMu 保证同一时刻只有一次刷新 并发触发直接跳过
	refreshMu sync.Mutex
	stateMu   sync.RWMutex
	last      *RefreshResult
	now       func() time.Time
}

// NewMonitor 构造并初始化 Monitor 的所有依赖
func NewMonitor(cfg *models.Config, configPath string, collector *metrics.Collector) (*Monitor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置为空")
	}
	if collector == nil {
		collector = metrics.Global()
	}
	rules := cfg.WarningRules.Normalize()

	repo := ingest.NewRepository(ingest.SourcesFromConfig(cfg))
	repo.SetMetrics(collector)

	store, err := ticket.OpenStore(cfg.TicketStore, cfg.TicketFile, rules)
	if err != nil {
		return nil, fmt.Errorf("初始化工单存储失败: %w", err)
	}
	store.SetMetrics(collector)
	if webhook := strings.TrimSpace(cfg.DingTalkWebhook); webhook != "" {
		store.SetNotifier(dingtalk.NewRobot(webhook, cfg.DingTalkSecret, cfg.Location()))
		logger.Info("已启用钉钉工单通知")
	}

	analyzer := analysis.NewAnalyzer(repo, rules.TopAlarmCodes)
	m := &Monitor{
		config:     cfg,
		configPath: configPath,
		metrics:    collector,
		repo:       repo,
		analyzer:   analyzer,
		engine:     warning.NewEngine(repo, rules),
		store:      store,
		dispatcher: query.NewDispatcher(analyzer, store, repo.Location(), rules),
		now:        time.Now,
	}

	if cfg.WatchEnabled {
		fw, err := watcher.NewFileWatcher(repo.Roots(), cfg.DebounceDuration(), func(reason string) {
			m.RefreshOnce(reason)
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("初始化文件监控器失败: %w", err)
		}
		fw.SetMetrics(collector)
		fw.Ignore(cfg.LogFile, store.Path(), store.Path()+".lock")
		m.watcher = fw
	}
	return m, nil
}

// Start 执行首次刷新并启动定时任务与文件监控
func (m *Monitor) Start() error {
	logger.Info("启动产线监控服务...")
	m.RefreshOnce(TriggerStartup)

	c := cron.New(cron.WithLocation(m.repo.Location()))
	if _, err := c.AddFunc(m.config.RefreshSchedule, func() { m.RefreshOnce(TriggerSchedule) }); err != nil {
		return fmt.Errorf("注册刷新计划失败: %s: %w", m.config.RefreshSchedule, err)
	}
	c.Start()
	m.cron = c
	logger.Info("刷新计划: %s", m.config.RefreshSchedule)

	if m.watcher != nil {
		if err := m.watcher.Start(); err != nil {
			return fmt.Errorf("启动文件监控失败: %w", err)
		}
	}
	logger.Info("产线监控服务启动成功")
	return nil
}

// Stop 停止定时任务与文件监控 等待进行中的刷新结束
func (m *Monitor) Stop() error {
	logger.Info("停止产线监控服务...")
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}
	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			logger.Error("关闭文件监控器失败: %v", err)
		}
	}
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	if err := m.store.Close(); err != nil {
		logger.Error("关闭工单存储失败: %v", err)
	}
	logger.Info("产线监控服务已停止")
	return nil
}

// RefreshOnce 评估规则并合并工单 已有刷新在执行时返回 false
func (m *Monitor) RefreshOnce(trigger string) (RefreshResult, bool) {
	if !m.refreshMu.TryLock() {
		logger.Debug("已有刷新在执行，跳过本次触发: %s", trigger)
		return RefreshResult{}, false
	}
	defer m.refreshMu.Unlock()

	started := m.now()
	items := m.engine.Evaluate(started)
	perRule := make(map[string]int, 3)
	for _, item := range items {
		perRule[item.RuleID]++
	}
	for _, ruleID := range warning.RuleIDs() {
		m.metrics.AddWarnings(ruleID, perRule[ruleID])
	}

	tickets := m.store.Refresh(items, started)
	finished := m.now()
	m.metrics.ObserveRefresh(trigger, finished.Sub(started), finished)

	result := RefreshResult{
		Trigger:    trigger,
		StartedAt:  started,
		FinishedAt: finished,
		Warnings:   len(items),
		Tickets:    ticket.CountByStatus(tickets),
	}
	m.stateMu.Lock()
	m.last = &result
	m.stateMu.Unlock()
	logger.Info("刷新完成: 触发=%s 预警=%d 工单=%d 耗时=%v", trigger, len(items), len(tickets), finished.Sub(started))
	return result, true
}

// SetClock 替换时钟 用于测试与回放
func (m *Monitor) SetClock(now func() time.Time) {
	if now == nil {
		return
	}
	m.now = now
	m.dispatcher.SetClock(now)
}

// Now 返回服务时钟的当前时间
func (m *Monitor) Now() time.Time {
	return m.now()
}

// LastRefresh 返回最近一次刷新摘要
func (m *Monitor) LastRefresh() (RefreshResult, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.last == nil {
		return RefreshResult{}, false
	}
	return *m.last, true
}

// Rules 返回当前预警阈值
func (m *Monitor) Rules() models.WarningRuleOptions {
	return m.engine.Options()
}

// UpdateRules 校验并应用新阈值 同时写入运行时配置
func (m *Monitor) UpdateRules(rules models.WarningRuleOptions) (models.WarningRuleOptions, error) {
	if err := config.ValidateRules(rules); err != nil {
		return models.WarningRuleOptions{}, err
	}
	normalized := rules.Normalize()
	m.engine.SetOptions(normalized)
	m.store.SetOptions(normalized)
	m.dispatcher.SetOptions(normalized)

	m.stateMu.Lock()
	m.config.WarningRules = normalized
	m.stateMu.Unlock()
	if strings.TrimSpace(m.configPath) != "" {
		if err := config.SaveRuntimeConfig(m.configPath, m.config); err != nil {
			logger.Error("保存运行时配置失败: %v", err)
			return normalized, err
		}
	}
	logger.Info("预警阈值已更新: %+v", normalized)
	return normalized, nil
}

// Tickets 返回工单存储
func (m *Monitor) Tickets() *ticket.Store {
	return m.store
}

// Dispatcher 返回查询分发器
func (m *Monitor) Dispatcher() *query.Dispatcher {
	return m.dispatcher
}

// Analyzer 返回分析器
func (m *Monitor) Analyzer() *analysis.Analyzer {
	return m.analyzer
}

// Metrics 返回指标采集器
func (m *Monitor) Metrics() *metrics.Collector {
	return m.metrics
}

// Location 返回数据时区
func (m *Monitor) Location() *time.Location {
	return m.repo.Location()
}

// CachedFiles 返回当前缓存的日文件数量
func (m *Monitor) CachedFiles() int {
	return m.repo.CachedFiles()
}
