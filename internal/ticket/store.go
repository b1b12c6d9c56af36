// 本文件用于工单存储 负责刷新合并与人工处置
package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"prod-watch/internal/logger"
	"prod-watch/internal/metrics"
	"prod-watch/internal/models"
)

// ErrNotFound 表示指纹对应的工单不存在
var ErrNotFound = errors.New("工单不存在")

// Action 表示人工处置动作
type Action string

const (
	ActionAcknowledge Action = "ack"
	ActionIgnore      Action = "ignore"
	ActionProcess     Action = "process"
)

// ParseAction 解析处置动作
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionAcknowledge, "acknowledge":
		return ActionAcknowledge, nil
	case ActionIgnore:
		return ActionIgnore, nil
	case ActionProcess, "processed":
		return ActionProcess, nil
	default:
		return "", fmt.Errorf("未知的工单动作: %s", raw)
	}
}

// Notifier 接收本轮新进入 Active 的工单
type Notifier interface {
	NotifyTickets(ctx context.Context, records []models.WarningTicketRecord) error
}

// Store 串行化全部读改写 同一时刻只有一次合并或处置在执行
type Store struct {
	mu          sync.Mutex
	backend     Backend
	lockPath    string
	grace       time.Duration
	suppression time.Duration
	metrics     *metrics.Collector
	notifier    Notifier
	// last 为最近一次成功读取或合并的结果 读取失败时兜底
	last []models.WarningTicketRecord
	// unsaved 为 true 时磁盘快照落后于 last 读取直接返回 last
	unsaved bool
}

// NewStore 创建工单存储
func NewStore(backend Backend, options models.WarningRuleOptions) *Store {
	s := &Store{backend: backend}
	if path := strings.TrimSpace(backend.Path()); path != "" {
		s.lockPath = path + ".lock"
	}
	s.SetOptions(options)
	return s
}

// OpenStore 按配置的存储类型打开后端
func OpenStore(kind, path string, options models.WarningRuleOptions) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", models.TicketStoreJSON:
		backend, err = NewJSONFileBackend(path)
	case models.TicketStoreSQLite:
		backend, err = NewSQLiteBackend(path)
	default:
		return nil, fmt.Errorf("不支持的工单存储类型: %s", kind)
	}
	if err != nil {
		return nil, err
	}
	return NewStore(backend, options), nil
}

// SetOptions 更新宽限期与默认忽略时长
func (s *Store) SetOptions(options models.WarningRuleOptions) {
	s.mu.Lock()
	s.grace = options.TicketGrace()
	s.suppression = options.Suppression()
	s.mu.Unlock()
}

// SetMetrics 设置指标采集器
func (s *Store) SetMetrics(collector *metrics.Collector) {
	s.mu.Lock()
	s.metrics = collector
	s.mu.Unlock()
}

// SetNotifier 设置工单打开通知 传 nil 关闭通知
func (s *Store) SetNotifier(notifier Notifier) {
	s.mu.Lock()
	s.notifier = notifier
	s.mu.Unlock()
}

// BackendStats 返回后端健康计数 后端不支持时 ok 为 false
func (s *Store) BackendStats() (BackendStats, bool) {
	reporter, ok := s.backend.(statsReporter)
	if !ok {
		return BackendStats{}, false
	}
	return reporter.Stats(), true
}

// Path 返回后端存储路径
func (s *Store) Path() string {
	return s.backend.Path()
}

// Close 关闭后端
func (s *Store) Close() error {
	return s.backend.Close()
}

// Refresh 把本轮检测合并进工单并保存 保存失败只记录日志
// 保存后在锁外通知新建或重新打开的工单
func (s *Store) Refresh(detections []models.WarningItem, now time.Time) []models.WarningTicketRecord {
	merged, opened, notifier := s.refresh(detections, now)
	if notifier != nil && len(opened) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := notifier.NotifyTickets(ctx, opened); err != nil {
			logger.Warn("工单通知发送失败: %d 张: %v", len(opened), err)
		}
	}
	return merged
}

const notifyTimeout = 15 * time.Second

func (s *Store) refresh(detections []models.WarningItem, now time.Time) ([]models.WarningTicketRecord, []models.WarningTicketRecord, Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := s.lockLocked()
	defer lock.release()

	current := s.loadLocked()
	merged := Reconcile(current, detections, now, s.grace)
	s.saveLocked(merged)
	return cloneRecords(merged), Opened(current, merged, now), s.notifier
}

// List 返回视图内的工单
func (s *Store) List(view View, now time.Time) []models.WarningTicketRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Filter(s.loadLocked(), view, now)
}

// All 返回全部工单 包括忽略期内的工单
func (s *Store) All() []models.WarningTicketRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRecords(s.loadLocked())
}

// Acknowledge 确认工单
func (s *Store) Acknowledge(fingerprint string, now time.Time) (models.WarningTicketRecord, error) {
	return s.update(fingerprint, now, func(rec *models.WarningTicketRecord) {
		rec.Status = models.StatusAcknowledged
		rec.AcknowledgedAt = models.TimePtr(now)
	})
}

// Ignore 忽略工单至 until 零值表示使用默认忽略时长
func (s *Store) Ignore(fingerprint string, until, now time.Time) (models.WarningTicketRecord, error) {
	s.mu.Lock()
	suppression := s.suppression
	s.mu.Unlock()
	if until.IsZero() {
		until = now.Add(suppression)
	}
	if !until.After(now) {
		return models.WarningTicketRecord{}, fmt.Errorf("忽略截止时间必须晚于当前时间: %s", until.Format(time.RFC3339))
	}
	return s.update(fingerprint, now, func(rec *models.WarningTicketRecord) {
		rec.Status = models.StatusIgnored
		rec.IgnoredUntil = models.TimePtr(until)
	})
}

// MarkProcessed 标记工单已处理
func (s *Store) MarkProcessed(fingerprint string, now time.Time) (models.WarningTicketRecord, error) {
	return s.update(fingerprint, now, func(rec *models.WarningTicketRecord) {
		rec.Status = models.StatusProcessed
		rec.ProcessedAt = models.TimePtr(now)
	})
}

// Apply 按动作名执行处置
func (s *Store) Apply(action Action, fingerprint string, until, now time.Time) (models.WarningTicketRecord, error) {
	switch action {
	case ActionAcknowledge:
		return s.Acknowledge(fingerprint, now)
	case ActionIgnore:
		return s.Ignore(fingerprint, until, now)
	case ActionProcess:
		return s.MarkProcessed(fingerprint, now)
	default:
		return models.WarningTicketRecord{}, fmt.Errorf("未知的工单动作: %s", action)
	}
}

func (s *Store) update(fingerprint string, now time.Time, mutate func(rec *models.WarningTicketRecord)) (models.WarningTicketRecord, error) {
	fp := strings.TrimSpace(fingerprint)
	if fp == "" {
		return models.WarningTicketRecord{}, fmt.Errorf("工单指纹不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lock := s.lockLocked()
	defer lock.release()

	records := cloneRecords(s.loadLocked())
	for i := range records {
		if records[i].Fingerprint != fp {
			continue
		}
		mutate(&records[i])
		records[i].UpdatedAt = now
		s.saveLocked(records)
		return records[i].Clone(), nil
	}
	return models.WarningTicketRecord{}, fmt.Errorf("%w: %s", ErrNotFound, fp)
}

// lockLocked 获取跨进程文件锁 失败时退化为仅进程内互斥
func (s *Store) lockLocked() *fileLock {
	if s.lockPath == "" {
		return nil
	}
	lock, err := acquireFileLock(s.lockPath)
	if err != nil {
		logger.Warn("获取工单文件锁失败，仅使用进程内互斥: %v", err)
		return nil
	}
	return lock
}

func (s *Store) loadLocked() []models.WarningTicketRecord {
	if s.unsaved {
		return s.last
	}
	records, err := s.backend.Load()
	if err != nil {
		logger.Error("读取工单快照失败，沿用内存中的最近结果: %s: %v", s.backend.Path(), err)
		return s.last
	}
	s.last = records
	return records
}

func (s *Store) saveLocked(records []models.WarningTicketRecord) {
	s.last = cloneRecords(records)
	if err := s.backend.Save(records); err != nil {
		s.unsaved = true
		s.metrics.IncSnapshotWriteFailure()
		logger.Error("保存工单快照失败，后续读取使用内存结果: %s: %v", s.backend.Path(), err)
	} else {
		s.unsaved = false
	}
	s.metrics.SetTicketCounts(CountByStatus(records), Statuses())
}

func cloneRecords(records []models.WarningTicketRecord) []models.WarningTicketRecord {
	out := make([]models.WarningTicketRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
