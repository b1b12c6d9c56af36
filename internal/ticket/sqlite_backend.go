// 本文件用于工单快照的 SQLite 存储
// 保存语义与 JSON 文件一致 单个事务内整体替换
package ticket

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"prod-watch/internal/logger"
	"prod-watch/internal/models"

	_ "modernc.org/sqlite"
)

const ticketTimeLayout = time.RFC3339Nano

// SQLiteBackend 把工单保存在 warning_tickets 表
type SQLiteBackend struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteBackend 打开或创建工单数据库
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	cleaned := strings.TrimSpace(dbPath)
	if cleaned == "" {
		return nil, fmt.Errorf("工单数据库路径不能为空")
	}
	if dir := filepath.Dir(cleaned); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建工单数据目录失败: %w", err)
		}
	}
	db, err := sql.Open("sqlite", cleaned)
	if err != nil {
		return nil, fmt.Errorf("打开工单数据库失败: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("设置工单数据库 WAL 失败: %w", err)
	}
	if err := migrateTicketStore(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteBackend{db: db, dbPath: cleaned}, nil
}

// Path 返回数据库文件路径
func (s *SQLiteBackend) Path() string {
	if s == nil {
		return ""
	}
	return s.dbPath
}

// Close 关闭数据库连接
func (s *SQLiteBackend) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load 按写入顺序读取全部工单
func (s *SQLiteBackend) Load() ([]models.WarningTicketRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT
			fingerprint, item_key, rule_id, rule_name, level, type,
			start_time, end_time, first_detected, last_detected,
			metric_name, current_value, baseline_value, threshold_value,
			status, summary, created_at, updated_at, first_seen, last_seen,
			acknowledged_at, processed_at, ignored_until, resolved_at,
			occurrence_count
		FROM warning_tickets
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("查询工单失败: %w", err)
	}
	defer rows.Close()

	out := make([]models.WarningTicketRecord, 0)
	for rows.Next() {
		var (
			rec                           models.WarningTicketRecord
			level, typ, status            string
			startTime, endTime            string
			firstDetected, lastDetected   string
			createdAt, updatedAt          string
			firstSeen, lastSeen           string
			acknowledgedAt, processedAt   string
			ignoredUntil, resolvedAt      string
			baselineValue, thresholdValue sql.NullFloat64
			occurrenceCount               int64
		)
		if err := rows.Scan(
			&rec.Fingerprint, &rec.Key, &rec.RuleID, &rec.RuleName, &level, &typ,
			&startTime, &endTime, &firstDetected, &lastDetected,
			&rec.MetricName, &rec.CurrentValue, &baselineValue, &thresholdValue,
			&status, &rec.Summary, &createdAt, &updatedAt, &firstSeen, &lastSeen,
			&acknowledgedAt, &processedAt, &ignoredUntil, &resolvedAt,
			&occurrenceCount,
		); err != nil {
			return nil, fmt.Errorf("读取工单行失败: %w", err)
		}
		rec.Level = models.WarningLevel(level)
		rec.Type = models.WarningType(typ)
		parsed, ok := models.ParseTicketStatus(status)
		if !ok {
			// 未知状态按 Active 处理 保证工单仍出现在待处理视图
			logger.Warn("工单 %s 状态无法识别: %q，按 Active 处理", rec.Fingerprint, status)
			parsed = models.StatusActive
		}
		rec.Status = parsed
		rec.StartTime = parseTicketTime(startTime)
		rec.EndTime = parseTicketTime(endTime)
		rec.FirstDetected = parseTicketTime(firstDetected)
		rec.LastDetected = parseTicketTime(lastDetected)
		rec.CreatedAt = parseTicketTime(createdAt)
		rec.UpdatedAt = parseTicketTime(updatedAt)
		rec.FirstSeen = parseTicketTime(firstSeen)
		rec.LastSeen = parseTicketTime(lastSeen)
		rec.AcknowledgedAt = parseTicketTimePtr(acknowledgedAt)
		rec.ProcessedAt = parseTicketTimePtr(processedAt)
		rec.IgnoredUntil = parseTicketTimePtr(ignoredUntil)
		rec.ResolvedAt = parseTicketTimePtr(resolvedAt)
		if baselineValue.Valid {
			rec.BaselineValue = models.Float64Ptr(baselineValue.Float64)
		}
		if thresholdValue.Valid {
			rec.ThresholdValue = models.Float64Ptr(thresholdValue.Float64)
		}
		if occurrenceCount > 0 {
			rec.OccurrenceCount = int(occurrenceCount)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Save 在一个事务内清空并重写全部工单
func (s *SQLiteBackend) Save(records []models.WarningTicketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("开启工单事务失败: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM warning_tickets`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("清空工单失败: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO warning_tickets (
			seq, fingerprint, item_key, rule_id, rule_name, level, type,
			start_time, end_time, first_detected, last_detected,
			metric_name, current_value, baseline_value, threshold_value,
			status, summary, created_at, updated_at, first_seen, last_seen,
			acknowledged_at, processed_at, ignored_until, resolved_at,
			occurrence_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("准备工单写入失败: %w", err)
	}
	defer stmt.Close()
	for i, rec := range records {
		if _, err := stmt.Exec(
			i, rec.Fingerprint, rec.Key, rec.RuleID, rec.RuleName, string(rec.Level), string(rec.Type),
			formatTicketTime(rec.StartTime), formatTicketTime(rec.EndTime),
			formatTicketTime(rec.FirstDetected), formatTicketTime(rec.LastDetected),
			rec.MetricName, rec.CurrentValue, nullFloat(rec.BaselineValue), nullFloat(rec.ThresholdValue),
			string(rec.Status), rec.Summary,
			formatTicketTime(rec.CreatedAt), formatTicketTime(rec.UpdatedAt),
			formatTicketTime(rec.FirstSeen), formatTicketTime(rec.LastSeen),
			formatTicketTimePtr(rec.AcknowledgedAt), formatTicketTimePtr(rec.ProcessedAt),
			formatTicketTimePtr(rec.IgnoredUntil), formatTicketTimePtr(rec.ResolvedAt),
			rec.OccurrenceCount,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("写入工单 %s 失败: %w", rec.Fingerprint, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交工单事务失败: %w", err)
	}
	return nil
}

func migrateTicketStore(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS warning_tickets (
			fingerprint TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			item_key TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			level TEXT NOT NULL,
			type TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			first_detected TEXT NOT NULL,
			last_detected TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			current_value REAL NOT NULL,
			baseline_value REAL,
			threshold_value REAL,
			status TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			first_seen TEXT NOT NULL,
			last_seen TEXT NOT NULL,
			acknowledged_at TEXT NOT NULL DEFAULT '',
			processed_at TEXT NOT NULL DEFAULT '',
			ignored_until TEXT NOT NULL DEFAULT '',
			resolved_at TEXT NOT NULL DEFAULT '',
			occurrence_count INTEGER NOT NULL DEFAULT 1
		);`,
		`CREATE INDEX IF NOT EXISTS idx_warning_tickets_status ON warning_tickets(status, last_seen DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("迁移工单数据库失败: %w", err)
		}
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func formatTicketTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ticketTimeLayout)
}

func formatTicketTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTicketTime(*t)
}

func parseTicketTime(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	if t, err := time.Parse(ticketTimeLayout, trimmed); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func parseTicketTimePtr(raw string) *time.Time {
	t := parseTicketTime(raw)
	if t.IsZero() {
		return nil
	}
	return &t
}
