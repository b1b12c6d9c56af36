// 本文件用于工单快照的 JSON 文件存储
package ticket

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"prod-watch/internal/logger"
	"prod-watch/internal/models"
)

// Backend 表示工单快照的持久化后端 每次保存为整体替换
type Backend interface {
	Load() ([]models.WarningTicketRecord, error)
	Save(records []models.WarningTicketRecord) error
	Path() string
	Close() error
}

// BackendStats 为快照文件的健康计数
type BackendStats struct {
	Quarantined    uint64 `json:"quarantined"`
	WriteFailures  uint64 `json:"writeFailures"`
	LastQuarantine string `json:"lastQuarantine,omitempty"`
}

// statsReporter 由能报告健康计数的后端实现
type statsReporter interface {
	Stats() BackendStats
}

// JSONFileBackend 把工单数组写入单个 JSON 文件
type JSONFileBackend struct {
	path  string
	mu    sync.Mutex
	stats BackendStats
}

// NewJSONFileBackend 创建 JSON 文件后端 文件不存在时视为空快照
func NewJSONFileBackend(path string) (*JSONFileBackend, error) {
	cleaned := strings.TrimSpace(path)
	if cleaned == "" {
		return nil, fmt.Errorf("工单文件路径不能为空")
	}
	return &JSONFileBackend{path: cleaned}, nil
}

// Path 返回快照文件路径
func (b *JSONFileBackend) Path() string {
	return b.path
}

// Load 读取快照 无法解析的文件改名隔离后按空快照继续
func (b *JSONFileBackend) Load() ([]models.WarningTicketRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return []models.WarningTicketRecord{}, nil
	case err != nil:
		return nil, fmt.Errorf("读取工单文件失败: %w", err)
	case len(bytes.TrimSpace(data)) == 0:
		return []models.WarningTicketRecord{}, nil
	}

	var records []models.WarningTicketRecord
	if parseErr := json.Unmarshal(data, &records); parseErr != nil {
		// 坏文件原样保留在隔离路径 下次保存写出新快照
		quarantined := fmt.Sprintf("%s.bad-%d", b.path, time.Now().UnixNano())
		if err := os.Rename(b.path, quarantined); err != nil {
			return nil, fmt.Errorf("工单文件损坏且隔离失败: %v: %w", parseErr, err)
		}
		b.stats.Quarantined++
		b.stats.LastQuarantine = quarantined
		logger.Error("工单文件损坏，已隔离为 %s 并按空快照继续: %v", quarantined, parseErr)
		return []models.WarningTicketRecord{}, nil
	}
	if records == nil {
		records = []models.WarningTicketRecord{}
	}
	return records, nil
}

// Save 先写同目录临时文件 再改名覆盖快照
func (b *JSONFileBackend) Save(records []models.WarningTicketRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if records == nil {
		records = []models.WarningTicketRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		b.stats.WriteFailures++
		return fmt.Errorf("序列化工单失败: %w", err)
	}
	if err := b.replace(data); err != nil {
		b.stats.WriteFailures++
		return fmt.Errorf("写入工单文件失败: %w", err)
	}
	return nil
}

// Close 无需释放资源
func (b *JSONFileBackend) Close() error {
	return nil
}

// Stats 返回隔离次数与写入失败次数
func (b *JSONFileBackend) Stats() BackendStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *JSONFileBackend) replace(data []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_, writeErr := tmp.Write(data)
	if writeErr == nil {
		writeErr = tmp.Sync()
	}
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Chmod(tmpName, 0o644)
	}
	if writeErr == nil {
		writeErr = os.Rename(tmpName, b.path)
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
	}
	return writeErr
}
