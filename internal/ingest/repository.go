// 本文件用于按日期定位、读取并缓存产量与报警日文件
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"prod-watch/internal/logger"
	"prod-watch/internal/metrics"
	"prod-watch/internal/models"
	"prod-watch/internal/pathutil"
)

var (
	// ErrFileNotFound 表示某天的数据文件不存在 批量调用方应跳过该天并记录警告
	ErrFileNotFound = errors.New("数据文件不存在")
	// ErrHeaderNotFound 表示表头缺少必需列
	ErrHeaderNotFound = errors.New("表头缺少必需列")
)

// Kind 表示日文件类型
type Kind string

const (
	KindProduction Kind = "production"
	KindAlarm      Kind = "alarm"
)

// ParseKind 解析日文件类型
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(KindProduction), "prod":
		return KindProduction, nil
	case string(KindAlarm), "alarms":
		return KindAlarm, nil
	default:
		return "", fmt.Errorf("未知的数据类型: %s", raw)
	}
}

// Sources 描述日文件的位置与命名方式
type Sources struct {
	ProductionRoot    string
	ProductionPattern string
	AlarmRoot         string
	AlarmPattern      string
	AlarmPerDayFolder bool
	Location          *time.Location
}

// SourcesFromConfig 从配置构建数据源描述
func SourcesFromConfig(cfg *models.Config) Sources {
	if cfg == nil {
		return Sources{Location: time.Local}
	}
	return Sources{
		ProductionRoot:    cfg.ProductionRoot,
		ProductionPattern: cfg.ProductionPattern,
		AlarmRoot:         cfg.AlarmRoot,
		AlarmPattern:      cfg.AlarmPattern,
		AlarmPerDayFolder: cfg.AlarmPerDayFolder,
		Location:          cfg.Location(),
	}
}

// DayStats 为 LoadDay 的结果 按 Kind 填充其一
type DayStats struct {
	Kind       Kind
	Date       time.Time
	Production *models.DayProduction
	Alarms     *models.DayAlarms
}

// Repository 负责日文件读取 每个实例持有独立的缓存
type Repository struct {
	sources    Sources
	production *snapshotCache[*models.DayProduction]
	alarms     *snapshotCache[[]models.AlarmRecord]
	metrics    *metrics.Collector
}

// NewRepository 创建日文件仓库
func NewRepository(sources Sources) *Repository {
	if sources.Location == nil {
		sources.Location = time.Local
	}
	if strings.TrimSpace(sources.AlarmPattern) == "" {
		sources.AlarmPattern = pathutil.DefaultAlarmPattern
	}
	return &Repository{
		sources:    sources,
		production: newSnapshotCache[*models.DayProduction](),
		alarms:     newSnapshotCache[[]models.AlarmRecord](),
		metrics:    metrics.Global(),
	}
}

// SetMetrics 替换指标收集器 测试中使用独立实例
func (r *Repository) SetMetrics(collector *metrics.Collector) {
	r.metrics = collector
}

// Location 返回仓库使用的时区
func (r *Repository) Location() *time.Location {
	return r.sources.Location
}

// Roots 返回需要监听的数据根目录
func (r *Repository) Roots() []string {
	return pathutil.UniqueDirs(r.sources.ProductionRoot, r.sources.AlarmRoot)
}

// DayStart 返回日期在仓库时区下的零点
func (r *Repository) DayStart(date time.Time) time.Time {
	d := date.In(r.sources.Location)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, r.sources.Location)
}

// LoadDay 按类型加载某天的数据
func (r *Repository) LoadDay(kind Kind, date time.Time) (DayStats, error) {
	stats := DayStats{Kind: kind, Date: r.DayStart(date)}
	switch kind {
	case KindProduction:
		day, err := r.LoadProductionDay(date)
		if err != nil {
			return stats, err
		}
		stats.Production = day
	case KindAlarm:
		day, err := r.LoadAlarmDay(date)
		if err != nil {
			return stats, err
		}
		stats.Alarms = day
	default:
		return stats, fmt.Errorf("未知的数据类型: %s", kind)
	}
	return stats, nil
}

// LoadProductionDay 加载某天的产量数据
// 文件缺失返回 ErrFileNotFound 表头缺列返回 ErrHeaderNotFound
func (r *Repository) LoadProductionDay(date time.Time) (*models.DayProduction, error) {
	day := r.DayStart(date)
	path, err := pathutil.DayFile(r.sources.ProductionRoot, r.sources.ProductionPattern, day)
	if err != nil {
		r.metrics.ObserveDayLoad(string(KindProduction), metrics.ResultError)
		return nil, fmt.Errorf("解析产量文件路径失败: %w", err)
	}
	stamp, err := statFile(path)
	if err != nil {
		r.observeFailure(KindProduction, err)
		if errors.Is(err, ErrFileNotFound) {
			r.production.drop(path)
		}
		return nil, err
	}
	if cached, ok := r.production.get(path, stamp); ok {
		r.metrics.IncCacheHit(string(KindProduction))
		return cached, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.metrics.ObserveDayLoad(string(KindProduction), metrics.ResultError)
		return nil, fmt.Errorf("读取产量文件失败: %w", err)
	}
	result, err := ParseProduction(DecodeBytes(data), day)
	if err != nil {
		r.metrics.ObserveDayLoad(string(KindProduction), metrics.ResultBadInput)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	result.Day.SourceFile = path
	if result.SkippedRows > 0 {
		logger.Debug("产量文件丢弃不可解析的行: %s, 行数=%d", path, result.SkippedRows)
		r.metrics.AddSkippedRows(string(KindProduction), result.SkippedRows)
	}
	r.production.put(path, stamp, result.Day)
	r.metrics.ObserveDayLoad(string(KindProduction), metrics.ResultOK)
	return result.Day, nil
}

// LoadAlarmDay 加载某天的报警数据
// 按天分目录时读取目录内全部数据文件 空目录视为当天无报警
func (r *Repository) LoadAlarmDay(date time.Time) (*models.DayAlarms, error) {
	day := r.DayStart(date)
	files, err := r.alarmFiles(day)
	if err != nil {
		r.observeFailure(KindAlarm, err)
		return nil, err
	}
	out := &models.DayAlarms{Date: day}
	for _, path := range files {
		records, err := r.loadAlarmFile(path, day)
		if err != nil {
			r.observeFailure(KindAlarm, err)
			return nil, err
		}
		out.Sources = append(out.Sources, path)
		out.Records = append(out.Records, records...)
	}
	sort.SliceStable(out.Records, func(i, j int) bool {
		return out.Records[i].Start.Before(out.Records[j].Start)
	})
	return out, nil
}

func (r *Repository) alarmFiles(day time.Time) ([]string, error) {
	if !r.sources.AlarmPerDayFolder {
		path, err := pathutil.DayFile(r.sources.AlarmRoot, r.sources.AlarmPattern, day)
		if err != nil {
			return nil, fmt.Errorf("解析报警文件路径失败: %w", err)
		}
		return []string{path}, nil
	}
	dir, err := pathutil.DayFolder(r.sources.AlarmRoot, day)
	if err != nil {
		return nil, fmt.Errorf("解析报警目录失败: %w", err)
	}
	files, err := pathutil.ListDataFiles(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, dir)
		}
		return nil, fmt.Errorf("读取报警目录失败: %w", err)
	}
	return files, nil
}

func (r *Repository) loadAlarmFile(path string, day time.Time) ([]models.AlarmRecord, error) {
	stamp, err := statFile(path)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			r.alarms.drop(path)
		}
		return nil, err
	}
	if cached, ok := r.alarms.get(path, stamp); ok {
		r.metrics.IncCacheHit(string(KindAlarm))
		return cached, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取报警文件失败: %w", err)
	}
	result, err := ParseAlarms(DecodeBytes(data), day, r.sources.Location, path)
	if err != nil {
		if !errors.Is(err, ErrHeaderNotFound) {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		// 报警文件缺少开始时间列时降级为无记录 不中断当天统计
		logger.Warn("报警文件表头无法识别，按无报警处理: %s: %v", path, err)
		r.metrics.ObserveDayLoad(string(KindAlarm), metrics.ResultBadInput)
		r.alarms.put(path, stamp, nil)
		return nil, nil
	}
	if result.SkippedRows > 0 {
		logger.Debug("报警文件丢弃不可解析的行: %s, 行数=%d", path, result.SkippedRows)
		r.metrics.AddSkippedRows(string(KindAlarm), result.SkippedRows)
	}
	r.alarms.put(path, stamp, result.Records)
	r.metrics.ObserveDayLoad(string(KindAlarm), metrics.ResultOK)
	return result.Records, nil
}

func (r *Repository) observeFailure(kind Kind, err error) {
	if errors.Is(err, ErrFileNotFound) {
		r.metrics.ObserveDayLoad(string(kind), metrics.ResultMissing)
		return
	}
	r.metrics.ObserveDayLoad(string(kind), metrics.ResultError)
}

// CachedFiles 返回当前缓存的文件数
func (r *Repository) CachedFiles() int {
	return r.production.size() + r.alarms.size()
}

func statFile(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fileStamp{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fileStamp{}, fmt.Errorf("读取文件信息失败: %w", err)
	}
	if info.IsDir() {
		return fileStamp{}, fmt.Errorf("%w: %s 是目录", ErrFileNotFound, path)
	}
	return fileStamp{modTime: info.ModTime(), size: info.Size()}, nil
}
