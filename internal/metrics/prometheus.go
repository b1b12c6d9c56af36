// 本文件用于 Prometheus 指标聚合与导出 将运行时指标统一收口便于监控接入

package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "pw_"

// 加载结果标签
const (
	ResultOK       = "ok"
	ResultMissing  = "missing"
	ResultBadInput = "bad_header"
	ResultError    = "error"
)

// Collector 聚合运行期指标 使用私有注册表 避免测试间互相污染
type Collector struct {
	registry *prometheus.Registry

	dayLoads        *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	skippedRows     *prometheus.CounterVec
	fileEvents      prometheus.Counter
	refreshTotal    *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	warningsTotal   *prometheus.CounterVec
	ticketsByStatus *prometheus.GaugeVec
	snapshotFails   prometheus.Counter
	lastRefresh     prometheus.Gauge
}

var (
	globalCollector = NewCollector()
)

// Global 返回进程级全局指标收集器。
func Global() *Collector {
	return globalCollector
}

// NewCollector 创建指标收集器。
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		dayLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "day_loads_total",
			Help: "日文件加载次数 按类型与结果区分",
		}, []string{"kind", "result"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "day_cache_hits_total",
			Help: "日文件快照缓存命中次数",
		}, []string{"kind"}),
		skippedRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "skipped_rows_total",
			Help: "解析时丢弃的行数",
		}, []string{"kind"}),
		fileEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "file_events_total",
			Help: "数据目录文件变更事件数",
		}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "refresh_total",
			Help: "预警刷新周期次数",
		}, []string{"trigger"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "refresh_duration_seconds",
			Help:    "预警刷新周期耗时",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		warningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "warnings_detected_total",
			Help: "规则引擎产出的预警条数",
		}, []string{"rule"}),
		ticketsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: metricPrefix + "tickets",
			Help: "当前工单数量 按状态区分",
		}, []string{"status"}),
		snapshotFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ticket_snapshot_write_failures_total",
			Help: "工单快照写入失败次数",
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_refresh_timestamp_seconds",
			Help: "最近一次刷新完成时间",
		}),
	}
	c.registry.MustRegister(
		c.dayLoads,
		c.cacheHits,
		c.skippedRows,
		c.fileEvents,
		c.refreshTotal,
		c.refreshDuration,
		c.warningsTotal,
		c.ticketsByStatus,
		c.snapshotFails,
		c.lastRefresh,
	)
	return c
}

// Registry 返回私有注册表
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveDayLoad 记录一次日文件加载结果
func (c *Collector) ObserveDayLoad(kind, result string) {
	if c == nil {
		return
	}
	c.dayLoads.WithLabelValues(normalizeMetricLabel(kind), normalizeMetricLabel(result)).Inc()
}

// IncCacheHit 记录一次快照缓存命中
func (c *Collector) IncCacheHit(kind string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(normalizeMetricLabel(kind)).Inc()
}

// AddSkippedRows 记录丢弃的行数
func (c *Collector) AddSkippedRows(kind string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.skippedRows.WithLabelValues(normalizeMetricLabel(kind)).Add(float64(n))
}

// IncFileEvent 记录一次文件变更事件。
func (c *Collector) IncFileEvent() {
	if c == nil {
		return
	}
	c.fileEvents.Inc()
}

// ObserveRefresh 记录一次刷新周期
func (c *Collector) ObserveRefresh(trigger string, latency time.Duration, finishedAt time.Time) {
	if c == nil {
		return
	}
	c.refreshTotal.WithLabelValues(normalizeMetricLabel(trigger)).Inc()
	c.refreshDuration.Observe(latency.Seconds())
	c.lastRefresh.Set(float64(finishedAt.Unix()))
}

// AddWarnings 记录规则产出的预警数
func (c *Collector) AddWarnings(ruleID string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.warningsTotal.WithLabelValues(normalizeMetricLabel(ruleID)).Add(float64(n))
}

// SetTicketCounts 刷新各状态工单数量 未出现的状态置零
func (c *Collector) SetTicketCounts(counts map[string]int, statuses []string) {
	if c == nil {
		return
	}
	for _, status := range statuses {
		c.ticketsByStatus.WithLabelValues(normalizeMetricLabel(status)).Set(float64(counts[status]))
	}
}

// IncSnapshotWriteFailure 记录工单快照写入失败
func (c *Collector) IncSnapshotWriteFailure() {
	if c == nil {
		return
	}
	c.snapshotFails.Inc()
}

func normalizeMetricLabel(raw string) string {
	value := strings.TrimSpace(strings.ToLower(raw))
	if value == "" {
		return "unknown"
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	if len(value) > 80 {
		value = value[:80]
	}
	return value
}
