package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// DefaultCapacity 环形缓冲的默认容量。
const DefaultCapacity = 1000

// PerformanceMetric 单次请求的性能记录。
type PerformanceMetric struct {
	Timestamp          time.Time `json:"timestamp"`
	Strategy           string    `json:"strategy"`
	LatencyMs          int64     `json:"latency_ms"`
	Accuracy           float64   `json:"accuracy"`
	ContextUtilization float64   `json:"context_utilization"`
	CacheHit           bool      `json:"cache_hit"`
}

// Averages 全字段滚动平均。
type Averages struct {
	Count              int     `json:"count"`
	LatencyMs          float64 `json:"latency_ms"`
	Accuracy           float64 `json:"accuracy"`
	ContextUtilization float64 `json:"context_utilization"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
}

// Monitor 性能监视器。缓冲写满后覆盖最老记录。
type Monitor struct {
	mu       sync.RWMutex
	buf      []PerformanceMetric
	start    int
	count    int
	capacity int

	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	logger        *zap.Logger
}

// NewMonitor 创建监视器。reg 为 nil 时使用独立注册表
// （测试中避免与全局注册表冲突）。
func NewMonitor(capacity int, reg prometheus.Registerer, logger *zap.Logger) *Monitor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	factory := promauto.With(reg)
	return &Monitor{
		buf:      make([]PerformanceMetric, capacity),
		capacity: capacity,
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regrag",
			Name:      "queries_total",
			Help:      "Total number of retrieval queries",
		}, []string{"strategy", "cache_hit"}),
		queryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "regrag",
			Name:      "query_duration_seconds",
			Help:      "Retrieval query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		logger: logger.With(zap.String("component", "performance_monitor")),
	}
}

// Record 追加一条记录并镜像到 Prometheus。
// 时间戳为零值时补当前时间。
func (m *Monitor) Record(metric PerformanceMetric) {
	if metric.Timestamp.IsZero() {
		metric.Timestamp = time.Now()
	}

	m.mu.Lock()
	if m.count < m.capacity {
		m.buf[(m.start+m.count)%m.capacity] = metric
		m.count++
	} else {
		m.buf[m.start] = metric
		m.start = (m.start + 1) % m.capacity
	}
	m.mu.Unlock()

	m.queriesTotal.WithLabelValues(metric.Strategy, strconv.FormatBool(metric.CacheHit)).Inc()
	m.queryDuration.WithLabelValues(metric.Strategy).Observe(float64(metric.LatencyMs) / 1000)
}

// Export 按插入顺序返回全部记录的副本。
func (m *Monitor) Export() []PerformanceMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PerformanceMetric, 0, m.count)
	for i := 0; i < m.count; i++ {
		out = append(out, m.buf[(m.start+i)%m.capacity])
	}
	return out
}

// Averages 全部记录的滚动平均。
func (m *Monitor) Averages() Averages {
	m.mu.RLock()
	defer m.mu.RUnlock()

	avg := Averages{Count: m.count}
	if m.count == 0 {
		return avg
	}

	hits := 0
	for i := 0; i < m.count; i++ {
		r := m.buf[(m.start+i)%m.capacity]
		avg.LatencyMs += float64(r.LatencyMs)
		avg.Accuracy += r.Accuracy
		avg.ContextUtilization += r.ContextUtilization
		if r.CacheHit {
			hits++
		}
	}
	n := float64(m.count)
	avg.LatencyMs /= n
	avg.Accuracy /= n
	avg.ContextUtilization /= n
	avg.CacheHitRate = float64(hits) / n
	return avg
}

// CountByStrategy 按策略统计记录数。
func (m *Monitor) CountByStrategy() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int)
	for i := 0; i < m.count; i++ {
		out[m.buf[(m.start+i)%m.capacity].Strategy]++
	}
	return out
}

// Range 返回时间窗口内的记录（含边界）。
func (m *Monitor) Range(from, to time.Time) []PerformanceMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []PerformanceMetric
	for i := 0; i < m.count; i++ {
		r := m.buf[(m.start+i)%m.capacity]
		if r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// PruneOlderThan 丢弃早于 cutoff 的记录，返回丢弃数。
// 记录按插入顺序存放，时间戳单调，从头部收缩即可。
func (m *Monitor) PruneOlderThan(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := 0
	for m.count > 0 && m.buf[m.start].Timestamp.Before(cutoff) {
		m.start = (m.start + 1) % m.capacity
		m.count--
		dropped++
	}
	if dropped > 0 {
		m.logger.Debug("pruned performance records", zap.Int("dropped", dropped))
	}
	return dropped
}

// Len 当前记录数。
func (m *Monitor) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}
