package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_RecordAndAverages(t *testing.T) {
	m := NewMonitor(10, nil, nil)

	m.Record(PerformanceMetric{Strategy: "vector", LatencyMs: 100, Accuracy: 0.8, ContextUtilization: 0.5, CacheHit: true})
	m.Record(PerformanceMetric{Strategy: "hybrid", LatencyMs: 300, Accuracy: 0.6, ContextUtilization: 0.7, CacheHit: false})

	avg := m.Averages()
	assert.Equal(t, 2, avg.Count)
	assert.Equal(t, 200.0, avg.LatencyMs)
	assert.InDelta(t, 0.7, avg.Accuracy, 1e-9)
	assert.InDelta(t, 0.6, avg.ContextUtilization, 1e-9)
	assert.Equal(t, 0.5, avg.CacheHitRate)
}

func TestMonitor_RingDropsOldest(t *testing.T) {
	m := NewMonitor(3, nil, nil)

	for i := 0; i < 5; i++ {
		m.Record(PerformanceMetric{Strategy: fmt.Sprintf("s%d", i), LatencyMs: int64(i)})
	}

	assert.Equal(t, 3, m.Len())
	exported := m.Export()
	require.Len(t, exported, 3)
	// 最老的两条被覆盖，剩余按插入顺序
	assert.Equal(t, "s2", exported[0].Strategy)
	assert.Equal(t, "s4", exported[2].Strategy)
}

func TestMonitor_CountByStrategy(t *testing.T) {
	m := NewMonitor(10, nil, nil)
	m.Record(PerformanceMetric{Strategy: "vector"})
	m.Record(PerformanceMetric{Strategy: "vector"})
	m.Record(PerformanceMetric{Strategy: "keyword"})

	counts := m.CountByStrategy()
	assert.Equal(t, 2, counts["vector"])
	assert.Equal(t, 1, counts["keyword"])
}

func TestMonitor_RangeFilter(t *testing.T) {
	m := NewMonitor(10, nil, nil)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		m.Record(PerformanceMetric{Strategy: "vector", Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}

	got := m.Range(base.Add(time.Hour), base.Add(2*time.Hour))
	assert.Len(t, got, 2)
}

func TestMonitor_PruneOlderThan(t *testing.T) {
	m := NewMonitor(10, nil, nil)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		m.Record(PerformanceMetric{Strategy: "vector", Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}

	dropped := m.PruneOlderThan(base.Add(2 * time.Hour))
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 2, m.Len())

	exported := m.Export()
	assert.Equal(t, base.Add(2*time.Hour), exported[0].Timestamp)
}

func TestMonitor_EmptyAverages(t *testing.T) {
	m := NewMonitor(10, nil, nil)
	avg := m.Averages()
	assert.Zero(t, avg.Count)
	assert.Zero(t, avg.LatencyMs)
}
