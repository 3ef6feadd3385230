package cache

import (
	"sort"
	"sync"
	"time"
)

// 容量与淘汰参数。写入超出容量时先清理过期条目，
// 仍高于高水位则按写入时间淘汰最老的一批。
const (
	DefaultCapacity = 1000
	DefaultTTL      = 5 * time.Minute

	highWaterRatio = 0.8
	evictRatio     = 0.2
)

type entry[T any] struct {
	value     T
	createdAt time.Time
	expiresAt time.Time
}

// Stats 缓存命中统计。
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// Table 单张带 TTL 的缓存表。读路径惰性清理过期条目。
type Table[T any] struct {
	mu         sync.Mutex
	entries    map[string]entry[T]
	capacity   int
	defaultTTL time.Duration
	hits       int64
	misses     int64

	// now 可注入，测试时固定时钟
	now func() time.Time
}

// NewTable 创建缓存表；capacity/ttl 非正时用默认值。
func NewTable[T any](capacity int, ttl time.Duration) *Table[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Table[T]{
		entries:    make(map[string]entry[T]),
		capacity:   capacity,
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// Get 读取条目。过期条目删除并按未命中处理。
func (t *Table[T]) Get(key string) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		t.misses++
		var zero T
		return zero, false
	}
	if t.now().After(e.expiresAt) {
		delete(t.entries, key)
		t.misses++
		var zero T
		return zero, false
	}
	t.hits++
	return e.value, true
}

// Set 以默认 TTL 写入。
func (t *Table[T]) Set(key string, value T) {
	t.SetWithTTL(key, value, t.defaultTTL)
}

// SetWithTTL 以指定 TTL 写入；写入可能触发淘汰。
func (t *Table[T]) SetWithTTL(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.entries[key] = entry[T]{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	if len(t.entries) > t.capacity {
		t.evict(now)
	}
}

// evict 先清理过期条目；仍高于高水位时
// 按写入时间淘汰最老的 20%。调用方必须持锁。
func (t *Table[T]) evict(now time.Time) {
	for key, e := range t.entries {
		if now.After(e.expiresAt) {
			delete(t.entries, key)
		}
	}
	if float64(len(t.entries)) <= float64(t.capacity)*highWaterRatio {
		return
	}

	type aged struct {
		key       string
		createdAt time.Time
	}
	all := make([]aged, 0, len(t.entries))
	for key, e := range t.entries {
		all = append(all, aged{key: key, createdAt: e.createdAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].createdAt.Before(all[j].createdAt)
	})

	drop := int(float64(len(all)) * evictRatio)
	if drop < 1 {
		drop = 1
	}
	for _, a := range all[:drop] {
		delete(t.entries, a.key)
	}
}

// Clear 清空全部条目，统计保留。
func (t *Table[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]entry[T])
}

// Len 当前条目数。
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Stats 返回真实的命中/未命中统计。
func (t *Table[T]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Stats{Hits: t.hits, Misses: t.misses, Size: len(t.entries)}
	if total := t.hits + t.misses; total > 0 {
		s.HitRate = float64(t.hits) / float64(total)
	}
	return s
}
