package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "regrag:query_cache:"

// Manager 组合两张独立缓存表：查询结果与嵌入向量。
// 查询结果表可选挂接 Redis 二级缓存；本地表是权威层，
// Redis 失败只记日志，不影响调用方。
type Manager[R any] struct {
	queries    *Table[R]
	embeddings *Table[[]float64]
	redis      *redis.Client
	redisTTL   time.Duration
	logger     *zap.Logger
}

// Config 缓存管理器配置。
type Config struct {
	Capacity int           `json:"capacity" yaml:"capacity"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
	RedisTTL time.Duration `json:"redis_ttl" yaml:"redis_ttl"`
}

// NewManager 创建缓存管理器；rdb 为 nil 时只用本地表。
func NewManager[R any](cfg Config, rdb *redis.Client, logger *zap.Logger) *Manager[R] {
	if logger == nil {
		logger = zap.NewNop()
	}
	redisTTL := cfg.RedisTTL
	if redisTTL <= 0 {
		redisTTL = time.Hour
	}
	return &Manager[R]{
		queries:    NewTable[R](cfg.Capacity, cfg.TTL),
		embeddings: NewTable[[]float64](cfg.Capacity, cfg.TTL),
		redis:      rdb,
		redisTTL:   redisTTL,
		logger:     logger.With(zap.String("component", "cache_manager")),
	}
}

// GetQuery 按原始查询串读取缓存的响应。
// 本地未命中时回查 Redis 并回填本地表。
func (m *Manager[R]) GetQuery(ctx context.Context, query string) (R, bool) {
	if value, ok := m.queries.Get(query); ok {
		return value, true
	}

	var zero R
	if m.redis == nil {
		return zero, false
	}

	data, err := m.redis.Get(ctx, redisKeyPrefix+query).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			m.logger.Warn("redis cache get failed", zap.Error(err))
		}
		return zero, false
	}
	var value R
	if err := json.Unmarshal(data, &value); err != nil {
		m.logger.Warn("redis cache entry corrupt", zap.Error(err))
		return zero, false
	}
	m.queries.Set(query, value)
	return value, true
}

// SetQuery 写入查询结果缓存（本地 + 可选 Redis）。
func (m *Manager[R]) SetQuery(ctx context.Context, query string, value R) {
	m.queries.Set(query, value)

	if m.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("cache entry not serializable", zap.Error(err))
		return
	}
	if err := m.redis.Set(ctx, redisKeyPrefix+query, data, m.redisTTL).Err(); err != nil {
		m.logger.Warn("redis cache set failed", zap.Error(err))
	}
}

// SetQueryWithTTL 以指定 TTL 写入本地查询缓存。
func (m *Manager[R]) SetQueryWithTTL(query string, value R, ttl time.Duration) {
	m.queries.SetWithTTL(query, value, ttl)
}

// GetEmbedding 读取缓存的嵌入向量。
func (m *Manager[R]) GetEmbedding(text string) ([]float64, bool) {
	return m.embeddings.Get(text)
}

// SetEmbedding 写入嵌入向量缓存。
func (m *Manager[R]) SetEmbedding(text string, vector []float64) {
	m.embeddings.Set(text, vector)
}

// Clear 清空两张表；Redis 条目按 TTL 自然过期。
func (m *Manager[R]) Clear() {
	m.queries.Clear()
	m.embeddings.Clear()
}

// QueryStats 查询缓存统计。
func (m *Manager[R]) QueryStats() Stats { return m.queries.Stats() }

// EmbeddingStats 嵌入缓存统计。
func (m *Manager[R]) EmbeddingStats() Stats { return m.embeddings.Stats() }
