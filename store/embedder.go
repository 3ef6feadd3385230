package store

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"golang.org/x/time/rate"

	"github.com/BaSui01/regrag/types"
)

// RateLimitedEmbedder 在嵌入服务前做客户端限流，
// 避免批量摄取时打爆外部配额。
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder 创建限流包装器。rps 为每秒允许的请求数。
func NewRateLimitedEmbedder(inner Embedder, rps float64, burst int) *RateLimitedEmbedder {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Embed 等待配额后转发；等待被取消视同外部失败。
func (e *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, types.WrapError(types.ErrEmbedding, "embedding rate limit wait", err)
	}
	return e.inner.Embed(ctx, text)
}

// EmbeddingCache 嵌入向量缓存的最小接口。
type EmbeddingCache interface {
	GetEmbedding(text string) ([]float64, bool)
	SetEmbedding(text string, vector []float64)
}

// CachedEmbedder 在嵌入服务前做按文本的缓存，
// 同一文本只计算一次，重复摄取与检索共享结果。
type CachedEmbedder struct {
	inner Embedder
	cache EmbeddingCache
}

// NewCachedEmbedder 创建缓存包装器。cache 为 nil 时直接透传。
func NewCachedEmbedder(inner Embedder, cache EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed 先查缓存，未命中时计算并回填。
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.cache != nil {
		if vec, ok := e.cache.GetEmbedding(text); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.SetEmbedding(text, vec)
	}
	return vec, nil
}

// HashEmbedder 确定性的词袋哈希嵌入器（测试与离线评估用）。
// 共享词汇的文本得到相近的向量，足以驱动排序断言，
// 不依赖外部嵌入服务。
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder 创建哈希嵌入器。dim <= 0 时取 128。
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 128
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32())%e.dim] += 1.0
	}

	// L2 归一化
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// Dim 返回向量维度。
func (e *HashEmbedder) Dim() int {
	return e.dim
}
