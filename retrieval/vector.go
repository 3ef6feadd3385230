package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// VectorStrategy 向量相似度检索。
type VectorStrategy struct {
	store    store.Store
	embedder store.Embedder
	tok      tokenizer.Tokenizer
	opts     Options
	logger   *zap.Logger
}

// NewVectorStrategy 创建向量检索策略。
func NewVectorStrategy(st store.Store, emb store.Embedder, tok tokenizer.Tokenizer, opts Options, logger *zap.Logger) *VectorStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorStrategy{
		store:    st,
		embedder: emb,
		tok:      tok,
		opts:     opts.withDefaults(),
		logger:   logger.With(zap.String("component", "vector_strategy")),
	}
}

func (s *VectorStrategy) Name() string { return StrategyVector }

// Retrieve 嵌入查询并做相似度检索。
// 嵌入或存储失败时返回 vector 标记的空结果。
func (s *VectorStrategy) Retrieve(ctx context.Context, query string, limit int) types.RetrievalResult {
	start := time.Now()
	results, err := s.search(ctx, query, limit)
	if err != nil {
		s.logger.Warn("vector retrieval degraded to empty result",
			zap.String("query", query), zap.Error(err))
		return types.EmptyRetrievalResult(StrategyVector)
	}
	return s.assemble(results, StrategyVector, start)
}

// search 原始检索路径，错误留给调用方决定降级方式。
func (s *VectorStrategy) search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.WrapError(types.ErrEmbedding, "embed query", err)
	}

	hits, err := s.store.VectorSearch(ctx, vector, limit, s.opts.SimilarityThreshold, s.opts.MinContentLength)
	if err != nil {
		return nil, types.WrapError(types.ErrStore, "vector search", err)
	}

	terms := queryTerms(query)
	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		relevance := hit.Similarity +
			termPresenceBonus(hit.Content, terms) +
			lengthBonus(hit.Content, 0.2)
		results = append(results, types.SearchResult{
			DocID:      hit.DocID,
			Content:    hit.Content,
			Metadata:   hit.Metadata,
			Similarity: types.Clamp01(hit.Similarity),
			Source:     types.SourceVector,
			Relevance:  types.Clamp01(relevance),
		})
	}
	sortByRelevance(results)
	return results, nil
}

// assemble 组装上下文与指标。
func (s *VectorStrategy) assemble(results []types.SearchResult, strategy string, start time.Time) types.RetrievalResult {
	contextText := AssembleContext(results, s.opts.MaxContextTokens, s.tok)
	return types.RetrievalResult{
		Results: results,
		Context: contextText,
		Metrics: types.RetrievalMetrics{
			QueryTimeMs:   time.Since(start).Milliseconds(),
			ToolsUsed:     []string{"vector_search"},
			TokenEstimate: len(contextText) / 4,
			RetrievedIDs:  resultIDs(results),
			Strategy:      strategy,
			Accuracy:      meanRelevance(results),
		},
	}
}
