package retrieval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// KeywordStrategy 全文关键词检索。
// 相似度为内容覆盖的查询词项比例；相关度叠加
// 短语整体命中、内容长度与词频加成。
type KeywordStrategy struct {
	store  store.Store
	tok    tokenizer.Tokenizer
	opts   Options
	logger *zap.Logger
}

// NewKeywordStrategy 创建关键词检索策略。
func NewKeywordStrategy(st store.Store, tok tokenizer.Tokenizer, opts Options, logger *zap.Logger) *KeywordStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordStrategy{
		store:  st,
		tok:    tok,
		opts:   opts.withDefaults(),
		logger: logger.With(zap.String("component", "keyword_strategy")),
	}
}

func (s *KeywordStrategy) Name() string { return StrategyKeyword }

func (s *KeywordStrategy) Retrieve(ctx context.Context, query string, limit int) types.RetrievalResult {
	start := time.Now()
	results, err := s.search(ctx, query, limit)
	if err != nil {
		s.logger.Warn("keyword retrieval degraded to empty result",
			zap.String("query", query), zap.Error(err))
		return types.EmptyRetrievalResult(StrategyKeyword)
	}

	contextText := AssembleContext(results, s.opts.MaxContextTokens, s.tok)
	return types.RetrievalResult{
		Results: results,
		Context: contextText,
		Metrics: types.RetrievalMetrics{
			QueryTimeMs:   time.Since(start).Milliseconds(),
			ToolsUsed:     []string{"full_text_search"},
			TokenEstimate: len(contextText) / 4,
			RetrievedIDs:  resultIDs(results),
			Strategy:      StrategyKeyword,
			Accuracy:      meanRelevance(results),
		},
	}
}

func (s *KeywordStrategy) search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}

	hits, err := s.store.FullTextSearch(ctx, query, limit)
	if err != nil {
		return nil, types.WrapError(types.ErrStore, "full-text search", err)
	}

	terms := queryTerms(query)
	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		similarity := termCoverage(hit.Content, terms)
		relevance := similarity +
			termFrequencyBonus(hit.Content, terms, 0.2) +
			lengthBonus(hit.Content, 0.2)
		if hasExactPhrase(hit.Content, query) {
			relevance += 0.3
		}
		results = append(results, types.SearchResult{
			DocID:      hit.DocID,
			Content:    hit.Content,
			Metadata:   hit.Metadata,
			Similarity: types.Clamp01(similarity),
			Source:     types.SourceKeyword,
			Relevance:  types.Clamp01(relevance),
		})
	}
	sortByRelevance(results)
	return results, nil
}
