package retrieval

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// HybridStrategy 并发执行向量与关键词两路检索，
// 按文档 id 去重（先到先得）后用组合相关度重排。
// 两路各自失败互不中断：单路失败保留幸存一路的结果
//（hybrid_fallback），两路都失败才返回 hybrid 标记的空结果。
type HybridStrategy struct {
	vector  *VectorStrategy
	keyword *KeywordStrategy
	tok     tokenizer.Tokenizer
	opts    Options
	logger  *zap.Logger
}

// NewHybridStrategy 创建混合检索策略。
func NewHybridStrategy(vector *VectorStrategy, keyword *KeywordStrategy, tok tokenizer.Tokenizer, opts Options, logger *zap.Logger) *HybridStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HybridStrategy{
		vector:  vector,
		keyword: keyword,
		tok:     tok,
		opts:    opts.withDefaults(),
		logger:  logger.With(zap.String("component", "hybrid_strategy")),
	}
}

func (s *HybridStrategy) Name() string { return StrategyHybrid }

func (s *HybridStrategy) Retrieve(ctx context.Context, query string, limit int) types.RetrievalResult {
	start := time.Now()
	if limit <= 0 {
		limit = 5
	}

	var (
		wg                            sync.WaitGroup
		vectorResults, keywordResults []types.SearchResult
		vectorErr, keywordErr         error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorResults, vectorErr = s.vector.search(ctx, query, limit)
	}()
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = s.keyword.search(ctx, query, limit)
	}()
	wg.Wait()

	if vectorErr != nil && keywordErr != nil {
		s.logger.Warn("both retrieval legs failed, returning empty result",
			zap.String("query", query),
			zap.NamedError("vector_error", vectorErr),
			zap.NamedError("keyword_error", keywordErr))
		return types.EmptyRetrievalResult(StrategyHybrid)
	}
	if vectorErr != nil || keywordErr != nil {
		return s.partial(query, vectorResults, keywordResults, vectorErr, keywordErr, limit, start)
	}

	merged := s.rerank(query, dedupeByDocID(vectorResults, keywordResults))
	if len(merged) > limit {
		merged = merged[:limit]
	}

	contextText := AssembleContext(merged, s.opts.MaxContextTokens, s.tok)
	return types.RetrievalResult{
		Results: merged,
		Context: contextText,
		Metrics: types.RetrievalMetrics{
			QueryTimeMs:   time.Since(start).Milliseconds(),
			ToolsUsed:     []string{"vector_search", "full_text_search"},
			TokenEstimate: len(contextText) / 4,
			RetrievedIDs:  resultIDs(merged),
			Strategy:      StrategyHybrid,
			Accuracy:      meanRelevance(merged),
		},
	}
}

// partial 单路失败的降级路径：重排幸存一路的结果，
// 不因另一路失败而清空。
func (s *HybridStrategy) partial(query string, vectorResults, keywordResults []types.SearchResult,
	vectorErr, keywordErr error, limit int, start time.Time) types.RetrievalResult {
	surviving := vectorResults
	tool := "vector_search"
	failed := keywordErr
	if vectorErr != nil {
		surviving = keywordResults
		tool = "full_text_search"
		failed = vectorErr
	}
	s.logger.Warn("hybrid leg failed, keeping surviving leg",
		zap.String("query", query), zap.String("surviving", tool), zap.Error(failed))

	results := s.rerank(query, surviving)
	if len(results) > limit {
		results = results[:limit]
	}

	contextText := AssembleContext(results, s.opts.MaxContextTokens, s.tok)
	return types.RetrievalResult{
		Results: results,
		Context: contextText,
		Metrics: types.RetrievalMetrics{
			QueryTimeMs:   time.Since(start).Milliseconds(),
			ToolsUsed:     []string{tool},
			TokenEstimate: len(contextText) / 4,
			RetrievedIDs:  resultIDs(results),
			Strategy:      StrategyHybridFallback,
			Accuracy:      meanRelevance(results),
		},
	}
}

// rerank 计算组合相关度：基础相关度 + 来源加成
// （向量 0.1；关键词且短语整体命中 0.2）+ 长度加成（封顶 0.3）
// + 词项覆盖加成（封顶 0.2），整体截断到 1.0。
func (s *HybridStrategy) rerank(query string, results []types.SearchResult) []types.SearchResult {
	terms := queryTerms(query)
	for i := range results {
		combined := results[i].Relevance
		switch results[i].Source {
		case types.SourceVector:
			combined += 0.1
		case types.SourceKeyword:
			if hasExactPhrase(results[i].Content, query) {
				combined += 0.2
			}
		}
		combined += lengthBonus(results[i].Content, 0.3)
		combined += 0.2 * termCoverage(results[i].Content, terms)
		results[i].Relevance = types.Clamp01(combined)
	}
	sortByRelevance(results)
	return results
}

// dedupeByDocID 合并两路结果，相同文档 id 先到先得。
func dedupeByDocID(lists ...[]types.SearchResult) []types.SearchResult {
	seen := make(map[string]bool)
	var out []types.SearchResult
	for _, list := range lists {
		for _, r := range list {
			if seen[r.DocID] {
				continue
			}
			seen[r.DocID] = true
			out = append(out, r)
		}
	}
	return out
}
