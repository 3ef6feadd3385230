package retrieval

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/chunking"
	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// KnowledgeGraphStrategy 知识图增强检索：
// 先取 2 倍候选做向量检索，再用图里的相关块、
// 块关键词与概念命中提升相似度，重排后截断。
type KnowledgeGraphStrategy struct {
	store    store.Store
	embedder store.Embedder
	tok      tokenizer.Tokenizer
	opts     Options
	logger   *zap.Logger
}

// NewKnowledgeGraphStrategy 创建知识图增强策略。
func NewKnowledgeGraphStrategy(st store.Store, emb store.Embedder, tok tokenizer.Tokenizer, opts Options, logger *zap.Logger) *KnowledgeGraphStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KnowledgeGraphStrategy{
		store:    st,
		embedder: emb,
		tok:      tok,
		opts:     opts.withDefaults(),
		logger:   logger.With(zap.String("component", "knowledge_graph_strategy")),
	}
}

func (s *KnowledgeGraphStrategy) Name() string { return StrategyKnowledgeGraph }

func (s *KnowledgeGraphStrategy) Retrieve(ctx context.Context, query string, limit int) types.RetrievalResult {
	start := time.Now()
	if limit <= 0 {
		limit = 5
	}

	results, err := s.search(ctx, query, limit)
	if err != nil {
		s.logger.Warn("knowledge graph retrieval degraded to empty result",
			zap.String("query", query), zap.Error(err))
		return types.EmptyRetrievalResult(StrategyKnowledgeGraph)
	}

	contextText := AssembleContext(results, s.opts.MaxContextTokens, s.tok)
	return types.RetrievalResult{
		Results: results,
		Context: contextText,
		Metrics: types.RetrievalMetrics{
			QueryTimeMs:   time.Since(start).Milliseconds(),
			ToolsUsed:     []string{"vector_search", "knowledge_graph"},
			TokenEstimate: len(contextText) / 4,
			RetrievedIDs:  resultIDs(results),
			Strategy:      StrategyKnowledgeGraph,
			Accuracy:      meanRelevance(results),
		},
	}
}

func (s *KnowledgeGraphStrategy) search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, types.WrapError(types.ErrEmbedding, "embed query", err)
	}

	// 候选集取 2 倍上限，图增强后再截断
	hits, err := s.store.VectorSearch(ctx, vector, limit*2, s.opts.SimilarityThreshold, s.opts.MinContentLength)
	if err != nil {
		return nil, types.WrapError(types.ErrStore, "vector search", err)
	}

	terms := queryTerms(query)
	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		enhanced, err := s.enhance(ctx, hit, query, terms)
		if err != nil {
			return nil, err
		}
		relevance := enhanced +
			termPresenceBonus(hit.Content, terms) +
			lengthBonus(hit.Content, 0.2)
		results = append(results, types.SearchResult{
			DocID:      hit.DocID,
			Content:    hit.Content,
			Metadata:   hit.Metadata,
			Similarity: types.Clamp01(enhanced),
			Source:     types.SourceKnowledgeGraph,
			Relevance:  types.Clamp01(relevance),
		})
	}

	sortByRelevance(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// enhance 用图信号提升基础相似度：
// 关键词重叠×0.2 + 相关边平均权重×0.1 + 概念命中×0.15。
func (s *KnowledgeGraphStrategy) enhance(ctx context.Context, hit store.SearchHit, query string, terms []string) (float64, error) {
	related, err := s.store.GetRelatedChunks(ctx, hit.DocID, s.opts.MinRelatedWeight, 10)
	if err != nil {
		return 0, types.WrapError(types.ErrStore, "related chunk lookup", err)
	}
	keywords, err := s.store.GetKeywordsForChunk(ctx, hit.DocID)
	if err != nil {
		return 0, types.WrapError(types.ErrStore, "chunk keyword lookup", err)
	}

	enhanced := hit.Similarity +
		0.2*keywordOverlap(keywords, terms) +
		0.1*meanEdgeWeight(related) +
		0.15*conceptRelevance(keywords, query)
	return types.Clamp01(enhanced), nil
}

// keywordOverlap 查询词项覆盖的块关键词比例。
func keywordOverlap(keywords, terms []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	termSet := make(map[string]bool, len(terms))
	for _, t := range terms {
		termSet[t] = true
	}
	matched := 0
	for _, kw := range keywords {
		if termSet[strings.ToLower(kw)] {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

// meanEdgeWeight 相关边的平均权重。
func meanEdgeWeight(rels []types.KnowledgeGraphRelationship) float64 {
	if len(rels) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rels {
		sum += r.Weight
	}
	return sum / float64(len(rels))
}

// conceptRelevance 每个在查询中字面出现的概念加 0.3，封顶 1.0。
func conceptRelevance(keywords []string, query string) float64 {
	lower := strings.ToLower(query)
	score := 0.0
	for _, concept := range chunking.MapConcepts(keywords) {
		if strings.Contains(lower, concept) {
			score += 0.3
		}
	}
	return types.Clamp01(score)
}
