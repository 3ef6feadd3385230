package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/types"
)

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, errors.New("embedding service down")
}

// failingTextStore 全文检索失败、其余路径委托内存存储。
type failingTextStore struct {
	store.Store
}

func (f *failingTextStore) FullTextSearch(ctx context.Context, query string, limit int) ([]store.SearchHit, error) {
	return nil, errors.New("full-text index offline")
}

func seedStore(t *testing.T) (*store.MemoryStore, *store.HashEmbedder) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	emb := store.NewHashEmbedder(64)

	chunks := []types.Chunk{
		{
			ID:       "reg_chunk_0",
			Content:  "The capital adequacy ratio of a licensed bank must exceed the statutory minimum at all times.",
			Type:     types.ChunkTypeBody,
			Keywords: []string{"capital", "adequacy", "ratio"},
		},
		{
			ID:       "reg_chunk_1",
			Content:  "Liquidity coverage requirements apply to all licensees during periods of market stress.",
			Type:     types.ChunkTypeBody,
			Keywords: []string{"liquidity", "coverage", "licensees"},
		},
		{
			ID:       "reg_chunk_2",
			Content:  "Capital buffers sit above the capital adequacy minimum and absorb unexpected losses.",
			Type:     types.ChunkTypeBody,
			Keywords: []string{"capital", "buffers", "adequacy"},
		},
	}
	for _, c := range chunks {
		vec, err := emb.Embed(ctx, c.Content)
		require.NoError(t, err)
		require.NoError(t, st.UpsertChunk(ctx, c, vec))
	}
	require.NoError(t, st.UpsertRelationship(ctx, types.KnowledgeGraphRelationship{
		SourceID: "reg_chunk_0", TargetID: "reg_chunk_2",
		RelType: types.RelSemanticSimilarity, Weight: 0.75,
	}))
	for _, kw := range []string{"capital", "adequacy", "ratio"} {
		require.NoError(t, st.UpsertKeyword(ctx, "reg_chunk_0", kw, 1.0))
	}
	return st, emb
}

func TestVectorStrategy_RanksByRelevance(t *testing.T) {
	st, emb := seedStore(t)
	s := NewVectorStrategy(st, emb, nil, Options{SimilarityThreshold: 0.01, MinContentLength: 10}, nil)

	result := s.Retrieve(context.Background(), "capital adequacy ratio", 3)
	require.NotEmpty(t, result.Results)

	assert.Equal(t, "reg_chunk_0", result.Results[0].DocID)
	assert.Equal(t, types.SourceVector, result.Results[0].Source)
	assert.Equal(t, StrategyVector, result.Metrics.Strategy)
	assert.Greater(t, result.Metrics.Accuracy, 0.0)
	assert.Contains(t, result.Metrics.ToolsUsed, "vector_search")

	// 相关度降序
	for i := 1; i < len(result.Results); i++ {
		assert.GreaterOrEqual(t, result.Results[i-1].Relevance, result.Results[i].Relevance)
	}
	// 分数全部落在 [0,1]
	for _, r := range result.Results {
		assert.LessOrEqual(t, r.Relevance, 1.0)
		assert.GreaterOrEqual(t, r.Similarity, 0.0)
	}
}

func TestVectorStrategy_EmptyOnEmbedderFailure(t *testing.T) {
	st, _ := seedStore(t)
	s := NewVectorStrategy(st, &failingEmbedder{}, nil, DefaultOptions(), nil)

	result := s.Retrieve(context.Background(), "capital", 3)
	assert.Empty(t, result.Results)
	assert.Empty(t, result.Context)
	assert.Equal(t, StrategyVector, result.Metrics.Strategy)
	assert.Zero(t, result.Metrics.Accuracy)
}

func TestKeywordStrategy_SimilarityAndPhraseBonus(t *testing.T) {
	st, _ := seedStore(t)
	s := NewKeywordStrategy(st, nil, DefaultOptions(), nil)

	result := s.Retrieve(context.Background(), "capital adequacy", 3)
	require.NotEmpty(t, result.Results)

	top := result.Results[0]
	// 两个词项都命中：相似度为覆盖比例 1.0
	assert.Equal(t, 1.0, top.Similarity)
	assert.Equal(t, types.SourceKeyword, top.Source)

	// 短语整体命中的块排在只命中散词的块之前
	assert.Contains(t, strings.ToLower(top.Content), "capital adequacy")
}

func TestKeywordStrategy_EmptyOnStoreFailure(t *testing.T) {
	st, _ := seedStore(t)
	s := NewKeywordStrategy(&failingTextStore{Store: st}, nil, DefaultOptions(), nil)

	result := s.Retrieve(context.Background(), "capital", 3)
	assert.Empty(t, result.Results)
	assert.Equal(t, StrategyKeyword, result.Metrics.Strategy)
	assert.Zero(t, result.Metrics.Accuracy)
}

func TestHybridStrategy_DedupesAndCombines(t *testing.T) {
	st, emb := seedStore(t)
	opts := Options{SimilarityThreshold: 0.01, MinContentLength: 10}
	vector := NewVectorStrategy(st, emb, nil, opts, nil)
	keyword := NewKeywordStrategy(st, nil, opts, nil)
	s := NewHybridStrategy(vector, keyword, nil, opts, nil)

	result := s.Retrieve(context.Background(), "capital adequacy ratio", 3)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, StrategyHybrid, result.Metrics.Strategy)
	assert.ElementsMatch(t, []string{"vector_search", "full_text_search"}, result.Metrics.ToolsUsed)

	// 文档 id 不重复
	seen := make(map[string]bool)
	for _, r := range result.Results {
		assert.False(t, seen[r.DocID], r.DocID)
		seen[r.DocID] = true
		assert.LessOrEqual(t, r.Relevance, 1.0)
	}
}

func TestHybridStrategy_FallsBackToVectorOnly(t *testing.T) {
	st, emb := seedStore(t)
	opts := Options{SimilarityThreshold: 0.01, MinContentLength: 10}
	vector := NewVectorStrategy(st, emb, nil, opts, nil)
	keyword := NewKeywordStrategy(&failingTextStore{Store: st}, nil, opts, nil)
	s := NewHybridStrategy(vector, keyword, nil, opts, nil)

	result := s.Retrieve(context.Background(), "capital adequacy ratio", 3)
	require.NotEmpty(t, result.Results)
	assert.Equal(t, StrategyHybridFallback, result.Metrics.Strategy)
	assert.Equal(t, []string{"vector_search"}, result.Metrics.ToolsUsed)
}

func TestHybridStrategy_KeepsKeywordLegWhenVectorFails(t *testing.T) {
	st, _ := seedStore(t)
	opts := Options{SimilarityThreshold: 0.01, MinContentLength: 10}
	vector := NewVectorStrategy(st, &failingEmbedder{}, nil, opts, nil)
	keyword := NewKeywordStrategy(st, nil, opts, nil)
	s := NewHybridStrategy(vector, keyword, nil, opts, nil)

	result := s.Retrieve(context.Background(), "capital adequacy ratio", 3)

	// 向量路失败不清空关键词路的结果
	require.NotEmpty(t, result.Results)
	assert.Equal(t, StrategyHybridFallback, result.Metrics.Strategy)
	assert.Equal(t, []string{"full_text_search"}, result.Metrics.ToolsUsed)
	assert.Equal(t, "reg_chunk_0", result.Results[0].DocID)
	for _, r := range result.Results {
		assert.Equal(t, types.SourceKeyword, r.Source)
		assert.LessOrEqual(t, r.Relevance, 1.0)
	}
}

func TestHybridStrategy_EmptyWhenBothPathsFail(t *testing.T) {
	st, _ := seedStore(t)
	opts := DefaultOptions()
	vector := NewVectorStrategy(st, &failingEmbedder{}, nil, opts, nil)
	keyword := NewKeywordStrategy(&failingTextStore{Store: st}, nil, opts, nil)
	s := NewHybridStrategy(vector, keyword, nil, opts, nil)

	result := s.Retrieve(context.Background(), "capital", 3)
	assert.Empty(t, result.Results)
	assert.Equal(t, StrategyHybrid, result.Metrics.Strategy)
	assert.Zero(t, result.Metrics.Accuracy)
}

func TestKnowledgeGraphStrategy_EnhancesLinkedChunks(t *testing.T) {
	st, emb := seedStore(t)
	s := NewKnowledgeGraphStrategy(st, emb, nil, Options{SimilarityThreshold: 0.01, MinContentLength: 10}, nil)

	result := s.Retrieve(context.Background(), "capital adequacy ratio", 2)
	require.NotEmpty(t, result.Results)
	assert.LessOrEqual(t, len(result.Results), 2)
	assert.Equal(t, StrategyKnowledgeGraph, result.Metrics.Strategy)
	assert.ElementsMatch(t, []string{"vector_search", "knowledge_graph"}, result.Metrics.ToolsUsed)

	// 图信号齐备的块（关键词 + 相关边 + 概念命中）排第一
	top := result.Results[0]
	assert.Equal(t, "reg_chunk_0", top.DocID)
	assert.Equal(t, types.SourceKnowledgeGraph, top.Source)
	assert.LessOrEqual(t, top.Similarity, 1.0)
}

func TestKnowledgeGraphStrategy_EmptyOnEmbedderFailure(t *testing.T) {
	st, _ := seedStore(t)
	s := NewKnowledgeGraphStrategy(st, &failingEmbedder{}, nil, DefaultOptions(), nil)

	result := s.Retrieve(context.Background(), "capital", 3)
	assert.Empty(t, result.Results)
	assert.Equal(t, StrategyKnowledgeGraph, result.Metrics.Strategy)
}

func TestAssembleContext_BudgetNeverSplitsDocument(t *testing.T) {
	results := []types.SearchResult{
		{DocID: "a", Content: strings.Repeat("alpha ", 50), Relevance: 0.9, Source: types.SourceVector},
		{DocID: "b", Content: strings.Repeat("beta ", 50), Relevance: 0.8, Source: types.SourceVector},
		{DocID: "c", Content: strings.Repeat("gamma ", 50), Relevance: 0.7, Source: types.SourceVector},
	}

	full := AssembleContext(results, 10000, nil)
	assert.Contains(t, full, "[Document: a")
	assert.Contains(t, full, "[Document: c")

	// 预算只够第一个文档：第二个整体放弃，不截一半
	small := AssembleContext(results, 100, nil)
	assert.Contains(t, small, "[Document: a")
	assert.NotContains(t, small, "[Document: b")
	assert.LessOrEqual(t, len(small)/4, 100)

	// 预算为零时不产出上下文
	assert.Empty(t, AssembleContext(results, 0, nil))
}

func TestAssembleContext_SortsByRelevance(t *testing.T) {
	results := []types.SearchResult{
		{DocID: "low", Content: "low relevance", Relevance: 0.2, Source: types.SourceKeyword},
		{DocID: "high", Content: "high relevance", Relevance: 0.9, Source: types.SourceVector},
	}
	out := AssembleContext(results, 1000, nil)
	assert.Less(t, strings.Index(out, "[Document: high"), strings.Index(out, "[Document: low"))
}

func TestFactory_CreatesAllBuiltins(t *testing.T) {
	st, emb := seedStore(t)
	f := NewFactory(st, emb, nil, DefaultOptions(), nil)

	for _, name := range []string{StrategyVector, StrategyKeyword, StrategyHybrid, StrategyKnowledgeGraph} {
		s, err := f.Create(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
}

func TestFactory_UnknownNameListsValidStrategies(t *testing.T) {
	st, emb := seedStore(t)
	f := NewFactory(st, emb, nil, DefaultOptions(), nil)

	_, err := f.Create("nonexistent")
	require.Error(t, err)

	var notFound *StrategyNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"vector", "keyword", "hybrid", "knowledge_graph"}, notFound.Valid)
	assert.Contains(t, err.Error(), "nonexistent")
	assert.Contains(t, err.Error(), "[vector keyword hybrid knowledge_graph]")
}

type stubStrategy struct{ name string }

func (s *stubStrategy) Name() string { return s.name }
func (s *stubStrategy) Retrieve(ctx context.Context, query string, limit int) types.RetrievalResult {
	return types.EmptyRetrievalResult(s.name)
}

func TestFactory_RuntimeRegistration(t *testing.T) {
	st, emb := seedStore(t)
	f := NewFactory(st, emb, nil, DefaultOptions(), nil)

	f.Register(&stubStrategy{name: "semantic"})
	s, err := f.Create("semantic")
	require.NoError(t, err)
	assert.Equal(t, "semantic", s.Name())
	assert.Equal(t, []string{"vector", "keyword", "hybrid", "knowledge_graph", "semantic"}, f.Names())
}
