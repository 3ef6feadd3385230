package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/types"
)

func graphChunks() []types.Chunk {
	return []types.Chunk{
		{
			ID:       "doc_chunk_0",
			Content:  "capital buffer requirement",
			Type:     types.ChunkTypeBody,
			Keywords: []string{"capital", "buffer"},
		},
		{
			ID:       "doc_chunk_1",
			Content:  "capital buffer standard",
			Type:     types.ChunkTypeBody,
			Keywords: []string{"capital", "buffer"},
		},
		{
			ID:       "doc_chunk_2",
			Content:  "weather seasonal patterns",
			Type:     types.ChunkTypeBody,
			Keywords: []string{"weather", "seasonal"},
		},
	}
}

func TestBuilder_NodesAndWeights(t *testing.T) {
	st := store.NewMemoryStore(nil)
	b := NewBuilder(st, DefaultOptions(), nil)

	g, err := b.Build(context.Background(), graphChunks())
	require.NoError(t, err)

	// 每块一个节点
	assert.Len(t, g.NodesByType(types.NodeChunk), 3)

	// 关键词权重按最大频次归一化
	capital, ok := g.Node("keyword_capital")
	require.True(t, ok)
	assert.Equal(t, 1.0, capital.Metadata["weight"])
	assert.Equal(t, 2, capital.Metadata["frequency"])

	weather, ok := g.Node("keyword_weather")
	require.True(t, ok)
	assert.Equal(t, 0.5, weather.Metadata["weight"])

	// capital 与 buffer 同属 capital 概念组
	concept, ok := g.Node("concept_capital")
	require.True(t, ok)
	assert.Equal(t, types.NodeConcept, concept.NodeType)
	assert.Equal(t, []string{"buffer", "capital"}, concept.Keywords)

	// weather/seasonal 无概念映射，不发射概念节点
	_, ok = g.Node("concept_weather")
	assert.False(t, ok)
}

func TestBuilder_EdgeWeightIsMeanOfJaccards(t *testing.T) {
	st := store.NewMemoryStore(nil)
	b := NewBuilder(st, DefaultOptions(), nil)

	g, err := b.Build(context.Background(), graphChunks())
	require.NoError(t, err)

	// 关键词 Jaccard 1.0，内容词 Jaccard 0.5 → 权重 0.75
	rels := g.Neighbors("doc_chunk_0", 0, 0)
	require.Len(t, rels, 1)
	assert.Equal(t, "doc_chunk_1", rels[0].TargetID)
	assert.InDelta(t, 0.75, rels[0].Weight, 1e-9)
	assert.Equal(t, types.RelSemanticSimilarity, rels[0].RelType)

	// 无词汇重叠的块对低于下限，不建边
	assert.Empty(t, g.Neighbors("doc_chunk_2", 0, 0))
}

func TestBuilder_SkipsInvalidChunkIDs(t *testing.T) {
	chunks := append(graphChunks(), types.Chunk{
		ID:       "bad-id",
		Content:  "capital buffer requirement",
		Keywords: []string{"capital", "buffer"},
	})

	st := store.NewMemoryStore(nil)
	g, err := NewBuilder(st, DefaultOptions(), nil).Build(context.Background(), chunks)
	require.NoError(t, err)

	// 无效 id 的块不参与建边
	assert.Empty(t, g.Neighbors("bad-id", 0, 0))
	for _, rel := range g.Relationships() {
		assert.NotEqual(t, "bad-id", rel.SourceID)
		assert.NotEqual(t, "bad-id", rel.TargetID)
	}
}

func TestBuilder_MinWeightFiltersEdges(t *testing.T) {
	opts := DefaultOptions()
	opts.MinRelationshipWeight = 0.8

	st := store.NewMemoryStore(nil)
	g, err := NewBuilder(st, opts, nil).Build(context.Background(), graphChunks())
	require.NoError(t, err)

	// 0.75 < 0.8，唯一的候选边被过滤
	assert.Zero(t, g.RelationshipCount())
}

func TestBuilder_FeatureFlagsOff(t *testing.T) {
	opts := DefaultOptions()
	opts.ConceptMapping = false
	opts.RelationshipScoring = false
	opts.CooccurrenceAnalysis = false

	st := store.NewMemoryStore(nil)
	g, err := NewBuilder(st, opts, nil).Build(context.Background(), graphChunks())
	require.NoError(t, err)

	assert.Empty(t, g.NodesByType(types.NodeConcept))
	assert.Zero(t, g.RelationshipCount())

	capital, ok := g.Node("keyword_capital")
	require.True(t, ok)
	assert.Nil(t, capital.Metadata["cooccurs_with"])
}

func TestBuilder_PersistsToStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	_, err := NewBuilder(st, DefaultOptions(), nil).Build(ctx, graphChunks())
	require.NoError(t, err)

	kws, err := st.GetKeywordsForChunk(ctx, "doc_chunk_0")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"capital", "buffer"}, kws)

	rels, err := st.GetRelatedChunks(ctx, "doc_chunk_0", 0.3, 10)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "doc_chunk_1", rels[0].TargetID)
}

func TestBuilder_EmptyInput(t *testing.T) {
	st := store.NewMemoryStore(nil)
	g, err := NewBuilder(st, DefaultOptions(), nil).Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, g.NodeCount())
	assert.Zero(t, g.RelationshipCount())
}

func TestBuilder_Cooccurrence(t *testing.T) {
	st := store.NewMemoryStore(nil)
	g, err := NewBuilder(st, DefaultOptions(), nil).Build(context.Background(), graphChunks())
	require.NoError(t, err)

	capital, ok := g.Node("keyword_capital")
	require.True(t, ok)
	assert.Equal(t, []string{"buffer"}, capital.Metadata["cooccurs_with"])
}

func TestQuery_BoundedAndFiltered(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)

	chunks := graphChunks()
	for _, c := range chunks {
		require.NoError(t, st.UpsertChunk(ctx, c, nil))
	}
	b := NewBuilder(st, DefaultOptions(), nil)
	_, err := b.Build(ctx, chunks)
	require.NoError(t, err)

	result, err := b.Query(ctx, "capital buffer requirements", 10)
	require.NoError(t, err)
	require.NotEmpty(t, result.Keywords)
	require.NotEmpty(t, result.Nodes)

	for _, n := range result.Nodes {
		assert.Equal(t, types.NodeChunk, n.NodeType)
	}
	for _, rel := range result.Relationships {
		assert.GreaterOrEqual(t, rel.Weight, DefaultOptions().MinRelationshipWeight)
	}

	// limit=1 时结果有界
	bounded, err := b.Query(ctx, "capital buffer requirements", 1)
	require.NoError(t, err)
	assert.Len(t, bounded.Nodes, 1)
}

func TestQuery_NoKeywords(t *testing.T) {
	st := store.NewMemoryStore(nil)
	b := NewBuilder(st, DefaultOptions(), nil)

	result, err := b.Query(context.Background(), "a an of", 5)
	require.NoError(t, err)
	assert.Empty(t, result.Nodes)
	assert.Empty(t, result.Relationships)
}
