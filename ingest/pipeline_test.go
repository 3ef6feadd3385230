package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/regrag/chunking"
	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/types"
)

// rejectingStore 对指定文档 id 的写入报错，其余委托内存存储。
type rejectingStore struct {
	store.Store
	rejectDocID string
}

func (s *rejectingStore) UpsertDocument(ctx context.Context, doc types.DocumentInfo) error {
	if doc.ID == s.rejectDocID {
		return errors.New("storage quota exceeded")
	}
	return s.Store.UpsertDocument(ctx, doc)
}

func regulatoryDoc(id, title string) types.DocumentInfo {
	return types.DocumentInfo{
		ID:    id,
		Title: title,
		PageContent: []string{
			"CAPITAL REQUIREMENTS\n" +
				"Licensed banks maintain a capital adequacy ratio above the statutory minimum. " +
				"Tier one capital absorbs losses while the institution remains a going concern.\n" +
				"LIQUIDITY STANDARDS\n" +
				"Liquidity coverage applies to every licensee and is reported monthly. " +
				"Funding profiles are reviewed by the supervisory authority each quarter.",
		},
	}
}

func TestPipeline_IngestsBatch(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	p := NewPipeline(st, store.NewHashEmbedder(64), nil, Options{}, nil)

	docs := []types.DocumentInfo{
		regulatoryDoc("doc1", "Capital Rules"),
		regulatoryDoc("doc2", "Liquidity Rules"),
	}
	report, err := p.Ingest(ctx, docs)
	require.NoError(t, err)

	require.Len(t, report.Documents, 2)
	assert.Equal(t, 2, report.Succeeded())
	assert.Zero(t, report.Failed())
	for i, rep := range report.Documents {
		assert.Equal(t, docs[i].ID, rep.DocID)
		assert.NoError(t, rep.Err)
		assert.Greater(t, rep.Chunks, 0)
		assert.Greater(t, rep.Nodes, 0)
	}

	for _, id := range []string{"doc1", "doc2"} {
		exists, err := st.DocumentExists(ctx, id)
		require.NoError(t, err)
		assert.True(t, exists, id)
	}

	// 分块已可检索。
	hits, err := st.FullTextSearch(ctx, "capital adequacy ratio", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestPipeline_FailureDoesNotAbortSiblings(t *testing.T) {
	ctx := context.Background()
	st := &rejectingStore{Store: store.NewMemoryStore(nil), rejectDocID: "doc1"}
	p := NewPipeline(st, store.NewHashEmbedder(64), nil, Options{BatchSize: 2}, nil)

	report, err := p.Ingest(ctx, []types.DocumentInfo{
		regulatoryDoc("doc1", "Doomed"),
		regulatoryDoc("doc2", "Fine"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded())
	assert.Equal(t, 1, report.Failed())

	require.Error(t, report.Documents[0].Err)
	assert.Contains(t, report.Documents[0].Err.Error(), "doc1")
	assert.NoError(t, report.Documents[1].Err)

	exists, err := st.DocumentExists(ctx, "doc2")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(store.NewMemoryStore(nil), store.NewHashEmbedder(64), nil, Options{}, nil)
	report, err := p.Ingest(ctx, []types.DocumentInfo{regulatoryDoc("doc1", "X")})
	require.Error(t, err)
	assert.Equal(t, 1, report.Failed())
}

func TestPipeline_SelectorPicksStrategyPerDocument(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	p := NewPipeline(st, store.NewHashEmbedder(64), nil, Options{}, nil)

	// 编号章节触发层级分块
	doc := types.DocumentInfo{
		ID:    "doc1",
		Title: "Capital Rules",
		PageContent: []string{
			"1. Capital Requirements\n" +
				"Licensed banks maintain a capital adequacy ratio above the statutory minimum.\n" +
				"2. Liquidity Standards\n" +
				"Liquidity coverage applies to every licensee pursuant to the directive.",
		},
	}
	report, err := p.Ingest(ctx, []types.DocumentInfo{doc})
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	hits, err := st.FullTextSearch(ctx, "capital adequacy ratio", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, chunking.StrategyHierarchical, hits[0].Metadata["strategy"])
}

func TestPipeline_ForcedStrategyOverridesSelector(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore(nil)
	p := NewPipeline(st, store.NewHashEmbedder(64), nil, Options{
		Strategy: chunking.StrategyStandard,
		Chunking: chunking.Options{MaxTokens: 60, OverlapPercent: 5},
	}, nil)

	report, err := p.Ingest(ctx, []types.DocumentInfo{regulatoryDoc("doc1", "Capital Rules")})
	require.NoError(t, err)
	require.Equal(t, 1, report.Succeeded())

	hits, err := st.FullTextSearch(ctx, "capital adequacy ratio", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for _, h := range hits {
		assert.Equal(t, chunking.StrategyStandard, h.Metadata["strategy"])
	}
}

func TestPipeline_UnknownStrategyFallsBackToSmart(t *testing.T) {
	p := NewPipeline(store.NewMemoryStore(nil), store.NewHashEmbedder(64), nil,
		Options{Strategy: "nonexistent"}, nil)

	report, err := p.Ingest(context.Background(), []types.DocumentInfo{regulatoryDoc("doc1", "X")})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded())
	assert.Greater(t, report.Documents[0].Chunks, 0)
}

func TestPipeline_EmptyBatch(t *testing.T) {
	p := NewPipeline(store.NewMemoryStore(nil), store.NewHashEmbedder(64), nil, Options{}, nil)
	report, err := p.Ingest(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Documents)
	assert.Zero(t, report.Failed())
}
