package chunking

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/regrag/types"
)

func TestQuestionAnswerChunker_MarkedPairs(t *testing.T) {
	doc := bodyDoc("faq", "Q: What is the minimum capital ratio?\n"+
		"A: Eight percent of risk weighted assets.\n"+
		"Q: How often must licensees report?\n"+
		"A: Quarterly, within twenty days of period end.")

	chunks, err := NewQuestionAnswerChunker(nil).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, types.ChunkTypeQuestion, chunks[0].Type)
	assert.Equal(t, types.ChunkTypeAnswer, chunks[1].Type)
	assert.Equal(t, "What is the minimum capital ratio?", chunks[0].Content)
	assert.Equal(t, "Eight percent of risk weighted assets.", chunks[1].Content)

	// 问答双向互链，权重 0.9
	assert.Equal(t, qaPairWeight, chunks[0].RelationshipWeights[chunks[1].ID])
	assert.Equal(t, qaPairWeight, chunks[1].RelationshipWeights[chunks[0].ID])
	assert.Equal(t, qaPairWeight, chunks[2].RelationshipWeights[chunks[3].ID])
}

func TestQuestionAnswerChunker_MultiLineAnswer(t *testing.T) {
	doc := bodyDoc("faq", "Q: What counts as liquid assets?\n"+
		"A: Cash and central bank reserves.\n"+
		"Certain sovereign bonds also qualify.")

	chunks, err := NewQuestionAnswerChunker(nil).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Cash and central bank reserves. Certain sovereign bonds also qualify.", chunks[1].Content)
}

func TestQuestionAnswerChunker_InterrogativeFallback(t *testing.T) {
	doc := bodyDoc("faq", "What is liquidity coverage? Banks hold liquid assets for stress periods. How is the ratio measured?")

	chunks, err := NewQuestionAnswerChunker(nil).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, types.ChunkTypeQuestion, chunks[0].Type)
	assert.Equal(t, types.ChunkTypeAnswer, chunks[1].Type)
	// 末尾疑问句没有后续文本，只产出问题块
	assert.Equal(t, types.ChunkTypeQuestion, chunks[2].Type)
	assert.Equal(t, "How is the ratio measured?", chunks[2].Content)
}

func TestTopicBasedChunker_TopicsAndSubsections(t *testing.T) {
	doc := bodyDoc("reg", "CAPITAL REQUIREMENTS\n"+
		"Banks must hold adequate capital.\n"+
		"Buffer Requirements\n"+
		"The buffer applies in addition.\n"+
		"LIQUIDITY STANDARDS\n"+
		"Banks must hold liquid assets.")

	chunks, err := NewTopicBasedChunker(nil).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	topic := chunks[0]
	sub := chunks[1]
	assert.Equal(t, types.ChunkTypeTopic, topic.Type)
	assert.Equal(t, types.ChunkTypeSubsection, sub.Type)
	assert.Equal(t, types.ChunkTypeTopic, chunks[2].Type)

	assert.Contains(t, topic.Content, "CAPITAL REQUIREMENTS")
	assert.Contains(t, sub.Content, "Buffer Requirements")
	assert.Equal(t, topic.ID, sub.MetaString("topic_id"))

	// 小节与主题以 0.7 权重互链
	assert.Equal(t, topicSubsectionWeight, sub.RelationshipWeights[topic.ID])
	assert.Equal(t, topicSubsectionWeight, topic.RelationshipWeights[sub.ID])
	// 主题之间不建边
	assert.NotContains(t, topic.RelationshipWeights, chunks[2].ID)
}

func TestTopicBasedChunker_PreambleUsesDocumentTitle(t *testing.T) {
	doc := types.DocumentInfo{
		ID:          "reg",
		Title:       "Banking Ordinance",
		PageContent: []string{"Plain body text without any heading lines."},
	}

	chunks, err := NewTopicBasedChunker(nil).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Banking Ordinance")
	assert.Contains(t, chunks[0].Content, "Plain body text")
}

func TestIsSubheading(t *testing.T) {
	assert.False(t, isSubheading("CAPITAL REQUIREMENTS"))
	assert.False(t, isSubheading("Chapter 3"))
	assert.False(t, isSubheading("6 Capital Requirements"))
	assert.True(t, isSubheading("6.1 Capital Buffers"))
	assert.True(t, isSubheading("Buffer Requirements"))
}

func TestContextualChunker_PacksAndExtends(t *testing.T) {
	p1 := "Alpha paragraph about capital requirements for banks."
	p2 := "Beta paragraph about liquidity coverage under stress."
	p3 := "Gamma paragraph about reporting duties to the authority."
	doc := bodyDoc("ctx", p1+"\n\n"+p2+"\n\n"+p3)

	opts := DefaultOptions()
	opts.TargetChunkSize = 80
	opts.ContextSlice = 40

	chunks, err := NewContextualChunker(nil).Chunk(context.Background(), doc, opts)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, p1, chunks[0].Content)
	assert.Contains(t, chunks[1].Content, p2)
	assert.Contains(t, chunks[2].Content, p3)
	// 新块以前块尾部文本开头
	assert.Contains(t, chunks[1].Content, "banks.")

	// 每块都有非破坏性的上下文扩展
	for i, c := range chunks {
		assert.NotEmpty(t, c.ContextExtension, "chunk %d", i)
		assert.Contains(t, c.ContextExtension, c.Content)
	}
}

func TestApplyContextExtension(t *testing.T) {
	chunks := []types.Chunk{
		{ID: "d_chunk_0", Content: "first block text"},
		{ID: "d_chunk_1", Content: "middle block text"},
		{ID: "d_chunk_2", Content: "last block text"},
	}
	ApplyContextExtension(chunks, 100)

	assert.Equal(t, "first block text\nmiddle block text", chunks[0].ContextExtension)
	assert.Equal(t, "first block text\nmiddle block text\nlast block text", chunks[1].ContextExtension)
	assert.Equal(t, "middle block text\nlast block text", chunks[2].ContextExtension)

	// Content 本身不被改写
	assert.Equal(t, "middle block text", chunks[1].Content)
}

func TestTailAndHeadSlice(t *testing.T) {
	assert.Equal(t, "fox", tailSlice("the quick brown fox", 9))
	assert.Equal(t, "the", headSlice("the quick brown fox", 9))
	assert.Equal(t, "short", tailSlice("short", 10))
	assert.Equal(t, "short", headSlice("short", 10))
}

func TestMultiModalChunker_ExtractsImageReferences(t *testing.T) {
	doc := bodyDoc("reg", "Intro text before the figure.\n"+
		"![Capital structure](img/capital.png)\n"+
		"As shown in Figure 3.1 the buffer sits above the minimum.")

	chunks, err := NewMultiModalChunker(nil).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	md := chunks[0]
	assert.Equal(t, types.ChunkTypeImage, md.Type)
	assert.Equal(t, "reg_image_0", md.ID)
	assert.Equal(t, "markdown", md.MetaString("image_kind"))
	assert.Equal(t, "![Capital structure](img/capital.png)", md.Content)
	assert.Contains(t, md.MetaString("related_text"), "Intro text")

	fig := chunks[1]
	assert.Equal(t, "figure_ref", fig.MetaString("image_kind"))
	assert.Equal(t, "Figure 3.1", fig.Content)
}

func TestMultiModalChunker_NoImages(t *testing.T) {
	doc := bodyDoc("reg", "Plain prose without any image references at all.")
	chunks, err := NewMultiModalChunker(nil).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSelector_DecisionTree(t *testing.T) {
	structured := "1. Introduction\nGeneral provisions apply.\n2. Scope\nThe rules apply to banks."
	regulatory := "The regulation requires compliance with capital and liquidity requirements pursuant to the directive."
	listy := "- capital requirement\n- liquidity requirement\n- exposure disclosure\n- compliance provision"
	formulas := "The capital ratio shall be 8%. The liquidity buffer shall add 2.5%. " +
		"The exposure leverage shall equal 3%. Compliance with the requirement is statutory."
	plainReg := "The supervisory authority issues guidelines on prudential disclosure. " +
		"Licensees shall maintain compliance with each provision of the ordinance."

	tests := []struct {
		name string
		text string
		caps Capabilities
		want string
	}{
		{"no signal", "Just a short note.", Capabilities{}, StrategyStandard},
		{"structure", structured, Capabilities{}, StrategyHierarchical},
		{"llm available", regulatory, Capabilities{LLMAvailable: true}, StrategySemanticProposition},
		{"order independent", listy, Capabilities{}, StrategySemanticClustering},
		{"non adjacent signals", formulas, Capabilities{}, StrategySemanticDoublePass},
		{"default pack", plainReg, Capabilities{}, StrategySemanticTokenPack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := NewSelector(tt.caps, nil)
			assert.Equal(t, tt.want, sel.Select(bodyDoc("d", tt.text)))
		})
	}
}

func TestMergeSimilarChunks(t *testing.T) {
	a := newChunk("m_chunk_0", "Capital buffers protect banks from unexpected losses.", types.ChunkTypeBody, StrategyContextual)
	b := newChunk("m_chunk_1", "Capital buffers protect banks from unexpected losses.", types.ChunkTypeBody, StrategyContextual)
	c := newChunk("m_chunk_2", "Quarterly reporting deadlines depend on the filing calendar.", types.ChunkTypeBody, StrategyContextual)

	out := mergeSimilarChunks([]types.Chunk{a, b, c}, DefaultOptions())
	require.Len(t, out, 2)

	merged := out[0]
	assert.Equal(t, "m_chunk_0", merged.ID)
	assert.Equal(t, true, merged.Metadata["merged"])
	assert.Contains(t, merged.Content, "Capital buffers protect banks")
	// 不相似的块原样保留
	assert.Equal(t, "m_chunk_2", out[1].ID)
	assert.Nil(t, out[1].Metadata["merged"])
}

func TestSmartChunker_Pipeline(t *testing.T) {
	doc := bodyDoc("doc1", "CAPITAL ADEQUACY\n"+
		"Banks maintain capital above the minimum requirement.\n\n"+
		"LIQUIDITY COVERAGE\n"+
		"Licensees hold liquid assets during stress periods.\n\n"+
		"![Buffer chart](img/buffer.png)")

	chunks, err := NewSmartChunker(&mockTokenizer{}, zap.NewNop()).Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	// 专用块与兜底块各用独立的 id 命名空间
	var sawTopic, sawCtx bool
	for _, c := range chunks {
		switch {
		case strings.HasPrefix(c.ID, "doc1_topic_chunk_"):
			sawTopic = true
		case strings.HasPrefix(c.ID, "doc1_ctx_chunk_"):
			sawCtx = true
		}
	}
	assert.True(t, sawTopic)
	assert.True(t, sawCtx)

	// 图像块追加在末尾，id 用原始文档命名空间
	last := chunks[len(chunks)-1]
	assert.Equal(t, types.ChunkTypeImage, last.Type)
	assert.Equal(t, "doc1_image_0", last.ID)

	// 文本块均带关键词与上下文扩展
	for _, c := range chunks {
		if c.Type == types.ChunkTypeImage {
			continue
		}
		assert.NotEmpty(t, c.Keywords, "chunk %s", c.ID)
		assert.NotEmpty(t, c.ContextExtension, "chunk %s", c.ID)
	}

	// 相邻文本块以固定权重互链
	assert.Equal(t, DefaultOptions().AdjacentWeight, chunks[0].RelationshipWeights[chunks[1].ID])
	assert.Equal(t, DefaultOptions().AdjacentWeight, chunks[1].RelationshipWeights[chunks[0].ID])

	// 含 capital 关键词的块归入 capital 概念组
	concepts, ok := chunks[0].Metadata["concepts"].([]string)
	require.True(t, ok)
	assert.Contains(t, concepts, "capital")
}

func TestSmartChunker_Deterministic(t *testing.T) {
	doc := bodyDoc("doc1", "CAPITAL ADEQUACY\n"+
		"Banks maintain capital above the minimum requirement.\n\n"+
		"LIQUIDITY COVERAGE\n"+
		"Licensees hold liquid assets during stress periods.")

	sc := NewSmartChunker(&mockTokenizer{}, nil)
	first, err := sc.Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	second, err := sc.Chunk(context.Background(), doc, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRegistry_AllStrategiesRegistered(t *testing.T) {
	r := NewRegistry(&mockTokenizer{}, nil, nil)

	for _, name := range []string{
		StrategyStandard, StrategyHierarchical,
		StrategySemanticProposition, StrategySemanticClustering,
		StrategySemanticDoublePass, StrategySemanticTokenPack,
		StrategyQuestionAnswer, StrategyTopicBased,
		StrategyContextual, StrategyMultiModal, StrategySmart,
	} {
		c, ok := r.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := r.Get("nonexistent")
	assert.False(t, ok)
}
