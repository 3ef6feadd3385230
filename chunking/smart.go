package chunking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// SmartChunker 聚合管线：内容形态检测 → 专用分块器 +
// Contextual 兜底 → 关键词 Jaccard 合并 → MultiModal 图像提取 →
// 关键词提取 → 上下文扩展 → 关系映射 → 概念归组。
type SmartChunker struct {
	qa         Chunker
	topic      Chunker
	contextual Chunker
	multimodal Chunker
	logger     *zap.Logger
}

// NewSmartChunker 创建聚合分块器。
func NewSmartChunker(tok tokenizer.Tokenizer, logger *zap.Logger) *SmartChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmartChunker{
		qa:         NewQuestionAnswerChunker(logger),
		topic:      NewTopicBasedChunker(logger),
		contextual: NewContextualChunker(logger),
		multimodal: NewMultiModalChunker(logger),
		logger:     logger.With(zap.String("component", "smart_chunker")),
	}
}

func (c *SmartChunker) Name() string { return StrategySmart }

func (c *SmartChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	opts = opts.withDefaults()
	text := doc.FullText()

	// 1. 形态检测 → 专用分块器；Contextual 永远兜底。
	// 专用块与兜底块各用独立的 id 命名空间，避免序号冲突。
	var chunks []types.Chunk
	shape := "contextual"
	switch {
	case HasQAMarkers(text):
		shape = "question_answer"
		qaChunks, err := c.qa.Chunk(ctx, withIDSuffix(doc, "qa"), opts)
		if err != nil {
			return nil, fmt.Errorf("qa chunking: %w", err)
		}
		chunks = append(chunks, qaChunks...)
	case HasHeadingPatterns(text):
		shape = "topic_based"
		topicChunks, err := c.topic.Chunk(ctx, withIDSuffix(doc, "topic"), opts)
		if err != nil {
			return nil, fmt.Errorf("topic chunking: %w", err)
		}
		chunks = append(chunks, topicChunks...)
	}

	ctxChunks, err := c.contextual.Chunk(ctx, withIDSuffix(doc, "ctx"), opts)
	if err != nil {
		return nil, fmt.Errorf("contextual chunking: %w", err)
	}
	chunks = append(chunks, ctxChunks...)

	// 2. 关键词 Jaccard > 阈值的块合并
	chunks = mergeSimilarChunks(chunks, opts)

	// 3. 图像块提取并追加
	imageChunks, err := c.multimodal.Chunk(ctx, doc, opts)
	if err != nil {
		return nil, fmt.Errorf("multimodal extraction: %w", err)
	}

	// 4. 每块提取 top-N 关键词
	for i := range chunks {
		chunks[i].Keywords = ExtractKeywords(chunks[i].Content, opts.TopKeywords)
	}

	// 5. 上下文扩展（仅文本块）
	ApplyContextExtension(chunks, opts.ContextSlice)

	// 6. 关系映射
	mapRelationships(chunks, opts)

	// 7. 概念归组
	for i := range chunks {
		if concepts := MapConcepts(chunks[i].Keywords); len(concepts) > 0 {
			chunks[i].SetMeta("concepts", concepts)
		}
	}

	chunks = append(chunks, imageChunks...)

	c.logger.Info("smart chunking completed",
		zap.String("doc_id", doc.ID),
		zap.String("shape", shape),
		zap.Int("chunks", len(chunks)),
		zap.Int("images", len(imageChunks)))
	return chunks, nil
}

// withIDSuffix 派生带命名空间后缀的文档副本。
func withIDSuffix(doc types.DocumentInfo, suffix string) types.DocumentInfo {
	doc.ID = doc.ID + "_" + suffix
	return doc
}

// mergeSimilarChunks 合并关键词集 Jaccard 相似度超过阈值的块：
// 内容拼接、关键词求并、标记 merged。
// 关键词集只预计算一次，合并后增量更新。
func mergeSimilarChunks(chunks []types.Chunk, opts Options) []types.Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	keywordSets := make([][]string, len(chunks))
	for i := range chunks {
		keywordSets[i] = ExtractKeywords(chunks[i].Content, opts.TopKeywords)
	}

	removed := make([]bool, len(chunks))
	for i := 0; i < len(chunks); i++ {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(chunks); j++ {
			if removed[j] {
				continue
			}
			sim := JaccardSimilarity(keywordSets[i], keywordSets[j])
			if sim <= opts.MergeSimilarity {
				continue
			}

			chunks[i].Content = chunks[i].Content + "\n" + chunks[j].Content
			keywordSets[i] = unionStrings(keywordSets[i], keywordSets[j])
			chunks[i].SetMeta("merged", true)
			removed[j] = true
		}
	}

	out := chunks[:0]
	for i := range chunks {
		if !removed[i] {
			out = append(out, chunks[i])
		}
	}
	return out
}

// mapRelationships 建立块间关系：相邻块固定权重，
// 关键词 Jaccard 超阈值的任意配对以相似度为权重。
// 通过 id→下标索引避免按 id 的重复扫描。
func mapRelationships(chunks []types.Chunk, opts Options) {
	textIdx := make([]int, 0, len(chunks))
	for i := range chunks {
		if chunks[i].Type != types.ChunkTypeImage {
			textIdx = append(textIdx, i)
		}
	}

	// 相邻块
	for k := 0; k+1 < len(textIdx); k++ {
		a, b := textIdx[k], textIdx[k+1]
		chunks[a].AddRelation(chunks[b].ID, opts.AdjacentWeight)
		chunks[b].AddRelation(chunks[a].ID, opts.AdjacentWeight)
	}

	// 关键词相似配对
	for x := 0; x < len(textIdx); x++ {
		for y := x + 1; y < len(textIdx); y++ {
			a, b := textIdx[x], textIdx[y]
			sim := JaccardSimilarity(chunks[a].Keywords, chunks[b].Keywords)
			if sim > opts.RelationSimilarity {
				chunks[a].AddRelation(chunks[b].ID, sim)
				chunks[b].AddRelation(chunks[a].ID, sim)
			}
		}
	}
}

// unionStrings 求并保序去重。
func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Registry 按名返回分块器，供摄取侧与编排器分发。
type Registry struct {
	chunkers map[string]Chunker
}

// NewRegistry 注册全部内建策略。
func NewRegistry(tok tokenizer.Tokenizer, gen store.Generator, logger *zap.Logger) *Registry {
	r := &Registry{chunkers: make(map[string]Chunker)}

	r.Register(NewStandardChunker(tok, logger))
	r.Register(NewHierarchicalChunker(tok, logger))
	r.Register(NewSemanticChunker(VariantProposition, tok, gen, logger))
	r.Register(NewSemanticChunker(VariantClustering, tok, nil, logger))
	r.Register(NewSemanticChunker(VariantDoublePass, tok, nil, logger))
	r.Register(NewSemanticChunker(VariantTokenPack, tok, nil, logger))
	r.Register(NewQuestionAnswerChunker(logger))
	r.Register(NewTopicBasedChunker(logger))
	r.Register(NewContextualChunker(logger))
	r.Register(NewMultiModalChunker(logger))
	r.Register(NewSmartChunker(tok, logger))
	return r
}

// Register 注册策略；同名覆盖。
func (r *Registry) Register(c Chunker) {
	r.chunkers[c.Name()] = c
}

// Get 按名取策略。
func (r *Registry) Get(name string) (Chunker, bool) {
	c, ok := r.chunkers[name]
	return c, ok
}
