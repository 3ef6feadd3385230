package chunking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// siblingWeight 同父章节之间的边权重。
const siblingWeight = 0.6

// HierarchicalChunker 解析编号/章节结构：
// 每节产出一个父块（整节文本）与若干子块（按 token 预算打包），
// 父子显式互链；共享同一结构父编号的章节互为兄弟
// （"6.1.1" 与 "6.1.2" 的父编号都是 "6.1"）。
type HierarchicalChunker struct {
	tok    tokenizer.Tokenizer
	logger *zap.Logger
}

// NewHierarchicalChunker 创建层级分块器。
func NewHierarchicalChunker(tok tokenizer.Tokenizer, logger *zap.Logger) *HierarchicalChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tok == nil {
		tok = tokenizer.NewEstimator()
	}
	return &HierarchicalChunker{tok: tok, logger: logger.With(zap.String("component", "hierarchical_chunker"))}
}

func (c *HierarchicalChunker) Name() string { return StrategyHierarchical }

// section 解析出的一节。
type section struct {
	Number string
	Title  string
	Body   []string
}

func (c *HierarchicalChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	opts = opts.withDefaults()

	sections := parseSections(doc.FullText())
	if len(sections) == 0 {
		// 无结构时退回基础策略
		return NewStandardChunker(c.tok, c.logger).Chunk(ctx, doc, opts)
	}

	var chunks []types.Chunk
	seq := 0
	parentBySection := make(map[string]string, len(sections)) // 章节编号 -> 父块 id

	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.Body, "\n"))
		full := sec.Number + " " + sec.Title
		if body != "" {
			full += "\n" + body
		}

		parent := newChunk(ChunkID(doc.ID, seq), full, types.ChunkTypeBody, StrategyHierarchical)
		parent.SetMeta("section_number", sec.Number)
		parent.SetMeta("section_title", sec.Title)
		parent.SetMeta("is_parent", true)
		parentIdx := len(chunks)
		parentID := parent.ID
		parentBySection[sec.Number] = parentID
		chunks = append(chunks, parent)
		seq++

		// 子块：整节文本按预算打包
		var childIDs []string
		for _, content := range packSentences(c.tok, SplitSentences(body), opts.MaxTokens, opts.OverlapPercent) {
			child := newChunk(ChunkID(doc.ID, seq), content, types.ChunkTypeBody, StrategyHierarchical)
			child.SetMeta("section_number", sec.Number)
			child.SetMeta("parent_id", parentID)
			child.AddRelation(parentID, 1.0)
			childIDs = append(childIDs, child.ID)
			chunks = append(chunks, child)
			seq++
		}

		if len(childIDs) > 0 {
			chunks[parentIdx].SetMeta("child_ids", childIDs)
			for _, id := range childIDs {
				chunks[parentIdx].AddRelation(id, 1.0)
			}
		}
	}

	// 兄弟互链
	bySharedParent := make(map[string][]string)
	for _, sec := range sections {
		if p := ParentSectionNumber(sec.Number); p != "" {
			bySharedParent[p] = append(bySharedParent[p], sec.Number)
		}
	}
	idx := make(map[string]int, len(chunks))
	for i, ch := range chunks {
		idx[ch.ID] = i
	}
	for _, siblings := range bySharedParent {
		for i := 0; i < len(siblings); i++ {
			for j := i + 1; j < len(siblings); j++ {
				a := parentBySection[siblings[i]]
				b := parentBySection[siblings[j]]
				chunks[idx[a]].AddRelation(b, siblingWeight)
				chunks[idx[b]].AddRelation(a, siblingWeight)
			}
		}
	}

	c.logger.Debug("hierarchical chunking completed",
		zap.String("doc_id", doc.ID),
		zap.Int("sections", len(sections)),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// parseSections 把文本按编号章节行切成节；
// 首个章节行之前的文本并入第一节之前的 preamble（丢给第一节之前则忽略结构）。
func parseSections(text string) []section {
	var sections []section
	var current *section

	for _, line := range strings.Split(text, "\n") {
		if number, title, ok := ParseSectionNumber(line); ok {
			if current != nil {
				sections = append(sections, *current)
			}
			current = &section{Number: number, Title: title}
			continue
		}
		if current != nil {
			current.Body = append(current.Body, line)
		}
	}
	if current != nil {
		sections = append(sections, *current)
	}
	return sections
}
