package chunking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/types"
)

// ContextualChunker 段落感知的贪心打包，目标块大小按字符计，
// 块尾文本作为下一块的重叠；随后做上下文扩展——
// 把相邻块的固定大小片段非破坏性地缀到每块的 ContextExtension 字段。
type ContextualChunker struct {
	logger *zap.Logger
}

// NewContextualChunker 创建上下文分块器。
func NewContextualChunker(logger *zap.Logger) *ContextualChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextualChunker{logger: logger.With(zap.String("component", "contextual_chunker"))}
}

func (c *ContextualChunker) Name() string { return StrategyContextual }

func (c *ContextualChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	opts = opts.withDefaults()

	contents := packParagraphs(SplitParagraphs(doc.FullText()), opts.TargetChunkSize, opts.ContextSlice)

	chunks := make([]types.Chunk, 0, len(contents))
	for i, content := range contents {
		chunks = append(chunks, newChunk(ChunkID(doc.ID, i), content, types.ChunkTypeBody, StrategyContextual))
	}

	ApplyContextExtension(chunks, opts.ContextSlice)

	c.logger.Debug("contextual chunking completed",
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// packParagraphs 段落贪心打包到目标字符数；
// 新块以前一块的尾部文本开头。
func packParagraphs(paragraphs []string, targetSize, overlapChars int) []string {
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	current := ""

	flush := func() {
		trimmed := strings.TrimSpace(current)
		if trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		current = ""
		if overlapChars > 0 && len(chunks) > 0 {
			prev := chunks[len(chunks)-1]
			current = tailSlice(prev, overlapChars)
		}
	}

	for _, para := range paragraphs {
		if current != "" && len(current)+len(para) > targetSize {
			flush()
		}
		if current != "" {
			current += "\n\n"
		}
		current += para
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}

// ApplyContextExtension 为每块生成 ContextExtension：
// 前一块尾部片段 + 本块内容 + 后一块头部片段。
// 不改写 Content，扩展单独存放。
func ApplyContextExtension(chunks []types.Chunk, slice int) {
	if slice <= 0 {
		return
	}
	for i := range chunks {
		ext := chunks[i].Content
		if i > 0 {
			if prev := tailSlice(chunks[i-1].Content, slice); prev != "" {
				ext = prev + "\n" + ext
			}
		}
		if i < len(chunks)-1 {
			if next := headSlice(chunks[i+1].Content, slice); next != "" {
				ext = ext + "\n" + next
			}
		}
		if ext != chunks[i].Content {
			chunks[i].ContextExtension = ext
		}
	}
}

// tailSlice 取末尾至多 n 字符，对齐到词边界。
func tailSlice(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := text[len(text)-n:]
	if idx := strings.IndexAny(cut, " \n"); idx >= 0 && idx < len(cut)-1 {
		cut = cut[idx+1:]
	}
	return strings.TrimSpace(cut)
}

// headSlice 取开头至多 n 字符，对齐到词边界。
func headSlice(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := text[:n]
	if idx := strings.LastIndexAny(cut, " \n"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
