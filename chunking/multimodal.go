package chunking

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/types"
)

// 图像/图表引用模式。
var (
	markdownImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	htmlImageRe     = regexp.MustCompile(`(?i)<img[^>]*src=["']([^"']+)["'][^>]*>`)
	base64ImageRe   = regexp.MustCompile(`data:image/[a-z]+;base64,[A-Za-z0-9+/=]{16,}`)
	figureRefRe     = regexp.MustCompile(`(?i)\b(figure|fig\.|diagram|chart|table)\s+(\d+(?:\.\d+)?)`)
)

// relatedTextWindow 图像引用两侧收集的字符数。
const relatedTextWindow = 150

// MultiModalChunker 提取图像/图表引用及其周边文本。
// 它是纯粹的富化侧通道：不产出普通文本块。
type MultiModalChunker struct {
	logger *zap.Logger
}

// NewMultiModalChunker 创建多模态提取器。
func NewMultiModalChunker(logger *zap.Logger) *MultiModalChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiModalChunker{logger: logger.With(zap.String("component", "multimodal_chunker"))}
}

func (c *MultiModalChunker) Name() string { return StrategyMultiModal }

func (c *MultiModalChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	text := doc.FullText()

	type imageRef struct {
		kind    string
		content string
		start   int
		end     int
	}

	var refs []imageRef
	for _, m := range markdownImageRe.FindAllStringSubmatchIndex(text, -1) {
		refs = append(refs, imageRef{kind: "markdown", content: text[m[0]:m[1]], start: m[0], end: m[1]})
	}
	for _, m := range htmlImageRe.FindAllStringIndex(text, -1) {
		refs = append(refs, imageRef{kind: "html", content: text[m[0]:m[1]], start: m[0], end: m[1]})
	}
	for _, m := range base64ImageRe.FindAllStringIndex(text, -1) {
		refs = append(refs, imageRef{kind: "base64", content: truncate(text[m[0]:m[1]], 64), start: m[0], end: m[1]})
	}
	for _, m := range figureRefRe.FindAllStringIndex(text, -1) {
		refs = append(refs, imageRef{kind: "figure_ref", content: text[m[0]:m[1]], start: m[0], end: m[1]})
	}

	chunks := make([]types.Chunk, 0, len(refs))
	for i, ref := range refs {
		chunk := newChunk(ImageChunkID(doc.ID, i), ref.content, types.ChunkTypeImage, StrategyMultiModal)
		chunk.SetMeta("image_kind", ref.kind)
		chunk.SetMeta("related_text", surroundingText(text, ref.start, ref.end, relatedTextWindow))
		chunks = append(chunks, chunk)
	}

	c.logger.Debug("multimodal extraction completed",
		zap.String("doc_id", doc.ID),
		zap.Int("images", len(chunks)))
	return chunks, nil
}

// surroundingText 取引用两侧的文本窗口作为关联文本。
func surroundingText(text string, start, end, window int) string {
	lo := start - window
	if lo < 0 {
		lo = 0
	}
	hi := end + window
	if hi > len(text) {
		hi = len(text)
	}
	before := strings.TrimSpace(text[lo:start])
	after := strings.TrimSpace(text[end:hi])
	switch {
	case before == "":
		return after
	case after == "":
		return before
	}
	return before + " ... " + after
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
