package chunking

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// StandardChunker 基础策略：切句后按 token 预算贪心打包，
// 新块开头携带前块尾部词的重叠，保持边界两侧的局部上下文。
type StandardChunker struct {
	tok    tokenizer.Tokenizer
	logger *zap.Logger
}

// NewStandardChunker 创建基础分块器。
func NewStandardChunker(tok tokenizer.Tokenizer, logger *zap.Logger) *StandardChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tok == nil {
		tok = tokenizer.NewEstimator()
	}
	return &StandardChunker{tok: tok, logger: logger.With(zap.String("component", "standard_chunker"))}
}

func (c *StandardChunker) Name() string { return StrategyStandard }

// Chunk 切分文档。
func (c *StandardChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	opts = opts.withDefaults()
	contents := packSentences(c.tok, SplitSentences(doc.FullText()), opts.MaxTokens, opts.OverlapPercent)

	chunks := make([]types.Chunk, 0, len(contents))
	for i, content := range contents {
		chunks = append(chunks, newChunk(ChunkID(doc.ID, i), content, types.ChunkTypeBody, StrategyStandard))
	}

	c.logger.Debug("standard chunking completed",
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("max_tokens", opts.MaxTokens))
	return chunks, nil
}

// packSentences 贪心打包句子到 token 预算；overlapPercent > 0 时
// 每个新块以前块尾部约 budget×percent 个 token 的词开头。
func packSentences(tok tokenizer.Tokenizer, sentences []string, maxTokens int, overlapPercent float64) []string {
	if len(sentences) == 0 {
		return nil
	}

	overlapBudget := int(float64(maxTokens) * overlapPercent / 100.0)

	var chunks []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(current, " "))
		if content != "" {
			chunks = append(chunks, content)
		}

		current = current[:0]
		currentTokens = 0
		if overlapBudget > 0 && len(chunks) > 0 {
			tail := trailingWords(tok, chunks[len(chunks)-1], overlapBudget)
			if tail != "" {
				current = append(current, tail)
				currentTokens = tok.CountTokens(tail)
			}
		}
	}

	for _, sentence := range sentences {
		st := tok.CountTokens(sentence)
		if currentTokens+st > maxTokens && currentTokens > 0 {
			flush()
		}
		current = append(current, sentence)
		currentTokens += st
	}

	if len(current) > 0 {
		content := strings.TrimSpace(strings.Join(current, " "))
		if content != "" {
			chunks = append(chunks, content)
		}
	}
	return chunks
}

// trailingWords 从文本末尾取词，直到 token 预算用完。
func trailingWords(tok tokenizer.Tokenizer, text string, budget int) string {
	words := strings.Fields(text)
	if len(words) == 0 || budget <= 0 {
		return ""
	}

	start := len(words)
	taken := 0
	for start > 0 {
		candidate := words[start-1]
		wt := tok.CountTokens(candidate)
		if wt == 0 {
			wt = 1
		}
		if taken+wt > budget {
			break
		}
		taken += wt
		start--
	}

	if start == len(words) {
		return ""
	}
	return strings.Join(words[start:], " ")
}
