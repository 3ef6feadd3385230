package chunking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// SemanticVariant 语义分块的四个子算法。
type SemanticVariant string

const (
	// VariantProposition LLM 归并原子命题（需要生成服务）。
	VariantProposition SemanticVariant = StrategySemanticProposition
	// VariantClustering 与句序无关的词重叠聚类。
	VariantClustering SemanticVariant = StrategySemanticClustering
	// VariantDoublePass 先贪心打包，再合并相邻的低相似度边界产生的小组。
	VariantDoublePass SemanticVariant = StrategySemanticDoublePass
	// VariantTokenPack 确定性的 token 预算贪心打包，也是所有
	// LLM 调用失败时的统一回退路径。
	VariantTokenPack SemanticVariant = StrategySemanticTokenPack
)

// SemanticChunker 语义分块器。任何 LLM 调用失败都回退到
// 确定性的 token 预算打包，绝不让请求失败。
type SemanticChunker struct {
	variant SemanticVariant
	tok     tokenizer.Tokenizer
	gen     store.Generator // proposition 变体使用；可为 nil
	logger  *zap.Logger
}

// NewSemanticChunker 创建语义分块器。
func NewSemanticChunker(variant SemanticVariant, tok tokenizer.Tokenizer, gen store.Generator, logger *zap.Logger) *SemanticChunker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tok == nil {
		tok = tokenizer.NewEstimator()
	}
	return &SemanticChunker{
		variant: variant,
		tok:     tok,
		gen:     gen,
		logger:  logger.With(zap.String("component", "semantic_chunker"), zap.String("variant", string(variant))),
	}
}

func (c *SemanticChunker) Name() string { return string(c.variant) }

func (c *SemanticChunker) Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error) {
	opts = opts.withDefaults()
	sentences := SplitSentences(doc.FullText())
	if len(sentences) == 0 {
		return []types.Chunk{}, nil
	}

	var groups []string
	strategy := string(c.variant)

	switch c.variant {
	case VariantProposition:
		var err error
		groups, err = c.propositionGroups(ctx, doc.FullText())
		if err != nil {
			c.logger.Warn("llm proposition grouping failed, falling back to token pack",
				zap.String("doc_id", doc.ID), zap.Error(err))
			groups = packSentences(c.tok, sentences, opts.MaxTokens, 0)
			strategy = string(VariantTokenPack)
		}
	case VariantClustering:
		groups = c.clusterSentences(sentences, opts)
	case VariantDoublePass:
		groups = c.doublePass(sentences, opts)
	default:
		groups = packSentences(c.tok, sentences, opts.MaxTokens, 0)
		strategy = string(VariantTokenPack)
	}

	chunks := make([]types.Chunk, 0, len(groups))
	for i, content := range groups {
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		ch := newChunk(ChunkID(doc.ID, i), content, types.ChunkTypeBody, strategy)
		chunks = append(chunks, ch)
	}

	c.logger.Debug("semantic chunking completed",
		zap.String("doc_id", doc.ID),
		zap.String("strategy", strategy),
		zap.Int("chunks", len(chunks)))
	return chunks, nil
}

// propositionGroups 让 LLM 把文本归并为原子命题组，
// 空行分隔的每一段作为一组。
func (c *SemanticChunker) propositionGroups(ctx context.Context, text string) ([]string, error) {
	if c.gen == nil {
		return nil, types.NewError(types.ErrExternalService, "no generator configured")
	}

	prompt := fmt.Sprintf(`Split the following text into groups of atomic propositions.
Each group must contain closely related statements. Output the groups verbatim,
separated by a blank line. Do not add commentary.

Text:
%s`, text)

	out, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, types.WrapError(types.ErrExternalService, "proposition grouping", err)
	}

	groups := SplitParagraphs(out)
	if len(groups) == 0 {
		return nil, types.NewError(types.ErrExternalService, "generator returned no groups")
	}
	return groups, nil
}

// clusterSentences 与句序无关的词重叠聚类：
// 每句归入词集 Jaccard 最高且仍有预算的簇，否则开新簇。
func (c *SemanticChunker) clusterSentences(sentences []string, opts Options) []string {
	type cluster struct {
		sentences []string
		words     []string
		tokens    int
	}

	var clusters []*cluster
	for _, s := range sentences {
		words := ContentWords(s)
		st := c.tok.CountTokens(s)

		bestIdx := -1
		bestSim := 0.0
		for i, cl := range clusters {
			if cl.tokens+st > opts.MaxTokens {
				continue
			}
			sim := JaccardSimilarity(words, cl.words)
			if sim > bestSim {
				bestSim = sim
				bestIdx = i
			}
		}

		if bestIdx >= 0 && bestSim >= opts.SemanticSimilarity {
			cl := clusters[bestIdx]
			cl.sentences = append(cl.sentences, s)
			cl.words = append(cl.words, words...)
			cl.tokens += st
		} else {
			clusters = append(clusters, &cluster{sentences: []string{s}, words: words, tokens: st})
		}
	}

	out := make([]string, 0, len(clusters))
	for _, cl := range clusters {
		out = append(out, strings.Join(cl.sentences, " "))
	}
	return out
}

// doublePass 第一遍在低相似度边界或预算耗尽处切分；
// 第二遍把因低相似度边界而偏小的相邻组重新并起来，
// 只要合并后仍在预算内。
func (c *SemanticChunker) doublePass(sentences []string, opts Options) []string {
	// 第一遍
	var groups []string
	var current []string
	currentTokens := 0

	for i, s := range sentences {
		st := c.tok.CountTokens(s)
		boundary := false
		if i > 0 {
			sim := JaccardSimilarity(ContentWords(sentences[i-1]), ContentWords(s))
			boundary = sim < opts.SemanticSimilarity
		}

		if len(current) > 0 && (boundary || currentTokens+st > opts.MaxTokens) {
			groups = append(groups, strings.Join(current, " "))
			current = current[:0]
			currentTokens = 0
		}
		current = append(current, s)
		currentTokens += st
	}
	if len(current) > 0 {
		groups = append(groups, strings.Join(current, " "))
	}

	// 第二遍：合并相邻小组
	var merged []string
	for _, g := range groups {
		if len(merged) > 0 {
			prev := merged[len(merged)-1]
			if c.tok.CountTokens(prev)+c.tok.CountTokens(g) <= opts.MaxTokens {
				merged[len(merged)-1] = prev + " " + g
				continue
			}
		}
		merged = append(merged, g)
	}
	return merged
}
