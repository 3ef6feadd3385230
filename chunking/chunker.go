package chunking

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/regrag/types"
)

// 策略名常量。Selector 与 SmartChunker 按名分发。
const (
	StrategyStandard            = "standard"
	StrategyHierarchical        = "hierarchical"
	StrategySemanticProposition = "semantic_proposition"
	StrategySemanticClustering  = "semantic_clustering"
	StrategySemanticDoublePass  = "semantic_double_pass"
	StrategySemanticTokenPack   = "semantic_token_pack"
	StrategyQuestionAnswer      = "question_answer"
	StrategyTopicBased          = "topic_based"
	StrategyContextual          = "contextual"
	StrategyMultiModal          = "multimodal"
	StrategySmart               = "smart"
)

// Chunker 分块策略接口。
type Chunker interface {
	// Name 返回策略名。
	Name() string

	// Chunk 把文档切分为可检索单元。
	// 同一文档、同一选项的两次调用必须产出字节一致的分块。
	Chunk(ctx context.Context, doc types.DocumentInfo, opts Options) ([]types.Chunk, error)
}

// Options 分块选项。
type Options struct {
	// MaxTokens 单块 token 预算
	MaxTokens int `json:"max_tokens"`

	// OverlapPercent 新块开头携带前块尾部词的比例（占预算的百分比）
	OverlapPercent float64 `json:"overlap_percent"`

	// TargetChunkSize Contextual 打包的目标字符数
	TargetChunkSize int `json:"target_chunk_size"`

	// ContextSlice 上下文扩展时取相邻块的字符数
	ContextSlice int `json:"context_slice"`

	// TopKeywords 每块提取的关键词数
	TopKeywords int `json:"top_keywords"`

	// MergeSimilarity SmartChunker 合并阈值（关键词 Jaccard）
	MergeSimilarity float64 `json:"merge_similarity"`

	// RelationSimilarity 关系映射阈值（关键词 Jaccard）
	RelationSimilarity float64 `json:"relation_similarity"`

	// AdjacentWeight 相邻块的关系权重
	AdjacentWeight float64 `json:"adjacent_weight"`

	// SemanticSimilarity 语义分块的边界相似度阈值
	SemanticSimilarity float64 `json:"semantic_similarity"`
}

// DefaultOptions 默认分块选项。
func DefaultOptions() Options {
	return Options{
		MaxTokens:          300,
		OverlapPercent:     10,
		TargetChunkSize:    1000,
		ContextSlice:       200,
		TopKeywords:        8,
		MergeSimilarity:    0.7,
		RelationSimilarity: 0.3,
		AdjacentWeight:     0.8,
		SemanticSimilarity: 0.3,
	}
}

// withDefaults 填补零值选项。
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	if o.OverlapPercent <= 0 {
		o.OverlapPercent = d.OverlapPercent
	}
	if o.TargetChunkSize <= 0 {
		o.TargetChunkSize = d.TargetChunkSize
	}
	if o.ContextSlice <= 0 {
		o.ContextSlice = d.ContextSlice
	}
	if o.TopKeywords <= 0 {
		o.TopKeywords = d.TopKeywords
	}
	if o.MergeSimilarity <= 0 {
		o.MergeSimilarity = d.MergeSimilarity
	}
	if o.RelationSimilarity <= 0 {
		o.RelationSimilarity = d.RelationSimilarity
	}
	if o.AdjacentWeight <= 0 {
		o.AdjacentWeight = d.AdjacentWeight
	}
	if o.SemanticSimilarity <= 0 {
		o.SemanticSimilarity = d.SemanticSimilarity
	}
	return o
}

// chunkIDPattern 有效 chunk id 的格式：<docID>_chunk_<n> 或 <docID>_image_<n>。
var chunkIDPattern = regexp.MustCompile(`^.+_(chunk|image)_\d+$`)

// ChunkID 生成确定性的分块 id。
// 相同文档、相同序号永远得到相同 id，保证分块幂等。
func ChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, seq)
}

// ImageChunkID 生成图像分块 id。
func ImageChunkID(docID string, seq int) string {
	return fmt.Sprintf("%s_image_%d", docID, seq)
}

// ValidChunkID 校验 id 是否符合分块 id 格式。
// 知识图只在两端 id 均有效时建边。
func ValidChunkID(id string) bool {
	return chunkIDPattern.MatchString(id)
}

// newChunk 构造带基础元数据的分块。
func newChunk(id, content string, ct types.ChunkType, strategy string) types.Chunk {
	return types.Chunk{
		ID:      id,
		Content: content,
		Type:    ct,
		Metadata: map[string]any{
			"strategy":   strategy,
			"word_count": len(strings.Fields(content)),
			"char_count": len(content),
		},
	}
}
