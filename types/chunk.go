package types

// ChunkType 分块类型
type ChunkType string

const (
	ChunkTypeHeader     ChunkType = "header"
	ChunkTypeFooter     ChunkType = "footer"
	ChunkTypeBody       ChunkType = "body"
	ChunkTypeMixed      ChunkType = "mixed"
	ChunkTypeQuestion   ChunkType = "question"
	ChunkTypeAnswer     ChunkType = "answer"
	ChunkTypeTopic      ChunkType = "topic"
	ChunkTypeSubsection ChunkType = "subsection"
	ChunkTypeImage      ChunkType = "image"
)

// Chunk 最小可检索单元。由分块策略创建，
// 后续富化阶段（关键词提取、关系映射、上下文扩展）就地补充，
// 持久化之后不再修改。
type Chunk struct {
	ID      string    `json:"id"`
	Content string    `json:"content"`
	Type    ChunkType `json:"chunk_type"`

	// Keywords 去停用词后的高频关键词，由富化阶段填充。
	Keywords []string `json:"keywords,omitempty"`

	// RelatedChunks 关联块 ID 列表；RelationshipWeights
	// 记录到每个关联块的边权重（[0,1]）。
	RelatedChunks       []string           `json:"related_chunks,omitempty"`
	RelationshipWeights map[string]float64 `json:"relationship_weights,omitempty"`

	// ContextExtension 非破坏性的上下文扩展：
	// 原内容加上相邻块的片段，单独存放，不覆盖 Content。
	ContextExtension string `json:"context_extension,omitempty"`

	// Metadata 元数据袋：词数/字符数、结构标记、
	// 分块策略名、层级分块的 parent/child id 等。
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AddRelation 记录一条到 target 的关系边，权重收敛到 [0,1]。
// 重复添加同一 target 仅更新权重。
func (c *Chunk) AddRelation(target string, weight float64) {
	if target == "" || target == c.ID {
		return
	}
	if c.RelationshipWeights == nil {
		c.RelationshipWeights = make(map[string]float64)
	}
	if _, exists := c.RelationshipWeights[target]; !exists {
		c.RelatedChunks = append(c.RelatedChunks, target)
	}
	c.RelationshipWeights[target] = Clamp01(weight)
}

// MetaString 读取字符串元数据，缺失返回空串。
func (c *Chunk) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	if s, ok := c.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// SetMeta 写入元数据，按需初始化。
func (c *Chunk) SetMeta(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// Clamp01 把分数收敛到 [0,1]。
// 加性启发式加权没有归一化保证，最终一律在这里截断。
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
