package types

// NodeType 知识图节点类型
type NodeType string

const (
	NodeChunk   NodeType = "chunk"
	NodeKeyword NodeType = "keyword"
	NodeConcept NodeType = "concept"
)

// RelationshipType 边的关系类型
type RelationshipType string

const (
	RelSemanticSimilarity RelationshipType = "semantic_similarity"
	RelQuestionAnswer     RelationshipType = "question_answer"
	RelTopicSubsection    RelationshipType = "topic_subsection"
	RelParentChild        RelationshipType = "parent_child"
	RelSibling            RelationshipType = "sibling"
	RelAdjacent           RelationshipType = "adjacent"
)

// KnowledgeGraphNode 派生的图节点，不直接人工创建。
type KnowledgeGraphNode struct {
	ID       string         `json:"id"`
	NodeType NodeType       `json:"node_type"`
	Content  string         `json:"content,omitempty"`
	Keywords []string       `json:"keywords,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// KnowledgeGraphRelationship 有向加权边。
// 仅在两端 chunk id 均有效且权重不低于配置下限时创建。
type KnowledgeGraphRelationship struct {
	SourceID string           `json:"source_id"`
	TargetID string           `json:"target_id"`
	RelType  RelationshipType `json:"rel_type"`
	Weight   float64          `json:"weight"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}
