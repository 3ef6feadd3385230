package store

import (
	"context"

	"github.com/BaSui01/regrag/types"
)

// SearchHit 存储层返回的单条命中。
type SearchHit struct {
	DocID      string         `json:"doc_id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
}

// Store 文档/向量/图存储接口。
// 生产环境由外部存储后端实现；本包提供 MemoryStore 作为参考实现。
type Store interface {
	// VectorSearch 按查询向量做相似度检索，
	// 过滤低于 similarityThreshold 的命中与过短内容。
	VectorSearch(ctx context.Context, queryVector []float64, matchCount int, similarityThreshold float64, minContentLength int) ([]SearchHit, error)

	// FullTextSearch 全文检索。
	FullTextSearch(ctx context.Context, query string, limit int) ([]SearchHit, error)

	// 写路径（摄取侧使用）
	UpsertDocument(ctx context.Context, doc types.DocumentInfo) error
	UpsertChunk(ctx context.Context, chunk types.Chunk, embedding []float64) error
	UpsertKeyword(ctx context.Context, chunkID, keyword string, weight float64) error
	UpsertRelationship(ctx context.Context, rel types.KnowledgeGraphRelationship) error
	UpsertConcept(ctx context.Context, concept string, keywords []string) error

	// 图读路径
	GetRelatedChunks(ctx context.Context, chunkID string, minWeight float64, limit int) ([]types.KnowledgeGraphRelationship, error)
	GetKeywordsForChunk(ctx context.Context, chunkID string) ([]string, error)

	// GetChunk 按 id 读回分块；不存在时 ok 为 false。
	GetChunk(ctx context.Context, chunkID string) (types.Chunk, bool, error)

	// DocumentExists 判断文档是否已入库。
	DocumentExists(ctx context.Context, docID string) (bool, error)
}

// Embedder 嵌入服务接口，返回固定维度向量。
// 失败以 EMBEDDING 错误码浮出，不允许让调用方崩溃。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator 文本生成服务接口（LLM 辅助分块等场景使用）。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
