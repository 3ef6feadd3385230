package graph

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/chunking"
	"github.com/BaSui01/regrag/types"
)

// QueryResult 图查询结果：命中的块节点与相关边。
type QueryResult struct {
	Keywords      []string                           `json:"keywords"`
	Nodes         []types.KnowledgeGraphNode         `json:"nodes"`
	Relationships []types.KnowledgeGraphRelationship `json:"relationships"`
}

// Query 自由文本的图读路径：提取查询关键词 →
// 全文检索定位块 → 回查相关边与块关键词。
// 结果数受 limit 约束，边按 MinRelationshipWeight 过滤。
func (b *Builder) Query(ctx context.Context, text string, limit int) (*QueryResult, error) {
	if limit <= 0 {
		limit = 10
	}

	keywords := chunking.ExtractKeywords(text, 8)
	result := &QueryResult{Keywords: keywords}
	if len(keywords) == 0 {
		return result, nil
	}

	hits, err := b.store.FullTextSearch(ctx, strings.Join(keywords, " "), limit)
	if err != nil {
		return nil, types.WrapError(types.ErrStore, "graph query full-text lookup", err)
	}

	seen := make(map[string]bool)
	for _, hit := range hits {
		if len(result.Nodes) >= limit {
			break
		}
		if !chunking.ValidChunkID(hit.DocID) || seen[hit.DocID] {
			continue
		}
		seen[hit.DocID] = true

		chunkKeywords, err := b.store.GetKeywordsForChunk(ctx, hit.DocID)
		if err != nil {
			return nil, types.WrapError(types.ErrStore, "graph query keyword lookup", err)
		}
		result.Nodes = append(result.Nodes, types.KnowledgeGraphNode{
			ID:       hit.DocID,
			NodeType: types.NodeChunk,
			Content:  hit.Content,
			Keywords: chunkKeywords,
			Metadata: hit.Metadata,
		})

		rels, err := b.store.GetRelatedChunks(ctx, hit.DocID, b.opts.MinRelationshipWeight, limit)
		if err != nil {
			return nil, types.WrapError(types.ErrStore, "graph query relationship lookup", err)
		}
		result.Relationships = append(result.Relationships, rels...)
	}

	b.logger.Debug("knowledge graph queried",
		zap.Int("keywords", len(keywords)),
		zap.Int("nodes", len(result.Nodes)),
		zap.Int("relationships", len(result.Relationships)))
	return result, nil
}
