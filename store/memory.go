package store

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/types"
)

// keywordEntry 单个 chunk 的关键词及权重。
type keywordEntry struct {
	keyword string
	weight  float64
}

// MemoryStore 内存存储（用于测试和小规模应用）。
// 所有读写都持有读写锁，支持并发访问。
type MemoryStore struct {
	docs      map[string]types.DocumentInfo
	chunks    map[string]types.Chunk
	vectors   map[string][]float64
	chunkIDs  []string // 插入顺序
	keywords  map[string][]keywordEntry
	relations map[string][]types.KnowledgeGraphRelationship // sourceID -> 出边
	concepts  map[string][]string

	mu     sync.RWMutex
	logger *zap.Logger
}

// NewMemoryStore 创建内存存储。
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		docs:      make(map[string]types.DocumentInfo),
		chunks:    make(map[string]types.Chunk),
		vectors:   make(map[string][]float64),
		keywords:  make(map[string][]keywordEntry),
		relations: make(map[string][]types.KnowledgeGraphRelationship),
		concepts:  make(map[string][]string),
		logger:    logger.With(zap.String("component", "memory_store")),
	}
}

// VectorSearch 余弦相似度检索。
func (s *MemoryStore) VectorSearch(ctx context.Context, queryVector []float64, matchCount int, similarityThreshold float64, minContentLength int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]SearchHit, 0, len(s.chunkIDs))
	for _, id := range s.chunkIDs {
		emb, ok := s.vectors[id]
		if !ok {
			continue
		}
		chunk := s.chunks[id]
		if len(chunk.Content) < minContentLength {
			continue
		}

		similarity := CosineSimilarity(queryVector, emb)
		if similarity < similarityThreshold {
			continue
		}

		// 元数据返回副本，调用方修改不会写穿到存储
		hits = append(hits, SearchHit{
			DocID:      id,
			Content:    chunk.Content,
			Metadata:   maps.Clone(chunk.Metadata),
			Similarity: similarity,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if matchCount > 0 && len(hits) > matchCount {
		hits = hits[:matchCount]
	}
	return hits, nil
}

// FullTextSearch 朴素全文检索：按查询词命中比例打分。
func (s *MemoryStore) FullTextSearch(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []SearchHit{}, nil
	}

	hits := make([]SearchHit, 0)
	for _, id := range s.chunkIDs {
		chunk := s.chunks[id]
		content := strings.ToLower(chunk.Content)

		matched := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}

		hits = append(hits, SearchHit{
			DocID:      id,
			Content:    chunk.Content,
			Metadata:   maps.Clone(chunk.Metadata),
			Similarity: float64(matched) / float64(len(terms)),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// UpsertDocument 写入文档记录。
func (s *MemoryStore) UpsertDocument(ctx context.Context, doc types.DocumentInfo) error {
	if doc.ID == "" {
		return fmt.Errorf("document has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

// UpsertChunk 写入分块及其向量。
func (s *MemoryStore) UpsertChunk(ctx context.Context, chunk types.Chunk, embedding []float64) error {
	if chunk.ID == "" {
		return fmt.Errorf("chunk has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chunks[chunk.ID]; !exists {
		s.chunkIDs = append(s.chunkIDs, chunk.ID)
	}
	s.chunks[chunk.ID] = chunk
	if embedding != nil {
		s.vectors[chunk.ID] = embedding
	}
	return nil
}

// UpsertKeyword 记录 chunk 的关键词权重。
func (s *MemoryStore) UpsertKeyword(ctx context.Context, chunkID, keyword string, weight float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.keywords[chunkID]
	for i, e := range entries {
		if e.keyword == keyword {
			entries[i].weight = weight
			return nil
		}
	}
	s.keywords[chunkID] = append(entries, keywordEntry{keyword: keyword, weight: weight})
	return nil
}

// UpsertRelationship 写入关系边。
func (s *MemoryStore) UpsertRelationship(ctx context.Context, rel types.KnowledgeGraphRelationship) error {
	if rel.SourceID == "" || rel.TargetID == "" {
		return fmt.Errorf("relationship endpoints must be non-empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := s.relations[rel.SourceID]
	for i, e := range edges {
		if e.TargetID == rel.TargetID && e.RelType == rel.RelType {
			edges[i] = rel
			return nil
		}
	}
	s.relations[rel.SourceID] = append(edges, rel)
	return nil
}

// UpsertConcept 写入概念到关键词的映射。
func (s *MemoryStore) UpsertConcept(ctx context.Context, concept string, keywords []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concepts[concept] = append([]string(nil), keywords...)
	return nil
}

// GetRelatedChunks 返回出边中权重不低于 minWeight 的关系。
func (s *MemoryStore) GetRelatedChunks(ctx context.Context, chunkID string, minWeight float64, limit int) ([]types.KnowledgeGraphRelationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.KnowledgeGraphRelationship, 0)
	for _, rel := range s.relations[chunkID] {
		if rel.Weight >= minWeight {
			out = append(out, rel)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetKeywordsForChunk 返回 chunk 的关键词。
func (s *MemoryStore) GetKeywordsForChunk(ctx context.Context, chunkID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.keywords[chunkID]
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.keyword)
	}
	return out, nil
}

// GetChunk 按 id 读回分块。
func (s *MemoryStore) GetChunk(ctx context.Context, chunkID string) (types.Chunk, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunk, ok := s.chunks[chunkID]
	return chunk, ok, nil
}

// DocumentExists 判断文档是否已入库。
func (s *MemoryStore) DocumentExists(ctx context.Context, docID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[docID]
	return ok, nil
}

// ChunkCount 返回分块数量。
func (s *MemoryStore) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// CosineSimilarity 计算余弦相似度；维度不一致或零向量返回 0。
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
