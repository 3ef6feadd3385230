package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/chunking"
	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/types"
)

// Options 图构建的特性开关与阈值。
type Options struct {
	// ConceptMapping 是否把关键词归入概念组
	ConceptMapping bool `json:"concept_mapping"`

	// RelationshipScoring 是否构建块间加权边
	RelationshipScoring bool `json:"relationship_scoring"`

	// CooccurrenceAnalysis 是否统计关键词共现
	CooccurrenceAnalysis bool `json:"cooccurrence_analysis"`

	// MinRelationshipWeight 边权重下限，低于此值不建边
	MinRelationshipWeight float64 `json:"min_relationship_weight"`

	// MaxConceptsPerNode 单个块节点挂载的概念数上限
	MaxConceptsPerNode int `json:"max_concepts_per_node"`
}

// DefaultOptions 默认图构建选项。
func DefaultOptions() Options {
	return Options{
		ConceptMapping:        true,
		RelationshipScoring:   true,
		CooccurrenceAnalysis:  true,
		MinRelationshipWeight: 0.3,
		MaxConceptsPerNode:    5,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MinRelationshipWeight <= 0 {
		o.MinRelationshipWeight = d.MinRelationshipWeight
	}
	if o.MaxConceptsPerNode <= 0 {
		o.MaxConceptsPerNode = d.MaxConceptsPerNode
	}
	return o
}

// Builder 从分块集构建知识图并持久化。
// 输入块需已带关键词（SmartChunker 富化后的产物）。
type Builder struct {
	store  store.Store
	opts   Options
	logger *zap.Logger
}

// NewBuilder 创建图构建器。
func NewBuilder(st store.Store, opts Options, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		store:  st,
		opts:   opts.withDefaults(),
		logger: logger.With(zap.String("component", "graph_builder")),
	}
}

// Build 构建并持久化知识图：
// 关键词频次归一化 → 概念归组 → 节点发射 → 块间建边 → 落库。
func (b *Builder) Build(ctx context.Context, chunks []types.Chunk) (*Graph, error) {
	g := newGraph()
	if len(chunks) == 0 {
		return g, nil
	}

	// 1. 关键词频次统计，按最大频次归一化到 [0,1]
	freq := make(map[string]int)
	for _, c := range chunks {
		for _, kw := range c.Keywords {
			freq[strings.ToLower(kw)]++
		}
	}
	maxFreq := 0
	for _, n := range freq {
		if n > maxFreq {
			maxFreq = n
		}
	}
	weights := make(map[string]float64, len(freq))
	for kw, n := range freq {
		weights[kw] = float64(n) / float64(maxFreq)
	}

	// 2. 概念归组
	concepts := make(map[string][]string)
	if b.opts.ConceptMapping {
		for kw := range freq {
			mapped := chunking.MapConcepts([]string{kw})
			if len(mapped) == 0 {
				// 词表外的关键词不发射概念节点
				continue
			}
			concepts[mapped[0]] = append(concepts[mapped[0]], kw)
		}
		for _, kws := range concepts {
			sort.Strings(kws)
		}
	}

	cooccur := b.analyzeCooccurrence(chunks)

	// 3. 节点：每块一个、每个关键词一个、每个概念一个
	for _, c := range chunks {
		node := types.KnowledgeGraphNode{
			ID:       c.ID,
			NodeType: types.NodeChunk,
			Content:  c.Content,
			Keywords: append([]string(nil), c.Keywords...),
			Metadata: map[string]any{"chunk_type": string(c.Type)},
		}
		if b.opts.ConceptMapping {
			if mapped := capConcepts(chunking.MapConcepts(c.Keywords), b.opts.MaxConceptsPerNode); len(mapped) > 0 {
				node.Metadata["concepts"] = mapped
			}
		}
		g.addNode(node)
	}
	for kw, w := range weights {
		node := types.KnowledgeGraphNode{
			ID:       keywordNodeID(kw),
			NodeType: types.NodeKeyword,
			Content:  kw,
			Metadata: map[string]any{"weight": w, "frequency": freq[kw]},
		}
		if pairs := cooccur[kw]; len(pairs) > 0 {
			node.Metadata["cooccurs_with"] = pairs
		}
		g.addNode(node)
	}
	for concept, kws := range concepts {
		g.addNode(types.KnowledgeGraphNode{
			ID:       conceptNodeID(concept),
			NodeType: types.NodeConcept,
			Keywords: kws,
			Metadata: map[string]any{"keyword_count": len(kws)},
		})
	}

	// 4. 块间边：两端 id 均有效，权重为关键词 Jaccard
	// 与内容词 Jaccard 的均值，低于下限的边丢弃
	if b.opts.RelationshipScoring {
		b.scoreRelationships(g, chunks)
	}

	// 5. 落库
	if err := b.persist(ctx, chunks, weights, concepts, g); err != nil {
		return nil, err
	}

	b.logger.Info("knowledge graph built",
		zap.Int("chunks", len(chunks)),
		zap.Int("nodes", g.NodeCount()),
		zap.Int("relationships", g.RelationshipCount()))
	return g, nil
}

// scoreRelationships 对所有有效块对打分建边。
// 关键词集与内容词集先按下标预计算一次，配对循环中不再重扫。
func (b *Builder) scoreRelationships(g *Graph, chunks []types.Chunk) {
	valid := make([]int, 0, len(chunks))
	for i := range chunks {
		if chunking.ValidChunkID(chunks[i].ID) {
			valid = append(valid, i)
		}
	}

	contentWords := make(map[int][]string, len(valid))
	for _, i := range valid {
		contentWords[i] = chunking.ContentWords(chunks[i].Content)
	}

	for x := 0; x < len(valid); x++ {
		for y := x + 1; y < len(valid); y++ {
			i, j := valid[x], valid[y]
			kwSim := chunking.JaccardSimilarity(chunks[i].Keywords, chunks[j].Keywords)
			cwSim := chunking.JaccardSimilarity(contentWords[i], contentWords[j])
			weight := (kwSim + cwSim) / 2
			if weight < b.opts.MinRelationshipWeight {
				continue
			}
			g.addRelationship(types.KnowledgeGraphRelationship{
				SourceID: chunks[i].ID,
				TargetID: chunks[j].ID,
				RelType:  types.RelSemanticSimilarity,
				Weight:   types.Clamp01(weight),
				Metadata: map[string]any{
					"keyword_similarity": kwSim,
					"content_similarity": cwSim,
				},
			})
		}
	}
}

// analyzeCooccurrence 统计同块内共现的关键词，
// 每个关键词保留共现次数最多的若干伙伴。
func (b *Builder) analyzeCooccurrence(chunks []types.Chunk) map[string][]string {
	if !b.opts.CooccurrenceAnalysis {
		return nil
	}

	counts := make(map[string]map[string]int)
	for _, c := range chunks {
		for _, a := range c.Keywords {
			la := strings.ToLower(a)
			for _, b2 := range c.Keywords {
				lb := strings.ToLower(b2)
				if la == lb {
					continue
				}
				if counts[la] == nil {
					counts[la] = make(map[string]int)
				}
				counts[la][lb]++
			}
		}
	}

	const topCooccur = 5
	out := make(map[string][]string, len(counts))
	for kw, partners := range counts {
		names := make([]string, 0, len(partners))
		for p := range partners {
			names = append(names, p)
		}
		sort.Slice(names, func(i, j int) bool {
			if partners[names[i]] != partners[names[j]] {
				return partners[names[i]] > partners[names[j]]
			}
			return names[i] < names[j]
		})
		if len(names) > topCooccur {
			names = names[:topCooccur]
		}
		out[kw] = names
	}
	return out
}

// persist 把关键词、边与概念-关键词关联写入存储。
func (b *Builder) persist(ctx context.Context, chunks []types.Chunk, weights map[string]float64, concepts map[string][]string, g *Graph) error {
	for _, c := range chunks {
		for _, kw := range c.Keywords {
			lower := strings.ToLower(kw)
			if err := b.store.UpsertKeyword(ctx, c.ID, lower, weights[lower]); err != nil {
				return types.WrapError(types.ErrStore, fmt.Sprintf("upsert keyword %q for chunk %s", lower, c.ID), err)
			}
		}
	}
	for _, rel := range g.Relationships() {
		if err := b.store.UpsertRelationship(ctx, rel); err != nil {
			return types.WrapError(types.ErrStore, fmt.Sprintf("upsert relationship %s -> %s", rel.SourceID, rel.TargetID), err)
		}
	}
	for concept, kws := range concepts {
		if err := b.store.UpsertConcept(ctx, concept, kws); err != nil {
			return types.WrapError(types.ErrStore, fmt.Sprintf("upsert concept %q", concept), err)
		}
	}
	return nil
}

func capConcepts(concepts []string, max int) []string {
	if max > 0 && len(concepts) > max {
		return concepts[:max]
	}
	return concepts
}

func keywordNodeID(kw string) string      { return "keyword_" + kw }
func conceptNodeID(concept string) string { return "concept_" + concept }
