package graph

import (
	"sync"

	"github.com/BaSui01/regrag/types"
)

// Graph 构建结果的内存索引。
// 出边/入边按块 id 建索引，避免遍历全部边。
type Graph struct {
	mu       sync.RWMutex
	nodes    map[string]types.KnowledgeGraphNode
	rels     []types.KnowledgeGraphRelationship
	outEdges map[string][]int // source id -> rels 下标
	inEdges  map[string][]int // target id -> rels 下标
}

func newGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]types.KnowledgeGraphNode),
		outEdges: make(map[string][]int),
		inEdges:  make(map[string][]int),
	}
}

func (g *Graph) addNode(n types.KnowledgeGraphNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[n.ID] = n
}

func (g *Graph) addRelationship(r types.KnowledgeGraphRelationship) {
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := len(g.rels)
	g.rels = append(g.rels, r)
	g.outEdges[r.SourceID] = append(g.outEdges[r.SourceID], idx)
	g.inEdges[r.TargetID] = append(g.inEdges[r.TargetID], idx)
}

// Node 按 id 取节点。
func (g *Graph) Node(id string) (types.KnowledgeGraphNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// NodesByType 返回指定类型的全部节点。
func (g *Graph) NodesByType(nt types.NodeType) []types.KnowledgeGraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.KnowledgeGraphNode
	for _, n := range g.nodes {
		if n.NodeType == nt {
			out = append(out, n)
		}
	}
	return out
}

// Relationships 返回全部边的副本。
func (g *Graph) Relationships() []types.KnowledgeGraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]types.KnowledgeGraphRelationship(nil), g.rels...)
}

// Neighbors 返回与 id 相连的边（出边+入边），
// 过滤低于 minWeight 的边，limit>0 时截断。
func (g *Graph) Neighbors(id string, minWeight float64, limit int) []types.KnowledgeGraphRelationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []types.KnowledgeGraphRelationship
	for _, idx := range g.outEdges[id] {
		if r := g.rels[idx]; r.Weight >= minWeight {
			out = append(out, r)
		}
	}
	for _, idx := range g.inEdges[id] {
		if r := g.rels[idx]; r.Weight >= minWeight {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// NodeCount 节点总数。
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// RelationshipCount 边总数。
func (g *Graph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rels)
}
