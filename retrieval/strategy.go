package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/BaSui01/regrag/types"
)

// 策略名常量。Factory 按名分发。
const (
	StrategyVector         = "vector"
	StrategyKeyword        = "keyword"
	StrategyHybrid         = "hybrid"
	StrategyKnowledgeGraph = "knowledge_graph"

	// StrategyHybridFallback 混合检索降级路径的标记，
	// 不可通过 Factory 直接创建。
	StrategyHybridFallback = "hybrid_fallback"
)

// Strategy 检索策略接口。
// Retrieve 不把外部依赖失败向上抛：存储/嵌入出错时
// 返回对应策略标记的空结果，Accuracy 为 0。
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, query string, limit int) types.RetrievalResult
}

// Options 检索选项。
type Options struct {
	// SimilarityThreshold 向量检索的相似度下限
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// MinContentLength 向量检索的内容长度下限
	MinContentLength int `json:"min_content_length"`

	// MaxContextTokens 上下文组装的 token 预算（字符数/4 估算）
	MaxContextTokens int `json:"max_context_tokens"`

	// MinRelatedWeight 知识图增强取相关块的权重下限
	MinRelatedWeight float64 `json:"min_related_weight"`
}

// DefaultOptions 默认检索选项。
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 0.3,
		MinContentLength:    20,
		MaxContextTokens:    2000,
		MinRelatedWeight:    0.3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SimilarityThreshold <= 0 {
		o.SimilarityThreshold = d.SimilarityThreshold
	}
	if o.MinContentLength <= 0 {
		o.MinContentLength = d.MinContentLength
	}
	if o.MaxContextTokens <= 0 {
		o.MaxContextTokens = d.MaxContextTokens
	}
	if o.MinRelatedWeight <= 0 {
		o.MinRelatedWeight = d.MinRelatedWeight
	}
	return o
}

// queryTerms 查询的小写词项。
func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// termPresenceBonus 每个在内容中出现的查询词项加 0.1。
func termPresenceBonus(content string, terms []string) float64 {
	lower := strings.ToLower(content)
	bonus := 0.0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			bonus += 0.1
		}
	}
	return bonus
}

// termCoverage 内容覆盖的查询词项比例。
func termCoverage(content string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// lengthBonus 内容长度加成：长度/1000，封顶 maxBonus。
func lengthBonus(content string, maxBonus float64) float64 {
	bonus := float64(len(content)) / 1000
	if bonus > maxBonus {
		return maxBonus
	}
	return bonus
}

// hasExactPhrase 判断查询是否作为短语整体出现。
func hasExactPhrase(content, query string) bool {
	q := strings.TrimSpace(strings.ToLower(query))
	return q != "" && strings.Contains(strings.ToLower(content), q)
}

// termFrequencyBonus 查询词项出现次数加成，封顶 maxBonus。
func termFrequencyBonus(content string, terms []string, maxBonus float64) float64 {
	lower := strings.ToLower(content)
	occurrences := 0
	for _, t := range terms {
		occurrences += strings.Count(lower, t)
	}
	bonus := float64(occurrences) * 0.02
	if bonus > maxBonus {
		return maxBonus
	}
	return bonus
}

// meanRelevance 结果集的平均相关度，作为检索准确度指标。
func meanRelevance(results []types.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results {
		sum += r.Relevance
	}
	return sum / float64(len(results))
}

// sortByRelevance 原地按相关度降序稳定排序。
func sortByRelevance(results []types.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
}

// resultIDs 提取结果的文档 id 列表。
func resultIDs(results []types.SearchResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.DocID)
	}
	return ids
}
