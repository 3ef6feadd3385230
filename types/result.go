package types

// ResultSource 标识结果来自哪条检索路径。
type ResultSource string

const (
	SourceVector         ResultSource = "vector"
	SourceKeyword        ResultSource = "keyword"
	SourceHybrid         ResultSource = "hybrid"
	SourceSemantic       ResultSource = "semantic"
	SourceKnowledgeGraph ResultSource = "knowledge_graph"
)

// SearchResult 检索策略返回的单条结果（按请求生命周期存在）。
// Similarity 是原始分数，Relevance 是启发式加权后的排序分数，
// 二者都截断在 [0,1]。
type SearchResult struct {
	DocID      string         `json:"doc_id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Similarity float64        `json:"similarity"`
	Source     ResultSource   `json:"source"`
	Relevance  float64        `json:"relevance"`
}

// RetrievalMetrics 单次检索的指标。
type RetrievalMetrics struct {
	QueryTimeMs   int64    `json:"query_time_ms"`
	ToolsUsed     []string `json:"tools_used"`
	TokenEstimate int      `json:"token_estimate"`
	RetrievedIDs  []string `json:"retrieved_ids"`
	Strategy      string   `json:"strategy"`
	Accuracy      float64  `json:"accuracy"`
}

// RetrievalResult 一次检索的完整产出：排好序的结果、
// 组装好的上下文字符串以及指标。
type RetrievalResult struct {
	Results []SearchResult   `json:"results"`
	Context string           `json:"context"`
	Metrics RetrievalMetrics `json:"metrics"`
}

// EmptyRetrievalResult 返回降级用的空结果：
// 外部依赖失败时策略以此代替抛错。
func EmptyRetrievalResult(strategy string) RetrievalResult {
	return RetrievalResult{
		Results: []SearchResult{},
		Context: "",
		Metrics: RetrievalMetrics{
			ToolsUsed:    []string{},
			RetrievedIDs: []string{},
			Strategy:     strategy,
			Accuracy:     0,
		},
	}
}
