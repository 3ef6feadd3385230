package rag

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/chunking"
	"github.com/BaSui01/regrag/retrieval"
)

// QueryAnalysis 查询处理的产出：实体、意图、策略提示、
// 扩展词与处理置信度。
type QueryAnalysis struct {
	Entities     []string `json:"entities"`
	Intent       string   `json:"intent"`
	StrategyHint string   `json:"strategy_hint,omitempty"`
	Expansions   []string `json:"expansions,omitempty"`
	Confidence   float64  `json:"confidence"`
	UsedFallback bool     `json:"used_fallback"`
}

// QueryProcessor 查询处理协作方：实体抽取、意图分类、
// 策略提示与查询扩展由它完成，编排器只消费结果。
type QueryProcessor interface {
	Process(ctx context.Context, query string) (QueryAnalysis, error)
}

// 意图取值。
const (
	IntentFactual    = "factual"
	IntentDefinition = "definition"
	IntentComparison = "comparison"
	IntentProcedural = "procedural"
)

// citationRe 匹配条款引用（Article 12、Section 4.2、§ 7 等），
// 这类查询偏向精确的关键词检索。
var citationRe = regexp.MustCompile(`(?i)(\b(article|section|annex|paragraph|chapter)\s+\d|§\s*\d)`)

// HeuristicProcessor 默认的查询处理器：一组独立的纯函数
// 启发式，无外部依赖，可被 LLM 驱动的实现替换。
type HeuristicProcessor struct {
	logger *zap.Logger
}

// NewHeuristicProcessor 创建默认查询处理器。
func NewHeuristicProcessor(logger *zap.Logger) *HeuristicProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeuristicProcessor{logger: logger.With(zap.String("component", "query_processor"))}
}

// Process 分析查询。提取不到任何实体时走回退路径：
// 空分析 + 回退标记，由编排器降低响应置信度。
func (p *HeuristicProcessor) Process(_ context.Context, query string) (QueryAnalysis, error) {
	entities := chunking.ExtractKeywords(query, 5)
	if len(entities) == 0 {
		p.logger.Debug("query yields no entities, fallback analysis", zap.String("query", query))
		return QueryAnalysis{
			Entities:     []string{},
			Intent:       IntentFactual,
			Confidence:   0.2,
			UsedFallback: true,
		}, nil
	}

	intent := classifyIntent(query)
	concepts := chunking.MapConcepts(entities)
	hint := strategyHint(query, intent, entities, concepts)

	confidence := 0.4
	if intent != IntentFactual {
		confidence += 0.2
	}
	if len(entities) >= 2 {
		confidence += 0.2
	}
	if hint != "" {
		confidence += 0.2
	}

	return QueryAnalysis{
		Entities:     entities,
		Intent:       intent,
		StrategyHint: hint,
		Expansions:   expansions(entities, concepts),
		Confidence:   confidence,
	}, nil
}

// classifyIntent 按规则分类查询意图。
func classifyIntent(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case strings.HasPrefix(q, "what is") || strings.HasPrefix(q, "what are") ||
		strings.Contains(q, "define") || strings.Contains(q, "definition of") ||
		strings.Contains(q, "meaning of"):
		return IntentDefinition
	case strings.Contains(q, " vs ") || strings.Contains(q, " versus ") ||
		strings.Contains(q, "compare") || strings.Contains(q, "difference between"):
		return IntentComparison
	case strings.HasPrefix(q, "how ") || strings.Contains(q, "steps to") ||
		strings.Contains(q, "procedure") || strings.Contains(q, "process for"):
		return IntentProcedural
	default:
		return IntentFactual
	}
}

// strategyHint 从查询特征推导检索策略提示；无明显信号时
// 返回空串，交由编排器按请求字段或默认值解析。
func strategyHint(query, intent string, entities, concepts []string) string {
	switch {
	case strings.Contains(query, `"`) || citationRe.MatchString(query):
		return retrieval.StrategyKeyword
	case len(concepts) >= 2:
		return retrieval.StrategyKnowledgeGraph
	case intent == IntentComparison || len(strings.Fields(query)) >= 8:
		return retrieval.StrategyHybrid
	default:
		return ""
	}
}

// expansions 返回实体映射出的、尚未出现在实体里的概念词。
func expansions(entities, concepts []string) []string {
	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		seen[e] = struct{}{}
	}
	var out []string
	for _, c := range concepts {
		if _, ok := seen[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
