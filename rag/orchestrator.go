package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/regrag/internal/audit"
	"github.com/BaSui01/regrag/internal/cache"
	"github.com/BaSui01/regrag/internal/metrics"
	"github.com/BaSui01/regrag/retrieval"
	"github.com/BaSui01/regrag/types"
)

// RAGRequest 单次问答请求。
type RAGRequest struct {
	Query            string `json:"query"`
	SearchType       string `json:"search_type,omitempty"`
	Limit            int    `json:"limit,omitempty"`
	UseCache         bool   `json:"use_cache"`
	TrackPerformance bool   `json:"track_performance"`
}

// DocumentLink 文档引用链接。
type DocumentLink struct {
	DocID     string  `json:"doc_id"`
	Title     string  `json:"title"`
	Relevance float64 `json:"relevance"`
}

// RAGResponse 单次问答响应。降级时 Documents 为空、
// 指标清零、ToolsUsed 为 ["error"]，但结构始终完整。
type RAGResponse struct {
	Documents          []types.SearchResult       `json:"documents"`
	Context            string                     `json:"context"`
	Analysis           *QueryAnalysis             `json:"analysis,omitempty"`
	SearchStrategy     string                     `json:"search_strategy"`
	Metrics            string                     `json:"metrics"`
	DocumentLinks      []DocumentLink             `json:"document_links"`
	ProcessingTimeMs   int64                      `json:"processing_time_ms"`
	ToolsUsed          []string                   `json:"tools_used"`
	CacheHit           bool                       `json:"cache_hit"`
	Confidence         float64                    `json:"confidence"`
	PerformanceMetrics *metrics.PerformanceMetric `json:"performance_metrics,omitempty"`
	AuditSessionID     string                     `json:"audit_session_id,omitempty"`
}

// Config 编排器配置。
type Config struct {
	// DefaultLimit 请求未给 limit 时的结果条数。
	DefaultLimit int
	// MaxContextChars 上下文利用率的折算基准。
	MaxContextChars int
	// DefaultStrategy 无提示且请求未指定时的策略名。
	DefaultStrategy string
}

// DefaultConfig 返回默认编排配置。
func DefaultConfig() Config {
	return Config{
		DefaultLimit:    5,
		MaxContextChars: 8000,
		DefaultStrategy: retrieval.StrategyVector,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	if c.MaxContextChars <= 0 {
		c.MaxContextChars = d.MaxContextChars
	}
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = d.DefaultStrategy
	}
	return c
}

// Orchestrator 请求级流水线的编排器。
type Orchestrator struct {
	factory   *retrieval.Factory
	processor QueryProcessor
	cache     *cache.Manager[RAGResponse]
	monitor   *metrics.Monitor
	audit     *audit.Manager
	tracer    oteltrace.Tracer
	cfg       Config
	logger    *zap.Logger
}

// New 创建编排器。processor 为 nil 时使用内置启发式处理器。
func New(factory *retrieval.Factory, processor QueryProcessor,
	cacheMgr *cache.Manager[RAGResponse], monitor *metrics.Monitor,
	auditMgr *audit.Manager, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if processor == nil {
		processor = NewHeuristicProcessor(logger)
	}
	return &Orchestrator{
		factory:   factory,
		processor: processor,
		cache:     cacheMgr,
		monitor:   monitor,
		audit:     auditMgr,
		tracer:    otel.Tracer("github.com/BaSui01/regrag/rag"),
		cfg:       cfg.withDefaults(),
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// Query 执行完整请求流水线。
// 返回错误仅限两类：请求校验失败与未知策略名（配置缺陷）；
// 其余任何失败都转成降级响应。
func (o *Orchestrator) Query(ctx context.Context, req RAGRequest) (*RAGResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, types.NewError(types.ErrValidation, "query must not be empty")
	}
	if req.Limit <= 0 {
		req.Limit = o.cfg.DefaultLimit
	}

	ctx, span := o.tracer.Start(ctx, "rag.query",
		oteltrace.WithAttributes(attribute.String("rag.search_type", req.SearchType)))
	defer span.End()

	start := time.Now()
	sessionID := o.audit.StartSession()
	o.logEvent(sessionID, audit.Event{Type: audit.EventRequestStart, Query: req.Query})
	o.logEvent(sessionID, audit.Event{Type: audit.EventQueryStart, Query: req.Query})

	resp, err := o.run(ctx, req, sessionID, start)
	if err != nil {
		o.logEvent(sessionID, audit.Event{Type: audit.EventRequestFailed, Detail: err.Error()})
		return nil, err
	}
	resp.AuditSessionID = sessionID

	span.SetAttributes(
		attribute.String("rag.strategy", resp.SearchStrategy),
		attribute.Bool("rag.cache_hit", resp.CacheHit),
		attribute.Int("rag.documents", len(resp.Documents)),
	)
	return resp, nil
}

// run 执行缓存之后的流水线主体；panic 被兜底成降级响应。
func (o *Orchestrator) run(ctx context.Context, req RAGRequest, sessionID string, start time.Time) (resp *RAGResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic, serving degraded response",
				zap.String("query", req.Query), zap.Any("panic", r))
			o.logEvent(sessionID, audit.Event{Type: audit.EventError, Detail: fmt.Sprint(r)})
			o.logEvent(sessionID, audit.Event{Type: audit.EventRequestFailed, Query: req.Query})
			resp, err = o.degraded(req, start), nil
		}
	}()

	// 缓存命中直接重建响应，跳过其余步骤。
	if req.UseCache && o.cache != nil {
		if cached, ok := o.cache.GetQuery(ctx, req.Query); ok {
			cached.CacheHit = true
			cached.ProcessingTimeMs = time.Since(start).Milliseconds()
			o.logEvent(sessionID, audit.Event{Type: audit.EventCacheHit, Query: req.Query})
			o.recordMetric(req, cached.SearchStrategy, start, 0, len(cached.Context), true, &cached)
			o.logEvent(sessionID, audit.Event{
				Type: audit.EventRequestEnd, DurationMs: cached.ProcessingTimeMs,
			})
			return &cached, nil
		}
	}

	// 查询处理失败不终止流水线：空分析 + 回退标记。
	analysis, perr := o.processor.Process(ctx, req.Query)
	if perr != nil {
		o.logger.Warn("query processing failed, using fallback analysis", zap.Error(perr))
		o.logEvent(sessionID, audit.Event{Type: audit.EventWarning, Detail: perr.Error()})
		analysis = QueryAnalysis{Intent: IntentFactual, UsedFallback: true}
	}

	strategyName := analysis.StrategyHint
	if strategyName == "" {
		strategyName = req.SearchType
	}
	if strategyName == "" {
		strategyName = o.cfg.DefaultStrategy
	}

	strat, err := o.factory.Create(strategyName)
	if err != nil {
		// 未知策略名是配置缺陷，没有安全默认值，向上传播。
		return nil, err
	}

	o.logEvent(sessionID, audit.Event{Type: audit.EventToolCall, Detail: strat.Name()})
	result := strat.Retrieve(ctx, req.Query, req.Limit)
	o.logEvent(sessionID, audit.Event{
		Type: audit.EventDocumentsRetrieved, DocumentCount: len(result.Results),
	})

	resp = &RAGResponse{
		Documents:      result.Results,
		Context:        result.Context,
		Analysis:       &analysis,
		SearchStrategy: result.Metrics.Strategy,
		Metrics:        formatMetrics(result.Metrics),
		DocumentLinks:  documentLinks(result.Results),
		ToolsUsed:      result.Metrics.ToolsUsed,
	}

	resp.Confidence = responseConfidence(analysis, len(resp.Documents), len(resp.Context))

	if req.UseCache && o.cache != nil {
		o.cache.SetQuery(ctx, req.Query, *resp)
	}

	o.recordMetric(req, resp.SearchStrategy, start, result.Metrics.Accuracy, len(resp.Context), false, resp)
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()

	o.logEvent(sessionID, audit.Event{Type: audit.EventLLMResponse, DocumentCount: len(resp.Documents)})
	o.logEvent(sessionID, audit.Event{Type: audit.EventRequestEnd, DurationMs: resp.ProcessingTimeMs})
	return resp, nil
}

// degraded 返回结构完整的降级响应。
func (o *Orchestrator) degraded(req RAGRequest, start time.Time) *RAGResponse {
	strategy := req.SearchType
	if strategy == "" {
		strategy = o.cfg.DefaultStrategy
	}
	return &RAGResponse{
		Documents:        []types.SearchResult{},
		Context:          "",
		SearchStrategy:   strategy,
		Metrics:          "",
		DocumentLinks:    []DocumentLink{},
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ToolsUsed:        []string{"error"},
	}
}

// recordMetric 记录性能指标并把记录回填到响应。
func (o *Orchestrator) recordMetric(req RAGRequest, strategy string, start time.Time,
	accuracy float64, contextLen int, cacheHit bool, resp *RAGResponse) {
	if !req.TrackPerformance || o.monitor == nil {
		return
	}
	utilization := float64(contextLen) / float64(o.cfg.MaxContextChars)
	if utilization > 1.0 {
		utilization = 1.0
	}
	metric := metrics.PerformanceMetric{
		Strategy:           strategy,
		LatencyMs:          time.Since(start).Milliseconds(),
		Accuracy:           accuracy,
		ContextUtilization: utilization,
		CacheHit:           cacheHit,
	}
	o.monitor.Record(metric)
	resp.PerformanceMetrics = &metric
}

// logEvent 审计事件写入；审计失败只记日志。
func (o *Orchestrator) logEvent(sessionID string, event audit.Event) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Log(sessionID, event); err != nil {
		o.logger.Warn("audit event dropped", zap.Error(err))
	}
}

// responseConfidence 响应置信度：
// 基数 0.5 + 处理置信度×0.2 + 有文档 0.2 + 上下文超 100 字符 0.1，
// 处理走了回退路径扣 0.2，最终截断到 [0,1]。
func responseConfidence(analysis QueryAnalysis, docs, contextLen int) float64 {
	c := 0.5 + analysis.Confidence*0.2
	if docs > 0 {
		c += 0.2
	}
	if contextLen > 100 {
		c += 0.1
	}
	if analysis.UsedFallback {
		c -= 0.2
	}
	return types.Clamp01(c)
}

// formatMetrics 把检索指标整理成一行可读文本。
func formatMetrics(m types.RetrievalMetrics) string {
	return fmt.Sprintf("Retrieved %d documents in %dms using %s (accuracy %.2f, ~%d tokens)",
		len(m.RetrievedIDs), m.QueryTimeMs, m.Strategy, m.Accuracy, m.TokenEstimate)
}

// documentLinks 从检索结果生成文档链接列表。
func documentLinks(results []types.SearchResult) []DocumentLink {
	links := make([]DocumentLink, 0, len(results))
	for _, r := range results {
		title := r.DocID
		if t, ok := r.Metadata["title"].(string); ok && t != "" {
			title = t
		}
		links = append(links, DocumentLink{DocID: r.DocID, Title: title, Relevance: r.Relevance})
	}
	return links
}
