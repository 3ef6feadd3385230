package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/regrag/chunking"
	"github.com/BaSui01/regrag/graph"
	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// Options 摄取选项。
type Options struct {
	// BatchSize 并行处理的文档数上限。
	BatchSize int
	// Strategy 强制使用的分块策略名；空则由选择器按文档特征决定。
	Strategy string
	// Capabilities 选择器可用的能力标记。
	Capabilities chunking.Capabilities
	// Chunking 分块选项，零值用默认。
	Chunking chunking.Options
	// Graph 图构建选项，零值用默认。
	Graph graph.Options
}

// DefaultOptions 默认摄取选项。
func DefaultOptions() Options {
	return Options{
		BatchSize: 4,
		Graph:     graph.DefaultOptions(),
	}
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 4
	}
	if o.Graph.MinRelationshipWeight == 0 && o.Graph.MaxConceptsPerNode == 0 {
		o.Graph = graph.DefaultOptions()
	}
	return o
}

// DocumentReport 单个文档的摄取结果。
type DocumentReport struct {
	DocID         string        `json:"doc_id"`
	Chunks        int           `json:"chunks"`
	Nodes         int           `json:"nodes"`
	Relationships int           `json:"relationships"`
	Duration      time.Duration `json:"duration"`
	FailReason    string        `json:"error,omitempty"`
	Err           error         `json:"-"`
}

// Report 一批文档的摄取报告，顺序与输入一致。
type Report struct {
	Documents []DocumentReport `json:"documents"`
}

// Succeeded 返回成功文档数。
func (r *Report) Succeeded() int {
	n := 0
	for _, d := range r.Documents {
		if d.Err == nil {
			n++
		}
	}
	return n
}

// Failed 返回失败文档数。
func (r *Report) Failed() int { return len(r.Documents) - r.Succeeded() }

// Pipeline 批量摄取管线。
type Pipeline struct {
	store    store.Store
	embedder store.Embedder
	registry *chunking.Registry
	selector *chunking.Selector
	builder  *graph.Builder
	opts     Options
	logger   *zap.Logger
}

// NewPipeline 创建摄取管线。
// 分块策略按文档特征由选择器决定，Options.Strategy 非空时强制使用该策略。
func NewPipeline(st store.Store, emb store.Embedder, tok tokenizer.Tokenizer, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Pipeline{
		store:    st,
		embedder: emb,
		registry: chunking.NewRegistry(tok, nil, logger),
		selector: chunking.NewSelector(opts.Capabilities, logger),
		builder:  graph.NewBuilder(st, opts.Graph, logger),
		opts:     opts,
		logger:   logger.With(zap.String("component", "ingest_pipeline")),
	}
}

// resolveChunker 解析文档的分块器：强制策略优先，其次选择器，
// 未注册的策略名回落到 smart。
func (p *Pipeline) resolveChunker(doc types.DocumentInfo) chunking.Chunker {
	name := p.opts.Strategy
	if name == "" {
		name = p.selector.Select(doc)
	}
	if c, ok := p.registry.Get(name); ok {
		return c
	}
	p.logger.Warn("unknown chunking strategy, using smart",
		zap.String("doc_id", doc.ID), zap.String("strategy", name))
	c, _ := p.registry.Get(chunking.StrategySmart)
	return c
}

// Ingest 摄取一批文档。单个文档的失败记入该文档的报告项；
// 只有整体取消（ctx 结束）才返回错误。
func (p *Pipeline) Ingest(ctx context.Context, docs []types.DocumentInfo) (*Report, error) {
	report := &Report{Documents: make([]DocumentReport, len(docs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BatchSize)
	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			report.Documents[i] = p.ingestOne(gctx, doc)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("ingest cancelled: %w", err)
	}

	p.logger.Info("batch ingested",
		zap.Int("documents", len(docs)),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()))
	return report, nil
}

// ingestOne 处理单个文档：分块、嵌入落库、建图。
func (p *Pipeline) ingestOne(ctx context.Context, doc types.DocumentInfo) DocumentReport {
	start := time.Now()
	rep := DocumentReport{DocID: doc.ID}

	fail := func(stage string, err error) DocumentReport {
		rep.Err = fmt.Errorf("%s %q: %w", stage, doc.ID, err)
		rep.FailReason = rep.Err.Error()
		rep.Duration = time.Since(start)
		p.logger.Warn("document ingest failed",
			zap.String("doc_id", doc.ID), zap.String("stage", stage), zap.Error(err))
		return rep
	}

	if err := ctx.Err(); err != nil {
		return fail("ingest", err)
	}

	chunker := p.resolveChunker(doc)
	chunks, err := chunker.Chunk(ctx, doc, p.opts.Chunking)
	if err != nil {
		return fail("chunk", err)
	}
	rep.Chunks = len(chunks)

	if err := p.store.UpsertDocument(ctx, doc); err != nil {
		return fail("upsert document", err)
	}
	for _, c := range chunks {
		vec, err := p.embedder.Embed(ctx, c.Content)
		if err != nil {
			return fail("embed chunk", err)
		}
		if err := p.store.UpsertChunk(ctx, c, vec); err != nil {
			return fail("upsert chunk", err)
		}
	}

	built, err := p.builder.Build(ctx, chunks)
	if err != nil {
		return fail("build graph", err)
	}
	rep.Nodes = built.NodeCount()
	rep.Relationships = built.RelationshipCount()
	rep.Duration = time.Since(start)

	p.logger.Debug("document ingested",
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", rep.Chunks),
		zap.Int("graph_nodes", rep.Nodes))
	return rep
}
