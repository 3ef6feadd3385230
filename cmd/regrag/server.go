package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/regrag/chunking"
	"github.com/BaSui01/regrag/config"
	"github.com/BaSui01/regrag/graph"
	"github.com/BaSui01/regrag/ingest"
	"github.com/BaSui01/regrag/internal/audit"
	"github.com/BaSui01/regrag/internal/cache"
	"github.com/BaSui01/regrag/internal/metrics"
	"github.com/BaSui01/regrag/rag"
	"github.com/BaSui01/regrag/retrieval"
	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// Server 装配好的 HTTP 服务。
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	orch     *rag.Orchestrator
	pipeline *ingest.Pipeline
	httpSrv  *http.Server
}

// NewServer 按配置装配全部组件。
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	st := store.NewMemoryStore(logger)

	var tok tokenizer.Tokenizer
	if cfg.Chunking.Encoding != "" {
		tok = tokenizer.NewTiktoken(cfg.Chunking.Encoding)
	} else {
		tok = tokenizer.NewEstimator()
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	cacheMgr := cache.NewManager[rag.RAGResponse](cache.Config{
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
		RedisTTL: cfg.Redis.TTL,
	}, rdb, logger)

	// 限流 + 嵌入缓存：同一文本在摄取与检索间只算一次
	emb := store.NewCachedEmbedder(
		store.NewRateLimitedEmbedder(
			store.NewHashEmbedder(cfg.Embedding.Dimensions),
			cfg.Embedding.RequestsPerSecond,
			cfg.Embedding.Burst,
		),
		cacheMgr,
	)

	factory := retrieval.NewFactory(st, emb, tok, retrieval.Options{
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		MinContentLength:    cfg.Retrieval.MinContentLength,
		MaxContextTokens:    cfg.Retrieval.MaxContextTokens,
	}, logger)

	monitor := metrics.NewMonitor(0, prometheus.DefaultRegisterer, logger)

	var auditDB *gorm.DB
	if cfg.Audit.SQLitePath != "" {
		var err error
		auditDB, err = gorm.Open(sqlite.Open(cfg.Audit.SQLitePath), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("open audit database: %w", err)
		}
	}
	auditMgr, err := audit.NewManager(auditDB, logger)
	if err != nil {
		return nil, err
	}

	orch := rag.New(factory, nil, cacheMgr, monitor, auditMgr, rag.Config{
		DefaultLimit:    cfg.Retrieval.DefaultLimit,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		DefaultStrategy: cfg.Retrieval.DefaultStrategy,
	}, logger)

	pipeline := ingest.NewPipeline(st, emb, tok, ingest.Options{
		BatchSize:    cfg.Ingest.BatchSize,
		Capabilities: chunking.Capabilities{LLMAvailable: cfg.Chunking.LLMAvailable},
		Chunking: chunking.Options{
			MaxTokens:      cfg.Chunking.MaxTokens,
			OverlapPercent: cfg.Chunking.OverlapPercent,
		},
		Graph: graph.Options{
			ConceptMapping:        true,
			RelationshipScoring:   true,
			CooccurrenceAnalysis:  true,
			MinRelationshipWeight: cfg.Ingest.MinRelationshipWeight,
			MaxConceptsPerNode:    graph.DefaultOptions().MaxConceptsPerNode,
		},
	}, logger)

	return &Server{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "http_server")),
		orch:     orch,
		pipeline: pipeline,
	}, nil
}

// Start 启动 HTTP 服务。
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown 阻塞到收到终止信号并优雅关闭。
func (s *Server) WaitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Warn("shutdown not clean", zap.Error(err))
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req rag.RAGRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp, err := s.orch.Query(r.Context(), req)
	if err != nil {
		var nf *retrieval.StrategyNotFoundError
		switch {
		case types.IsValidation(err), errors.As(err, &nf):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var docs []types.DocumentInfo
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	report, err := s.pipeline.Ingest(r.Context(), docs)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    Version,
		"build_time": BuildTime,
		"git_commit": GitCommit,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
