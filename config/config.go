package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 服务完整配置。
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Embedding 嵌入服务配置
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// Retrieval 检索配置
	Retrieval RetrievalConfig `yaml:"retrieval" env:"RETRIEVAL"`

	// Chunking 分块配置
	Chunking ChunkingConfig `yaml:"chunking" env:"CHUNKING"`

	// Ingest 摄取配置
	Ingest IngestConfig `yaml:"ingest" env:"INGEST"`

	// Cache 缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Redis 二级缓存配置（可选）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Audit 审计持久化配置
	Audit AuditConfig `yaml:"audit" env:"AUDIT"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`
}

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// EmbeddingConfig 嵌入服务配置。
type EmbeddingConfig struct {
	// 向量维度
	Dimensions int `yaml:"dimensions" env:"DIMENSIONS"`
	// 每秒请求上限（限流用）
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// 突发额度
	Burst int `yaml:"burst" env:"BURST"`
}

// RetrievalConfig 检索配置。
type RetrievalConfig struct {
	// 默认策略名
	DefaultStrategy string `yaml:"default_strategy" env:"DEFAULT_STRATEGY"`
	// 默认结果条数
	DefaultLimit int `yaml:"default_limit" env:"DEFAULT_LIMIT"`
	// 相似度阈值
	SimilarityThreshold float64 `yaml:"similarity_threshold" env:"SIMILARITY_THRESHOLD"`
	// 最小内容长度
	MinContentLength int `yaml:"min_content_length" env:"MIN_CONTENT_LENGTH"`
	// 上下文 token 预算
	MaxContextTokens int `yaml:"max_context_tokens" env:"MAX_CONTEXT_TOKENS"`
	// 上下文利用率折算基准（字符）
	MaxContextChars int `yaml:"max_context_chars" env:"MAX_CONTEXT_CHARS"`
}

// ChunkingConfig 分块配置。
type ChunkingConfig struct {
	// 单块 token 预算
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 重叠比例（百分比）
	OverlapPercent float64 `yaml:"overlap_percent" env:"OVERLAP_PERCENT"`
	// tiktoken 编码名；空则用字符估算
	Encoding string `yaml:"encoding" env:"ENCODING"`
	// 选择器是否可用 LLM 辅助策略
	LLMAvailable bool `yaml:"llm_available" env:"LLM_AVAILABLE"`
}

// IngestConfig 摄取配置。
type IngestConfig struct {
	// 批内并行度
	BatchSize int `yaml:"batch_size" env:"BATCH_SIZE"`
	// 图谱最小关系权重
	MinRelationshipWeight float64 `yaml:"min_relationship_weight" env:"MIN_RELATIONSHIP_WEIGHT"`
}

// CacheConfig 进程内缓存配置。
type CacheConfig struct {
	// 软容量上限
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	// 默认 TTL
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// RedisConfig Redis 二级缓存配置；Addr 为空则不启用。
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 远端 TTL
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// AuditConfig 审计持久化配置。
type AuditConfig struct {
	// SQLite 文件路径；空则只保留内存会话
	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
}

// LogConfig 日志配置。
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Dimensions:        256,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Retrieval: RetrievalConfig{
			DefaultStrategy:     "vector",
			DefaultLimit:        5,
			SimilarityThreshold: 0.3,
			MinContentLength:    20,
			MaxContextTokens:    2000,
			MaxContextChars:     8000,
		},
		Chunking: ChunkingConfig{
			MaxTokens:      300,
			OverlapPercent: 10,
		},
		Ingest: IngestConfig{
			BatchSize:             4,
			MinRelationshipWeight: 0.3,
		},
		Cache: CacheConfig{
			Capacity: 1000,
			TTL:      5 * time.Minute,
		},
		Redis: RedisConfig{
			TTL: time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate 验证配置。
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, "embedding dimensions must be positive")
	}
	switch c.Retrieval.DefaultStrategy {
	case "vector", "keyword", "hybrid", "knowledge_graph":
	default:
		errs = append(errs, fmt.Sprintf("unknown default strategy %q", c.Retrieval.DefaultStrategy))
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
		errs = append(errs, "similarity_threshold must be in [0,1]")
	}
	if c.Chunking.MaxTokens <= 0 {
		errs = append(errs, "chunking max_tokens must be positive")
	}
	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, "ingest batch_size must be positive")
	}
	if c.Cache.Capacity <= 0 {
		errs = append(errs, "cache capacity must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
