package retrieval

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/regrag/store"
	"github.com/BaSui01/regrag/tokenizer"
)

// StrategyNotFoundError 未知策略名错误，消息列出全部有效名。
type StrategyNotFoundError struct {
	Name  string
	Valid []string
}

func (e *StrategyNotFoundError) Error() string {
	return fmt.Sprintf("unknown retrieval strategy %q, valid strategies: %v", e.Name, e.Valid)
}

// Factory 名称到策略的查找表。
// 构造时注册 vector/keyword/hybrid/knowledge_graph 四种，
// 支持运行时追加注册。
type Factory struct {
	strategies map[string]Strategy
	names      []string
}

// NewFactory 创建策略工厂并注册内建策略。
func NewFactory(st store.Store, emb store.Embedder, tok tokenizer.Tokenizer, opts Options, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()

	vector := NewVectorStrategy(st, emb, tok, opts, logger)
	keyword := NewKeywordStrategy(st, tok, opts, logger)

	f := &Factory{strategies: make(map[string]Strategy)}
	f.Register(vector)
	f.Register(keyword)
	f.Register(NewHybridStrategy(vector, keyword, tok, opts, logger))
	f.Register(NewKnowledgeGraphStrategy(st, emb, tok, opts, logger))
	return f
}

// Register 注册策略；同名覆盖但名称列表不重复。
func (f *Factory) Register(s Strategy) {
	if _, exists := f.strategies[s.Name()]; !exists {
		f.names = append(f.names, s.Name())
	}
	f.strategies[s.Name()] = s
}

// Create 按名返回策略；未知名称返回 StrategyNotFoundError。
func (f *Factory) Create(name string) (Strategy, error) {
	s, ok := f.strategies[name]
	if !ok {
		return nil, &StrategyNotFoundError{
			Name:  name,
			Valid: append([]string(nil), f.names...),
		}
	}
	return s, nil
}

// Names 返回已注册策略名（注册顺序）。
func (f *Factory) Names() []string {
	return append([]string(nil), f.names...)
}
