package chunking

import (
	"go.uber.org/zap"

	"github.com/BaSui01/regrag/types"
)

// Capabilities 构造时注入的能力标记。
// LLM 可用性是显式配置，不探测进程环境。
type Capabilities struct {
	LLMAvailable bool
}

// Selector 按文档特征选择分块策略，依次回答：
//
//	Q0 文本是否携带结构/语义信号（标题、编号列表、监管词汇、长度）？
//	Q1 是否有 LLM 分块能力？
//	Q2 句序是否必须保留？
//	Q3 是否需要把非相邻句子放在一起考虑（引文、公式、插叙、表格）？
type Selector struct {
	caps            Capabilities
	lengthThreshold int
	logger          *zap.Logger
}

// NewSelector 创建策略选择器。
func NewSelector(caps Capabilities, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{
		caps:            caps,
		lengthThreshold: 2000,
		logger:          logger.With(zap.String("component", "strategy_selector")),
	}
}

// Select 返回选中的策略名。
func (s *Selector) Select(doc types.DocumentInfo) string {
	text := doc.FullText()

	// Q0：无信号即无意义结构，基础打包就够了
	if !HasSemanticSignal(text, s.lengthThreshold) {
		s.logger.Debug("selector: no semantic signal", zap.String("doc_id", doc.ID))
		return StrategyStandard
	}

	// 显式结构 → 层级分块
	if HasStructure(text) {
		s.logger.Debug("selector: structure detected", zap.String("doc_id", doc.ID))
		return StrategyHierarchical
	}

	// Q1：LLM 可用时用命题归并
	if s.caps.LLMAvailable {
		return StrategySemanticProposition
	}

	// Q2：句序可打乱 → 无序聚类
	if LooksOrderIndependent(text) {
		return StrategySemanticClustering
	}

	// Q3：存在非相邻信号 → 双遍合并
	if HasNonAdjacentSignals(text) {
		return StrategySemanticDoublePass
	}

	return StrategySemanticTokenPack
}
