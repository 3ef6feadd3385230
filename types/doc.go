// Package types 定义 regrag 各组件共享的核心数据模型：
// 文档、分块、检索结果以及统一的结构化错误类型。
//
// 本包位于依赖图的最底层，不引用任何其他 regrag 包。
package types
