// Package chunking 把异构的监管文档启发式切分为可检索单元。
//
// 提供多种分块策略（Standard、Hierarchical、四种 Semantic 变体、
// QuestionAnswer、TopicBased、Contextual、MultiModal）、
// 基于文档特征的策略选择器，以及串联分块与富化
// （关键词提取、上下文扩展、关系映射、概念归组）的 SmartChunker。
//
// 正则启发式集中在 heuristics.go 的纯函数里，
// 与块组装逻辑隔离——它们是系统中变化最频繁的部分。
package chunking
