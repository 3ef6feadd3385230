// Package retrieval 实现四种检索策略（向量、关键词、混合、
// 知识图增强）与策略工厂。所有策略共享同一套上下文组装与
// 相关度加权启发式，外部依赖失败时降级为空结果而不是抛错。
package retrieval
