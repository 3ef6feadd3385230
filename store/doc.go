// Package store 定义核心管线消费的外部协作方契约：
// 文档/向量/图存储、嵌入服务与文本生成服务，
// 以及用于测试和小规模部署的内存实现。
//
// 核心不在内部重试外部调用；失败按原样返回，
// 由调用侧策略降级处理。
package store
