// Package rag 编排单次问答请求的完整流水线：
// 审计会话 → 缓存查找 → 查询处理 → 策略解析与检索 →
// 链接/指标整理 → 缓存回写 → 性能记录 → 置信度计算。
// 除请求校验与未知策略名外，任何一步失败都不向调用方
// 抛错，而是返回带 "error" 工具标记的降级响应。
package rag
