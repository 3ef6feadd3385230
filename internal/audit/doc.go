// Package audit 审计追踪：每个请求会话持有有序事件列表
// 与从事件派生的汇总，所有事件同时追加到跨会话的持久日志
// （GORM + SQLite）。事件只增不删，ClearAuditTrail 是唯一的
// 批量删除入口。
package audit
