// Package metrics 记录每次检索请求的性能指标：
// 固定容量环形缓冲保留最近记录，另将计数与延迟
// 镜像到 Prometheus。本包为内部包，不对外导出。
package metrics
