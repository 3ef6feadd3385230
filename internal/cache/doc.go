// Package cache 提供带 TTL 与容量上限的进程内缓存表，
// 以及组合查询结果缓存与嵌入缓存的管理器。
// 查询结果缓存可选挂接 Redis 作为二级缓存。
package cache
