// regrag 服务入口：加载配置、装配检索流水线并
// 暴露最小的 HTTP 查询/摄取接口。
package main
