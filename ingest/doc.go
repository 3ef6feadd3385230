// Package ingest 批量摄取管线：对每个来源文档执行
// 智能分块 → 嵌入并落库 → 知识图谱构建。
// 批内按可配置的并行度处理，单个文档失败只记入报告，
// 不影响同批其它文档。
package ingest
