// Package graph 从已富化的分块集派生轻量知识图：
// 关键词/概念节点、块间加权边，并持久化到存储层。
// 读路径接受自由文本查询，经关键词提取后走存储回查。
package graph
