// Package tokenizer 提供 token 计数能力，供分块预算与
// 上下文组装使用。优先使用 tiktoken 精确计数，
// 编码不可用时回退到基于字符的估算器。
package tokenizer
