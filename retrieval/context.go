package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/regrag/tokenizer"
	"github.com/BaSui01/regrag/types"
)

// AssembleContext 把结果集组装为单个上下文字符串：
// 按相关度降序，逐文档使用固定模板拼接，
// 超出 token 预算前停止，绝不截断半个文档。
// tok 为 nil 时按 字符数/4 估算 token。
func AssembleContext(results []types.SearchResult, maxTokens int, tok tokenizer.Tokenizer) string {
	if len(results) == 0 || maxTokens <= 0 {
		return ""
	}

	sorted := append([]types.SearchResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})

	countTokens := func(text string) int {
		if tok != nil {
			return tok.CountTokens(text)
		}
		return len(text) / 4
	}

	var b strings.Builder
	used := 0
	for _, r := range sorted {
		entry := fmt.Sprintf("[Document: %s | Relevance: %.2f | Source: %s]\n%s\n\n",
			r.DocID, r.Relevance, r.Source, r.Content)
		cost := countTokens(entry)
		if used+cost > maxTokens {
			break
		}
		b.WriteString(entry)
		used += cost
	}
	return strings.TrimSpace(b.String())
}
