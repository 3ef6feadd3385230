package chunking

import (
	"sort"
	"strings"
)

// stopwords 英文停用词表（关键词提取用）。
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "any": true, "can": true,
	"had": true, "her": true, "was": true, "one": true, "our": true,
	"out": true, "has": true, "have": true, "been": true, "were": true,
	"their": true, "which": true, "with": true, "this": true, "that": true,
	"from": true, "they": true, "will": true, "would": true, "there": true,
	"what": true, "about": true, "when": true, "make": true, "like": true,
	"time": true, "just": true, "him": true, "know": true, "take": true,
	"into": true, "your": true, "some": true, "could": true, "them": true,
	"other": true, "than": true, "then": true, "these": true, "those": true,
	"such": true, "shall": true, "may": true, "must": true, "should": true,
	"upon": true, "under": true, "over": true, "where": true, "each": true,
	"also": true, "more": true, "most": true, "only": true, "being": true,
	"does": true, "within": true, "without": true, "between": true,
}

// ExtractKeywords 提取去停用词后的 top-N 高频关键词。
// 频次相同按字典序排，保证确定性。
func ExtractKeywords(content string, topN int) []string {
	if topN <= 0 {
		topN = 8
	}

	freq := make(map[string]int)
	for _, raw := range strings.Fields(strings.ToLower(content)) {
		word := strings.Trim(raw, ".,;:!?()[]{}\"'`%$§—-")
		if len(word) < 3 || stopwords[word] {
			continue
		}
		if !isAlphaWord(word) {
			continue
		}
		freq[word]++
	}

	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > topN {
		words = words[:topN]
	}
	return words
}

// isAlphaWord 纯字母词才算关键词（过滤数字与符号混合体）。
func isAlphaWord(word string) bool {
	for _, r := range word {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(word) > 0
}

// JaccardSimilarity 两个词集的 Jaccard 相似度。
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]bool, len(a))
	for _, w := range a {
		setA[w] = true
	}
	setB := make(map[string]bool, len(b))
	for _, w := range b {
		setB[w] = true
	}

	overlap := 0
	for w := range setB {
		if setA[w] {
			overlap++
		}
	}

	union := len(setA) + len(setB) - overlap
	if union == 0 {
		return 0.0
	}
	return float64(overlap) / float64(union)
}

// ContentWords 返回内容的去重词集（小写、去停用词）。
func ContentWords(content string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range strings.Fields(strings.ToLower(content)) {
		word := strings.Trim(raw, ".,;:!?()[]{}\"'`")
		if len(word) < 3 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

// conceptThesaurus 固定的概念同义词表。
// 关键词归入首个命中的概念组。
var conceptThesaurus = []struct {
	Concept string
	Terms   []string
}{
	{"regulation", []string{"regulation", "regulatory", "compliance", "legal", "law", "ordinance", "statutory"}},
	{"capital", []string{"capital", "tier", "buffer", "adequacy", "solvency"}},
	{"risk", []string{"risk", "exposure", "hazard", "vulnerability"}},
	{"liquidity", []string{"liquidity", "liquid", "cash", "funding"}},
	{"reporting", []string{"report", "reporting", "disclosure", "filing", "return", "submission"}},
	{"governance", []string{"governance", "board", "oversight", "director", "management"}},
	{"audit", []string{"audit", "auditor", "inspection", "examination"}},
	{"banking", []string{"bank", "banking", "institution", "licensee", "depositor"}},
	{"supervision", []string{"supervision", "supervisory", "authority", "examiner"}},
}

// MapConcepts 把关键词映射到粗粒度概念，返回去重后的概念列表
// （保持词表顺序，保证确定性）。
func MapConcepts(keywords []string) []string {
	kwSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		kwSet[strings.ToLower(k)] = true
	}

	var concepts []string
	for _, group := range conceptThesaurus {
		for _, term := range group.Terms {
			if kwSet[term] {
				concepts = append(concepts, group.Concept)
				break
			}
		}
	}
	return concepts
}

// ConceptFor 返回单个关键词所属概念；无映射时返回关键词本身。
func ConceptFor(keyword string) string {
	lower := strings.ToLower(keyword)
	for _, group := range conceptThesaurus {
		for _, term := range group.Terms {
			if term == lower {
				return group.Concept
			}
		}
	}
	return lower
}
