package chunking

import (
	"regexp"
	"strings"
	"unicode"
)

// 正则启发式。这些纯函数只看归一化后的文本，
// 不碰任何分块组装逻辑，便于单独测试与调整。

var (
	// sectionNumberRe 匹配编号章节行，如 "6.1.2 Capital buffers"。
	sectionNumberRe = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+(\S.*)$`)

	// chapterRe 匹配章节标题行，如 "Chapter 3" / "Part IV" / "Section 12"。
	chapterRe = regexp.MustCompile(`(?i)^(chapter|part|section|annex|schedule)\s+[0-9IVXLC]+`)

	// numberedListRe 匹配编号列表项。
	numberedListRe = regexp.MustCompile(`^\s*(?:\(?[a-z0-9]+[.)]|\d+\.)\s+`)

	// bulletRe 匹配无序列表项。
	bulletRe = regexp.MustCompile(`^\s*[-*•]\s+`)

	// qaMarkerRe 匹配显式 Q/A 标记行。
	qaMarkerRe = regexp.MustCompile(`(?i)^\s*(q|question|a|answer|faq)\s*[:.\d]`)

	// formulaRe 匹配公式痕迹（等式、百分号运算、比率表达）。
	formulaRe = regexp.MustCompile(`[=≥≤]|(\d+(\.\d+)?\s*%)|\b\d+\s*/\s*\d+\b`)

	// tableRowRe 匹配管道分隔的表格行。
	tableRowRe = regexp.MustCompile(`\|.*\|`)
)

// regulatoryVocabulary 监管/技术词表，用于 Q0 的语义信号判断。
var regulatoryVocabulary = []string{
	"regulation", "regulatory", "compliance", "pursuant", "provision",
	"ordinance", "statutory", "supervisory", "directive", "guideline",
	"capital", "liquidity", "exposure", "disclosure", "prudential",
	"licensee", "institution", "authority", "requirement", "shall",
}

// interrogativeLeads 疑问句的起始词。
var interrogativeLeads = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "can": true, "could": true, "should": true,
	"does": true, "do": true, "is": true, "are": true, "will": true,
	"must": true, "may": true, "shall": true,
}

// SplitSentences 按句末标点切句，保留标点。
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '\n', '。', '！', '？':
			flush()
		}
	}
	flush()
	return sentences
}

// SplitParagraphs 按空行切段。
func SplitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// HasStructure 判断文本是否带显式结构（编号章节或章节标题行）。
func HasStructure(text string) bool {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if sectionNumberRe.MatchString(line) || chapterRe.MatchString(line) {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

// HasNumberedLists 判断是否含编号列表。
func HasNumberedLists(text string) bool {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if numberedListRe.MatchString(line) {
			count++
			if count >= 3 {
				return true
			}
		}
	}
	return false
}

// RegulatoryTermCount 统计监管词表命中次数。
func RegulatoryTermCount(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, term := range regulatoryVocabulary {
		count += strings.Count(lower, term)
	}
	return count
}

// HasSemanticSignal Q0：文本是否携带结构/语义信号。
// 标题、编号列表、监管词汇或长度超阈值任一成立即为真。
func HasSemanticSignal(text string, lengthThreshold int) bool {
	if lengthThreshold <= 0 {
		lengthThreshold = 2000
	}
	return HasStructure(text) ||
		HasNumberedLists(text) ||
		RegulatoryTermCount(text) >= 5 ||
		len(text) > lengthThreshold
}

// HasQAMarkers 判断是否存在显式 Q/A 标记或足够多的疑问句。
func HasQAMarkers(text string) bool {
	markers := 0
	for _, line := range strings.Split(text, "\n") {
		if qaMarkerRe.MatchString(line) {
			markers++
			if markers >= 2 {
				return true
			}
		}
	}

	questions := 0
	for _, s := range SplitSentences(text) {
		if IsQuestionSentence(s) {
			questions++
			if questions >= 3 {
				return true
			}
		}
	}
	return false
}

// IsQuestionSentence 判断单句是否为疑问句：
// 以疑问词开头，或以问号结尾。
func IsQuestionSentence(sentence string) bool {
	s := strings.TrimSpace(sentence)
	if s == "" {
		return false
	}
	if strings.HasSuffix(s, "?") || strings.HasSuffix(s, "？") {
		return true
	}
	fields := strings.Fields(strings.ToLower(s))
	return len(fields) > 2 && interrogativeLeads[strings.Trim(fields[0], ",.;:")]
}

// HasHeadingPatterns 判断是否存在标题/小标题行。
func HasHeadingPatterns(text string) bool {
	count := 0
	for _, line := range strings.Split(text, "\n") {
		if IsHeadingLine(line) {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

// IsHeadingLine 按大小写与编号启发式判断标题行：
// 全大写短行、编号章节行，或不带句末标点的 Title Case 短行。
func IsHeadingLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 80 {
		return false
	}
	if sectionNumberRe.MatchString(line) || chapterRe.MatchString(line) {
		return true
	}
	if line == strings.ToUpper(line) && strings.ContainsFunc(line, unicode.IsLetter) {
		return true
	}

	// Title Case 且无句末标点
	if strings.HasSuffix(line, ".") || strings.HasSuffix(line, "?") || strings.HasSuffix(line, "!") {
		return false
	}
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 8 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		r := []rune(w)[0]
		if unicode.IsUpper(r) {
			capitalized++
		}
	}
	return capitalized >= (len(words)+1)/2+1
}

// HasNonAdjacentSignals Q3：引文、公式、插叙或表格等
// 需要把非相邻句子放到一起考虑的信号。
func HasNonAdjacentSignals(text string) bool {
	if strings.Count(text, `"`) >= 4 || strings.Count(text, "“") >= 2 {
		return true
	}
	if tableRowRe.MatchString(text) {
		return true
	}
	matches := formulaRe.FindAllStringIndex(text, 4)
	return len(matches) >= 3
}

// LooksOrderIndependent Q2 的反面：大量列表项意味着
// 句序可打乱、适合无序聚类。
func LooksOrderIndependent(text string) bool {
	lines := strings.Split(text, "\n")
	listItems := 0
	nonEmpty := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonEmpty++
		if bulletRe.MatchString(line) || numberedListRe.MatchString(line) {
			listItems++
		}
	}
	return nonEmpty > 0 && float64(listItems)/float64(nonEmpty) > 0.5
}

// ParseSectionNumber 提取行首的章节编号与标题；非章节行返回 ok=false。
func ParseSectionNumber(line string) (number, title string, ok bool) {
	m := sectionNumberRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// ParentSectionNumber 返回章节编号的父级（"6.1.2" → "6.1"）；
// 顶级编号返回空串。
func ParentSectionNumber(number string) string {
	idx := strings.LastIndex(number, ".")
	if idx < 0 {
		return ""
	}
	return number[:idx]
}
