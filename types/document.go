package types

import "time"

// DocumentInfo 一个来源文档（由外部解析协作方产出）。
// 页眉、页脚与正文按页对齐，三个切片长度一致。
// 一旦产出即不可变，仅供分块管线消费。
type DocumentInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	DocTypeCode string    `json:"doc_type_code"`
	DocTypeDesc string    `json:"doc_type_desc"`
	Version     string    `json:"version"`
	IssueDate   time.Time `json:"issue_date"`

	// 按页平行数组
	PageHeaders []string `json:"page_headers"`
	PageFooters []string `json:"page_footers"`
	PageContent []string `json:"page_content"`
}

// FullText 拼接全部页面正文，页与页之间以换行分隔。
func (d DocumentInfo) FullText() string {
	switch len(d.PageContent) {
	case 0:
		return ""
	case 1:
		return d.PageContent[0]
	}
	total := 0
	for _, p := range d.PageContent {
		total += len(p) + 1
	}
	buf := make([]byte, 0, total)
	for i, p := range d.PageContent {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, p...)
	}
	return string(buf)
}

// PageCount 返回文档页数。
func (d DocumentInfo) PageCount() int {
	return len(d.PageContent)
}
