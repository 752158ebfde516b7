// internal/models/export.go
package models

// Page 一页导出内容
type Page struct {
	Lines []string `json:"lines"`
}

// ExportDocument 每次导出即时生成，不落盘
type ExportDocument struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	FileName  string `json:"file_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Pages     []Page `json:"pages"`
}

// PageCount 页数
func (d *ExportDocument) PageCount() int {
	return len(d.Pages)
}
