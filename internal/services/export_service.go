// internal/services/export_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	apperrors "github.com/ashrithajanga/CineGen/internal/errors"
	"github.com/ashrithajanga/CineGen/internal/models"
	"github.com/mattn/go-runewidth"
)

// 导出格式
const (
	ExportFormatText = "txt"
	ExportFormatJSON = "json"
)

const (
	attribution  = "CineGen AI"
	tabExpansion = "    "
)

// 各章节标题，每章从新页开始
var exportSections = []struct {
	header string
	body   func(*models.Project) string
}{
	{"SCREENPLAY", func(p *models.Project) string { return p.Screenplay }},
	{"CHARACTER PROFILES", func(p *models.Project) string { return p.CharacterNotes }},
	{"SOUND DESIGN PLAN", func(p *models.Project) string { return p.SoundDesign }},
}

var (
	pageBreakPattern = regexp.MustCompile(`(?i)^-{3,}\s*page\s*break\s*-{3,}$`)
	fileNamePattern  = regexp.MustCompile(`[^a-z0-9]`)
)

// PageLayout 页面尺寸：Width 为显示列数，Height 为每页行数
type PageLayout struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Validate 检查页面尺寸
func (l PageLayout) Validate() error {
	if l.Width < 20 || l.Height < 12 {
		return apperrors.NewValidationError(fmt.Sprintf("页面尺寸过小: %dx%d（至少 20x12）", l.Width, l.Height), nil)
	}
	return nil
}

// ExportService 把项目排版为固定尺寸的页面
//
// 换行规则：
//  1. \r\n 与 \r 统一为 \n，制表符展开为 4 个空格，去掉行尾空白；
//  2. 空行原样保留为一行空行；
//  3. 行首缩进保留（最多半个页宽），续行沿用同样缩进；
//  4. 按空白切词，贪心填充，词间一个空格，宽度按 go-runewidth 显示宽度计算；
//  5. 超过可用宽度的单词按字符硬切；
//  6. 续页不以空行开头，章节末尾的空行丢弃，章节标题不重复；
//  7. 分页提示行本身不输出，当前页已过半时从新页继续。
type ExportService struct {
	archive      *ArchiveService
	layout       PageLayout
	displayNames map[string]string
}

// NewExportService 创建导出服务，displayNames 为后端 ID 到显示名的映射
func NewExportService(archive *ArchiveService, layout PageLayout, displayNames map[string]string) (*ExportService, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	return &ExportService{archive: archive, layout: layout, displayNames: displayNames}, nil
}

// Layout 当前页面尺寸
func (s *ExportService) Layout() PageLayout {
	return s.layout
}

// ExportProject 读取归档项目并排版
func (s *ExportService) ExportProject(ctx context.Context, projectID string) (*models.ExportDocument, error) {
	project, err := s.archive.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.Export(project), nil
}

// Export 排版一个项目，相同输入总是得到相同的分页结果
func (s *ExportService) Export(project *models.Project) *models.ExportDocument {
	p := &pager{layout: s.layout}

	s.titlePage(p, project)
	for _, section := range exportSections {
		p.startSection(section.header)
		p.flowText(section.body(project))
	}

	return &models.ExportDocument{
		ProjectID: project.ID,
		Title:     project.Title,
		FileName:  ExportFileName(project.Title, ExportFormatText),
		Width:     s.layout.Width,
		Height:    s.layout.Height,
		Pages:     p.finish(),
	}
}

func (s *ExportService) providerName(id string) string {
	if name, ok := s.displayNames[id]; ok && name != "" {
		return name
	}
	return id
}

// titlePage 标题页：标题、署名、类型/基调/模型，页脚为生成时间
func (s *ExportService) titlePage(p *pager, project *models.Project) {
	width := s.layout.Width

	var body []string
	body = append(body, centerLines(WrapLine(strings.ToUpper(project.Title), width), width)...)
	body = append(body, "", centerLine("Written by", width), centerLine(attribution, width), "")
	body = append(body, centerText(fmt.Sprintf("Genre: %s  |  Tone: %s", project.Genre, project.Tone), width)...)
	body = append(body, centerText("Model: "+s.providerName(project.ProviderID), width)...)
	footer := WrapLine("Generated on "+formatTimestamp(project.CreatedAt), width)

	p.newPage()
	if len(body)+len(footer) > s.layout.Height {
		// 标题过长时顺序排入后续页
		for _, line := range append(body, footer...) {
			p.add(line)
		}
		return
	}

	topPad := (s.layout.Height - len(body) - len(footer)) / 3
	for i := 0; i < topPad; i++ {
		p.add("")
	}
	for _, line := range body {
		p.add(line)
	}
	for len(p.cur)+len(footer) < s.layout.Height {
		p.add("")
	}
	for _, line := range footer {
		p.add(line)
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// pager 逐行排入页面
type pager struct {
	layout PageLayout
	pages  []models.Page
	cur    []string
	open   bool
}

// flush 结束当前页，空页不写入
func (p *pager) flush() {
	if p.open && len(p.cur) > 0 {
		p.pages = append(p.pages, models.Page{Lines: p.cur})
	}
	p.cur = []string{}
	p.open = true
}

func (p *pager) newPage() {
	p.flush()
}

func (p *pager) startSection(header string) {
	p.newPage()
	p.add(header)
	p.add("")
}

// add 写入一行，页满时换页；续页顶部的空行被丢弃
func (p *pager) add(line string) {
	if !p.open {
		p.flush()
	}
	if len(p.cur) >= p.layout.Height {
		p.flush()
		if line == "" {
			return
		}
	}
	p.cur = append(p.cur, line)
}

// flowText 换行并排入正文
func (p *pager) flowText(text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimRightFunc(text, unicode.IsSpace)

	for _, raw := range strings.Split(text, "\n") {
		if pageBreakPattern.MatchString(strings.TrimSpace(raw)) {
			if len(p.cur)*2 >= p.layout.Height {
				p.flush()
			}
			continue
		}
		for _, line := range WrapLine(raw, p.layout.Width) {
			if line == "" && len(p.cur) == 0 {
				continue
			}
			p.add(line)
		}
	}
}

func (p *pager) finish() []models.Page {
	if p.open && len(p.cur) > 0 {
		p.pages = append(p.pages, models.Page{Lines: p.cur})
	}
	p.cur = nil
	p.open = false
	return p.pages
}

// WrapLine 将一行文本按显示宽度折行
func WrapLine(line string, width int) []string {
	line = strings.ReplaceAll(line, "\t", tabExpansion)
	line = strings.TrimRightFunc(line, unicode.IsSpace)
	if line == "" {
		return []string{""}
	}

	indentLen := len(line) - len(strings.TrimLeft(line, " "))
	if indentLen > width/2 {
		indentLen = width / 2
	}
	indent := strings.Repeat(" ", indentLen)
	avail := width - indentLen

	var (
		out  []string
		cur  strings.Builder
		curW int
	)
	emit := func() {
		out = append(out, indent+cur.String())
		cur.Reset()
		curW = 0
	}

	for _, word := range strings.Fields(line) {
		ww := runewidth.StringWidth(word)

		if ww > avail {
			if curW > 0 {
				emit()
			}
			chunks := hardSplit(word, avail)
			for _, chunk := range chunks[:len(chunks)-1] {
				out = append(out, indent+chunk)
			}
			last := chunks[len(chunks)-1]
			cur.WriteString(last)
			curW = runewidth.StringWidth(last)
			continue
		}

		if curW > 0 && curW+1+ww > avail {
			emit()
		}
		if curW > 0 {
			cur.WriteByte(' ')
			curW++
		}
		cur.WriteString(word)
		curW += ww
	}
	if curW > 0 {
		emit()
	}
	return out
}

// hardSplit 按显示宽度切分过长的单词
func hardSplit(word string, width int) []string {
	var (
		chunks []string
		cur    strings.Builder
		curW   int
	)
	for _, r := range word {
		rw := runewidth.RuneWidth(r)
		if curW+rw > width && curW > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curW = 0
		}
		cur.WriteRune(r)
		curW += rw
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

func centerLine(line string, width int) string {
	w := runewidth.StringWidth(line)
	if w >= width {
		return line
	}
	return strings.Repeat(" ", (width-w)/2) + line
}

func centerLines(lines []string, width int) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = centerLine(strings.TrimSpace(line), width)
	}
	return out
}

// centerText 放得下时原样居中，保留内部空白；否则折行后逐行居中
func centerText(text string, width int) []string {
	if runewidth.StringWidth(text) <= width {
		return []string{centerLine(text, width)}
	}
	return centerLines(WrapLine(text, width), width)
}

// ExportFileName 标题转为文件名：非 [a-z0-9] 字符替换为下划线
func ExportFileName(title, format string) string {
	slug := fileNamePattern.ReplaceAllString(strings.ToLower(title), "_")
	if format != ExportFormatJSON {
		format = ExportFormatText
	}
	return slug + "_script." + format
}

// Render 将导出文档渲染为文本或 JSON，返回内容、Content-Type 与文件名
func (s *ExportService) Render(doc *models.ExportDocument, format string) ([]byte, string, string, error) {
	switch strings.ToLower(format) {
	case "", ExportFormatText:
		pages := make([]string, len(doc.Pages))
		for i, page := range doc.Pages {
			pages[i] = strings.Join(page.Lines, "\n")
		}
		return []byte(strings.Join(pages, "\n\f\n") + "\n"), "text/plain; charset=utf-8", ExportFileName(doc.Title, ExportFormatText), nil
	case ExportFormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, "", "", err
		}
		return data, "application/json", ExportFileName(doc.Title, ExportFormatJSON), nil
	default:
		return nil, "", "", apperrors.NewValidationError(fmt.Sprintf("不支持的导出格式: %s，支持: txt, json", format), nil)
	}
}
