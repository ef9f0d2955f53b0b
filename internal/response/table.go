package response

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Table 列表型数据（仓库查询结果、JSON 数组响应）
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Markdown 渲染为 Markdown 管道表格
func (t *Table) Markdown() string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}
	var b strings.Builder
	writeRow(&b, t.Columns)
	b.WriteString("|")
	for range t.Columns {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(&b, row)
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(strings.ReplaceAll(strings.ReplaceAll(c, "|", `\|`), "\n", " "))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown 将模型输出（Markdown）渲染为 HTML；goldmark 默认不输出原始 HTML
func RenderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}
