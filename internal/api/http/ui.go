package http

import (
	"bytes"
	"context"
	"embed"
	"html/template"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"docunexus/internal/prompt"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Modes UI 的交互模式
var Modes = []string{"Text Input", "Talk to DocuNexus", "Webcam Vision", "Screen Share"}

type indexData struct {
	Title       string
	Modes       []string
	Examples    []prompt.Example
	AuthEnabled bool
	Vision      bool
	Speech      bool
}

// Index GET /，浏览器 UI
func (h *Handler) Index(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	err := indexTemplate.Execute(&buf, indexData{
		Title:       "DocuNexus",
		Modes:       Modes,
		Examples:    prompt.ExamplePrompts(),
		AuthEnabled: h.authEnabled,
		Vision:      h.svc.Vision != nil,
		Speech:      h.svc.Speech != nil,
	})
	if err != nil {
		hlog.CtxErrorf(c, "render index failed: %v", err)
		ctx.String(consts.StatusInternalServerError, "Error occurred: "+err.Error())
		return
	}
	ctx.Data(consts.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
