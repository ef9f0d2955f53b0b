package http

import (
	"context"
	"html/template"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"docunexus/internal/prompt"
	"docunexus/internal/response"
	"docunexus/pkg/auth"
	"docunexus/pkg/errors"
)

type historyView struct {
	Question   string        `json:"question"`
	Answer     string        `json:"answer"`
	AnswerHTML template.HTML `json:"answer_html,omitempty"`
	Thoughts   string        `json:"thoughts,omitempty"`
	Mode       string        `json:"mode"`
	CreatedAt  time.Time     `json:"created_at"`
}

// rendered 供 UI 直接展示的 HTML；错误文案不渲染
func rendered(s string) template.HTML {
	if s == "" || errors.IsUserMessage(s) {
		return ""
	}
	return response.RenderMarkdown(s)
}

// ListHistory GET /api/history，最新的在前
func (h *Handler) ListHistory(c context.Context, ctx *app.RequestContext) {
	if h.svc.History == nil {
		notConfigured(c, ctx, "history")
		return
	}
	entries, err := h.svc.History.List(c, auth.GetSessionID(c))
	if err != nil {
		fail(c, ctx, "list history", err)
		return
	}
	views := make([]historyView, 0, len(entries))
	for _, e := range entries {
		views = append(views, historyView{
			Question:   e.Question,
			Answer:     e.Answer,
			AnswerHTML: rendered(e.Answer),
			Thoughts:   e.Thoughts,
			Mode:       e.Mode,
			CreatedAt:  e.CreatedAt,
		})
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"entries": views})
}

// ClearHistory DELETE /api/history
func (h *Handler) ClearHistory(c context.Context, ctx *app.RequestContext) {
	if h.svc.History == nil {
		notConfigured(c, ctx, "history")
		return
	}
	if err := h.svc.History.Clear(c, auth.GetSessionID(c)); err != nil {
		fail(c, ctx, "clear history", err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]string{"status": "cleared"})
}

// ExamplePrompts GET /api/prompts/examples
func (h *Handler) ExamplePrompts(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, map[string]interface{}{"examples": prompt.ExamplePrompts()})
}

// ClearSession 登出时清空会话历史
func (h *Handler) ClearSession(ctx context.Context, sessionID string) {
	if h.svc.History == nil {
		return
	}
	if err := h.svc.History.Clear(ctx, sessionID); err != nil {
		h.logger.WarnContext(ctx, "clear history on logout failed", "session", sessionID, "error", err)
	}
}
