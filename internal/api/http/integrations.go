package http

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"docunexus/internal/engine"
	"docunexus/internal/jobqueue"
	"docunexus/internal/media"
	"docunexus/internal/model/speech"
	"docunexus/internal/response"
	"docunexus/internal/runtime/history"
	"docunexus/pkg/errors"
	"docunexus/pkg/utils"
)

type speechRequest struct {
	Text      string `json:"text"`
	Language  string `json:"language"`
	Voice     string `json:"voice"`
	Upload    bool   `json:"upload"`
	Container string `json:"container"`
}

// Speech POST /api/speech；upload 时返回对象地址，否则直接返回 audio/wav
func (h *Handler) Speech(c context.Context, ctx *app.RequestContext) {
	var req speechRequest
	if err := ctx.BindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		warn(ctx, "Please enter text to synthesize.")
		return
	}
	if h.svc.Speech == nil {
		notConfigured(c, ctx, "speech service")
		return
	}
	container := utils.CoalesceString(req.Container, speech.DefaultContainer)
	res, err := h.svc.Speech.Speak(c, req.Text, speech.Options{Language: req.Language, Voice: req.Voice}, req.Upload, container)
	if err != nil {
		fail(c, ctx, "text to speech", err)
		return
	}
	if req.Upload {
		ctx.JSON(consts.StatusOK, map[string]string{"path": res.Path, "url": res.URL})
		return
	}
	ctx.Data(consts.StatusOK, "audio/wav", res.Audio)
}

type warehouseRequest struct {
	SQL string `json:"sql"`
}

// WarehouseQuery POST /api/warehouse/query
func (h *Handler) WarehouseQuery(c context.Context, ctx *app.RequestContext) {
	var req warehouseRequest
	if err := ctx.BindJSON(&req); err != nil || strings.TrimSpace(req.SQL) == "" {
		warn(ctx, "Please enter a SQL query.")
		return
	}
	if h.svc.Warehouse == nil {
		notConfigured(c, ctx, "warehouse")
		return
	}
	table, err := h.svc.Warehouse.Query(c, req.SQL)
	if err != nil {
		hlog.CtxErrorf(c, "warehouse query failed: %v", err)
		msg := errors.UserMessage(err)
		ctx.JSON(errorStatus(err), map[string]string{
			"error":      msg,
			"error_html": string(response.RenderMarkdown(response.FormatError(msg))),
		})
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"columns":  table.Columns,
		"rows":     table.Rows,
		"markdown": table.Markdown(),
	})
}

type mediaJobRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// EnqueueMediaJob POST /api/media/jobs，由 worker 异步执行
func (h *Handler) EnqueueMediaJob(c context.Context, ctx *app.RequestContext) {
	var req mediaJobRequest
	if err := ctx.BindJSON(&req); err != nil {
		warn(ctx, "invalid request body")
		return
	}
	if h.svc.Jobs == nil {
		notConfigured(c, ctx, "job queue")
		return
	}
	if err := media.Validate(req.Kind, req.Payload); err != nil {
		fail(c, ctx, "validate media job", err)
		return
	}
	id, err := h.svc.Jobs.Enqueue(c, req.Kind, req.Payload)
	if err != nil {
		fail(c, ctx, "enqueue media job", err)
		return
	}
	ctx.JSON(consts.StatusAccepted, map[string]string{"id": id, "status": "pending"})
}

// GetMediaJob GET /api/media/jobs/:id
func (h *Handler) GetMediaJob(c context.Context, ctx *app.RequestContext) {
	if h.svc.Jobs == nil {
		notConfigured(c, ctx, "job queue")
		return
	}
	j, err := h.svc.Jobs.Get(c, ctx.Param("id"))
	if err != nil {
		fail(c, ctx, "get media job", err)
		return
	}
	ctx.JSON(consts.StatusOK, j)
}

type mediaSummaryRequest struct {
	Prompt string `json:"prompt"`
}

// SummarizeMediaJob POST /api/media/jobs/:id/summary，以已完成任务的结果为媒体描述生成摘要
func (h *Handler) SummarizeMediaJob(c context.Context, ctx *app.RequestContext) {
	var req mediaSummaryRequest
	if len(ctx.Request.Body()) > 0 {
		if err := ctx.BindJSON(&req); err != nil {
			warn(ctx, "invalid request body")
			return
		}
	}
	if h.svc.Jobs == nil {
		notConfigured(c, ctx, "job queue")
		return
	}
	j, err := h.svc.Jobs.Get(c, ctx.Param("id"))
	if err != nil {
		fail(c, ctx, "get media job", err)
		return
	}
	if j.Status != jobqueue.StatusCompleted {
		warn(ctx, "The media job has not completed yet.")
		return
	}
	question := utils.CoalesceString(req.Prompt, "Summarize media job "+j.ID)
	h.answer(c, ctx, history.ModeMedia, question, func() (engine.Result, error) {
		return h.svc.Engine.ProcessMediaSummary(c, req.Prompt, mediaDescription(j))
	}, nil)
}

// mediaDescription 任务类型、负载与结果拼成媒体描述
func mediaDescription(j *jobqueue.Job) string {
	var b strings.Builder
	b.WriteString("Job kind: " + j.Kind + "\n")
	if len(j.Payload) > 0 {
		b.WriteString("Job payload: " + string(j.Payload) + "\n")
	}
	b.WriteString("Job result: " + j.Result)
	return b.String()
}
