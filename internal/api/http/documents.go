package http

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"

	"docunexus/internal/analysis"
	"docunexus/internal/integration/docusign"
	"docunexus/internal/pipeline/ingest"
	"docunexus/internal/runtime/history"
	"docunexus/internal/storage/document"
	"docunexus/internal/storage/object"
	"docunexus/pkg/auth"
	"docunexus/pkg/errors"
	"docunexus/pkg/utils"
)

// uploadContainer 原始上传文件所在容器
const uploadContainer = "uploads"

// previewLength 列表与上传响应中正文预览的长度
const previewLength = 300

type documentView struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Size       int64             `json:"size"`
	Preview    string            `json:"preview,omitempty"`
	URL        string            `json:"url,omitempty"`
	Metadata   map[string]string `json:"metadata"`
	UploadedAt time.Time         `json:"uploaded_at"`
}

func (h *Handler) view(r *document.Record) documentView {
	v := documentView{
		ID:         r.ID,
		Name:       r.Name,
		Type:       r.Type,
		Size:       r.Size,
		Preview:    utils.Truncate(r.Text, previewLength),
		Metadata:   r.Metadata,
		UploadedAt: r.UploadedAt,
	}
	if r.Path != "" && h.svc.Objects != nil {
		v.URL = h.svc.Objects.URL(r.Path)
	}
	return v
}

// UploadDocument POST /api/documents，multipart: file
func (h *Handler) UploadDocument(c context.Context, ctx *app.RequestContext) {
	if h.svc.Documents == nil || h.svc.Parser == nil {
		notConfigured(c, ctx, "document store")
		return
	}
	fh, data, err := h.readFormFile(ctx, "file")
	if err != nil {
		warn(ctx, "Please upload a document.")
		return
	}
	name := fh.Filename
	if !h.svc.Parser.Supports(name) {
		fail(c, ctx, "parse document", errors.Wrapf(errors.ErrUnsupported, "document format %q", utils.Ext(name)))
		return
	}
	text, err := h.svc.Parser.Parse(c, name, data)
	if ingest.IsParseError(err) {
		hlog.CtxWarnf(c, "document %s could not be parsed: %v", name, err)
		ctx.JSON(consts.StatusUnprocessableEntity, map[string]string{"error": errors.UserMessage(err)})
		return
	}
	if err != nil {
		fail(c, ctx, "parse document", err)
		return
	}

	rec := &document.Record{
		ID:         uuid.NewString(),
		Owner:      auth.GetUserID(c),
		Name:       name,
		Type:       utils.Ext(name),
		Size:       int64(len(data)),
		Text:       text,
		Metadata:   analysis.ExtractMetadata(name, data),
		UploadedAt: time.Now(),
	}
	if h.svc.Objects != nil {
		path := object.Join(uploadContainer, rec.ID+"/"+name)
		meta := map[string]string{"content_type": ingest.ContentType(name), "owner": rec.Owner}
		if err := h.svc.Objects.Put(c, path, bytes.NewReader(data), int64(len(data)), meta); err != nil {
			// 原文件仅用于签署与实体提取，正文已解析，不中断上传
			hlog.CtxWarnf(c, "store original document %s failed: %v", name, err)
		} else {
			rec.Path = path
		}
	}
	if err := h.svc.Documents.Put(c, rec); err != nil {
		fail(c, ctx, "save document", err)
		return
	}
	hlog.CtxInfof(c, "document %s uploaded (%d bytes, %d chars)", name, rec.Size, len(text))
	ctx.JSON(consts.StatusCreated, h.view(rec))
}

// ListDocuments GET /api/documents
func (h *Handler) ListDocuments(c context.Context, ctx *app.RequestContext) {
	if h.svc.Documents == nil {
		notConfigured(c, ctx, "document store")
		return
	}
	recs, err := h.svc.Documents.List(c, &document.Filter{Owner: auth.GetUserID(c)})
	if err != nil {
		fail(c, ctx, "list documents", err)
		return
	}
	views := make([]documentView, 0, len(recs))
	for _, r := range recs {
		views = append(views, h.view(r))
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"documents": views, "total": len(views)})
}

// loadDocument 读取当前用户的文档；不属于当前用户时视为不存在
func (h *Handler) loadDocument(c context.Context, ctx *app.RequestContext) (*document.Record, bool) {
	if h.svc.Documents == nil {
		notConfigured(c, ctx, "document store")
		return nil, false
	}
	rec, err := h.svc.Documents.Get(c, ctx.Param("id"))
	if err == nil && rec.Owner != auth.GetUserID(c) {
		err = errors.Wrapf(errors.ErrNotFound, "document %s", ctx.Param("id"))
	}
	if err != nil {
		fail(c, ctx, "load document", err)
		return nil, false
	}
	return rec, true
}

func (h *Handler) original(c context.Context, rec *document.Record) ([]byte, error) {
	if rec.Path == "" || h.svc.Objects == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "original file of %s", rec.Name)
	}
	rc, err := h.svc.Objects.Get(c, rec.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

type summaryRequest struct {
	Length    string `json:"length"`
	Reasoning bool   `json:"reasoning"`
}

// SummarizeDocument POST /api/documents/:id/summary
func (h *Handler) SummarizeDocument(c context.Context, ctx *app.RequestContext) {
	var req summaryRequest
	_ = ctx.BindJSON(&req)
	rec, ok := h.loadDocument(c, ctx)
	if !ok {
		return
	}
	if h.svc.Summarizer == nil {
		notConfigured(c, ctx, "summarizer")
		return
	}
	s, err := h.svc.Summarizer.Summarize(c, rec.Text, req.Length, req.Reasoning)
	if err != nil {
		fail(c, ctx, "summarize document", err)
		return
	}
	h.record(c, history.ModeSummary, "Summarize "+rec.Name, s.Summary, s.Thoughts)
	ctx.JSON(consts.StatusOK, map[string]interface{}{
		"summary":      s.Summary,
		"summary_html": rendered(s.Summary),
		"thoughts":     s.Thoughts,
	})
}

// ExtractEntities POST /api/documents/:id/entities
func (h *Handler) ExtractEntities(c context.Context, ctx *app.RequestContext) {
	rec, ok := h.loadDocument(c, ctx)
	if !ok {
		return
	}
	if h.svc.Analyzer == nil {
		notConfigured(c, ctx, "analyzer")
		return
	}
	var raw []byte
	if rec.Type == "pdf" || rec.Type == "png" || rec.Type == "jpg" || rec.Type == "jpeg" {
		if data, err := h.original(c, rec); err == nil {
			raw = data
		}
	}
	entities, err := h.svc.Analyzer.Entities(c, rec.Text, raw, ingest.ContentType(rec.Name))
	if err != nil {
		fail(c, ctx, "extract entities", err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"entities": entities})
}

type searchRequest struct {
	Query string `json:"query"`
}

// SearchDocument POST /api/documents/:id/search
func (h *Handler) SearchDocument(c context.Context, ctx *app.RequestContext) {
	var req searchRequest
	if err := ctx.BindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		warn(ctx, "Please enter a search query.")
		return
	}
	rec, ok := h.loadDocument(c, ctx)
	if !ok {
		return
	}
	if h.svc.Analyzer == nil {
		notConfigured(c, ctx, "analyzer")
		return
	}
	out, err := h.svc.Analyzer.SemanticSearch(c, rec.Text, req.Query)
	if err != nil {
		fail(c, ctx, "semantic search", err)
		return
	}
	h.record(c, history.ModeSearch, req.Query, out, "")
	ctx.JSON(consts.StatusOK, map[string]interface{}{"results": out, "results_html": rendered(out)})
}

// AnalyzeMetadata POST /api/documents/:id/metadata
func (h *Handler) AnalyzeMetadata(c context.Context, ctx *app.RequestContext) {
	rec, ok := h.loadDocument(c, ctx)
	if !ok {
		return
	}
	if h.svc.Analyzer == nil {
		notConfigured(c, ctx, "analyzer")
		return
	}
	insights, err := h.svc.Analyzer.AnalyzeMetadata(c, rec.Metadata)
	if err != nil {
		fail(c, ctx, "analyze metadata", err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]interface{}{"metadata": rec.Metadata, "insights": insights})
}

type compareRequest struct {
	Prompt      string   `json:"prompt"`
	DocumentIDs []string `json:"document_ids"`
}

// CompareDocuments POST /api/documents/compare
func (h *Handler) CompareDocuments(c context.Context, ctx *app.RequestContext) {
	var req compareRequest
	if err := ctx.BindJSON(&req); err != nil {
		warn(ctx, "invalid request body")
		return
	}
	if len(req.DocumentIDs) < 2 {
		warn(ctx, "Please select at least two documents to compare.")
		return
	}
	if h.svc.Analyzer == nil {
		notConfigured(c, ctx, "analyzer")
		return
	}
	docs, err := h.contextDocuments(c, req.DocumentIDs)
	if err != nil {
		fail(c, ctx, "load documents", err)
		return
	}
	out, err := h.svc.Analyzer.CompareDocuments(c, req.Prompt, docs)
	if err != nil {
		fail(c, ctx, "compare documents", err)
		return
	}
	h.record(c, history.ModeCompare, utils.CoalesceString(req.Prompt, analysis.DefaultComparisonPrompt), out, "")
	ctx.JSON(consts.StatusOK, map[string]interface{}{"comparison": out, "comparison_html": rendered(out)})
}

// signContainer 待签文档在对象存储中的容器
const signContainer = "docusign"

type signRequest struct {
	SignerEmail string `json:"signer_email"`
	SignerName  string `json:"signer_name"`
}

// SignDocument POST /api/documents/:id/sign，通过 DocuSign 发送签署信封
func (h *Handler) SignDocument(c context.Context, ctx *app.RequestContext) {
	var req signRequest
	if err := ctx.BindJSON(&req); err != nil || req.SignerEmail == "" || req.SignerName == "" {
		warn(ctx, "Please enter the signer's name and email.")
		return
	}
	rec, ok := h.loadDocument(c, ctx)
	if !ok {
		return
	}
	if rec.Type != "pdf" {
		warn(ctx, "Only PDF documents can be sent for signature.")
		return
	}
	if h.svc.DocuSign == nil {
		notConfigured(c, ctx, "docusign")
		return
	}
	data, err := h.original(c, rec)
	if err != nil {
		fail(c, ctx, "read document", err)
		return
	}
	res, err := h.svc.DocuSign.SignDocument(c, signContainer, docusign.EnvelopeRequest{
		DocumentName: rec.Name,
		Document:     data,
		SignerEmail:  req.SignerEmail,
		SignerName:   req.SignerName,
	})
	if err != nil {
		hlog.CtxErrorf(c, "send envelope failed: %v", err)
		ctx.JSON(consts.StatusBadGateway, map[string]interface{}{"error": errors.UserMessage(err), "result": res})
		return
	}
	ctx.JSON(consts.StatusOK, res)
}
