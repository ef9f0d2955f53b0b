// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"docunexus/internal/analysis"
	"docunexus/internal/engine"
	"docunexus/internal/integration/docusign"
	"docunexus/internal/integration/warehouse"
	"docunexus/internal/jobqueue"
	"docunexus/internal/model/speech"
	"docunexus/internal/model/vision"
	"docunexus/internal/pipeline/ingest"
	"docunexus/internal/runtime/history"
	"docunexus/internal/storage/document"
	"docunexus/internal/storage/object"
	"docunexus/pkg/auth"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
	"docunexus/pkg/metrics"
)

// DefaultMaxUpload 上传文件与视频帧的默认大小上限
const DefaultMaxUpload = 20 << 20

// Services Handler 依赖的服务；可选集成为 nil 时对应接口返回 503
type Services struct {
	Engine     *engine.Engine
	History    *history.Manager
	Documents  document.Store
	Objects    object.Store
	Parser     *ingest.DocumentParser
	Analyzer   *analysis.Analyzer
	Summarizer *analysis.Summarizer
	Vision     vision.Client
	Speech     *speech.Service
	DocuSign   *docusign.Client
	Warehouse  warehouse.Querier
	Jobs       jobqueue.Queue
}

// Handler HTTP 处理器
type Handler struct {
	svc         Services
	maxUpload   int64
	authEnabled bool
	logger      *log.Logger
	started     time.Time
}

// NewHandler 创建新的 HTTP 处理器；maxUploadMB<=0 时使用 DefaultMaxUpload
func NewHandler(svc Services, maxUploadMB int, authEnabled bool, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Nop()
	}
	limit := int64(DefaultMaxUpload)
	if maxUploadMB > 0 {
		limit = int64(maxUploadMB) << 20
	}
	return &Handler{svc: svc, maxUpload: limit, authEnabled: authEnabled, logger: logger, started: time.Now()}
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c context.Context, ctx *app.RequestContext) {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"integrations": map[string]bool{
			"vision":    h.svc.Vision != nil,
			"speech":    h.svc.Speech != nil,
			"docusign":  h.svc.DocuSign != nil,
			"warehouse": h.svc.Warehouse != nil,
			"media":     h.svc.Jobs != nil,
		},
	}
	if h.svc.Engine != nil {
		m := h.svc.Engine.Models()
		resp["models"] = m.Names()
		resp["active_models"] = map[string]string{
			"primary":   m.ModelName(false),
			"secondary": m.ModelName(true),
		}
	}
	ctx.JSON(consts.StatusOK, resp)
}

// Metrics GET /metrics，Prometheus 文本格式
func (h *Handler) Metrics(c context.Context, ctx *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(c, "write prometheus metrics failed: %v", err)
		ctx.String(consts.StatusInternalServerError, err.Error())
		return
	}
	ctx.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// errorStatus 错误到 HTTP 状态码；供应商调用失败统一为 502
func errorStatus(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidArg):
		return consts.StatusBadRequest
	case stderrors.Is(err, errors.ErrNotFound):
		return consts.StatusNotFound
	case stderrors.Is(err, errors.ErrUnsupported):
		return consts.StatusUnsupportedMediaType
	case stderrors.Is(err, errors.ErrNotConfigured), stderrors.Is(err, errors.ErrMissingSecret):
		return consts.StatusServiceUnavailable
	case stderrors.Is(err, context.DeadlineExceeded):
		return consts.StatusGatewayTimeout
	default:
		return consts.StatusBadGateway
	}
}

// fail 记录错误并以 {"error": "Error occurred: ..."} 返回
func fail(c context.Context, ctx *app.RequestContext, op string, err error) {
	hlog.CtxErrorf(c, "%s failed: %v", op, err)
	ctx.JSON(errorStatus(err), map[string]string{"error": errors.UserMessage(err)})
}

// warn 输入校验失败，返回与 UI 一致的提示文案
func warn(ctx *app.RequestContext, msg string) {
	ctx.JSON(consts.StatusBadRequest, map[string]string{"error": msg})
}

func notConfigured(c context.Context, ctx *app.RequestContext, what string) {
	fail(c, ctx, what, errors.Wrap(errors.ErrNotConfigured, what))
}

// record 追加会话历史；失败只记录日志，不影响本次响应
func (h *Handler) record(c context.Context, mode, question, answer, thoughts string) {
	if h.svc.History == nil {
		return
	}
	err := h.svc.History.Append(c, auth.GetSessionID(c), history.Entry{
		Question: question,
		Answer:   answer,
		Thoughts: thoughts,
		Mode:     mode,
	})
	if err != nil {
		hlog.CtxWarnf(c, "append history failed: %v", err)
	}
}

// readFormFile 读取 multipart 文件，超过上限时返回 ErrInvalidArg
func (h *Handler) readFormFile(ctx *app.RequestContext, field string) (*multipart.FileHeader, []byte, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return nil, nil, errors.Wrapf(errors.ErrInvalidArg, "missing form file %q", field)
	}
	if fh.Size > h.maxUpload {
		return nil, nil, errors.Wrapf(errors.ErrInvalidArg, "file %s exceeds %d bytes", fh.Filename, h.maxUpload)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.Wrap(err, "open form file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload+1))
	if err != nil {
		return nil, nil, errors.Wrap(err, "read form file")
	}
	if int64(len(data)) > h.maxUpload {
		return nil, nil, errors.Wrapf(errors.ErrInvalidArg, "file %s exceeds %d bytes", fh.Filename, h.maxUpload)
	}
	return fh, data, nil
}
