package http

import (
	"context"
	"encoding/base64"
	stderrors "errors"
	"html/template"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"docunexus/internal/engine"
	"docunexus/internal/model/speech"
	"docunexus/internal/model/vision"
	"docunexus/internal/prompt"
	"docunexus/internal/response"
	"docunexus/internal/runtime/history"
	"docunexus/internal/storage/document"
	"docunexus/pkg/auth"
	"docunexus/pkg/errors"
)

// 未指定 document_ids 时作为上下文的最近文档数
const maxContextDocuments = 5

type askRequest struct {
	Prompt       string   `json:"prompt"`
	UseSecondary bool     `json:"use_secondary"`
	DocumentIDs  []string `json:"document_ids"`
	// 以下为空时使用模板默认值
	ResponseLength string `json:"response_length"`
	Language       string `json:"language"`
	Thoughts       *bool  `json:"thoughts"`
}

func (r askRequest) promptOptions() []prompt.Option {
	var opts []prompt.Option
	if r.ResponseLength != "" {
		opts = append(opts, prompt.WithResponseLength(r.ResponseLength))
	}
	if r.Language != "" {
		opts = append(opts, prompt.WithLanguage(r.Language))
	}
	if r.Thoughts != nil {
		opts = append(opts, prompt.WithThoughts(*r.Thoughts))
	}
	return opts
}

type talkRequest struct {
	Prompt   string `json:"prompt"`
	Speak    bool   `json:"speak"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

type answerResponse struct {
	Answer      string          `json:"answer"`
	AnswerHTML  template.HTML   `json:"answer_html,omitempty"`
	Thoughts    string          `json:"thoughts,omitempty"`
	Model       string          `json:"model,omitempty"`
	Table       *response.Table `json:"table,omitempty"`
	Audio       string          `json:"audio,omitempty"`
	SpeechError string          `json:"speech_error,omitempty"`
}

func newAnswer(c context.Context, res engine.Result) answerResponse {
	out := answerResponse{Answer: res.Answer, Thoughts: res.Thoughts, Model: res.Model}
	if errors.IsUserMessage(res.Answer) {
		return out
	}
	out.AnswerHTML = response.RenderMarkdown(res.Answer)
	if strings.HasPrefix(strings.TrimSpace(res.Answer), "[") {
		out.Table = response.FormatData(c, res.Answer).Table
	}
	return out
}

// Ask POST /api/ask，Text Input 模式
func (h *Handler) Ask(c context.Context, ctx *app.RequestContext) {
	var req askRequest
	if err := ctx.BindJSON(&req); err != nil {
		warn(ctx, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		warn(ctx, engine.MsgEmptyPrompt)
		return
	}
	docs, err := h.contextDocuments(c, req.DocumentIDs)
	if err != nil {
		fail(c, ctx, "load context documents", err)
		return
	}
	h.answer(c, ctx, history.ModeText, req.Prompt, func() (engine.Result, error) {
		return h.svc.Engine.ProcessTextRequest(c, req.Prompt, docs, req.UseSecondary, req.promptOptions()...)
	}, nil)
}

// Talk POST /api/talk，Talk to DocuNexus 模式：主模型回答，可选语音合成
func (h *Handler) Talk(c context.Context, ctx *app.RequestContext) {
	var req talkRequest
	if err := ctx.BindJSON(&req); err != nil {
		warn(ctx, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		warn(ctx, engine.MsgEmptyPrompt)
		return
	}
	h.answer(c, ctx, history.ModeTalk, req.Prompt, func() (engine.Result, error) {
		return h.svc.Engine.ProcessTextRequest(c, req.Prompt, nil, false)
	}, func(out *answerResponse) {
		if !req.Speak {
			return
		}
		if h.svc.Speech == nil {
			out.SpeechError = errors.UserMessage(errors.Wrap(errors.ErrNotConfigured, "speech service"))
			return
		}
		res, err := h.svc.Speech.Speak(c, out.Answer, speech.Options{Language: req.Language, Voice: req.Voice}, false, "")
		if err != nil {
			hlog.CtxErrorf(c, "text to speech failed: %v", err)
			out.SpeechError = errors.UserMessage(err)
			return
		}
		out.Audio = base64.StdEncoding.EncodeToString(res.Audio)
	})
}

// Vision POST /api/vision，multipart: prompt + frame
func (h *Handler) Vision(c context.Context, ctx *app.RequestContext) {
	question := ctx.PostForm("prompt")
	if strings.TrimSpace(question) == "" {
		warn(ctx, engine.MsgEmptyVisionPrompt)
		return
	}
	_, frame, err := h.readFormFile(ctx, "frame")
	if err != nil || len(frame) == 0 {
		warn(ctx, engine.MsgEmptyFrame)
		return
	}
	var opts []prompt.Option
	if lang := ctx.PostForm("language"); lang != "" {
		opts = append(opts, prompt.WithLanguage(lang))
	}
	h.answer(c, ctx, history.ModeVision, question, func() (engine.Result, error) {
		return h.svc.Engine.ProcessVisionRequest(c, question, frame, opts...)
	}, nil)
}

// answer 模型类请求的公共流程：模型失败时仍返回 200，answer 为 "Error occurred: ..." 文案
func (h *Handler) answer(c context.Context, ctx *app.RequestContext, mode, question string, call func() (engine.Result, error), decorate func(*answerResponse)) {
	if h.svc.Engine == nil {
		notConfigured(c, ctx, "engine")
		return
	}
	res, err := call()
	if err != nil {
		switch {
		case stderrors.Is(err, errors.ErrInvalidArg), stderrors.Is(err, errors.ErrNotConfigured):
			fail(c, ctx, mode+" request", err)
			return
		}
		hlog.CtxErrorf(c, "%s request failed: %v", mode, err)
		if res.Answer == "" {
			res.Answer = errors.UserMessage(err)
		}
	}
	h.record(c, mode, question, res.Answer, res.Thoughts)
	out := newAnswer(c, res)
	if err == nil && decorate != nil {
		decorate(&out)
	}
	ctx.JSON(consts.StatusOK, out)
}

// contextDocuments 按 ID 读取当前用户的文档正文；ids 为空时取最近上传的文档
func (h *Handler) contextDocuments(c context.Context, ids []string) ([]string, error) {
	if h.svc.Documents == nil {
		return nil, nil
	}
	filter := &document.Filter{Owner: auth.GetUserID(c), IDs: ids}
	if len(ids) == 0 {
		filter.Limit = maxContextDocuments
	}
	recs, err := h.svc.Documents.List(c, filter)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 && len(recs) != len(ids) {
		return nil, errors.Wrap(errors.ErrNotFound, "one or more documents")
	}
	docs := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.Text != "" {
			docs = append(docs, r.Text)
		}
	}
	return docs, nil
}

type frameResponse struct {
	Image       string `json:"image"`
	Description string `json:"description,omitempty"`
	Tags        string `json:"tags,omitempty"`
	Annotated   bool   `json:"annotated"`
}

// Frame POST /api/frames，Webcam / Screen Share 帧标注；失败时原样返回帧
func (h *Handler) Frame(c context.Context, ctx *app.RequestContext) {
	_, frame, err := h.readFormFile(ctx, "frame")
	if err != nil || len(frame) == 0 {
		warn(ctx, engine.MsgEmptyFrame)
		return
	}
	res := vision.ProcessFrame(c, h.svc.Vision, frame, h.logger)
	out := frameResponse{
		Image:     base64.StdEncoding.EncodeToString(res.Image),
		Annotated: res.Annotated,
	}
	if res.Annotated {
		out.Description = res.Analysis.Description
		out.Tags = res.Analysis.TagsText()
	}
	ctx.JSON(consts.StatusOK, out)
}
