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

// Package engine 编排一次问答：选模型、拼提示词、调用模型、拆分思考过程
package engine

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"docunexus/internal/model"
	"docunexus/internal/model/llm"
	"docunexus/internal/prompt"
	"docunexus/internal/response"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
	"docunexus/pkg/tracing"
	"docunexus/pkg/utils"
)

// 输入校验文案，与 UI 提示一致
const (
	MsgEmptyPrompt       = "Please enter a prompt."
	MsgEmptyVisionPrompt = "Please enter a question about the webcam view."
	MsgEmptyFrame        = "No frame captured from the camera."
	MsgEmptyMedia        = "No media description available."
)

// Result 一次请求的展示结果
type Result struct {
	Answer   string `json:"answer"`
	Thoughts string `json:"thoughts,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Engine 问答引擎
type Engine struct {
	models *model.Manager
	logger *log.Logger
}

// New 创建引擎；logger 为 nil 时不输出
func New(models *model.Manager, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{models: models, logger: logger}
}

// Models 模型管理器
func (e *Engine) Models() *model.Manager {
	return e.models
}

// ProcessTextRequest 文档分析类文本请求。模型调用失败时 Result.Answer 为 "Error occurred: ..." 文案，同时返回错误
func (e *Engine) ProcessTextRequest(ctx context.Context, userPrompt string, contextDocs []string, useSecondary bool, opts ...prompt.Option) (Result, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return Result{}, errors.Wrap(errors.ErrInvalidArg, MsgEmptyPrompt)
	}
	client := e.models.Model(useSecondary)
	if client == nil {
		return Result{}, errors.Wrap(errors.ErrNotConfigured, "text model")
	}

	ctx, span := tracing.StartSpan(ctx, "engine.process_text_request",
		attribute.Bool("use_secondary", useSecondary),
		attribute.Int("context_documents", len(contextDocs)),
	)
	e.logger.Info("processing text request", "prompt", utils.Truncate(userPrompt, 50), "model", client.Model())

	fullPrompt := prompt.Build(prompt.TaskDocumentAnalysis, userPrompt, prompt.Context{Documents: contextDocs}, opts...)
	out, err := client.GenerateWithContext(ctx, fullPrompt, e.models.Options())
	if err != nil {
		err = fmt.Errorf("Error processing request with AI model: %w", err)
		e.logger.Error("error from AI model", "model", client.Model(), "error", err)
		tracing.End(span, err)
		return Result{Answer: errors.UserMessage(err), Model: client.Model()}, err
	}
	e.logger.Info("AI response received", "response", utils.Truncate(out, 100))

	main, thoughts := response.FormatText(ctx, out)
	tracing.End(span, nil)
	return Result{Answer: main, Thoughts: thoughts, Model: client.Model()}, nil
}

// ProcessVisionRequest 视觉请求：图片以 JPEG inline 方式随提示词发送
func (e *Engine) ProcessVisionRequest(ctx context.Context, userPrompt string, image []byte, opts ...prompt.Option) (Result, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return Result{}, errors.Wrap(errors.ErrInvalidArg, MsgEmptyVisionPrompt)
	}
	if len(image) == 0 {
		return Result{}, errors.Wrap(errors.ErrInvalidArg, MsgEmptyFrame)
	}
	client := e.models.VisionModel()
	if client == nil {
		return Result{}, errors.Wrap(errors.ErrNotConfigured, "vision model")
	}

	ctx, span := tracing.StartSpan(ctx, "engine.process_vision_request",
		attribute.Int("image_bytes", len(image)),
	)
	e.logger.Info("processing vision request", "model", client.Model())

	fullPrompt := prompt.Build(prompt.TaskWebcamVisionAnalysis, userPrompt, prompt.Context{}, opts...)
	out, err := client.GenerateWithImage(ctx, fullPrompt, llm.Image{MIMEType: "image/jpeg", Data: image}, e.models.Options())
	if err != nil {
		err = fmt.Errorf("Error processing vision request: %w", err)
		e.logger.Error("error from vision model", "model", client.Model(), "error", err)
		tracing.End(span, err)
		return Result{Answer: errors.UserMessage(err), Model: client.Model()}, err
	}
	e.logger.Info("vision response received", "response", utils.Truncate(out, 100))

	main, thoughts := response.FormatText(ctx, out)
	tracing.End(span, nil)
	return Result{Answer: main, Thoughts: thoughts, Model: client.Model()}, nil
}

// ProcessMediaSummary 媒体摘要：以媒体描述（如已完成任务的结果）为上下文，使用主模型
func (e *Engine) ProcessMediaSummary(ctx context.Context, userPrompt, description string) (Result, error) {
	if strings.TrimSpace(description) == "" {
		return Result{}, errors.Wrap(errors.ErrInvalidArg, MsgEmptyMedia)
	}
	userPrompt = utils.CoalesceString(strings.TrimSpace(userPrompt), "Summarize this media.")
	client := e.models.Model(false)
	if client == nil {
		return Result{}, errors.Wrap(errors.ErrNotConfigured, "text model")
	}

	ctx, span := tracing.StartSpan(ctx, "engine.process_media_summary",
		attribute.Int("description_length", len(description)),
	)
	e.logger.Info("processing media summary", "model", client.Model())

	fullPrompt := prompt.Build(prompt.TaskMediaSummarization, userPrompt, prompt.Context{MediaDescription: description})
	out, err := client.GenerateWithContext(ctx, fullPrompt, e.models.Options())
	if err != nil {
		err = fmt.Errorf("Error processing media summary: %w", err)
		e.logger.Error("error from AI model", "model", client.Model(), "error", err)
		tracing.End(span, err)
		return Result{Answer: errors.UserMessage(err), Model: client.Model()}, err
	}

	main, thoughts := response.FormatText(ctx, out)
	tracing.End(span, nil)
	return Result{Answer: main, Thoughts: thoughts, Model: client.Model()}, nil
}
