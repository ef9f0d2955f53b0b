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

// Package prompt 按任务类型拼装发给模型的提示词
package prompt

import (
	"fmt"
	"log/slog"
	"strings"
)

// ThoughtsMarker 模型输出中"思考过程"段落的标记；response.SplitThoughts 以同一标记切分
const ThoughtsMarker = "***DocuNexus Thoughts:***"

// TaskType 任务类型
type TaskType string

const (
	TaskDocumentAnalysis     TaskType = "document_analysis"
	TaskMediaSummarization   TaskType = "media_summarization"
	TaskWebcamVisionAnalysis TaskType = "webcam_vision_analysis"
	TaskGeneral              TaskType = "general"
)

// Context 提示词上下文：文档分析用 Documents，媒体摘要用 MediaDescription，通用问答用 Text
type Context struct {
	Documents        []string
	MediaDescription string
	Text             string
}

type options struct {
	responseLength string
	language       string
	thoughts       *bool
}

// Option 模板定制项
type Option func(*options)

// WithResponseLength 回答长度（comprehensive / concise / detailed ...）
func WithResponseLength(length string) Option {
	return func(o *options) { o.responseLength = length }
}

// WithLanguage 回答语言
func WithLanguage(lang string) Option {
	return func(o *options) { o.language = lang }
}

// WithThoughts 是否要求模型在末尾附思考过程
func WithThoughts(enabled bool) Option {
	return func(o *options) { o.thoughts = &enabled }
}

func resolve(length, lang string, thoughts bool, opts []Option) options {
	o := options{responseLength: length, language: lang}
	for _, opt := range opts {
		opt(&o)
	}
	if o.responseLength == "" {
		o.responseLength = length
	}
	if o.language == "" {
		o.language = lang
	}
	if o.thoughts == nil {
		o.thoughts = &thoughts
	}
	return o
}

// Build 根据任务类型生成完整提示词；未知任务类型退回通用问答模板并记录 warning
func Build(task TaskType, userPrompt string, c Context, opts ...Option) string {
	switch task {
	case TaskDocumentAnalysis:
		return documentAnalysis(userPrompt, c.Documents, resolve("comprehensive", "English", true, opts))
	case TaskMediaSummarization:
		return mediaSummarization(userPrompt, c.MediaDescription, resolve("concise", "English", false, opts))
	case TaskWebcamVisionAnalysis:
		return webcamVision(userPrompt, resolve("detailed", "English", true, opts))
	default:
		slog.Warn("no specific prompt template for task type, using default", "task_type", string(task))
		return general(userPrompt, c)
	}
}

func documentAnalysis(userPrompt string, docs []string, o options) string {
	documents := "No documents provided."
	if len(docs) > 0 {
		documents = strings.Join(docs, "\n")
	}
	var b strings.Builder
	fmt.Fprintf(&b, `[DocuNexus AGI - Document Analysis Task]

You are DocuNexus, an intelligent AGI agent specializing in document analysis.
Your goal is to deeply analyze the provided documents and respond to the user's request with a %s response in %s.

**User Request:**
%s

**Context Documents:**
---Document Start---
%s
---Document End---

Response Guidelines:
* Provide a clear, comprehensive, and detailed answer that directly addresses the user's request.
* Use bullet points or numbered lists where appropriate for clarity.
* Focus on extracting key insights and actionable information from the documents.
`, o.responseLength, o.language, userPrompt, documents)
	if *o.thoughts {
		fmt.Fprintf(&b, "\nInclude a section at the end, marked '%s', explaining your reasoning step-by-step.", ThoughtsMarker)
	}
	return b.String()
}

func mediaSummarization(userPrompt, description string, o options) string {
	if description == "" {
		description = "No media description provided."
	}
	var b strings.Builder
	fmt.Fprintf(&b, `[DocuNexus AGI - Media Summarization Task]

You are DocuNexus, an intelligent AGI agent specializing in media summarization.
Your goal is to summarize the media content based on the user's request in a %s response in %s.

**User Request:**
%s

**Media Description:**
%s

Response Guidelines:
* Provide a concise and informative summary of the media content relevant to the user's query.
* Focus on key themes, objects, or information present in the media.
`, o.responseLength, o.language, userPrompt, description)
	if *o.thoughts {
		fmt.Fprintf(&b, "\nInclude a brief section marked '%s' explaining your reasoning.", ThoughtsMarker)
	}
	return b.String()
}

func webcamVision(userPrompt string, o options) string {
	var b strings.Builder
	fmt.Fprintf(&b, `[DocuNexus AGI - Webcam Vision Analysis Task]

You are DocuNexus, an intelligent AGI agent specializing in real-time webcam analysis.
Your goal is to analyze the attached webcam frame and answer the user's question in a %s response in %s.

**User Question:**
%s

**Instructions:**
* Analyze objects, scenes, and activities visible in the webcam frame.
* Provide detailed insights, interpretations, and relevant information based on your analysis.
`, o.responseLength, o.language, userPrompt)
	if *o.thoughts {
		fmt.Fprintf(&b, "\nInclude a section at the end, marked '%s', explaining your step-by-step analysis process.", ThoughtsMarker)
	}
	return b.String()
}

func general(userPrompt string, c Context) string {
	ctxText := c.Text
	if ctxText == "" && len(c.Documents) > 0 {
		ctxText = strings.Join(c.Documents, "\n")
	}
	if ctxText == "" {
		ctxText = "None"
	}
	return fmt.Sprintf(`[DocuNexus AGI - General Inquiry]

**User Question:**
%s

**Context:**
%s

**Response Guidelines:**
Provide a clear and helpful answer that directly addresses the user's question, incorporating any context provided.
`, userPrompt, ctxText)
}
