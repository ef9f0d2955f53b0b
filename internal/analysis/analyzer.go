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

// Package analysis 文档级分析：实体提取、对比、语义检索、元数据洞察与摘要
package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docunexus/internal/model/llm"
	"docunexus/internal/pipeline/ingest"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
)

// DefaultComparisonPrompt 未提供对比要求时使用
const DefaultComparisonPrompt = "Compare these documents for similarities and differences."

const (
	systemComparison = "You are an expert in document comparison and analysis."
	systemSearch     = "You are an expert in semantic search within documents."
	systemMetadata   = "You are an AI expert in document metadata analysis."
	systemEntities   = "You are an expert in extracting entities and key-value pairs from documents."
)

// Entity 键值形式的实体
type Entity = ingest.KeyValue

// Analyzer 文档分析器；fr 为空时实体提取只走模型
type Analyzer struct {
	client llm.Client
	fr     *ingest.FormRecognizer
	logger *log.Logger
}

// NewAnalyzer 创建分析器
func NewAnalyzer(client llm.Client, fr *ingest.FormRecognizer, logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Analyzer{client: client, fr: fr, logger: logger}
}

func (a *Analyzer) chat(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if a.client == nil {
		return "", errors.Wrap(errors.ErrNotConfigured, "analysis model")
	}
	return a.client.ChatWithContext(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, llm.GenerateOptions{MaxTokens: maxTokens})
}

// Entities 有原始文件且配置了 Form Recognizer 时用 prebuilt-document 键值对，否则让模型从文本中提取
func (a *Analyzer) Entities(ctx context.Context, text string, raw []byte, contentType string) ([]Entity, error) {
	if a.fr != nil && len(raw) > 0 && contentType != "" {
		kvs, err := a.fr.KeyValues(ctx, raw, contentType)
		if err == nil {
			a.logger.Info("entity extraction completed", "source", "form_recognizer", "count", len(kvs))
			return kvs, nil
		}
		a.logger.Warn("form recognizer entity extraction failed, using model", "error", err)
	}
	return a.ExtractEntities(ctx, text)
}

// ExtractEntities 让模型按 "key: value" 逐行输出实体
func (a *Analyzer) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	prompt := "Extract the key entities and key-value pairs from the following document. " +
		"Respond with one `key: value` pair per line and nothing else.\n\nDocument:\n" + text
	out, err := a.chat(ctx, systemEntities, prompt, 1500)
	if err != nil {
		a.logger.Error("error extracting entities", "error", err)
		return nil, fmt.Errorf("extract entities failed: %w", err)
	}
	entities := ParseEntities(out)
	a.logger.Info("entity extraction completed", "source", "model", "count", len(entities))
	return entities, nil
}

// ParseEntities 解析 "key: value" 行；列表前缀会被去掉，缺失的一侧记为 "N/A"
func ParseEntities(s string) []Entity {
	var out []Entity
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, _ := strings.Cut(line, ":")
		key = strings.Trim(strings.TrimSpace(key), "*`")
		value = strings.TrimSpace(value)
		if key == "" {
			key = "N/A"
		}
		if value == "" {
			value = "N/A"
		}
		out = append(out, Entity{Key: key, Value: value})
	}
	return out
}

// CompareDocuments 对比多份文档；comparisonPrompt 为空时使用 DefaultComparisonPrompt
func (a *Analyzer) CompareDocuments(ctx context.Context, comparisonPrompt string, docs []string) (string, error) {
	if len(docs) < 2 {
		return "", errors.Wrap(errors.ErrInvalidArg, "at least two documents are required for comparison")
	}
	if strings.TrimSpace(comparisonPrompt) == "" {
		comparisonPrompt = DefaultComparisonPrompt
	}
	prompt := comparisonPrompt + "\n\n" + strings.Join(docs, "\n\n---\n\n")
	out, err := a.chat(ctx, systemComparison, prompt, 2000)
	if err != nil {
		a.logger.Error("error during document comparison", "error", err)
		return "", fmt.Errorf("compare documents failed: %w", err)
	}
	a.logger.Info("document comparison completed", "documents", len(docs))
	return out, nil
}

// SemanticSearch 在单份文档中检索与 query 相关的信息
func (a *Analyzer) SemanticSearch(ctx context.Context, text, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.Wrap(errors.ErrInvalidArg, "Please enter a search query.")
	}
	prompt := fmt.Sprintf("Search the following document for information related to: %s\n\nDocument:\n%s", query, text)
	out, err := a.chat(ctx, systemSearch, prompt, 1500)
	if err != nil {
		a.logger.Error("error during semantic search", "error", err)
		return "", fmt.Errorf("semantic search failed: %w", err)
	}
	return out, nil
}

// MetadataPrompt 元数据洞察提示词，键按字母序
func MetadataPrompt(md map[string]string) string {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("Analyze the following document metadata and provide insights:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, md[k])
	}
	return b.String()
}

// AnalyzeMetadata 基于元数据生成洞察
func (a *Analyzer) AnalyzeMetadata(ctx context.Context, md map[string]string) (string, error) {
	out, err := a.chat(ctx, systemMetadata, MetadataPrompt(md), 1500)
	if err != nil {
		a.logger.Error("error analyzing metadata", "error", err)
		return "", fmt.Errorf("analyze metadata failed: %w", err)
	}
	return out, nil
}
