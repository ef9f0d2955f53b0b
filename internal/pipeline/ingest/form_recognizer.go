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

package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

const (
	formRecognizerAPIVersion = "2023-07-31"
	defaultFRPollInterval    = time.Second
	defaultFRTimeout         = 2 * time.Minute
)

// FormRecognizerConfig Azure Document Intelligence 配置
type FormRecognizerConfig struct {
	Endpoint     string
	APIKey       string
	Model        string // 默认 prebuilt-read
	PollInterval time.Duration
	Timeout      time.Duration
}

// FormRecognizer Azure Document Intelligence REST 客户端（analyze + Operation-Location 轮询）
type FormRecognizer struct {
	cfg    FormRecognizerConfig
	client *resty.Client
}

// NewFormRecognizer endpoint 或 key 为空时返回 nil（视为未配置）
func NewFormRecognizer(cfg FormRecognizerConfig) *FormRecognizer {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = "prebuilt-read"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultFRPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFRTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetHeader("Ocp-Apim-Subscription-Key", cfg.APIKey)
	return &FormRecognizer{cfg: cfg, client: client}
}

// KeyValue prebuilt-document 识别出的键值对；缺失的一侧为 "N/A"
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Analyze 提交文档并等待识别完成，返回按行拼接（\n）的文本
func (f *FormRecognizer) Analyze(ctx context.Context, data []byte, contentType string) (string, error) {
	body, err := f.analyze(ctx, f.cfg.Model, data, contentType)
	if err != nil {
		return "", err
	}
	return linesText(body), nil
}

// KeyValues 使用 prebuilt-document 模型提取键值对
func (f *FormRecognizer) KeyValues(ctx context.Context, data []byte, contentType string) ([]KeyValue, error) {
	body, err := f.analyze(ctx, "prebuilt-document", data, contentType)
	if err != nil {
		return nil, err
	}
	var out []KeyValue
	for _, kv := range gjson.GetBytes(body, "analyzeResult.keyValuePairs").Array() {
		key, value := "N/A", "N/A"
		if k := kv.Get("key.content"); k.Exists() {
			key = k.String()
		}
		if v := kv.Get("value.content"); v.Exists() {
			value = v.String()
		}
		out = append(out, KeyValue{Key: key, Value: value})
	}
	return out, nil
}

func (f *FormRecognizer) analyze(ctx context.Context, modelID string, data []byte, contentType string) (body []byte, err error) {
	ctx, span := tracing.StartVendorSpan(ctx, "form_recognizer", "analyze")
	defer func() {
		metrics.ObserveVendor("form_recognizer", err)
		tracing.End(span, err)
	}()

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetQueryParam("api-version", formRecognizerAPIVersion).
		SetBody(data).
		Post(fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze", f.cfg.Endpoint, modelID))
	if err != nil {
		return nil, fmt.Errorf("提交文档分析failed: %w", err)
	}
	if resp.StatusCode() != http.StatusAccepted {
		return nil, fmt.Errorf("%w: 状态码 %d: %s", ErrAnalysisFailed, resp.StatusCode(), resp.String())
	}
	opURL := resp.Header().Get("Operation-Location")
	if opURL == "" {
		return nil, fmt.Errorf("%w: 响应缺少 Operation-Location", ErrAnalysisFailed)
	}
	return f.poll(ctx, opURL)
}

func (f *FormRecognizer) poll(ctx context.Context, opURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		resp, err := f.client.R().SetContext(ctx).Get(opURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrAnalysisTimeout
			}
			return nil, fmt.Errorf("查询分析结果failed: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("%w: 状态码 %d: %s", ErrAnalysisFailed, resp.StatusCode(), resp.String())
		}
		switch status := gjson.GetBytes(resp.Body(), "status").String(); status {
		case "succeeded":
			return resp.Body(), nil
		case "failed":
			return nil, fmt.Errorf("%w: %s", ErrAnalysisFailed, gjson.GetBytes(resp.Body(), "error.message").String())
		}
		select {
		case <-ctx.Done():
			return nil, ErrAnalysisTimeout
		case <-ticker.C:
		}
	}
}

// linesText 按页、行顺序拼接 analyzeResult 中的行内容
func linesText(body []byte) string {
	var b strings.Builder
	for _, page := range gjson.GetBytes(body, "analyzeResult.pages").Array() {
		for _, line := range page.Get("lines.#.content").Array() {
			b.WriteString(line.String())
			b.WriteString("\n")
		}
	}
	return b.String()
}
