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

package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultAzureInferenceEndpoint Azure AI 推理端点（Phi-4 系列）
const DefaultAzureInferenceEndpoint = "https://models.inference.ai.azure.com"

// DefaultAzureInferenceModel 默认备选模型
const DefaultAzureInferenceModel = "Phi-4-multimodal-instruct"

// OpenAIClient OpenAI 兼容 /chat/completions 客户端（Azure AI inference 等）
type OpenAIClient struct {
	provider string
	model    string
	apiKey   string
	baseURL  string
	client   *resty.Client
}

var _ VisionClient = (*OpenAIClient)(nil)

// NewOpenAIClient 创建 OpenAI 兼容客户端；baseURL 为空时用 Azure AI 推理端点
func NewOpenAIClient(provider, model, apiKey, baseURL string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s api key is empty", provider)
	}
	if model == "" {
		model = DefaultAzureInferenceModel
	}
	if baseURL == "" {
		baseURL = DefaultAzureInferenceEndpoint
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &OpenAIClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
	}, nil
}

// chatMessage content 为 string 或 []contentPart
type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL map[string]string `json:"image_url,omitempty"`
}

// GenerateWithContext 使用上下文生成文本
func (c *OpenAIClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// GenerateWithImage 以 data URI 传图
func (c *OpenAIClient) GenerateWithImage(ctx context.Context, prompt string, image Image, options GenerateOptions) (string, error) {
	mime := image.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	msgs := c.systemMessages(nil, options.SystemInstruction)
	msgs = append(msgs, chatMessage{Role: "user", Content: []contentPart{
		{Type: "text", Text: prompt},
		{Type: "image_url", ImageURL: map[string]string{
			"url": "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image.Data),
		}},
	}})
	return c.complete(ctx, msgs, options)
}

// ChatWithContext 使用上下文聊天
func (c *OpenAIClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	msgs := c.systemMessages(messages, options.SystemInstruction)
	return c.complete(ctx, msgs, options)
}

func (c *OpenAIClient) systemMessages(messages []Message, instruction string) []chatMessage {
	all := withSystem(messages, instruction)
	out := make([]chatMessage, 0, len(all))
	for _, m := range all {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (c *OpenAIClient) complete(ctx context.Context, msgs []chatMessage, options GenerateOptions) (string, error) {
	request := map[string]interface{}{
		"model":    c.model,
		"messages": msgs,
	}
	if options.Temperature > 0 {
		request["temperature"] = options.Temperature
	}
	if options.TopP > 0 {
		request["top_p"] = options.TopP
	}
	if options.MaxTokens > 0 {
		request["max_tokens"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		request["stop"] = options.Stop
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/chat/completions")
	if err != nil {
		return "", fmt.Errorf("调用 %s API failed: %w", c.provider, err)
	}
	if response.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%s API 返回错误 (%d): %s", c.provider, response.StatusCode(), response.String())
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(response.Body(), &result); err != nil {
		return "", fmt.Errorf("解析 %s 响应failed: %w", c.provider, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%s API 没有返回结果", c.provider)
	}
	return result.Choices[0].Message.Content, nil
}

// Model 返回模型名称
func (c *OpenAIClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *OpenAIClient) Provider() string {
	return c.provider
}
