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
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoClient 通过 eino ChatModel 调用 OpenAI / Azure OpenAI 部署
type EinoClient struct {
	provider string
	model    string
	chat     model.BaseChatModel
}

// NewEinoClient provider=azure_openai 时走 Azure 部署（BaseURL 为资源端点，APIVersion 必填）
func NewEinoClient(ctx context.Context, opts ProviderOptions) (*EinoClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s api key is empty", opts.Provider)
	}
	cfg := &openai.ChatModelConfig{
		Model:   opts.Model,
		APIKey:  opts.APIKey,
		BaseURL: opts.BaseURL,
	}
	if opts.Provider == "azure_openai" {
		cfg.ByAzure = true
		cfg.APIVersion = opts.APIVersion
		if cfg.APIVersion == "" {
			cfg.APIVersion = "2024-06-01"
		}
	}
	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 OpenAI ChatModel failed: %w", err)
	}
	return NewEinoClientFromModel(opts.Provider, opts.Model, chatModel), nil
}

// NewEinoClientFromModel 包装任意 eino ChatModel（测试中注入 fake）
func NewEinoClientFromModel(provider, modelName string, chat model.BaseChatModel) *EinoClient {
	return &EinoClient{provider: provider, model: modelName, chat: chat}
}

// GenerateWithContext 使用上下文生成文本
func (c *EinoClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []Message{{Role: "user", Content: prompt}}, options)
}

// ChatWithContext 转换为 schema.Message 后调用 Generate
func (c *EinoClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	input := make([]*schema.Message, 0, len(messages)+1)
	for _, m := range withSystem(messages, options.SystemInstruction) {
		switch m.Role {
		case "system":
			input = append(input, schema.SystemMessage(m.Content))
		case "assistant":
			input = append(input, schema.AssistantMessage(m.Content, nil))
		default:
			input = append(input, schema.UserMessage(m.Content))
		}
	}

	var opts []model.Option
	if options.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(options.Temperature)))
	}
	if options.TopP > 0 {
		opts = append(opts, model.WithTopP(float32(options.TopP)))
	}
	if options.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(options.MaxTokens))
	}
	if len(options.Stop) > 0 {
		opts = append(opts, model.WithStop(options.Stop))
	}

	out, err := c.chat.Generate(ctx, input, opts...)
	if err != nil {
		return "", fmt.Errorf("%s generate failed: %w", c.provider, err)
	}
	if out == nil {
		return "", fmt.Errorf("%s 没有返回结果", c.provider)
	}
	return out.Content, nil
}

// Model 返回模型名称
func (c *EinoClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *EinoClient) Provider() string {
	return c.provider
}
