package llm

import (
	"context"
	"fmt"
)

// Client LLM 客户端接口
type Client interface {
	// GenerateWithContext 单轮文本生成
	GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error)
	// ChatWithContext 多轮消息生成
	ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error)
	// Model 返回模型名称
	Model() string
	// Provider 返回提供商名称
	Provider() string
}

// VisionClient 支持图片输入的模型（Gemini inline_data / OpenAI image_url）
type VisionClient interface {
	Client
	GenerateWithImage(ctx context.Context, prompt string, image Image, options GenerateOptions) (string, error)
}

// GenerateOptions 生成选项
type GenerateOptions struct {
	Temperature       float64  `json:"temperature"`
	MaxTokens         int      `json:"max_tokens"`
	TopP              float64  `json:"top_p"`
	Stop              []string `json:"stop"`
	SystemInstruction string   `json:"system_instruction"`
}

// Message 聊天消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Image 内联图片
type Image struct {
	MIMEType string
	Data     []byte
}

// withSystem 在消息前补 system 指令（已有 system 消息时不重复）
func withSystem(messages []Message, instruction string) []Message {
	if instruction == "" {
		return messages
	}
	for _, m := range messages {
		if m.Role == "system" {
			return messages
		}
	}
	return append([]Message{{Role: "system", Content: instruction}}, messages...)
}

// ProviderOptions 创建客户端所需参数
type ProviderOptions struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	APIVersion string
}

// NewClient 按 provider 创建 LLM 客户端
func NewClient(ctx context.Context, opts ProviderOptions) (Client, error) {
	switch opts.Provider {
	case "gemini":
		return NewGeminiClient(opts.Model, opts.APIKey, opts.BaseURL)
	case "azure_inference", "openai_compatible":
		return NewOpenAIClient(opts.Provider, opts.Model, opts.APIKey, opts.BaseURL)
	case "azure_openai", "openai":
		return NewEinoClient(ctx, opts)
	case "claude":
		return NewClaudeClient(opts.Model, opts.APIKey, opts.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", opts.Provider)
	}
}
