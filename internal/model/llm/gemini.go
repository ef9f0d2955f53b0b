package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// GeminiClient Gemini generateContent 客户端，主模型
type GeminiClient struct {
	model   string
	apiKey  string
	baseURL string
	client  *resty.Client
}

var _ VisionClient = (*GeminiClient)(nil)

// NewGeminiClient 创建新的 Gemini 客户端；baseURL 为空时用 GEMINI_BASE_URL 或官方端点
func NewGeminiClient(model, apiKey, baseURL string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	if model == "" {
		model = "gemini-1.5-pro"
	}
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
		if envURL := os.Getenv("GEMINI_BASE_URL"); envURL != "" {
			baseURL = envURL
		}
	}

	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(1 * time.Second)
	client.SetRetryMaxWaitTime(5 * time.Second)

	return &GeminiClient{
		model:   model,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}, nil
}

type geminiPart map[string]interface{}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

// GenerateWithContext 使用上下文生成文本
func (c *GeminiClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.generate(ctx, []geminiContent{{Role: "user", Parts: []geminiPart{{"text": prompt}}}}, options)
}

// GenerateWithImage 文本 + inline_data 图片
func (c *GeminiClient) GenerateWithImage(ctx context.Context, prompt string, image Image, options GenerateOptions) (string, error) {
	mime := image.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	parts := []geminiPart{
		{"text": prompt},
		{"inline_data": map[string]string{
			"mime_type": mime,
			"data":      base64.StdEncoding.EncodeToString(image.Data),
		}},
	}
	return c.generate(ctx, []geminiContent{{Role: "user", Parts: parts}}, options)
}

// ChatWithContext system 消息并入 systemInstruction，assistant 映射为 model
func (c *GeminiClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	contents := make([]geminiContent, 0, len(messages))
	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{"text": msg.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{"text": msg.Content}}})
		}
	}
	if len(system) > 0 {
		if options.SystemInstruction != "" {
			system = append([]string{options.SystemInstruction}, system...)
		}
		options.SystemInstruction = strings.Join(system, "\n")
	}
	return c.generate(ctx, contents, options)
}

func (c *GeminiClient) generate(ctx context.Context, contents []geminiContent, options GenerateOptions) (string, error) {
	genCfg := map[string]interface{}{}
	if options.Temperature > 0 {
		genCfg["temperature"] = options.Temperature
	}
	if options.TopP > 0 {
		genCfg["topP"] = options.TopP
	}
	if options.MaxTokens > 0 {
		genCfg["maxOutputTokens"] = options.MaxTokens
	}
	if len(options.Stop) > 0 {
		genCfg["stopSequences"] = options.Stop
	}
	request := map[string]interface{}{
		"contents":         contents,
		"generationConfig": genCfg,
	}
	if options.SystemInstruction != "" {
		request["systemInstruction"] = geminiContent{Parts: []geminiPart{{"text": options.SystemInstruction}}}
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", c.apiKey).
		SetBody(request).
		Post(c.baseURL + "/models/" + c.model + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("调用 Gemini API failed: %w", err)
	}
	if response.StatusCode() != http.StatusOK {
		msg := gjson.GetBytes(response.Body(), "error.message").String()
		if msg == "" {
			msg = response.String()
		}
		return "", fmt.Errorf("Gemini API 返回错误 (%d): %s", response.StatusCode(), msg)
	}

	body := response.Body()
	if reason := gjson.GetBytes(body, "promptFeedback.blockReason"); reason.Exists() {
		return "", fmt.Errorf("Gemini 拒绝了请求: %s", reason.String())
	}
	parts := gjson.GetBytes(body, "candidates.0.content.parts.#.text")
	if !parts.Exists() || len(parts.Array()) == 0 {
		return "", fmt.Errorf("Gemini API 没有返回文本")
	}
	var sb strings.Builder
	for _, p := range parts.Array() {
		sb.WriteString(p.String())
	}
	return sb.String(), nil
}

// Model 返回模型名称
func (c *GeminiClient) Model() string {
	return c.model
}

// Provider 返回提供商名称
func (c *GeminiClient) Provider() string {
	return "gemini"
}
