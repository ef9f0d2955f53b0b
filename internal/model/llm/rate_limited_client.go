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
	"time"

	"docunexus/pkg/metrics"
	"docunexus/pkg/tracing"
)

// RateLimitedClient 包装任意 Client：调用前限流，调用后记录指标与 span。
// rateLimiter 为 nil 时只做观测。
type RateLimitedClient struct {
	inner       Client
	rateLimiter *LLMRateLimiter
}

var _ VisionClient = (*RateLimitedClient)(nil)

// NewRateLimitedClient 创建带限流的 LLM 客户端
func NewRateLimitedClient(inner Client, rateLimiter *LLMRateLimiter) *RateLimitedClient {
	return &RateLimitedClient{inner: inner, rateLimiter: rateLimiter}
}

// GenerateWithContext 实现 Client.GenerateWithContext
func (c *RateLimitedClient) GenerateWithContext(ctx context.Context, prompt string, options GenerateOptions) (string, error) {
	return c.do(ctx, prompt, options, func(ctx context.Context) (string, error) {
		return c.inner.GenerateWithContext(ctx, prompt, options)
	})
}

// ChatWithContext 实现 Client.ChatWithContext
func (c *RateLimitedClient) ChatWithContext(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	return c.do(ctx, messagesText(messages), options, func(ctx context.Context) (string, error) {
		return c.inner.ChatWithContext(ctx, messages, options)
	})
}

// GenerateWithImage 底层不支持图片时返回错误
func (c *RateLimitedClient) GenerateWithImage(ctx context.Context, prompt string, image Image, options GenerateOptions) (string, error) {
	vc, ok := c.inner.(VisionClient)
	if !ok {
		return "", fmt.Errorf("provider %s does not support image input", c.inner.Provider())
	}
	return c.do(ctx, prompt, options, func(ctx context.Context) (string, error) {
		return vc.GenerateWithImage(ctx, prompt, image, options)
	})
}

// SupportsImages 底层是否实现 VisionClient
func (c *RateLimitedClient) SupportsImages() bool {
	_, ok := c.inner.(VisionClient)
	return ok
}

// SupportsImages 判断客户端（可能被包装）能否接收图片输入
func SupportsImages(c Client) bool {
	if s, ok := c.(interface{ SupportsImages() bool }); ok {
		return s.SupportsImages()
	}
	_, ok := c.(VisionClient)
	return ok
}

func (c *RateLimitedClient) do(ctx context.Context, text string, options GenerateOptions, call func(context.Context) (string, error)) (string, error) {
	provider := c.inner.Provider()
	if c.rateLimiter != nil {
		start := time.Now()
		if err := c.rateLimiter.Wait(ctx, provider, estimateTokens(text, options.MaxTokens)); err != nil {
			return "", err
		}
		if waited := time.Since(start); waited > 100*time.Millisecond {
			metrics.RateLimitWaitSeconds.WithLabelValues("llm", provider).Observe(waited.Seconds())
		}
		defer c.rateLimiter.Release(provider)
	}

	ctx, span := tracing.StartModelSpan(ctx, provider, c.inner.Model())
	start := time.Now()
	out, err := call(ctx)
	metrics.ObserveModel(provider, start, err)
	tracing.End(span, err)
	return out, err
}

// Model 返回底层 Client 的模型名称
func (c *RateLimitedClient) Model() string { return c.inner.Model() }

// Provider 返回底层 Client 的提供商名称
func (c *RateLimitedClient) Provider() string { return c.inner.Provider() }

// estimateTokens 粗略估算请求的 token 数（4 字符 ≈ 1 token）
func estimateTokens(text string, maxTokens int) int {
	estimated := len(text) / 4
	if maxTokens > 0 {
		estimated += maxTokens
	}
	if estimated < 1 {
		estimated = 1
	}
	return estimated
}

// messagesText 将消息列表合并为单一字符串，用于 token 估算
func messagesText(msgs []Message) string {
	n := 0
	for _, m := range msgs {
		n += len(m.Content)
	}
	buf := make([]byte, 0, n)
	for _, m := range msgs {
		buf = append(buf, m.Content...)
	}
	return string(buf)
}
