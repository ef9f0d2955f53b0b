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
	"sync"

	"golang.org/x/time/rate"
)

// LLMLimitConfig LLM Provider 限流配置
type LLMLimitConfig struct {
	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// DefaultLLMLimit 未单独配置的 provider 使用
var DefaultLLMLimit = LLMLimitConfig{
	TokensPerMinute:   120000,
	RequestsPerMinute: 60,
	MaxConcurrent:     8,
}

// LLMRateLimiter 按 provider 维度的 RPM + token budget + 并发限流
type LLMRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*llmLimiter
	defaults LLMLimitConfig
}

type llmLimiter struct {
	requests  *rate.Limiter
	tokens    *rate.Limiter
	semaphore chan struct{}
}

// NewLLMRateLimiter 创建 LLM 限流器；defaults 为 nil 时用 DefaultLLMLimit
func NewLLMRateLimiter(configs map[string]LLMLimitConfig, defaults *LLMLimitConfig) *LLMRateLimiter {
	l := &LLMRateLimiter{
		limiters: make(map[string]*llmLimiter),
		defaults: DefaultLLMLimit,
	}
	if defaults != nil {
		l.defaults = *defaults
	}
	for provider, cfg := range configs {
		l.limiters[provider] = newLLMLimiter(cfg)
	}
	return l
}

func newLLMLimiter(cfg LLMLimitConfig) *llmLimiter {
	lim := &llmLimiter{}
	if cfg.RequestsPerMinute > 0 {
		// burst = 2 秒的配额，至少 1
		burst := int(cfg.RequestsPerMinute / 30)
		if burst < 1 {
			burst = 1
		}
		lim.requests = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), burst)
	}
	if cfg.TokensPerMinute > 0 {
		// token 桶容量取一分钟配额，单次请求最多预扣 burst
		lim.tokens = rate.NewLimiter(rate.Limit(float64(cfg.TokensPerMinute)/60), cfg.TokensPerMinute)
	}
	if cfg.MaxConcurrent > 0 {
		lim.semaphore = make(chan struct{}, cfg.MaxConcurrent)
	}
	return lim
}

func (l *LLMRateLimiter) get(provider string) *llmLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[provider]
	if !ok {
		lim = newLLMLimiter(l.defaults)
		l.limiters[provider] = lim
	}
	return lim
}

// Wait 阻塞直到允许执行；成功后必须调用 Release
func (l *LLMRateLimiter) Wait(ctx context.Context, provider string, estimatedTokens int) error {
	lim := l.get(provider)
	if lim.requests != nil {
		if err := lim.requests.Wait(ctx); err != nil {
			return fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if lim.tokens != nil && estimatedTokens > 0 {
		n := estimatedTokens
		if b := lim.tokens.Burst(); n > b {
			n = b
		}
		if err := lim.tokens.WaitN(ctx, n); err != nil {
			return fmt.Errorf("token budget wait failed: %w", err)
		}
	}
	if lim.semaphore != nil {
		select {
		case lim.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Release 释放并发 slot
func (l *LLMRateLimiter) Release(provider string) {
	lim := l.get(provider)
	if lim.semaphore == nil {
		return
	}
	select {
	case <-lim.semaphore:
	default:
	}
}

// inFlight 当前占用的并发 slot 数
func (l *LLMRateLimiter) inFlight(provider string) int {
	lim := l.get(provider)
	if lim.semaphore == nil {
		return 0
	}
	return len(lim.semaphore)
}
