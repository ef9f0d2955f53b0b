package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLLMRateLimiter_ConcurrencyReleased(t *testing.T) {
	l := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"gemini": {MaxConcurrent: 1},
	}, nil)
	ctx := context.Background()
	if err := l.Wait(ctx, "gemini", 10); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if l.inFlight("gemini") != 1 {
		t.Fatalf("inFlight = %d", l.inFlight("gemini"))
	}

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx2, "gemini", 10); err == nil {
		t.Fatal("second wait should block until context deadline")
	}

	l.Release("gemini")
	if err := l.Wait(ctx, "gemini", 10); err != nil {
		t.Fatalf("wait after release: %v", err)
	}
}

func TestLLMRateLimiter_LargeRequestClampedToBurst(t *testing.T) {
	l := NewLLMRateLimiter(map[string]LLMLimitConfig{
		"azure_inference": {TokensPerMinute: 600},
	}, nil)
	// 超过桶容量的请求不应直接报错
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx, "azure_inference", 10000); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

type stubClient struct {
	out string
	err error
}

func (s stubClient) GenerateWithContext(ctx context.Context, prompt string, o GenerateOptions) (string, error) {
	return s.out, s.err
}
func (s stubClient) ChatWithContext(ctx context.Context, m []Message, o GenerateOptions) (string, error) {
	return s.out, s.err
}
func (s stubClient) Model() string    { return "stub-model" }
func (s stubClient) Provider() string { return "stub" }

func TestRateLimitedClient(t *testing.T) {
	c := NewRateLimitedClient(stubClient{out: "ok"}, NewLLMRateLimiter(nil, nil))
	out, err := c.GenerateWithContext(context.Background(), "p", GenerateOptions{MaxTokens: 5})
	if err != nil || out != "ok" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if c.SupportsImages() || SupportsImages(c) {
		t.Error("stub does not support images")
	}
	if _, err := c.GenerateWithImage(context.Background(), "p", Image{}, GenerateOptions{}); err == nil {
		t.Error("expected error for non-vision provider")
	}

	failing := NewRateLimitedClient(stubClient{err: errors.New("down")}, nil)
	if _, err := failing.ChatWithContext(context.Background(), []Message{{Role: "user", Content: "x"}}, GenerateOptions{}); err == nil {
		t.Error("expected error to pass through")
	}
}
