package analysis

import (
	"context"
	"fmt"
	"strings"

	"docunexus/internal/model/llm"
	"docunexus/internal/prompt"
	"docunexus/pkg/errors"
	"docunexus/pkg/log"
)

// ThoughtProcessMarker 摘要中推理过程段落的标记
const ThoughtProcessMarker = "***Thought Process:***"

// MissingThoughts 要求了推理过程但模型没有按标记输出时的占位
const MissingThoughts = "Thought process section was not explicitly provided."

// Summary 摘要结果
type Summary struct {
	Summary  string `json:"summary"`
	Thoughts string `json:"thoughts,omitempty"`
}

// Summarizer 文档摘要
type Summarizer struct {
	client llm.Client
	logger *log.Logger
}

// NewSummarizer 创建摘要器
func NewSummarizer(client llm.Client, logger *log.Logger) *Summarizer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Summarizer{client: client, logger: logger}
}

// Summarize length 为 concise / detailed / comprehensive，空时按 concise
func (s *Summarizer) Summarize(ctx context.Context, text, length string, withReasoning bool) (Summary, error) {
	if s.client == nil {
		return Summary{}, errors.Wrap(errors.ErrNotConfigured, "summarization model")
	}
	if strings.TrimSpace(text) == "" {
		return Summary{}, errors.Wrap(errors.ErrInvalidArg, "document has no text to summarize")
	}
	if length == "" {
		length = "concise"
	}
	s.logger.Debug("starting document summarization", "length", length)

	p := prompt.SummaryPrompt(text, length)
	if withReasoning {
		p += fmt.Sprintf("\nPlease also provide your reasoning and thought process behind this summary in a section marked '%s'.", ThoughtProcessMarker)
	}
	out, err := s.client.ChatWithContext(ctx, []llm.Message{
		{Role: "system", Content: "You are an AI summarization expert."},
		{Role: "user", Content: p},
	}, llm.GenerateOptions{MaxTokens: 2000})
	if err != nil {
		s.logger.Error("error during document summarization", "error", err)
		return Summary{}, fmt.Errorf("summarize document failed: %w", err)
	}
	s.logger.Info("summarization completed", "summary_length", len(out))

	if !withReasoning {
		return Summary{Summary: out}, nil
	}
	main, thoughts, found := strings.Cut(out, ThoughtProcessMarker)
	if !found {
		return Summary{Summary: strings.TrimSpace(out), Thoughts: MissingThoughts}, nil
	}
	return Summary{Summary: strings.TrimSpace(main), Thoughts: strings.TrimSpace(thoughts)}, nil
}
