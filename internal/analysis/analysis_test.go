package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docunexus/internal/model/llm"
	dnerrors "docunexus/pkg/errors"
)

type chatRecorder struct {
	out      string
	err      error
	messages []llm.Message
	options  llm.GenerateOptions
}

func (c *chatRecorder) GenerateWithContext(ctx context.Context, p string, o llm.GenerateOptions) (string, error) {
	return c.ChatWithContext(ctx, []llm.Message{{Role: "user", Content: p}}, o)
}
func (c *chatRecorder) ChatWithContext(ctx context.Context, m []llm.Message, o llm.GenerateOptions) (string, error) {
	c.messages, c.options = m, o
	return c.out, c.err
}
func (c *chatRecorder) Model() string    { return "rec" }
func (c *chatRecorder) Provider() string { return "fake" }

func TestParseEntities(t *testing.T) {
	got := ParseEntities("Party A: Acme Corp\n- **Effective Date**: 2024-01-01\n\nSignature\n: orphan value\n")
	assert.Equal(t, []Entity{
		{Key: "Party A", Value: "Acme Corp"},
		{Key: "Effective Date", Value: "2024-01-01"},
		{Key: "Signature", Value: "N/A"},
		{Key: "N/A", Value: "orphan value"},
	}, got)
}

func TestAnalyzer_EntitiesUsesModelWithoutFormRecognizer(t *testing.T) {
	rec := &chatRecorder{out: "Total: 42"}
	a := NewAnalyzer(rec, nil, nil)
	got, err := a.Entities(context.Background(), "invoice text", []byte("raw"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, []Entity{{Key: "Total", Value: "42"}}, got)
	assert.Contains(t, rec.messages[1].Content, "invoice text")
}

func TestAnalyzer_CompareDocuments(t *testing.T) {
	rec := &chatRecorder{out: "They differ."}
	a := NewAnalyzer(rec, nil, nil)

	out, err := a.CompareDocuments(context.Background(), "Compare the payment terms", []string{"Doc1 text", "Doc2 text"})
	require.NoError(t, err)
	assert.Equal(t, "They differ.", out)
	assert.Equal(t, "You are an expert in document comparison and analysis.", rec.messages[0].Content)
	assert.Equal(t, "Compare the payment terms\n\nDoc1 text\n\n---\n\nDoc2 text", rec.messages[1].Content)
	assert.Equal(t, 2000, rec.options.MaxTokens)

	_, err = a.CompareDocuments(context.Background(), "", []string{"only one"})
	assert.True(t, errors.Is(err, dnerrors.ErrInvalidArg))

	_, err = a.CompareDocuments(context.Background(), "", []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.messages[1].Content, DefaultComparisonPrompt))
}

func TestAnalyzer_SemanticSearch(t *testing.T) {
	rec := &chatRecorder{out: "Clause 4 covers privacy."}
	a := NewAnalyzer(rec, nil, nil)
	out, err := a.SemanticSearch(context.Background(), "full text", "data privacy")
	require.NoError(t, err)
	assert.Equal(t, "Clause 4 covers privacy.", out)
	assert.Equal(t, "Search the following document for information related to: data privacy\n\nDocument:\nfull text", rec.messages[1].Content)
	assert.Equal(t, 1500, rec.options.MaxTokens)
}

func TestAnalyzer_Errors(t *testing.T) {
	a := NewAnalyzer(&chatRecorder{err: errors.New("timeout")}, nil, nil)
	_, err := a.AnalyzeMetadata(context.Background(), map[string]string{"a": "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	_, err = NewAnalyzer(nil, nil, nil).SemanticSearch(context.Background(), "t", "q")
	assert.True(t, errors.Is(err, dnerrors.ErrNotConfigured))
}

func TestMetadataPrompt(t *testing.T) {
	p := MetadataPrompt(map[string]string{"size": "10", "author": "Jane"})
	assert.Equal(t, "Analyze the following document metadata and provide insights:\nauthor: Jane\nsize: 10\n", p)
}

func TestExtractMetadata(t *testing.T) {
	md := ExtractMetadata("notes.txt", []byte("hello"))
	assert.Equal(t, "notes.txt", md["file_name"])
	assert.Equal(t, "txt", md["file_type"])
	assert.Equal(t, "5", md["size"])
	assert.Equal(t, Unknown, md["author"])
	assert.Equal(t, Unknown, md["creation_date"])
	assert.Equal(t, Unknown, md["modification_date"])

	// 损坏的 PDF 保留默认值
	md = ExtractMetadata("x.pdf", []byte("garbage"))
	assert.Equal(t, Unknown, md["author"])

	md = ExtractMetadata("", nil)
	assert.Equal(t, Unknown, md["file_name"])
	assert.Equal(t, Unknown, md["file_type"])
}

func TestSummarizer(t *testing.T) {
	rec := &chatRecorder{out: "Short summary.\n***Thought Process:***\nI read it."}
	s := NewSummarizer(rec, nil)

	sum, err := s.Summarize(context.Background(), "Document text", "", true)
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", sum.Summary)
	assert.Equal(t, "I read it.", sum.Thoughts)
	assert.Contains(t, rec.messages[1].Content, "Summarize the following document in a concise manner:\n\nDocument text")
	assert.Contains(t, rec.messages[1].Content, ThoughtProcessMarker)

	rec.out = "No marker here."
	sum, err = s.Summarize(context.Background(), "Document text", "detailed", true)
	require.NoError(t, err)
	assert.Equal(t, MissingThoughts, sum.Thoughts)

	sum, err = s.Summarize(context.Background(), "Document text", "detailed", false)
	require.NoError(t, err)
	assert.Equal(t, "No marker here.", sum.Summary)
	assert.Empty(t, sum.Thoughts)
	assert.NotContains(t, rec.messages[1].Content, ThoughtProcessMarker)
}

func TestSummarizer_EmptyText(t *testing.T) {
	_, err := NewSummarizer(&chatRecorder{}, nil).Summarize(context.Background(), "  ", "", false)
	assert.True(t, errors.Is(err, dnerrors.ErrInvalidArg))
}
