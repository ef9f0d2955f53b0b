package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_DocumentAnalysisDefaults(t *testing.T) {
	p := Build(TaskDocumentAnalysis, "Analyze this document.", Context{Documents: []string{"Example text", "Second"}})
	assert.Contains(t, p, "Analyze this document.")
	assert.Contains(t, p, "comprehensive response in English")
	assert.Contains(t, p, "Example text\nSecond")
	assert.Contains(t, p, ThoughtsMarker)
}

func TestBuild_DocumentAnalysisNoDocs(t *testing.T) {
	p := Build(TaskDocumentAnalysis, "q", Context{}, WithThoughts(false), WithLanguage("French"))
	assert.Contains(t, p, "No documents provided.")
	assert.Contains(t, p, "in French")
	assert.NotContains(t, p, ThoughtsMarker)
}

func TestBuild_MediaSummarization(t *testing.T) {
	p := Build(TaskMediaSummarization, "Summarize the clip", Context{})
	assert.Contains(t, p, "concise response in English")
	assert.Contains(t, p, "No media description provided.")
	assert.NotContains(t, p, ThoughtsMarker)

	p = Build(TaskMediaSummarization, "Summarize", Context{MediaDescription: "a cat video"}, WithThoughts(true), WithResponseLength("detailed"))
	assert.Contains(t, p, "a cat video")
	assert.Contains(t, p, "detailed response")
	assert.Contains(t, p, ThoughtsMarker)
}

func TestBuild_WebcamVision(t *testing.T) {
	p := Build(TaskWebcamVisionAnalysis, "What is on my desk?", Context{})
	assert.Contains(t, p, "What is on my desk?")
	assert.Contains(t, p, "detailed response in English")
	assert.Contains(t, p, ThoughtsMarker)
}

func TestBuild_UnknownTaskUsesGeneral(t *testing.T) {
	p := Build("translation", "Hello?", Context{})
	assert.Contains(t, p, "General Inquiry")
	assert.Contains(t, p, "Hello?")
	assert.True(t, strings.Contains(p, "**Context:**\nNone"))

	p = Build(TaskGeneral, "Hello?", Context{Text: "some context"})
	assert.Contains(t, p, "some context")
}

func TestSummaryPrompt(t *testing.T) {
	s := SummaryPrompt("Document text", "")
	assert.Contains(t, s, "Summarize")
	assert.Contains(t, s, "concise")
	assert.Contains(t, s, "Document text")
}

func TestExamplePromptsCopy(t *testing.T) {
	ex := ExamplePrompts()
	assert.NotEmpty(t, ex)
	ex[0].Prompt = "changed"
	assert.NotEqual(t, "changed", ExamplePrompts()[0].Prompt)
}
