package prompt

import "fmt"

// Example UI 中展示的示例提示词
type Example struct {
	Mode   string `json:"mode"`
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

var examples = []Example{
	{Mode: "Text Input", Title: "Contract summary", Prompt: "Summarize the key points of a contract about data privacy."},
	{Mode: "Text Input", Title: "Obligations", Prompt: "List every obligation the supplier has under the uploaded agreement."},
	{Mode: "Text Input", Title: "Risk review", Prompt: "Identify clauses in the uploaded documents that carry legal or financial risk."},
	{Mode: "Talk to DocuNexus", Title: "Quick question", Prompt: "What is the termination notice period in this contract?"},
	{Mode: "Webcam Vision", Title: "Scene", Prompt: "What objects do you see on my desk?"},
	{Mode: "Webcam Vision", Title: "Read a document", Prompt: "Read the document I am holding up and summarize it."},
	{Mode: "Screen Share", Title: "Explain screen", Prompt: "Explain the chart currently shown on my screen."},
}

// ExamplePrompts 返回示例提示词副本
func ExamplePrompts() []Example {
	out := make([]Example, len(examples))
	copy(out, examples)
	return out
}

// SummaryPrompt 文档摘要提示词
func SummaryPrompt(text, length string) string {
	if length == "" {
		length = "concise"
	}
	return fmt.Sprintf("Summarize the following document in a %s manner:\n\n%s", length, text)
}
