package response

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitThoughts(t *testing.T) {
	text := `
    The key points are:
    1. Data privacy is crucial.
    2. User consent is required.

    ***DocuNexus Thoughts:***
    I identified the key points by looking for numbered lists.
    `
	main, thoughts := SplitThoughts(text)
	assert.True(t, strings.HasPrefix(main, "The key points are:"))
	assert.True(t, strings.HasSuffix(main, "User consent is required."))
	assert.Equal(t, "I identified the key points by looking for numbered lists.", thoughts)
}

func TestSplitThoughts_NoMarker(t *testing.T) {
	main, thoughts := SplitThoughts("  just an answer \n")
	assert.Equal(t, "just an answer", main)
	assert.Empty(t, thoughts)
}

func TestSplitThoughts_SecondMarkerEndsThoughts(t *testing.T) {
	main, thoughts := FormatText(context.Background(), "a "+ThoughtsMarker+" b "+ThoughtsMarker+" c")
	assert.Equal(t, "a", main)
	assert.Equal(t, "b", thoughts)
}

func TestFormatData_Array(t *testing.T) {
	d := FormatData(context.Background(), `[{"item": "Item A", "value": 10}, {"item": "Item B", "value": 25, "note": "x"}]`)
	require.NotNil(t, d.Table)
	assert.Empty(t, d.Raw)
	assert.Equal(t, []string{"item", "value", "note"}, d.Table.Columns)
	assert.Equal(t, [][]string{{"Item A", "10", ""}, {"Item B", "25", "x"}}, d.Table.Rows)
}

func TestFormatData_ObjectAndInvalid(t *testing.T) {
	obj := `{"item": "A"}`
	d := FormatData(context.Background(), obj)
	assert.Nil(t, d.Table)
	assert.Equal(t, obj, d.Raw)

	d = FormatData(context.Background(), "not json")
	assert.Nil(t, d.Table)
	assert.Equal(t, "not json", d.Raw)
}

func TestFormatError(t *testing.T) {
	assert.Equal(t,
		"**Error:** API connection timed out.. Please check the trace data in the sidebar for details.",
		FormatError("API connection timed out."))
}

func TestTableMarkdown(t *testing.T) {
	tbl := &Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "x|y"}}}
	assert.Equal(t, "| a | b |\n| --- | --- |\n| 1 | x\\|y |\n", tbl.Markdown())
	assert.Empty(t, (*Table)(nil).Markdown())
}

func TestRenderMarkdown(t *testing.T) {
	html := string(RenderMarkdown("**bold** <script>alert(1)</script>"))
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.NotContains(t, html, "<script>")
}
