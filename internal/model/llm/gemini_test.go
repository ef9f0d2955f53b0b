package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiClient_GenerateWithImage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"A cat "},{"text":"on a desk."}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewGeminiClient("gemini-test", "k", srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.GenerateWithImage(context.Background(), "what is this?", Image{Data: []byte{0xff, 0xd8}}, GenerateOptions{
		Temperature:       0.7,
		TopP:              0.95,
		MaxTokens:         8192,
		SystemInstruction: "be helpful",
	})
	if err != nil {
		t.Fatalf("GenerateWithImage: %v", err)
	}
	if out != "A cat on a desk." {
		t.Errorf("out = %q", out)
	}

	contents := got["contents"].([]interface{})
	parts := contents[0].(map[string]interface{})["parts"].([]interface{})
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	inline := parts[1].(map[string]interface{})["inline_data"].(map[string]interface{})
	if inline["mime_type"] != "image/jpeg" {
		t.Errorf("mime_type = %v", inline["mime_type"])
	}
	if inline["data"] != base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8}) {
		t.Errorf("data = %v", inline["data"])
	}
	gen := got["generationConfig"].(map[string]interface{})
	if gen["maxOutputTokens"].(float64) != 8192 || gen["topP"].(float64) != 0.95 {
		t.Errorf("generationConfig = %v", gen)
	}
	if _, ok := got["systemInstruction"]; !ok {
		t.Error("systemInstruction missing")
	}
}

func TestGeminiClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	c, _ := NewGeminiClient("m", "bad", srv.URL)
	_, err := c.GenerateWithContext(context.Background(), "hi", GenerateOptions{})
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("err = %v", err)
	}
}

func TestGeminiClient_ChatMapsRoles(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer srv.Close()

	c, _ := NewGeminiClient("m", "k", srv.URL)
	_, err := c.ChatWithContext(context.Background(), []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "q"},
		{Role: "assistant", Content: "a"},
	}, GenerateOptions{})
	if err != nil {
		t.Fatal(err)
	}
	contents := got["contents"].([]interface{})
	if len(contents) != 2 {
		t.Fatalf("contents = %d, want 2 (system moved out)", len(contents))
	}
	if contents[1].(map[string]interface{})["role"] != "model" {
		t.Errorf("assistant should map to model role")
	}
}

func TestNewClient_UnknownProvider(t *testing.T) {
	if _, err := NewClient(context.Background(), ProviderOptions{Provider: "nope", APIKey: "k"}); err == nil {
		t.Fatal("expected error")
	}
}
