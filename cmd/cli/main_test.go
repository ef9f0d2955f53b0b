package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"docunexus/pkg/auth"
)

func TestExtractOutput(t *testing.T) {
	format, rest := extractOutput([]string{"-o", "json", "ask", "hello"})
	assert.Equal(t, "json", format)
	assert.Equal(t, []string{"ask", "hello"}, rest)

	format, rest = extractOutput([]string{"history", "--output=yaml"})
	assert.Equal(t, "yaml", format)
	assert.Equal(t, []string{"history"}, rest)

	format, rest = extractOutput([]string{"ask", "-o"})
	assert.Equal(t, "", format)
	assert.Equal(t, []string{"ask", "-o"}, rest)
}

func TestRender(t *testing.T) {
	v := map[string]interface{}{"answer": "42", "model": "m"}

	text, err := render("", v)
	require.NoError(t, err)
	assert.Equal(t, "42", text)

	js, err := render("json", v)
	require.NoError(t, err)
	var back map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(js), &back))
	assert.Equal(t, "m", back["model"])

	y, err := render("yaml", v)
	require.NoError(t, err)
	var yback map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(y), &yback))
	assert.Equal(t, "42", yback["answer"])

	_, err = render("xml", v)
	assert.Error(t, err)
}

func TestRun_Ask(t *testing.T) {
	var got map[string]interface{}
	var cookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ask", r.URL.Path)
		if c, err := r.Cookie(sessionCookie); err == nil {
			cookie = c.Value
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"answer":"It ends in 2027.","model":"gemini-1.5-pro"}`)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run(newClient(srv.URL, "", "s-cli"), "", "ask", []string{"--secondary", "when", "does", "it", "end?"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "It ends in 2027.\n", out.String())
	assert.Equal(t, "when does it end?", got["prompt"])
	assert.Equal(t, true, got["use_secondary"])
	assert.Equal(t, "s-cli", cookie)
}

func TestRun_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"Error occurred: warehouse: not configured"}`)
	}))
	defer srv.Close()

	err := run(newClient(srv.URL, "", ""), "", "query", []string{"select", "1"}, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "warehouse: not configured")
}

func TestRun_UploadSendsMultipart(t *testing.T) {
	var name, content, authz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authz = r.Header.Get("Authorization")
		f, fh, err := r.FormFile("file")
		if err == nil {
			name = fh.Filename
			b, _ := io.ReadAll(f)
			content = string(b)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"d1","name":"notes.txt"}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello docs"), 0o644))

	var out bytes.Buffer
	err := run(newClient(srv.URL, "tok", ""), "json", "upload", []string{path}, &out)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", name)
	assert.Equal(t, "hello docs", content)
	assert.Equal(t, "Bearer tok", authz)
	assert.Contains(t, out.String(), `"id": "d1"`)
}

func TestRun_JobSubmit(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"id":"job-1","status":"pending"}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "job.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input":"a.mp4"}`), 0o644))
	var out bytes.Buffer
	require.NoError(t, run(newClient(srv.URL, "", ""), "yaml", "job", []string{"submit", "transcode", path}, &out))
	assert.Equal(t, `"transcode"`, string(body["kind"]))
	assert.JSONEq(t, `{"input":"a.mp4"}`, string(body["payload"]))
	assert.Contains(t, out.String(), "id: job-1")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o644))
	assert.Error(t, run(newClient(srv.URL, "", ""), "", "job", []string{"submit", "transcode", bad}, io.Discard))
}

func TestRun_JobSummary(t *testing.T) {
	var path string
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"answer":"Transcoded demo clip."}`)
	}))
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, run(newClient(srv.URL, "", ""), "text", "job", []string{"summary", "job-1", "what", "changed?"}, &out))
	assert.Equal(t, "/api/media/jobs/job-1/summary", path)
	assert.Equal(t, "what changed?", body["prompt"])
	assert.Equal(t, "Transcoded demo clip.", strings.TrimSpace(out.String()))
}

func TestRun_HashPassword(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(nil, "", "hash-password", []string{"s3cret"}, &out))
	hash := strings.TrimSpace(out.String())
	assert.NoError(t, auth.NewUserTable(map[string]string{"bob": hash}).Verify("bob", "s3cret"))
}

func TestRun_Usage(t *testing.T) {
	assert.Error(t, run(nil, "", "login", nil, io.Discard))
	assert.Error(t, run(nil, "", "unknown", nil, io.Discard))
}
