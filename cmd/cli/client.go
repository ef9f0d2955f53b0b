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

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"
)

// sessionCookie 与 API 未启用认证时使用的会话 cookie 同名
const sessionCookie = "docunexus_session"

func apiBaseURL() string {
	if u := os.Getenv("DOCUNEXUS_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// client DocuNexus API 客户端；token 为空时以 session cookie 区分会话
type client struct {
	http *resty.Client
}

func newClient(baseURL, token, session string) *client {
	r := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(120*time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		r.SetAuthToken(token)
	}
	if session != "" {
		r.SetCookie(&http.Cookie{Name: sessionCookie, Value: session})
	}
	return &client{http: r}
}

func newClientFromEnv() *client {
	session := os.Getenv("DOCUNEXUS_SESSION")
	if session == "" {
		session = "cli"
	}
	return newClient(apiBaseURL(), os.Getenv("DOCUNEXUS_TOKEN"), session)
}

// apiError 从 {"error": "..."} 响应中取出错误文案
func apiError(method, path string, resp *resty.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		return fmt.Errorf("%s %s (%d): %s", method, path, resp.StatusCode(), body.Error)
	}
	return fmt.Errorf("%s %s (%d): %s", method, path, resp.StatusCode(), resp.String())
}

func (c *client) do(method, path string, body interface{}, want ...int) (map[string]interface{}, error) {
	var out map[string]interface{}
	req := c.http.R().SetResult(&out)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if !statusIn(resp.StatusCode(), want) {
		return nil, apiError(method, path, resp)
	}
	return out, nil
}

func statusIn(code int, want []int) bool {
	if len(want) == 0 {
		return code == http.StatusOK
	}
	for _, w := range want {
		if code == w {
			return true
		}
	}
	return false
}

func (c *client) health() (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/health", nil)
}

func (c *client) login(username, password string) (map[string]interface{}, error) {
	return c.do(http.MethodPost, "/api/login", map[string]string{"username": username, "password": password})
}

func (c *client) ask(prompt string, secondary bool, documentIDs []string) (map[string]interface{}, error) {
	return c.do(http.MethodPost, "/api/ask", map[string]interface{}{
		"prompt":        prompt,
		"use_secondary": secondary,
		"document_ids":  documentIDs,
	})
}

func (c *client) vision(imagePath, prompt string) (map[string]interface{}, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("读取图片失败: %w", err)
	}
	var out map[string]interface{}
	resp, err := c.http.R().
		SetResult(&out).
		SetFormData(map[string]string{"prompt": prompt}).
		SetFileReader("frame", filepath.Base(imagePath), bytesReader(data)).
		Post("/api/vision")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, apiError(http.MethodPost, "/api/vision", resp)
	}
	return out, nil
}

func (c *client) upload(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	var out map[string]interface{}
	resp, err := c.http.R().
		SetResult(&out).
		SetFileReader("file", filepath.Base(path), bytesReader(data)).
		Post("/api/documents")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusCreated {
		return nil, apiError(http.MethodPost, "/api/documents", resp)
	}
	return out, nil
}

func (c *client) documents() (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/documents", nil)
}

func (c *client) documentAction(id, action string, body interface{}) (map[string]interface{}, error) {
	if body == nil {
		body = map[string]string{}
	}
	return c.do(http.MethodPost, "/api/documents/"+id+"/"+action, body)
}

func (c *client) compare(prompt string, ids []string) (map[string]interface{}, error) {
	return c.do(http.MethodPost, "/api/documents/compare", map[string]interface{}{"prompt": prompt, "document_ids": ids})
}

func (c *client) history() (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/history", nil)
}

func (c *client) clearHistory() (map[string]interface{}, error) {
	return c.do(http.MethodDelete, "/api/history", nil)
}

func (c *client) query(sql string) (map[string]interface{}, error) {
	return c.do(http.MethodPost, "/api/warehouse/query", map[string]string{"sql": sql})
}

func (c *client) submitJob(kind string, payload json.RawMessage) (map[string]interface{}, error) {
	return c.do(http.MethodPost, "/api/media/jobs", map[string]interface{}{"kind": kind, "payload": payload}, http.StatusAccepted)
}

func (c *client) getJob(id string) (map[string]interface{}, error) {
	return c.do(http.MethodGet, "/api/media/jobs/"+id, nil)
}

func (c *client) summarizeJob(id, prompt string) (map[string]interface{}, error) {
	return c.do(http.MethodPost, "/api/media/jobs/"+id+"/summary", map[string]string{"prompt": prompt})
}

// render 按 -o 输出；text 模式下优先打印 answer / summary 等正文字段
func render(format string, v interface{}) (string, error) {
	switch format {
	case "json":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case "", "text":
		if s, ok := v.(string); ok {
			return s, nil
		}
		if m, ok := v.(map[string]interface{}); ok {
			for _, key := range []string{"answer", "summary", "comparison", "results", "markdown", "token"} {
				if s, ok := m[key].(string); ok && s != "" {
					return s, nil
				}
			}
		}
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unknown output format %q (json|yaml|text)", format)
	}
}
