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

package http

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol"

	"docunexus/internal/api/http/middleware"
	"docunexus/internal/runtime/history"
	"docunexus/pkg/auth"
	"docunexus/pkg/config"
)

func buildAuthRouterForTest(t *testing.T) (*server.Hertz, *testEnv) {
	t.Helper()
	env := newTestEnv(t, "secured answer")
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h := NewHandler(env.svc, 0, true, nil)
	authMW, err := middleware.NewAuth(config.MiddlewareConfig{Auth: true, JWTKey: "test-key"},
		auth.NewUserTable(map[string]string{"alice": hash}), h.ClearSession)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	r := NewRouter(h, middleware.NewMiddleware(config.APIConfig{}), authMW)
	return r.Build(":0"), env
}

func perform(s *server.Hertz, method, path string, body []byte, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(s.Engine, method, path, &ut.Body{Body: bytes.NewReader(body), Len: len(body)}, headers...)
}

func TestRouter_IndexPage(t *testing.T) {
	s := NewRouter(NewHandler(Services{}, 0, false, nil), nil, nil).Build(":0")
	w := perform(s, "GET", "/", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET / status = %d, want 200", got)
	}
	body := w.Result().Body()
	for _, want := range []string{"DocuNexus", "Talk to DocuNexus", "Webcam Vision", "Screen Share", `id="secondary" checked`} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestRouter_UnconfiguredServices(t *testing.T) {
	s := NewRouter(NewHandler(Services{}, 0, false, nil), nil, nil).Build(":0")
	body := []byte(`{"prompt":"hello"}`)
	w := perform(s, "POST", "/api/ask", body, ut.Header{Key: "Content-Type", Value: "application/json"})
	if got := w.Result().StatusCode(); got != 503 {
		t.Fatalf("POST /api/ask status = %d, want 503", got)
	}
}

func TestRouter_AnonymousSessionCookie(t *testing.T) {
	s := NewRouter(NewHandler(Services{History: history.NewManager(history.NewMemoryStore())}, 0, false, nil), nil, nil).Build(":0")
	w := perform(s, "GET", "/api/history", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/history status = %d, want 200", got)
	}
	cookie := protocol.AcquireCookie()
	defer protocol.ReleaseCookie(cookie)
	cookie.SetKey(middleware.SessionCookie)
	if !w.Result().Header.Cookie(cookie) || len(cookie.Value()) == 0 {
		t.Fatalf("expected %s cookie to be set", middleware.SessionCookie)
	}
}

func TestRouter_AuthRequired(t *testing.T) {
	s, _ := buildAuthRouterForTest(t)
	body := []byte(`{"prompt":"hello"}`)
	w := perform(s, "POST", "/api/ask", body, ut.Header{Key: "Content-Type", Value: "application/json"})
	if got := w.Result().StatusCode(); got != 401 {
		t.Fatalf("POST /api/ask without token status = %d, want 401", got)
	}
	// 公开路由不需要登录
	w = perform(s, "GET", "/api/health", nil)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /api/health status = %d, want 200", got)
	}
}

func TestRouter_LoginFlow(t *testing.T) {
	s, env := buildAuthRouterForTest(t)
	jsonCT := ut.Header{Key: "Content-Type", Value: "application/json"}

	bad := []byte(`{"username":"alice","password":"wrong"}`)
	if got := perform(s, "POST", "/api/login", bad, jsonCT).Result().StatusCode(); got != 401 {
		t.Fatalf("login with wrong password status = %d, want 401", got)
	}

	good := []byte(`{"username":"alice","password":"s3cret"}`)
	w := perform(s, "POST", "/api/login", good, jsonCT)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("login status = %d, body %s", got, w.Result().Body())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Result().Body(), &login); err != nil || login.Token == "" {
		t.Fatalf("login response missing token: %s", w.Result().Body())
	}
	bearer := ut.Header{Key: "Authorization", Value: "Bearer " + login.Token}

	w = perform(s, "POST", "/api/ask", []byte(`{"prompt":"hello"}`), jsonCT, bearer)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("authorized ask status = %d, body %s", got, w.Result().Body())
	}
	if !bytes.Contains(w.Result().Body(), []byte("secured answer")) {
		t.Fatalf("unexpected answer: %s", w.Result().Body())
	}

	w = perform(s, "GET", "/api/history", nil, bearer)
	if !bytes.Contains(w.Result().Body(), []byte(`"question":"hello"`)) {
		t.Fatalf("history should contain the question: %s", w.Result().Body())
	}

	w = perform(s, "POST", "/api/logout", nil, bearer)
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("logout status = %d", got)
	}
	if len(env.llm.prompts) != 1 {
		t.Fatalf("model calls = %d, want 1", len(env.llm.prompts))
	}
	w = perform(s, "GET", "/api/history", nil, bearer)
	if bytes.Contains(w.Result().Body(), []byte(`"question":"hello"`)) {
		t.Fatalf("history should be cleared on logout: %s", w.Result().Body())
	}
}
