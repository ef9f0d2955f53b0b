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
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"docunexus/internal/api/http/middleware"
	dnconfig "docunexus/pkg/config"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
	auth       *middleware.Auth
}

// NewRouter 创建新的 HTTP 路由器；authMW 为 nil 时所有受保护路由按匿名会话处理
func NewRouter(handler *Handler, mw *middleware.Middleware, authMW *middleware.Auth) *Router {
	return &Router{handler: handler, middleware: mw, auth: authMW}
}

func (r *Router) protected() []app.HandlerFunc {
	if r.auth == nil {
		disabled, _ := middleware.NewAuth(dnconfig.MiddlewareConfig{}, nil, nil)
		r.auth = disabled
	}
	return r.auth.Required()
}

// Build 创建 Hertz 实例并注册全部路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	h := server.Default(append([]config.Option{server.WithHostPorts(addr)}, opts...)...)

	if r.middleware != nil {
		h.Use(r.middleware.Metrics(), r.middleware.CORS(), r.middleware.RateLimit())
	}

	h.GET("/", r.handler.Index)
	h.GET("/metrics", r.handler.Metrics)

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/prompts/examples", r.handler.ExamplePrompts)

	required := r.protected()
	api.POST("/login", r.auth.Login)
	api.GET("/refresh_token", r.auth.Refresh)
	logout := append(append([]app.HandlerFunc{}, required...), r.auth.Logout)
	api.POST("/logout", logout...)

	g := api.Group("", required...)
	{
		g.POST("/ask", r.handler.Ask)
		g.POST("/talk", r.handler.Talk)
		g.POST("/vision", r.handler.Vision)
		g.POST("/frames", r.handler.Frame)
		g.POST("/speech", r.handler.Speech)
		g.POST("/warehouse/query", r.handler.WarehouseQuery)
		g.GET("/history", r.handler.ListHistory)
		g.DELETE("/history", r.handler.ClearHistory)
	}

	docs := g.Group("/documents")
	{
		docs.POST("", r.handler.UploadDocument)
		docs.GET("", r.handler.ListDocuments)
		docs.POST("/compare", r.handler.CompareDocuments)
		docs.POST("/:id/summary", r.handler.SummarizeDocument)
		docs.POST("/:id/entities", r.handler.ExtractEntities)
		docs.POST("/:id/search", r.handler.SearchDocument)
		docs.POST("/:id/metadata", r.handler.AnalyzeMetadata)
		docs.POST("/:id/sign", r.handler.SignDocument)
	}

	jobs := g.Group("/media/jobs")
	{
		jobs.POST("", r.handler.EnqueueMediaJob)
		jobs.GET("/:id", r.handler.GetMediaJob)
		jobs.POST("/:id/summary", r.handler.SummarizeMediaJob)
	}

	return h
}
