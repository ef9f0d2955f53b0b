package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"docunexus/pkg/config"
	"docunexus/pkg/metrics"
)

// Middleware 中间件管理器
type Middleware struct {
	cors    config.CORSConfig
	limiter *rate.Limiter
}

// NewMiddleware 创建中间件管理器；rps<=0 时不限流
func NewMiddleware(cfg config.APIConfig) *Middleware {
	m := &Middleware{cors: cfg.CORS}
	if cfg.Middleware.RateLimit && cfg.Middleware.RateLimitRPS > 0 {
		burst := int(cfg.Middleware.RateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.Middleware.RateLimitRPS), burst)
	}
	return m
}

// CORS 跨域中间件；cors.enable 为 false 时直接放行，allow_origins 为空时允许任意来源
func (m *Middleware) CORS() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if !m.cors.Enable {
			ctx.Next(c)
			return
		}
		origin := string(ctx.GetHeader("Origin"))
		if allowed := m.allowOrigin(origin); allowed != "" {
			ctx.Header("Access-Control-Allow-Origin", allowed)
			ctx.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			ctx.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")
			ctx.Header("Access-Control-Expose-Headers", "Content-Length")
			ctx.Header("Access-Control-Allow-Credentials", "true")
			ctx.Header("Access-Control-Max-Age", "86400")
		}
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}

func (m *Middleware) allowOrigin(origin string) string {
	if origin == "" {
		return ""
	}
	if len(m.cors.AllowOrigins) == 0 {
		return origin
	}
	for _, o := range m.cors.AllowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// RateLimit 全局令牌桶限流
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if m.limiter != nil && !m.limiter.Allow() {
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, map[string]string{
				"error": "请求过于频繁，请稍后再试",
			})
			return
		}
		ctx.Next(c)
	}
}

// Metrics 记录 docunexus_http_requests_total；path 使用路由模板避免高基数
func (m *Middleware) Metrics() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		ctx.Next(c)
		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(string(ctx.Method()), path, strconv.Itoa(ctx.Response.StatusCode())).Inc()
	}
}
