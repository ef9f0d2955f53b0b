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

package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/jwt"

	"docunexus/pkg/auth"
	"docunexus/pkg/config"
	"docunexus/pkg/errors"
	"docunexus/pkg/utils"
)

// Cookie 与 JWT claim 名称
const (
	IdentityKey   = "username"
	SessionClaim  = "sid"
	TokenCookie   = "docunexus_token"
	SessionCookie = "docunexus_session"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Identity 登录身份；SessionID 在每次登录时重新生成，会话历史按它隔离
type Identity struct {
	Username  string
	SessionID string
}

// LogoutFunc 登出时调用，用于清空会话历史
type LogoutFunc func(ctx context.Context, sessionID string)

// Auth 登录门禁：启用时为 hertz-contrib/jwt，未启用时为匿名身份 + 会话 cookie
type Auth struct {
	enabled  bool
	jwt      *jwt.HertzJWTMiddleware
	onLogout LogoutFunc
}

// NewAuth 创建认证中间件；启用认证但未配置 jwt_key 时返回 ErrMissingSecret
func NewAuth(cfg config.MiddlewareConfig, users auth.UserTable, onLogout LogoutFunc) (*Auth, error) {
	a := &Auth{enabled: cfg.Auth, onLogout: onLogout}
	if !cfg.Auth {
		return a, nil
	}
	if cfg.JWTKey == "" {
		return nil, errors.Wrap(errors.ErrMissingSecret, "api.middleware.jwt_key")
	}
	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:          "docunexus",
		Key:            []byte(cfg.JWTKey),
		Timeout:        utils.ParseDuration(cfg.JWTTimeout, time.Hour),
		MaxRefresh:     utils.ParseDuration(cfg.JWTMaxRefresh, time.Hour),
		IdentityKey:    IdentityKey,
		TokenLookup:    "header: Authorization, cookie: " + TokenCookie,
		TokenHeadName:  "Bearer",
		TimeFunc:       time.Now,
		SendCookie:     true,
		CookieName:     TokenCookie,
		CookieHTTPOnly: true,
		CookieSameSite: protocol.CookieSameSiteLaxMode,
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var req loginRequest
			if err := c.BindAndValidate(&req); err != nil || req.Username == "" || req.Password == "" {
				return nil, jwt.ErrMissingLoginValues
			}
			if err := users.Verify(req.Username, req.Password); err != nil {
				hlog.CtxWarnf(ctx, "login failed for user %q", req.Username)
				return nil, jwt.ErrFailedAuthentication
			}
			return &Identity{Username: strings.ToLower(req.Username), SessionID: uuid.NewString()}, nil
		},
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if v, ok := data.(*Identity); ok {
				return jwt.MapClaims{IdentityKey: v.Username, SessionClaim: v.SessionID}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			name, _ := claims[IdentityKey].(string)
			sid, _ := claims[SessionClaim].(string)
			return &Identity{Username: name, SessionID: sid}
		},
		LoginResponse: func(ctx context.Context, c *app.RequestContext, code int, token string, expire time.Time) {
			c.JSON(code, map[string]interface{}{
				"token":  token,
				"expire": expire.Format(time.RFC3339),
			})
		},
		RefreshResponse: func(ctx context.Context, c *app.RequestContext, code int, token string, expire time.Time) {
			c.JSON(code, map[string]interface{}{
				"token":  token,
				"expire": expire.Format(time.RFC3339),
			})
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, map[string]string{"error": message})
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "初始化 JWT 中间件failed")
	}
	a.jwt = mw
	return a, nil
}

// Enabled 是否启用登录
func (a *Auth) Enabled() bool {
	return a.enabled
}

// Required 受保护路由的中间件链：校验身份并把 user_id / session_id 注入 context
func (a *Auth) Required() []app.HandlerFunc {
	if !a.enabled {
		return []app.HandlerFunc{anonymousSession}
	}
	return []app.HandlerFunc{a.jwt.MiddlewareFunc(), jwtSession}
}

func jwtSession(c context.Context, ctx *app.RequestContext) {
	v, _ := ctx.Get(IdentityKey)
	id, ok := v.(*Identity)
	if !ok || id.Username == "" {
		ctx.AbortWithStatusJSON(consts.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}
	sid := id.SessionID
	if sid == "" {
		sid = id.Username
	}
	c = auth.WithUserID(c, id.Username)
	c = auth.WithSessionID(c, sid)
	ctx.Next(c)
}

// anonymousSession 未启用认证时以 cookie 区分浏览器会话
func anonymousSession(c context.Context, ctx *app.RequestContext) {
	sid := string(ctx.Cookie(SessionCookie))
	if sid == "" {
		sid = uuid.NewString()
		ctx.SetCookie(SessionCookie, sid, 0, "/", "", protocol.CookieSameSiteLaxMode, false, true)
	}
	c = auth.WithUserID(c, auth.Anonymous)
	c = auth.WithSessionID(c, sid)
	ctx.Next(c)
}

// Login POST /api/login
func (a *Auth) Login(c context.Context, ctx *app.RequestContext) {
	if !a.enabled {
		ctx.JSON(consts.StatusOK, map[string]string{"user": auth.Anonymous})
		return
	}
	a.jwt.LoginHandler(c, ctx)
}

// Refresh GET /api/refresh_token
func (a *Auth) Refresh(c context.Context, ctx *app.RequestContext) {
	if !a.enabled {
		ctx.JSON(consts.StatusOK, map[string]string{"user": auth.Anonymous})
		return
	}
	a.jwt.RefreshHandler(c, ctx)
}

// Logout POST /api/logout；须挂在 Required 之后，清空会话历史与 cookie
func (a *Auth) Logout(c context.Context, ctx *app.RequestContext) {
	sid := auth.GetSessionID(c)
	if a.onLogout != nil && sid != "" {
		a.onLogout(c, sid)
	}
	ctx.SetCookie(TokenCookie, "", -1, "/", "", protocol.CookieSameSiteLaxMode, false, true)
	ctx.SetCookie(SessionCookie, "", -1, "/", "", protocol.CookieSameSiteLaxMode, false, true)
	hlog.CtxInfof(c, "user %s logged out", auth.GetUserID(c))
	ctx.JSON(consts.StatusOK, map[string]string{"status": "logged out"})
}
