package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"docunexus/internal/api/http"
	"docunexus/internal/api/http/middleware"
	"docunexus/internal/app"
	"docunexus/internal/app/worker"
	"docunexus/pkg/auth"
	"docunexus/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Router、Handler、Middleware）
type App struct {
	config       *app.Bootstrap
	handler      *http.Handler
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
	worker       *worker.App
}

// NewApp 创建新的 API 应用；jobqueue 为 memory 时在进程内运行 worker，否则由独立 worker 进程认领
func NewApp(ctx context.Context, b *app.Bootstrap) (*App, error) {
	if err := b.InitServices(ctx); err != nil {
		return nil, fmt.Errorf("初始化服务failed: %w", err)
	}
	cfg := b.Config

	handler := http.NewHandler(http.Services{
		Engine:     b.Engine,
		History:    b.History,
		Documents:  b.Documents,
		Objects:    b.Objects,
		Parser:     b.Parser,
		Analyzer:   b.Analyzer,
		Summarizer: b.Summarizer,
		Vision:     b.Vision,
		Speech:     b.Speech,
		DocuSign:   b.DocuSign,
		Warehouse:  b.Warehouse,
		Jobs:       b.Jobs,
	}, cfg.API.MaxUpload, cfg.API.Middleware.Auth, b.Logger)

	authMW, err := middleware.NewAuth(cfg.API.Middleware, auth.NewUserTable(cfg.API.Users), handler.ClearSession)
	if err != nil {
		return nil, fmt.Errorf("初始化认证中间件failed: %w", err)
	}
	if authMW.Enabled() && len(cfg.API.Users) == 0 {
		b.Logger.Warn("认证已启用但未配置任何用户，所有登录都会失败")
	}
	router := http.NewRouter(handler, middleware.NewMiddleware(cfg.API), authMW)

	a := &App{config: b, handler: handler, router: router}
	if embeddedWorker(cfg.JobQueue.Type) {
		a.worker = worker.NewAppWithBootstrap(b)
	}
	return a, nil
}

func embeddedWorker(queueType string) bool {
	return queueType == "" || queueType == "memory"
}

// Run 运行 API 服务（阻塞直到 Hertz 退出）
func (a *App) Run(addr string) error {
	cfg := a.config.Config
	logCfg := &log.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File}
	output, err := log.Output(logCfg)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tracing := cfg.Monitoring.Tracing
	exportEndpoint := tracing.ExportEndpoint
	if exportEndpoint == "" {
		exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tracing.Enable && exportEndpoint != "" {
		serviceName := tracing.ServiceName
		if serviceName == "" {
			serviceName = "docunexus-api"
		}
		opts := []provider.Option{
			provider.WithServiceName(serviceName),
			provider.WithExportEndpoint(exportEndpoint),
		}
		if tracing.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, tracerCfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
		a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}

	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			return err
		}
	}
	a.config.Logger.Info("API 服务启动", "addr", addr, "auth", cfg.API.Middleware.Auth)
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.worker != nil {
		if err := a.worker.Shutdown(ctx); err != nil {
			a.config.Logger.Warn("关闭内嵌 worker failed", "error", err)
		}
	}
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return a.config.Close()
}
