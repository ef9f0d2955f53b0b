package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"docunexus/internal/app"
	"docunexus/pkg/config"
	"docunexus/pkg/tracing"
	"docunexus/pkg/utils"
)

// App Worker 应用：从任务队列认领 Batch / 转码 / MP3 标签任务并执行
type App struct {
	bootstrap *app.Bootstrap
	runner    *JobRunner
	tracer    *sdktrace.TracerProvider
	// standalone 独立进程运行，自行导出 span
	standalone bool
	cancel     context.CancelFunc
}

// NewApp 创建新的 Worker 应用；Worker 不需要模型 secret
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	b, err := app.NewBootstrap(ctx, cfg, nil)
	if err != nil {
		return nil, err
	}
	a := NewAppWithBootstrap(b)
	a.standalone = true
	return a, nil
}

// NewAppWithBootstrap 复用已有 Bootstrap（API 进程内嵌 worker 时使用）
func NewAppWithBootstrap(b *app.Bootstrap) *App {
	cfg := b.Config.Worker
	runner := NewJobRunner(
		DefaultWorkerID(),
		b.Jobs,
		b.Media.Run,
		utils.ParseDuration(cfg.PollInterval, 2*time.Second),
		utils.ParseDuration(cfg.Timeout, 0),
		cfg.Concurrency,
		b.Logger,
	)
	return &App{bootstrap: b, runner: runner}
}

// Start 启动认领循环
func (a *App) Start() error {
	if a.runner == nil {
		return fmt.Errorf("worker runner 未初始化")
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if err := a.initTracer(ctx); err != nil {
		cancel()
		return fmt.Errorf("初始化 tracer 失败: %w", err)
	}
	a.runner.Start(ctx)
	a.bootstrap.Logger.Info("worker 应用启动成功", "worker_id", a.runner.workerID, "queue", utils.CoalesceString(a.bootstrap.Config.JobQueue.Type, "memory"))
	return nil
}

// Shutdown 停止认领并等待执行中的任务；ctx 到期时不再等待
func (a *App) Shutdown(ctx context.Context) error {
	a.bootstrap.Logger.Info("关闭 worker 应用")
	if a.cancel != nil {
		a.cancel()
	}
	done := make(chan struct{})
	go func() {
		a.runner.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.bootstrap.Logger.Warn("tracer shutdown failed", "error", err)
		}
	}
	return nil
}

// initTracer 按 monitoring.tracing 配置导出任务 span；API 内嵌时由 hertz provider 负责
func (a *App) initTracer(ctx context.Context) error {
	cfg := a.bootstrap.Config.Monitoring.Tracing
	endpoint := cfg.ExportEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if !cfg.Enable || endpoint == "" || !a.standalone {
		return nil
	}
	tp, err := tracing.InitTracer(ctx, tracing.OTelConfig{
		ServiceName:    utils.CoalesceString(cfg.ServiceName, "docunexus-worker"),
		ExportEndpoint: endpoint,
		Insecure:       cfg.Insecure,
	})
	if err != nil {
		return err
	}
	a.tracer = tp
	return nil
}

// Close 关闭 Bootstrap 持有的存储
func (a *App) Close() error {
	return a.bootstrap.Close()
}
