package vision

import (
	"context"

	"docunexus/pkg/log"
)

// FrameResult 处理后的帧；Annotated 为 false 时 Image 为原始帧
type FrameResult struct {
	Image     []byte
	Analysis  Analysis
	Annotated bool
}

// ProcessFrame 分析并标注一帧；任一步失败都返回原始帧。logger 为 nil 时不输出
func ProcessFrame(ctx context.Context, client Client, frame []byte, logger *log.Logger) FrameResult {
	if logger == nil {
		logger = log.Nop()
	}
	if client == nil {
		return FrameResult{Image: frame}
	}
	a, err := client.Analyze(ctx, frame)
	if err != nil {
		logger.ErrorContext(ctx, "error during frame analysis", "error", err)
		return FrameResult{Image: frame}
	}
	out, err := Annotate(frame, a)
	if err != nil {
		logger.ErrorContext(ctx, "error annotating frame", "error", err)
		return FrameResult{Image: frame, Analysis: a}
	}
	logger.InfoContext(ctx, "frame successfully analyzed and annotated")
	return FrameResult{Image: out, Analysis: a, Annotated: true}
}
