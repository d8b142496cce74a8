package processors

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"mindgate/internal/core"
	"mindgate/internal/core/security"
)

const promptPreviewRunes = 60

// RequestLogger 是一个记录生成请求日志的处理器
type RequestLogger struct {
	name     string
	priority int
	scanner  *security.Scanner
}

// NewRequestLogger 创建一个新的请求日志处理器
func NewRequestLogger(scanner *security.Scanner) *RequestLogger {
	if scanner == nil {
		scanner = security.NewScanner()
	}
	return &RequestLogger{
		name:     "request-logger",
		priority: -100, // 必须是第一个执行
		scanner:  scanner,
	}
}

// Name 返回处理器名称
func (r *RequestLogger) Name() string {
	return r.name
}

// Priority 返回处理器优先级
func (r *RequestLogger) Priority() int {
	return r.priority
}

// OnRequest 记录生成开始
func (r *RequestLogger) OnRequest(ctx *core.GatewayContext, req *core.GenerationRequest) error {
	// request_id 已经通过 With() 注入到 ctx.Log
	ctx.Log.Info("Generation Started",
		zap.String("model", req.ModelKey),
		zap.String("mode", ctx.GetString(core.MetaMode)),
		zap.String("prompt", r.preview(req.Prompt)),
		zap.Int("images", len(req.Options.Images)),
	)
	return nil
}

// OnResponse 记录生成结束
func (r *RequestLogger) OnResponse(ctx *core.GatewayContext, result *core.GenerationResult) error {
	latency := time.Since(ctx.StartTime)

	fields := []zap.Field{
		zap.String("task_id", result.Handle.TaskID),
		zap.String("mode", ctx.GetString(core.MetaMode)),
		zap.Duration("latency", latency),
	}
	if result.Err != nil {
		fields = append(fields,
			zap.String("status", "Failed"),
			zap.String("kind", string(core.KindOf(result.Err))),
			zap.Error(result.Err),
		)
		ctx.Log.Warn("Generation Finished", fields...)
		return nil
	}

	fields = append(fields,
		zap.String("status", "Success"),
		zap.String("url", result.Snapshot.ResultURL),
	)
	ctx.Log.Info("Generation Finished", fields...)
	return nil
}

// preview 截断并脱敏提示词
func (r *RequestLogger) preview(prompt string) string {
	clean := r.scanner.Sanitize(prompt)
	if utf8.RuneCountInString(clean) <= promptPreviewRunes {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:promptPreviewRunes]) + "..."
}
