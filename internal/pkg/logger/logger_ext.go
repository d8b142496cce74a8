package logger

import (
	"go.uber.org/zap"
)

// Logger 扩展 zap.Logger，供各组件按名称派生子 logger
type Logger struct {
	*zap.Logger
}

// Wrap 将 zap.Logger 包装成扩展 Logger，nil 时返回 no-op logger
func Wrap(zapLogger *zap.Logger) *Logger {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &Logger{Logger: zapLogger}
}

// Nop 返回丢弃所有输出的 Logger
func Nop() *Logger {
	return Wrap(nil)
}

// Skip 返回一个新的 Logger，跳过指定层数的调用栈
func (l *Logger) Skip(skip int) *Logger {
	if skip <= 0 {
		return l
	}
	return &Logger{
		Logger: l.Logger.WithOptions(zap.AddCallerSkip(skip)),
	}
}

// With adds fields to the logger and returns a new Logger
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
	}
}

// Named adds a name to the logger and returns a new Logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger: l.Logger.Named(name),
	}
}

// Zap returns the underlying zap.Logger
func (l *Logger) Zap() *zap.Logger {
	return l.Logger
}
