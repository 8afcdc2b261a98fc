package xlog

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// =============================================================================
// 全局 Logger
//
// 供未显式注入 Logger 的组件使用。服务端推荐依赖注入。
// =============================================================================

// current 为 nil 时 Default 惰性创建并发布一个默认 Logger
var current atomic.Pointer[LoggerWithLevel]

// Default 返回全局 Logger，首次调用时惰性创建（stderr、Info、json、enrich）。
// 并发首次调用可能各自构建，但只有一个被发布，所有调用方拿到同一个实例。
func Default() LoggerWithLevel {
	for {
		if l := current.Load(); l != nil {
			return *l
		}
		// 默认参数不会出错
		logger, _, _ := New().Build()
		if current.CompareAndSwap(nil, &logger) {
			return logger
		}
	}
}

// SetDefault 替换全局 Logger，传入 nil 时忽略
func SetDefault(l LoggerWithLevel) {
	if l == nil {
		return
	}
	current.Store(&l)
}

// ResetDefault 丢弃全局 Logger，下次 Default() 重新创建
func ResetDefault() {
	current.Store(nil)
}

// globalLog 全局函数比实例方法多一层调用，需多跳过 1 帧
func globalLog(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	l := Default()
	if xl, ok := l.(*xlogger); ok {
		xl.logWithSkip(ctx, level, msg, attrs, 1)
		return
	}
	switch level {
	case slog.LevelDebug:
		l.Debug(ctx, msg, attrs...)
	case slog.LevelInfo:
		l.Info(ctx, msg, attrs...)
	case slog.LevelWarn:
		l.Warn(ctx, msg, attrs...)
	default:
		l.Error(ctx, msg, attrs...)
	}
}

// Debug 使用全局 Logger 记录 Debug 级别日志
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelDebug, msg, attrs)
}

// Info 使用全局 Logger 记录 Info 级别日志
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelInfo, msg, attrs)
}

// Warn 使用全局 Logger 记录 Warn 级别日志
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelWarn, msg, attrs)
}

// Error 使用全局 Logger 记录 Error 级别日志
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	globalLog(ctx, slog.LevelError, msg, attrs)
}
