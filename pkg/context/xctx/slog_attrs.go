package xctx

import (
	"context"
	"log/slog"
)

// AppendTraceAttrs 将 ctx 中的非空追踪字段追加到 attrs。
// 热路径使用：调用方传入预分配切片，避免额外分配。
func AppendTraceAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	return Current(ctx).appendAttrs(attrs)
}

// TraceAttrs 返回 ctx 中非空追踪字段对应的 slog.Attr，全部为空时返回 nil。
// 每次调用分配新切片，热路径请使用 AppendTraceAttrs。
func TraceAttrs(ctx context.Context) []slog.Attr {
	tc := Current(ctx)
	if tc.IsEmpty() {
		return nil
	}
	return tc.appendAttrs(make([]slog.Attr, 0, traceFieldCount))
}

// LogValue 实现 slog.LogValuer，输出非空字段组成的 group
func (tc TraceContext) LogValue() slog.Value {
	return slog.GroupValue(tc.appendAttrs(nil)...)
}

func (tc TraceContext) appendAttrs(attrs []slog.Attr) []slog.Attr {
	if tc.TraceID != "" {
		attrs = append(attrs, slog.String(KeyTraceID, tc.TraceID))
	}
	if tc.RequestID != "" {
		attrs = append(attrs, slog.String(KeyRequestID, tc.RequestID))
	}
	if tc.ParentSpanID != "" {
		attrs = append(attrs, slog.String(KeyParentSpanID, tc.ParentSpanID))
	}
	return attrs
}
