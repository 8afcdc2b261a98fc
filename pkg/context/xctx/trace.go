package xctx

import "context"

// =============================================================================
// 读取
// =============================================================================

// Current 返回 ctx 上追踪上下文的快照，未设置时返回零值
func Current(ctx context.Context) TraceContext {
	return FromContext(ctx).Load()
}

// TraceID 返回当前 trace_id，未设置返回空字符串
func TraceID(ctx context.Context) string {
	return Current(ctx).TraceID
}

// RequestID 返回当前 request_id，未设置返回空字符串
func RequestID(ctx context.Context) string {
	return Current(ctx).RequestID
}

// ParentSpanID 返回当前 parent_span_id，未设置返回空字符串
func ParentSpanID(ctx context.Context) string {
	return Current(ctx).ParentSpanID
}

// =============================================================================
// 写入
// =============================================================================

// SetTraceContext 更新 ctx 上的追踪上下文，只写入 tc 中的非空字段。
//
// ctx 已挂载 Store 时原地更新并返回 ctx 本身，
// 同一请求内的其他读取方立即可见；否则挂载一个新 Store。
// 如果 ctx 为 nil，返回 ErrNilContext。
func SetTraceContext(ctx context.Context, tc TraceContext) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	s := FromContext(ctx)
	if s == nil {
		var err error
		if ctx, s, err = NewContext(ctx); err != nil {
			return nil, err
		}
	}
	s.Set(tc)
	return ctx, nil
}

// ClearTraceContext 清空 ctx 上的追踪上下文，未挂载 Store 时为空操作
func ClearTraceContext(ctx context.Context) {
	FromContext(ctx).Clear()
}

// =============================================================================
// Require 函数：强制获取模式
// =============================================================================

// RequireTraceID 获取 trace_id，缺失时返回 ErrMissingTraceID。
// 如果 ctx 为 nil，返回 ErrNilContext。
func RequireTraceID(ctx context.Context) (string, error) {
	return requireField(ctx, TraceID, ErrMissingTraceID)
}

// RequireRequestID 获取 request_id，缺失时返回 ErrMissingRequestID。
// 如果 ctx 为 nil，返回 ErrNilContext。
func RequireRequestID(ctx context.Context) (string, error) {
	return requireField(ctx, RequestID, ErrMissingRequestID)
}

// RequireParentSpanID 获取 parent_span_id，缺失时返回 ErrMissingParentSpanID。
// 如果 ctx 为 nil，返回 ErrNilContext。
func RequireParentSpanID(ctx context.Context) (string, error) {
	return requireField(ctx, ParentSpanID, ErrMissingParentSpanID)
}

func requireField(ctx context.Context, get func(context.Context) string, missing error) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if v := get(ctx); v != "" {
		return v, nil
	}
	return "", missing
}
