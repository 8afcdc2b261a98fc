package xctx

import "errors"

// =============================================================================
// Context Key 类型定义
// =============================================================================

type contextKey string

const keyStore = contextKey("xctx:trace_store")

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingTraceID trace_id 缺失
	ErrMissingTraceID = errors.New("xctx: missing trace_id")

	// ErrMissingRequestID request_id 缺失
	ErrMissingRequestID = errors.New("xctx: missing request_id")

	// ErrMissingParentSpanID parent_span_id 缺失
	ErrMissingParentSpanID = errors.New("xctx: missing parent_span_id")
)

// =============================================================================
// 日志属性 Key 常量
// =============================================================================

const (
	KeyTraceID      = "trace_id"
	KeyRequestID    = "request_id"
	KeyParentSpanID = "parent_span_id"

	// traceFieldCount 追踪字段数量（用于 slog 属性预分配）
	traceFieldCount = 3
)
