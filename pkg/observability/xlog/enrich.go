package xlog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/omeyang/xcorr/pkg/context/xctx"
)

// ErrNilHandler 当 NewEnrichHandler 的 base handler 为 nil 时返回
var ErrNilHandler = errors.New("xlog: base handler is nil")

// EnrichHandler 从 context 读取追踪信息并注入每条日志。
//
// 注入 trace_id、request_id、parent_span_id 中的非空字段，
// 以及构造时给定的 deployment_id（非空时）。
// 调用 WithGroup 后注入的字段同样归入该 group。
type EnrichHandler struct {
	base         slog.Handler
	deploymentID string
}

// NewEnrichHandler 创建 EnrichHandler，deploymentID 为空时不注入部署标识
func NewEnrichHandler(base slog.Handler, deploymentID string) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	return &EnrichHandler{base: base, deploymentID: deploymentID}, nil
}

// Enabled 委托给底层 handler
func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// maxEnrichAttrs trace 3 + deployment 1
const maxEnrichAttrs = 4

// Handle 按 slog 契约先 Clone record 再追加属性
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf [maxEnrichAttrs]slog.Attr
	attrs := xctx.AppendTraceAttrs(buf[:0], ctx)
	if h.deploymentID != "" {
		attrs = append(attrs, slog.String(KeyDeploymentID, h.deploymentID))
	}

	if len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.base.Handle(ctx, r)
}

// WithAttrs 返回带额外属性的新 handler
func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs), deploymentID: h.deploymentID}
}

// WithGroup 返回带分组的新 handler
func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name), deploymentID: h.deploymentID}
}
