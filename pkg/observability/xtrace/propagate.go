package xtrace

import (
	"context"
	"maps"
	"net/http"
	"strings"

	"github.com/omeyang/xcorr/pkg/context/xctx"
	"github.com/omeyang/xcorr/pkg/context/xenv"
)

// =============================================================================
// 入站提取
// =============================================================================

// Inbound 入站请求携带的追踪信息
//
// 入站 X-Request-ID 不被读取：请求 ID 按跳生成，从不复用上游的值。
type Inbound struct {
	TraceID      string
	ParentSpanID string
}

// ExtractFromHTTPHeader 从 HTTP Header 提取追踪信息，值会去除首尾空白
func ExtractFromHTTPHeader(h http.Header) Inbound {
	if h == nil {
		return Inbound{}
	}
	return Inbound{
		TraceID:      strings.TrimSpace(headerValue(h, HeaderTraceID)),
		ParentSpanID: strings.TrimSpace(headerValue(h, HeaderParentSpanID)),
	}
}

// headerValue 先按规范化名称查找，找不到时再匹配非规范化的键。
// 直接赋值 h["X-Trace-ID"] 构造的 Header 不会经过规范化，Get 看不到它。
func headerValue(h http.Header, key string) string {
	if v := h.Get(key); v != "" {
		return v
	}
	for k, vs := range h {
		if len(vs) > 0 && strings.EqualFold(k, key) {
			return vs[0]
		}
	}
	return ""
}

// ExtractFromHTTPRequest 从 HTTP Request 提取追踪信息
func ExtractFromHTTPRequest(r *http.Request) Inbound {
	if r == nil {
		return Inbound{}
	}
	return ExtractFromHTTPHeader(r.Header)
}

// =============================================================================
// 出站 Header 映射
// =============================================================================

// Propagator 根据 Context Store 生成下游调用的 Header。
//
// 映射规则：
//   - trace_id -> X-Trace-ID
//   - request_id -> X-Parent-Span-ID（本跳的请求 ID 即下一跳的父 Span）
//   - 配置了部署标识时总是输出 X-Deployment-ID
//
// 未设置的字段不输出，不产生空值 Header。Propagator 只读 Store，可并发使用。
type Propagator struct {
	deploymentID func() string
}

// PropagatorOption Propagator 配置选项
type PropagatorOption func(*Propagator)

// WithPropagatorDeploymentID 使用固定的部署标识，覆盖从 xenv 读取的默认值
func WithPropagatorDeploymentID(id string) PropagatorOption {
	return func(p *Propagator) {
		p.deploymentID = func() string { return id }
	}
}

// WithPropagatorDeploymentIDFunc 每次构建 Header 时调用 fn 获取部署标识，fn 为 nil 时忽略
func WithPropagatorDeploymentIDFunc(fn func() string) PropagatorOption {
	return func(p *Propagator) {
		if fn != nil {
			p.deploymentID = fn
		}
	}
}

// NewPropagator 创建 Propagator，默认部署标识来自 xenv.DeploymentID
func NewPropagator(opts ...PropagatorOption) *Propagator {
	p := &Propagator{deploymentID: xenv.DeploymentID}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

var defaultPropagator = NewPropagator()

// TraceHeaders 使用默认 Propagator 生成出站 Header
func TraceHeaders(ctx context.Context) map[string]string {
	return defaultPropagator.TraceHeaders(ctx)
}

// TraceHeaders 生成出站 Header，返回的 map 总是非 nil，调用方可自由修改
func (p *Propagator) TraceHeaders(ctx context.Context) map[string]string {
	tc := xctx.Current(ctx)
	headers := make(map[string]string, 3)
	if tc.TraceID != "" {
		headers[HeaderTraceID] = tc.TraceID
	}
	if tc.RequestID != "" {
		headers[HeaderParentSpanID] = tc.RequestID
	}
	if id := p.deploymentID(); id != "" {
		headers[HeaderDeploymentID] = id
	}
	return headers
}

// MergeHeaders 合并追踪 Header 与调用方显式指定的 Header。
// 键冲突时 explicit 优先；两个入参都不会被修改。
func MergeHeaders(trace, explicit map[string]string) map[string]string {
	out := make(map[string]string, len(trace)+len(explicit))
	maps.Copy(out, trace)
	for k, v := range explicit {
		// 按规范化名称去重，避免 "x-trace-id" 与 "X-Trace-ID" 同时出现
		for tk := range out {
			if tk != k && http.CanonicalHeaderKey(tk) == http.CanonicalHeaderKey(k) {
				delete(out, tk)
			}
		}
		out[k] = v
	}
	return out
}

// InjectToRequest 使用默认 Propagator 将追踪 Header 注入 HTTP 请求
func InjectToRequest(ctx context.Context, req *http.Request) {
	defaultPropagator.InjectToRequest(ctx, req)
}

// InjectToRequest 将追踪 Header 注入 HTTP 请求，请求上已存在的 Header 不会被覆盖
func (p *Propagator) InjectToRequest(ctx context.Context, req *http.Request) {
	if req == nil {
		return
	}
	// 防止调用方构造 &http.Request{} 导致 nil Header panic
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for k, v := range p.TraceHeaders(ctx) {
		if headerValue(req.Header, k) == "" {
			req.Header.Set(k, v)
		}
	}
}
