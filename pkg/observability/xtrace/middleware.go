package xtrace

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/omeyang/xcorr/pkg/context/xctx"
	"github.com/omeyang/xcorr/pkg/context/xenv"
	"github.com/omeyang/xcorr/pkg/observability/xlog"
	"github.com/omeyang/xcorr/pkg/observability/xmetrics"
	"github.com/omeyang/xcorr/pkg/util/xid"
)

// =============================================================================
// 常量与错误
// =============================================================================

const (
	// DefaultServiceShortLen 未指定 service short 时截取服务名的字符数
	DefaultServiceShortLen = 4

	transportHTTP = "http"
	transportGRPC = "grpc"

	loggerName = "xtrace"

	// RouteUnmatched 没有匹配到路由模板的请求在指标中的路由值
	RouteUnmatched = "unmatched"
)

// DefaultSkipPaths 默认不记录生命周期日志的路径
var DefaultSkipPaths = []string{"/health", "/", "/favicon.ico"}

// ErrEmptyServiceName 服务名为空
var ErrEmptyServiceName = errors.New("xtrace: empty service name")

// =============================================================================
// 选项
// =============================================================================

// Option 中间件配置选项
type Option func(*Middleware)

// WithServiceShort 设置嵌入 trace ID 和作为 request ID 前缀的服务短名，空值忽略
func WithServiceShort(short string) Option {
	return func(m *Middleware) {
		if short != "" {
			m.serviceShort = short
		}
	}
}

// WithSkipPaths 替换不记录生命周期日志的路径集合。
// 跳过的路径仍然注入响应 Header，失败日志也不受影响。
func WithSkipPaths(paths ...string) Option {
	return func(m *Middleware) {
		m.skipPaths = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			m.skipPaths[p] = struct{}{}
		}
	}
}

// WithLogRequests 设置是否输出 started/completed 日志，默认 true
func WithLogRequests(enabled bool) Option {
	return func(m *Middleware) {
		m.logRequests = enabled
	}
}

// WithBuildID 设置 X-Served-By 中的短构建标识，默认 xenv.Build().ShortCommit()
func WithBuildID(id string) Option {
	return func(m *Middleware) {
		if id != "" {
			m.buildID = id
		}
	}
}

// WithDeploymentID 设置部署标识，默认每次读取 xenv.DeploymentID()
func WithDeploymentID(id string) Option {
	return func(m *Middleware) {
		m.deploymentID = func() string { return id }
	}
}

// WithLogger 设置日志记录器，默认使用 xlog.Default()
func WithLogger(l xlog.Logger) Option {
	return func(m *Middleware) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics 设置请求指标记录器
func WithMetrics(rec xmetrics.Recorder) Option {
	return func(m *Middleware) {
		if rec != nil {
			m.metrics = rec
		}
	}
}

// WithGenerator 设置 ID 生成器
func WithGenerator(g *xid.Generator) Option {
	return func(m *Middleware) {
		if g != nil {
			m.gen = g
		}
	}
}

// =============================================================================
// Middleware
// =============================================================================

// Middleware 请求生命周期中间件。
//
// 每个入站请求经历 START → CONTEXT_BOUND → DISPATCHED → COMPLETED/FAILED →
// CONTEXT_CLEARED。Middleware 创建后只读，可被任意数量的请求并发使用。
type Middleware struct {
	serviceName  string
	serviceShort string
	skipPaths    map[string]struct{}
	logRequests  bool
	buildID      string
	deploymentID func() string
	logger       xlog.Logger
	metrics      xmetrics.Recorder
	gen          *xid.Generator
}

// NewMiddleware 创建中间件，serviceName 为空时返回 ErrEmptyServiceName
func NewMiddleware(serviceName string, opts ...Option) (*Middleware, error) {
	if serviceName == "" {
		return nil, ErrEmptyServiceName
	}
	m := &Middleware{
		serviceName:  serviceName,
		serviceShort: shortName(serviceName),
		logRequests:  true,
		buildID:      xenv.Build().ShortCommit(),
		deploymentID: xenv.DeploymentID,
		metrics:      xmetrics.NoopRecorder{},
		gen:          xid.NewGenerator(),
	}
	WithSkipPaths(DefaultSkipPaths...)(m)
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// ServiceName 返回服务名
func (m *Middleware) ServiceName() string { return m.serviceName }

// ServiceShort 返回服务短名
func (m *Middleware) ServiceShort() string { return m.serviceShort }

// ServedBy 返回 X-Served-By 的值
func (m *Middleware) ServedBy() string {
	return m.serviceName + "-" + m.buildID
}

// Skipped 判断 path 是否在跳过日志的集合中
func (m *Middleware) Skipped(path string) bool {
	_, ok := m.skipPaths[path]
	return ok
}

// 未显式设置时每次读取当前默认 logger，SetDefault 之后立即生效
func (m *Middleware) log() xlog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return xlog.Named(xlog.Default(), loggerName)
}

func shortName(name string) string {
	r := []rune(name)
	if len(r) <= DefaultServiceShortLen {
		return name
	}
	return string(r[:DefaultServiceShortLen])
}

// =============================================================================
// Request：单个请求的生命周期
// =============================================================================

// Request 单个请求的生命周期句柄，由 Begin 创建。
//
// 用于没有现成适配的传输层（如自定义框架）：
//
//	req := m.Begin(ctx, method, path, inbound)
//	defer req.End()
//	// 调用业务 handler，使用 req.Context()
//	req.Complete(status) 或 req.Fail(err, stack)
//
// Request 归属于处理请求的 goroutine，不能并发调用其方法。
type Request struct {
	m         *Middleware
	ctx       context.Context
	store     *xctx.Store
	tc        xctx.TraceContext
	transport string
	method    string
	path      string
	route     string
	skip      bool
	start     time.Time
	finished  bool
}

// Begin 开始一个请求：确定追踪 ID，挂载并填充新的 Store，按需输出 started 日志。
//
// 入站 TraceID 为空时生成新的；请求 ID 总是新生成；
// 入站 ParentSpanID 原样沿用，缺失时保持为空。
func (m *Middleware) Begin(ctx context.Context, method, path string, in Inbound) *Request {
	return m.begin(ctx, transportHTTP, method, path, in)
}

func (m *Middleware) begin(ctx context.Context, transport, method, path string, in Inbound) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	traceID := in.TraceID
	if traceID == "" {
		traceID = m.gen.TraceID(m.serviceShort)
	}
	tc := xctx.TraceContext{
		TraceID:      traceID,
		RequestID:    m.gen.RequestID(m.serviceShort),
		ParentSpanID: in.ParentSpanID,
	}

	// 总是挂载新 Store，不复用上游 ctx 中可能存在的 Store
	ctx, store, _ := xctx.NewContext(ctx)
	store.Set(tc)

	r := &Request{
		m:         m,
		ctx:       ctx,
		store:     store,
		tc:        tc,
		transport: transport,
		method:    method,
		path:      path,
		skip:      m.Skipped(path),
	}
	if transport == transportGRPC {
		// FullMethod 来自已注册的服务描述，本身有界
		r.route = path
	}
	if m.logRequests && !r.skip {
		m.log().Info(ctx, fmt.Sprintf("Request started: %s %s", method, path),
			xlog.Method(method), xlog.Path(path))
	}
	r.start = time.Now()
	return r
}

// SetRoute 设置指标使用的路由模板（如 "/orders/{id}"），未设置时记为 RouteUnmatched。
// 指标从不使用原始路径。
func (r *Request) SetRoute(route string) { r.route = route }

// Context 返回挂载了本请求 Store 的 context
func (r *Request) Context() context.Context { return r.ctx }

// TraceContext 返回本请求的追踪 ID
func (r *Request) TraceContext() xctx.TraceContext { return r.tc }

// Elapsed 返回从分发开始到现在的耗时
func (r *Request) Elapsed() time.Duration { return time.Since(r.start) }

// ResponseHeaders 返回应写入响应的 Header，X-Response-Time 按调用时刻计算
func (r *Request) ResponseHeaders() map[string]string {
	h := map[string]string{
		HeaderTraceID:      r.tc.TraceID,
		HeaderRequestID:    r.tc.RequestID,
		HeaderResponseTime: formatMS(r.Elapsed()),
		HeaderServedBy:     r.m.ServedBy(),
	}
	if id := r.m.deploymentID(); id != "" {
		h[HeaderDeploymentID] = id
	}
	return h
}

// SetResponseHeaders 将响应 Header 写入 h
func (r *Request) SetResponseHeaders(h http.Header) {
	if h == nil {
		return
	}
	for k, v := range r.ResponseHeaders() {
		h.Set(k, v)
	}
}

// Complete 标记请求正常完成。未被跳过时输出 completed 日志；重复调用无效果。
func (r *Request) Complete(status int) {
	if r.finished {
		return
	}
	r.finished = true
	d := r.Elapsed()
	if r.m.logRequests && !r.skip {
		r.m.log().Info(r.ctx,
			fmt.Sprintf("Request completed: %s %s status=%d duration=%s", r.method, r.path, status, formatMS(d)),
			xlog.Method(r.method), xlog.Path(r.path), xlog.StatusCode(status), xlog.DurationMS(d))
	}
	r.record(status, false, d)
}

// Fail 标记请求失败，总是输出 failed 日志（不受跳过集合影响）。
// stack 非空时附加到日志的 exception 字段。重复调用、Complete 之后调用均无效果。
func (r *Request) Fail(err error, stack []byte) {
	r.fail(http.StatusInternalServerError, err, stack)
}

func (r *Request) fail(status int, err error, stack []byte) {
	if r.finished {
		return
	}
	r.finished = true
	d := r.Elapsed()
	attrs := []slog.Attr{xlog.Method(r.method), xlog.Path(r.path), xlog.DurationMS(d), xlog.Err(err)}
	if len(stack) > 0 {
		attrs = append(attrs, xlog.Exception(stack))
	}
	r.m.log().Error(r.ctx,
		fmt.Sprintf("Request failed: %s %s duration=%s error=%v", r.method, r.path, formatMS(d), err),
		attrs...)
	r.record(status, true, d)
}

// End 清空本请求的 Store，所有退出路径（包括 panic）都必须调用
func (r *Request) End() {
	r.store.Clear()
}

func (r *Request) record(status int, failed bool, d time.Duration) {
	r.m.metrics.RecordRequest(r.ctx, xmetrics.RequestRecord{
		Transport: r.transport,
		Method:    r.method,
		Route:     cmp.Or(r.route, RouteUnmatched),
		Status:    status,
		Failed:    failed,
		Duration:  d,
	})
}

func formatMS(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}

// PanicError 将 recover 得到的值转为 error 用于日志，error 类型原样返回
func PanicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", v)
}
