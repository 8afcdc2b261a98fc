package xtrace

import (
	"net/http"
	"runtime/debug"
	"strings"
)

// =============================================================================
// HTTP 中间件
// =============================================================================

// Handler 包装 next，为每个请求执行完整的生命周期。
//
// 响应 Header 在第一次 WriteHeader/Write/Flush 时注入，handler 未写任何内容时
// 在其返回后注入。handler panic 时输出 failed 日志、清空 Store，
// 然后以原值重新 panic（包括 http.ErrAbortHandler），交由 net/http 处理。
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := m.Begin(r.Context(), r.Method, r.URL.Path, ExtractFromHTTPHeader(r.Header))
		defer req.End()

		rw := NewResponseWriter(w, req)
		// ServeMux 把匹配到的模式写回它收到的 *http.Request
		inner := r.WithContext(req.Context())
		defer func() {
			if v := recover(); v != nil {
				req.SetRoute(routePattern(inner.Pattern))
				req.Fail(PanicError(v), debug.Stack())
				panic(v)
			}
		}()

		next.ServeHTTP(rw, inner)

		req.SetRoute(routePattern(inner.Pattern))
		rw.EnsureHeaders()
		req.Complete(rw.Status())
	})
}

// routePattern 去掉 ServeMux 模式中的方法前缀，"GET /orders/{id}" -> "/orders/{id}"
func routePattern(pattern string) string {
	if _, rest, ok := strings.Cut(pattern, " "); ok {
		return strings.TrimLeft(rest, " \t")
	}
	return pattern
}

// HandlerFunc 是 Handler 的 http.HandlerFunc 版本
func (m *Middleware) HandlerFunc(next http.HandlerFunc) http.Handler {
	return m.Handler(next)
}

// =============================================================================
// ResponseWriter 包装
// =============================================================================

// ResponseWriter 在响应开始写出前注入追踪 Header。
// 实现 Unwrap，http.ResponseController 可以穿透访问底层 writer。
type ResponseWriter struct {
	http.ResponseWriter
	req      *Request
	status   int
	injected bool
}

// NewResponseWriter 包装 w，Header 来源于 req
func NewResponseWriter(w http.ResponseWriter, req *Request) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, req: req}
}

// WriteHeader 首次写入最终状态码前注入 Header。1xx 信息性响应直接透传。
func (w *ResponseWriter) WriteHeader(code int) {
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		w.ResponseWriter.WriteHeader(code)
		return
	}
	if w.status == 0 {
		w.EnsureHeaders()
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write 未写状态码时按 200 处理
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush 实现 http.Flusher
func (w *ResponseWriter) Flush() {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap 返回底层 ResponseWriter
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// EnsureHeaders 注入追踪 Header，只生效一次
func (w *ResponseWriter) EnsureHeaders() {
	if w.injected {
		return
	}
	w.injected = true
	w.req.SetResponseHeaders(w.ResponseWriter.Header())
}

// Status 返回已写出的状态码，未写出时为 200
func (w *ResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Written 返回是否已写出状态码
func (w *ResponseWriter) Written() bool {
	return w.status != 0
}
