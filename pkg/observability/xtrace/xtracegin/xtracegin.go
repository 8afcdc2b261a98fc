// Package xtracegin 把 xtrace 请求生命周期中间件适配为 gin.HandlerFunc。
package xtracegin

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/omeyang/xcorr/pkg/observability/xtrace"
)

// New 创建中间件并返回 gin.HandlerFunc
func New(serviceName string, opts ...xtrace.Option) (gin.HandlerFunc, error) {
	m, err := xtrace.NewMiddleware(serviceName, opts...)
	if err != nil {
		return nil, err
	}
	return Middleware(m), nil
}

// Middleware 返回执行 m 生命周期的 gin 中间件。
//
// 应注册在 gin.Recovery 之后（内层）：handler panic 时先输出 failed 日志、
// 清空 Store，再以原值 panic 给外层 Recovery，此时不会注入追踪 Header。
func Middleware(m *xtrace.Middleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := m.Begin(c.Request.Context(), c.Request.Method, c.Request.URL.Path,
			xtrace.ExtractFromHTTPHeader(c.Request.Header))
		defer req.End()

		tw := &traceWriter{ResponseWriter: c.Writer, req: req}
		c.Writer = tw
		c.Request = c.Request.WithContext(req.Context())

		defer func() {
			if v := recover(); v != nil {
				// 恢复原 writer，外层 Recovery 写出的错误响应不带追踪 Header
				c.Writer = tw.ResponseWriter
				req.SetRoute(c.FullPath())
				req.Fail(xtrace.PanicError(v), debug.Stack())
				panic(v)
			}
		}()

		c.Next()

		tw.inject()
		req.SetRoute(c.FullPath())
		req.Complete(c.Writer.Status())
	}
}

// =============================================================================
// ResponseWriter 包装
// =============================================================================

// traceWriter 在 gin 真正写出 Header 之前注入追踪 Header。
//
// gin 的 WriteHeader 只记录状态码，Header 在 WriteHeaderNow 时写出，
// 因此需要覆盖所有会触发 WriteHeaderNow 的方法。
type traceWriter struct {
	gin.ResponseWriter
	req      *xtrace.Request
	injected bool
}

func (w *traceWriter) inject() {
	if w.injected || w.ResponseWriter.Written() {
		return
	}
	w.injected = true
	w.req.SetResponseHeaders(w.ResponseWriter.Header())
}

func (w *traceWriter) WriteHeaderNow() {
	w.inject()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *traceWriter) Write(data []byte) (int, error) {
	w.inject()
	return w.ResponseWriter.Write(data)
}

func (w *traceWriter) WriteString(s string) (int, error) {
	w.inject()
	return w.ResponseWriter.WriteString(s)
}

func (w *traceWriter) Flush() {
	w.inject()
	w.ResponseWriter.Flush()
}
