package xhttpc

import (
	"net/http"

	"github.com/omeyang/xcorr/pkg/observability/xtrace"
)

// Transport 为每个请求注入追踪 Header 的 http.RoundTripper。
// 请求上已存在的 Header 不会被覆盖；原请求不被修改。
type Transport struct {
	// Base 底层 RoundTripper，为 nil 时使用 http.DefaultTransport
	Base http.RoundTripper

	// Propagator 为 nil 时使用 xtrace 默认 Propagator
	Propagator *xtrace.Propagator
}

// NewTransport 包装 base
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

// RoundTrip 实现 http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if t.Propagator != nil {
		t.Propagator.InjectToRequest(req.Context(), out)
	} else {
		xtrace.InjectToRequest(req.Context(), out)
	}
	return t.base().RoundTrip(out)
}

// CloseIdleConnections 关闭底层 Transport 的空闲连接
func (t *Transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.base().(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
