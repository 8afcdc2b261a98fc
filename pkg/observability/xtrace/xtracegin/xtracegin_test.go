package xtracegin_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcorr/pkg/context/xctx"
	"github.com/omeyang/xcorr/pkg/observability/xlog"
	"github.com/omeyang/xcorr/pkg/observability/xmetrics"
	"github.com/omeyang/xcorr/pkg/observability/xtrace"
	"github.com/omeyang/xcorr/pkg/observability/xtrace/xtracegin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(t *testing.T, opts ...xtrace.Option) (*gin.Engine, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, cleanup, err := xlog.New().SetOutput(buf).Build()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cleanup()) })

	mw, err := xtracegin.New("gin-service", append([]xtrace.Option{xtrace.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, _ any) {
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	engine.Use(mw)
	return engine, buf
}

func serve(engine *gin.Engine, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestNew_EmptyServiceName(t *testing.T) {
	_, err := xtracegin.New("")
	assert.ErrorIs(t, err, xtrace.ErrEmptyServiceName)
}

func TestMiddleware_ResponseHeaders(t *testing.T) {
	tests := []struct {
		name    string
		handler gin.HandlerFunc
		status  int
	}{
		{name: "JSON", handler: func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }, status: http.StatusOK},
		{name: "String", handler: func(c *gin.Context) { c.String(http.StatusAccepted, "accepted") }, status: http.StatusAccepted},
		{name: "只设置状态码", handler: func(c *gin.Context) { c.Status(http.StatusNoContent) }, status: http.StatusNoContent},
		{name: "AbortWithStatus", handler: func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }, status: http.StatusForbidden},
		{name: "什么都不写", handler: func(*gin.Context) {}, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newEngine(t, xtrace.WithDeploymentID("dep-1"))
			engine.GET("/orders", tt.handler)

			rec := serve(engine, "/orders", nil)
			assert.Equal(t, tt.status, rec.Code)

			h := rec.Result().Header
			assert.True(t, strings.HasSuffix(h.Get(xtrace.HeaderTraceID), "-gin-"), h.Get(xtrace.HeaderTraceID))
			assert.True(t, strings.HasPrefix(h.Get(xtrace.HeaderRequestID), "gin-_"), h.Get(xtrace.HeaderRequestID))
			assert.NotEmpty(t, h.Get(xtrace.HeaderResponseTime))
			assert.Equal(t, "dep-1", h.Get(xtrace.HeaderDeploymentID))
		})
	}
}

func TestMiddleware_PropagatesContext(t *testing.T) {
	engine, _ := newEngine(t)

	var handlerCtx context.Context
	var seen xctx.TraceContext
	engine.GET("/orders", func(c *gin.Context) {
		handlerCtx = c.Request.Context()
		seen = xctx.Current(handlerCtx)
		c.Status(http.StatusOK)
	})

	rec := serve(engine, "/orders", http.Header{
		xtrace.HeaderTraceID:      {"upstream-trace-123"},
		xtrace.HeaderParentSpanID: {"caller_1"},
	})

	assert.Equal(t, "upstream-trace-123", rec.Header().Get(xtrace.HeaderTraceID))
	assert.Equal(t, "upstream-trace-123", seen.TraceID)
	assert.Equal(t, "caller_1", seen.ParentSpanID)
	assert.Equal(t, seen.RequestID, rec.Header().Get(xtrace.HeaderRequestID))
	assert.True(t, xctx.Current(handlerCtx).IsEmpty())
}

func TestMiddleware_PanicPassedToRecovery(t *testing.T) {
	engine, buf := newEngine(t)
	var handlerCtx context.Context
	engine.GET("/orders", func(c *gin.Context) {
		handlerCtx = c.Request.Context()
		panic(errors.New("boom"))
	})

	rec := serve(engine, "/orders", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get(xtrace.HeaderTraceID))
	assert.True(t, xctx.Current(handlerCtx).IsEmpty())
	assert.Contains(t, buf.String(), "Request failed: GET /orders")
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestMiddleware_SkipPath(t *testing.T) {
	engine, buf := newEngine(t)
	engine.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	rec := serve(engine, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(xtrace.HeaderTraceID))
	assert.Empty(t, buf.String())
}

func TestMiddleware_LogsLifecycle(t *testing.T) {
	engine, buf := newEngine(t)
	engine.GET("/orders", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	serve(engine, "/orders", nil)
	out := buf.String()
	assert.Contains(t, out, "Request started: GET /orders")
	assert.Contains(t, out, "Request completed: GET /orders status=200")
}

type recordingRecorder struct {
	mu   sync.Mutex
	recs []xmetrics.RequestRecord
}

func (r *recordingRecorder) RecordRequest(_ context.Context, rec xmetrics.RequestRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *recordingRecorder) routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.recs))
	for _, rec := range r.recs {
		out = append(out, rec.Route)
	}
	return out
}

func TestMiddleware_RecordsFullPath(t *testing.T) {
	rec := &recordingRecorder{}
	engine, _ := newEngine(t, xtrace.WithMetrics(rec))
	engine.GET("/orders/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	engine.GET("/boom/:id", func(*gin.Context) { panic("boom") })

	serve(engine, "/orders/1", nil)
	serve(engine, "/orders/2", nil)
	serve(engine, "/missing", nil)
	serve(engine, "/boom/3", nil)

	assert.Equal(t, []string{"/orders/:id", "/orders/:id", xtrace.RouteUnmatched, "/boom/:id"}, rec.routes())
}
