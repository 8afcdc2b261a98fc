package xtrace_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcorr/pkg/observability/xlog"
	"github.com/omeyang/xcorr/pkg/observability/xmetrics"
	"github.com/omeyang/xcorr/pkg/observability/xtrace"
)

const testService = "order-service"

// newTestMiddleware 创建输出到 buffer 的中间件，buffer 只能在单 goroutine 测试中使用
func newTestMiddleware(t *testing.T, opts ...xtrace.Option) (*xtrace.Middleware, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, cleanup, err := xlog.New().SetOutput(buf).SetLevel(xlog.LevelDebug).Build()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cleanup()) })

	all := append([]xtrace.Option{xtrace.WithLogger(logger), xtrace.WithBuildID("abc1234")}, opts...)
	m, err := xtrace.NewMiddleware(testService, all...)
	require.NoError(t, err)
	return m, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func messages(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var out []string
	for _, line := range decodeLines(t, buf) {
		msg, _ := line[xlog.KeyMessage].(string)
		out = append(out, msg)
	}
	return out
}

// recordingRecorder 收集所有指标记录
type recordingRecorder struct {
	mu   sync.Mutex
	recs []xmetrics.RequestRecord
}

func (r *recordingRecorder) RecordRequest(_ context.Context, rec xmetrics.RequestRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *recordingRecorder) records() []xmetrics.RequestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]xmetrics.RequestRecord(nil), r.recs...)
}
