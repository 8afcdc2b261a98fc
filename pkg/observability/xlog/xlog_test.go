package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/omeyang/xcorr/pkg/observability/xlog"
	"github.com/omeyang/xcorr/pkg/observability/xrotate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// build 构建 logger 并在测试结束时执行 cleanup
func build(t *testing.T, b *xlog.Builder) xlog.LoggerWithLevel {
	t.Helper()
	logger, cleanup, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cleanup()) })
	return logger
}

// decodeLines 把 json 输出逐行解码
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

func TestBuilder_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().
		SetOutput(&buf).
		SetService(xlog.ServiceInfo{Name: "order-api", Version: "1.2.0", Environment: "production", GitCommit: "abc1234"}))

	logger.Info(context.Background(), "hello", slog.String("k", "v"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	rec := lines[0]
	assert.Equal(t, "hello", rec[xlog.KeyMessage])
	assert.Equal(t, "INFO", rec["level"])
	assert.Contains(t, rec, xlog.KeyTimestamp)
	assert.NotContains(t, rec, "msg")
	assert.NotContains(t, rec, "time")
	assert.Equal(t, "order-api", rec[xlog.KeyService])
	assert.Equal(t, "1.2.0", rec[xlog.KeyVersion])
	assert.Equal(t, "production", rec[xlog.KeyEnvironment])
	assert.Equal(t, "abc1234", rec[xlog.KeyGitCommit])
	assert.Equal(t, "v", rec["k"])
}

func TestBuilder_EmptyServiceFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetService(xlog.ServiceInfo{Name: "svc"}))
	logger.Info(context.Background(), "x")

	rec := decodeLines(t, &buf)[0]
	assert.Equal(t, "svc", rec[xlog.KeyService])
	assert.NotContains(t, rec, xlog.KeyVersion)
	assert.NotContains(t, rec, xlog.KeyGitCommit)
}

func TestBuilder_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetFormat(" TEXT "))
	logger.Warn(context.Background(), "careful")

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=careful")
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *xlog.Builder
	}{
		{name: "未知格式", builder: xlog.New().SetFormat("xml")},
		{name: "未知级别", builder: xlog.New().SetLevelString("verbose")},
		{name: "轮转文件名为空", builder: xlog.New().SetRotation("")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.builder.Build()
			assert.Error(t, err)
		})
	}

	_, _, err := xlog.New().SetRotation("").Build()
	assert.ErrorIs(t, err, xrotate.ErrEmptyFilename)
}

func TestBuilder_Rotation(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, cleanup, err := xlog.New().SetRotation(filename, xrotate.WithCompress(false)).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup(), "cleanup 可重复调用")

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetLevelString("warning"))
	ctx := context.Background()

	logger.Debug(ctx, "d")
	logger.Info(ctx, "i")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e")
	assert.Len(t, decodeLines(t, &buf), 2)
	assert.Equal(t, xlog.LevelWarn, logger.GetLevel())

	buf.Reset()
	logger.SetLevel(xlog.LevelDebug)
	assert.True(t, logger.Enabled(ctx, xlog.LevelDebug))
	logger.Debug(ctx, "d")
	assert.Len(t, decodeLines(t, &buf), 1)
}

func TestLogger_WithSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf))

	child := xlog.Named(logger.With(slog.String("a", "1")).WithGroup("g"), "worker")
	logger.SetLevel(xlog.LevelError)
	child.Info(context.Background(), "muted")
	assert.Empty(t, buf.String())

	logger.SetLevel(xlog.LevelInfo)
	child.Info(context.Background(), "loud", slog.String("b", "2"))
	rec := decodeLines(t, &buf)[0]
	assert.Equal(t, "1", rec["a"])
	g, ok := rec["g"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "worker", g[xlog.KeyLogger])
	assert.Equal(t, "2", g["b"])

	assert.Same(t, logger, logger.With())
	assert.Same(t, logger, logger.WithGroup(""))
	assert.Nil(t, xlog.Named(nil, "x"))
}

func TestLogger_NilContext(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf))
	assert.NotPanics(t, func() {
		//nolint:staticcheck // 测试 nil context 处理
		logger.Info(nil, "nil ctx")
	})
	assert.Contains(t, buf.String(), "nil ctx")
}

func TestLogger_ReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := build(t, xlog.New().SetOutput(&buf).SetReplaceAttr(func(_ []string, a slog.Attr) slog.Attr {
		if a.Key == "password" {
			return slog.String(a.Key, "***")
		}
		return a
	}))
	logger.Info(context.Background(), "login", slog.String("password", "secret"))

	rec := decodeLines(t, &buf)[0]
	assert.Equal(t, "***", rec["password"])
	assert.Equal(t, "login", rec[xlog.KeyMessage])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogger_OnError(t *testing.T) {
	var calls atomic.Int32
	logger := build(t, xlog.New().SetOutput(failingWriter{}).SetOnError(func(err error) {
		calls.Add(1)
		panic(err)
	}))

	assert.NotPanics(t, func() {
		logger.Info(context.Background(), "lost")
	})
	assert.Equal(t, int32(1), calls.Load())
}
