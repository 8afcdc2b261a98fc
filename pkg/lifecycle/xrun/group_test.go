package xrun

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xcorr/pkg/observability/xlog"
)

// lockedBuffer 供多个服务 goroutine 并发写日志
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger(t *testing.T) (xlog.Logger, *lockedBuffer) {
	t.Helper()
	buf := &lockedBuffer{}
	logger, cleanup, err := xlog.New().SetOutput(buf).SetLevel(xlog.LevelDebug).Build()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, cleanup()) })
	return logger, buf
}

func TestGroup_Empty(t *testing.T) {
	g, _ := NewGroup(context.Background())
	assert.NoError(t, g.Wait())
}

func TestGroup_NilContext(t *testing.T) {
	//nolint:staticcheck // nil ctx 是被测行为
	g, ctx := NewGroup(nil, nil)
	require.NotNil(t, ctx)
	assert.NoError(t, g.Wait())
}

func TestGroup_ServiceError(t *testing.T) {
	want := errors.New("boom")
	logger, buf := newTestLogger(t)

	g, _ := NewGroup(context.Background(), WithLogger(logger), WithName("api"))
	var stopped atomic.Bool
	g.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	})
	g.Go("failer", func(context.Context) error { return want })

	assert.ErrorIs(t, g.Wait(), want)
	assert.True(t, stopped.Load())

	out := buf.String()
	assert.Contains(t, out, "service exited with error")
	assert.Contains(t, out, `"group":"api"`)
	assert.Contains(t, out, `"service":"failer"`)
}

func TestGroup_NilFunc(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go("nil", nil)
	assert.ErrorIs(t, g.Wait(), ErrNilFunc)
}

func TestGroup_Cancel(t *testing.T) {
	cause := errors.New("shutdown requested")

	tests := []struct {
		name  string
		cause error
		want  error
	}{
		{"with cause", cause, cause},
		{"nil cause", nil, nil},
		{"canceled cause", context.Canceled, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := NewGroup(context.Background())
			g.Go("waiter", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			})
			g.Cancel(tt.cause)

			err := g.Wait()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGroup_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	g, _ := NewGroup(parent)
	g.Go("waiter", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	cancel()
	assert.NoError(t, g.Wait())
}

func TestGroup_ServiceReturnsCanceledOnItsOwn(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go("self", func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, g.Wait(), context.Canceled)
}

func TestGroup_ContextDoneAfterWait(t *testing.T) {
	g, ctx := NewGroup(context.Background())
	assert.Same(t, ctx, g.Context())
	require.NoError(t, g.Wait())

	select {
	case <-ctx.Done():
	default:
		t.Fatal("context should be canceled after Wait")
	}
}

func TestRun_Signal(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	ctx := withTestSigChan(context.Background(), sigCh)
	logger, buf := newTestLogger(t)

	var stopped atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []Option{WithLogger(logger), WithName("xcorrctl")},
			Service{Name: "worker", Run: func(ctx context.Context) error {
				<-ctx.Done()
				stopped.Store(true)
				return ctx.Err()
			}},
		)
	}()

	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSignal)
		var sigErr *SignalError
		require.ErrorAs(t, err, &sigErr)
		assert.Equal(t, syscall.SIGTERM, sigErr.Signal)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after signal")
	}

	assert.True(t, stopped.Load())
	assert.Contains(t, buf.String(), "received signal")
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []Option{WithSignals(syscall.SIGUSR1)}, Service{Name: "worker", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}})
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_WithoutSignalHandler(t *testing.T) {
	// 没有信号监听服务时，所有服务退出即返回
	err := Run(context.Background(), []Option{WithoutSignalHandler()},
		Service{Name: "once", Run: func(context.Context) error { return nil }},
	)
	assert.NoError(t, err)
}

func TestRun_ServiceError(t *testing.T) {
	want := errors.New("listen failed")
	err := Run(context.Background(), nil,
		Service{Name: "broken", Run: func(context.Context) error { return want }},
	)
	assert.ErrorIs(t, err, want)
}

func TestSignalError(t *testing.T) {
	err := &SignalError{Signal: syscall.SIGINT}
	assert.ErrorIs(t, err, ErrSignal)
	assert.True(t, strings.Contains(err.Error(), "interrupt"))
	assert.Equal(t, "xrun: received signal <nil>", (&SignalError{}).Error())
}

func TestDefaultSignals(t *testing.T) {
	a := DefaultSignals()
	a[0] = syscall.SIGUSR2
	assert.Equal(t, syscall.SIGHUP, DefaultSignals()[0])
	assert.Len(t, DefaultSignals(), 4)
}

func TestOptions(t *testing.T) {
	signals := []os.Signal{syscall.SIGUSR1}
	o := defaultOptions()
	for _, opt := range []Option{WithName(""), WithLogger(nil), WithSignals(signals...)} {
		opt(o)
	}
	signals[0] = syscall.SIGUSR2

	assert.Equal(t, "xrun", o.name)
	assert.Nil(t, o.logger)
	assert.NotNil(t, o.log())
	assert.Equal(t, []os.Signal{syscall.SIGUSR1}, o.signals)
}
