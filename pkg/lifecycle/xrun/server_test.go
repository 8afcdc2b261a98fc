package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

// fakeHTTPServer 模拟 ListenAndServe 阻塞直到 Shutdown
type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	closed      chan struct{}
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{closed: make(chan struct{})}
}

func (s *fakeHTTPServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.closed
	return http.ErrServerClosed
}

func (s *fakeHTTPServer) Shutdown(context.Context) error {
	close(s.closed)
	return s.shutdownErr
}

func runAsync(ctx context.Context, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	return done
}

func waitErr(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("server func did not return")
		return nil
	}
}

func TestHTTPServer_ContextShutdown(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, HTTPServer(srv, time.Second))

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.NoError(t, waitErr(t, done))
}

func TestHTTPServer_ShutdownError(t *testing.T) {
	want := errors.New("drain timeout")
	srv := newFakeHTTPServer()
	srv.shutdownErr = want

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, HTTPServer(srv, 0))
	cancel()
	assert.ErrorIs(t, waitErr(t, done), want)
}

func TestHTTPServer_ExternalShutdown(t *testing.T) {
	srv := newFakeHTTPServer()
	done := runAsync(context.Background(), HTTPServer(srv, time.Second))

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.NoError(t, waitErr(t, done))
}

func TestHTTPServer_ListenError(t *testing.T) {
	want := errors.New("address in use")
	srv := newFakeHTTPServer()
	srv.listenErr = want
	assert.ErrorIs(t, HTTPServer(srv, time.Second)(context.Background()), want)
}

func TestHTTPServer_Nil(t *testing.T) {
	assert.ErrorIs(t, HTTPServer(nil, time.Second)(context.Background()), ErrNilServer)
}

func TestGRPCServer_ContextShutdown(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{"bounded", time.Second},
		{"unbounded", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lis := bufconn.Listen(1 << 16)
			srv := grpc.NewServer()

			ctx, cancel := context.WithCancel(context.Background())
			done := runAsync(ctx, GRPCServer(srv, lis, tt.timeout))

			time.Sleep(20 * time.Millisecond)
			cancel()
			assert.NoError(t, waitErr(t, done))
		})
	}
}

// stuckGRPCServer 的 GracefulStop 只有在 Stop 之后才返回
type stuckGRPCServer struct {
	stop    chan struct{}
	serving chan struct{}
	forced  bool
}

func (s *stuckGRPCServer) Serve(net.Listener) error {
	close(s.serving)
	<-s.stop
	return nil
}

func (s *stuckGRPCServer) GracefulStop() { <-s.stop }

func (s *stuckGRPCServer) Stop() {
	s.forced = true
	close(s.stop)
}

func TestGRPCServer_ForceStopAfterTimeout(t *testing.T) {
	srv := &stuckGRPCServer{stop: make(chan struct{}), serving: make(chan struct{})}
	lis := bufconn.Listen(1024)
	t.Cleanup(func() { _ = lis.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, GRPCServer(srv, lis, 10*time.Millisecond))
	<-srv.serving
	cancel()

	assert.NoError(t, waitErr(t, done))
	assert.True(t, srv.forced)
}

func TestGRPCServer_ServeError(t *testing.T) {
	lis := bufconn.Listen(1024)
	require.NoError(t, lis.Close())

	err := GRPCServer(grpc.NewServer(), lis, time.Second)(context.Background())
	assert.Error(t, err)
}

func TestGRPCServer_Nil(t *testing.T) {
	assert.ErrorIs(t, GRPCServer(nil, nil, 0)(context.Background()), ErrNilServer)
}
