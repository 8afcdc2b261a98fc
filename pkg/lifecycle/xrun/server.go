package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// HTTPServerInterface 是 HTTPServer 需要的最小服务器能力，*http.Server 满足此接口。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 返回运行 server 的服务函数。
//
// ctx 结束时调用 Shutdown，shutdownTimeout <= 0 表示不限时。
// 外部直接 Shutdown 服务器（ctx 未结束）时返回 nil。
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}

		shutdownErrCh := make(chan error, 1)
		listenDone := make(chan struct{})

		go func() {
			select {
			case <-ctx.Done():
				shutdownCtx, cancel := shutdownContext(shutdownTimeout)
				defer cancel()
				shutdownErrCh <- server.Shutdown(shutdownCtx)
			case <-listenDone:
			}
		}()

		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			select {
			case shutdownErr := <-shutdownErrCh:
				return shutdownErr
			case <-ctx.Done():
				return <-shutdownErrCh
			default:
				close(listenDone)
				return nil
			}
		}
		close(listenDone)
		return err
	}
}

// GRPCServerInterface 是 GRPCServer 需要的最小服务器能力，*grpc.Server 满足此接口。
type GRPCServerInterface interface {
	Serve(lis net.Listener) error
	GracefulStop()
	Stop()
}

// GRPCServer 返回在 lis 上运行 server 的服务函数。
//
// ctx 结束时先 GracefulStop，超过 shutdownTimeout 仍未完成则 Stop 强制关闭。
// shutdownTimeout <= 0 表示一直等待优雅关闭。
func GRPCServer(server GRPCServerInterface, lis net.Listener, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil || lis == nil {
			return ErrNilServer
		}

		serveDone := make(chan struct{})
		stopped := make(chan struct{})

		go func() {
			defer close(stopped)
			select {
			case <-ctx.Done():
			case <-serveDone:
				return
			}

			graceful := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(graceful)
			}()

			if shutdownTimeout <= 0 {
				<-graceful
				return
			}
			timer := time.NewTimer(shutdownTimeout)
			defer timer.Stop()
			select {
			case <-graceful:
			case <-timer.C:
				server.Stop()
				<-graceful
			}
		}()

		err := server.Serve(lis)
		close(serveDone)
		<-stopped
		return err
	}
}

func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}
