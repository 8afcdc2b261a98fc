package xrun

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xcorr/pkg/observability/xlog"
)

// Group 协调一组长期运行的服务：任一服务返回错误、调用 Cancel 或
// 父 context 结束时，其余服务的 context 被取消，Wait 汇总退出原因。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回的 context 在 Group 结束时被取消。
// nil ctx 视为 context.Background()。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)

	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     options,
	}, egCtx
}

// Go 以 name 启动一个服务。服务应在 ctx.Done() 后尽快返回。
// 返回非 context.Canceled 错误时记录 Warn 日志并取消整组。
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		log := g.opts.log()
		attrs := []slog.Attr{
			slog.String("group", g.opts.name),
			slog.String("service", name),
		}

		log.Debug(g.ctx, "service starting", attrs...)
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn(g.ctx, "service exited with error", append(attrs, xlog.Err(err))...)
		} else {
			log.Debug(g.ctx, "service stopped", attrs...)
		}
		return err
	})
}

// Wait 等待所有服务退出。
//
// 返回值优先级：服务的首个非取消错误 > Cancel 传入的 cause（含 SignalError）> nil。
// 由 Group 自身或父 context 取消导致的 context.Canceled 不视为错误。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()
	g.opts.log().Debug(g.ctx, "all services stopped", slog.String("group", g.opts.name))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil && g.causeCtx.Err() == nil {
		// 服务自行返回 Canceled，且并非 Group 取消所致。
		return err
	}
	if g.causeCtx.Err() != nil {
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
	}
	return nil
}

// Cancel 以 cause 取消整组。cause 为 nil 时 Wait 返回 nil。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回服务共享的 context。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Service 是可被 Run 管理的命名服务。
type Service struct {
	Name string
	Run  func(ctx context.Context) error
}

// Run 运行 services 直到全部退出，默认监听 [DefaultSignals]。
// 收到信号时返回 *SignalError（errors.Is(err, ErrSignal) 为 true）。
func Run(ctx context.Context, opts []Option, services ...Service) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		g.Go("signal", g.watchSignals)
	}
	for _, svc := range services {
		g.Go(svc.Name, svc.Run)
	}
	return g.Wait()
}
