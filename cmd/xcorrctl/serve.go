package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/omeyang/xcorr/pkg/config/xconf"
	"github.com/omeyang/xcorr/pkg/context/xctx"
	"github.com/omeyang/xcorr/pkg/context/xenv"
	"github.com/omeyang/xcorr/pkg/lifecycle/xrun"
	"github.com/omeyang/xcorr/pkg/observability/xlog"
	"github.com/omeyang/xcorr/pkg/observability/xmetrics"
	"github.com/omeyang/xcorr/pkg/observability/xtrace"
)

const (
	defaultAddr            = ":8080"
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:         "serve",
		Usage:        "启动挂载追踪中间件的演示服务",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "HTTP 监听地址",
				Value:   defaultAddr,
				Sources: cli.EnvVars("XCORR_ADDR"),
			},
			&cli.StringFlag{
				Name:    "grpc-addr",
				Usage:   "gRPC 健康检查服务监听地址，为空时不启动",
				Sources: cli.EnvVars("XCORR_GRPC_ADDR"),
			},
			&cli.StringFlag{
				Name:    "service",
				Aliases: []string{"n"},
				Usage:   "服务名，覆盖 SERVICE_NAME 与配置文件",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML/JSON 配置文件，修改后热更新日志级别",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "优雅关闭超时",
				Value: defaultShutdownTimeout,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdServe(ctx, serveOptions{
				addr:            cmd.String("addr"),
				grpcAddr:        cmd.String("grpc-addr"),
				service:         cmd.String("service"),
				configPath:      cmd.String("config"),
				shutdownTimeout: cmd.Duration("shutdown-timeout"),
				logOutput:       cmd.Root().ErrWriter,
			})
		},
	}
}

type serveOptions struct {
	addr            string
	grpcAddr        string
	service         string
	configPath      string
	shutdownTimeout time.Duration
	logOutput       io.Writer
}

// cmdServe 组装演示服务并运行到收到信号或 ctx 结束。
func cmdServe(ctx context.Context, opts serveOptions) (err error) {
	settings, cfg, err := loadServeSettings(opts)
	if err != nil {
		return &usageError{err: err}
	}

	if err := xenv.Init(); err != nil && !errors.Is(err, xenv.ErrAlreadyInitialized) {
		return err
	}

	logger, closeLog, err := buildLogger(settings, opts.logOutput)
	if err != nil {
		return &usageError{err: err}
	}
	defer func() { err = errors.Join(err, closeLog()) }()
	xlog.SetDefault(logger)
	defer xlog.ResetDefault()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() {
		logRequestSummary(logger, reader)
		err = errors.Join(err, provider.Shutdown(context.Background()))
	}()
	recorder, err := xmetrics.NewOTelRecorder(xmetrics.WithMeterProvider(provider))
	if err != nil {
		return err
	}

	mw, err := newMiddleware(settings, logger, recorder)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              opts.addr,
		Handler:           mw.Handler(newMux(mw)),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	services := []xrun.Service{
		{Name: "http", Run: xrun.HTTPServer(server, opts.shutdownTimeout)},
	}

	var watcher *xconf.Watcher
	if cfg != nil {
		if watcher, err = xconf.Watch(cfg, reloadLogLevel(logger, settings)); err != nil {
			return err
		}
		services = append(services, xrun.Service{Name: "config", Run: watcher.Run})
	}

	if opts.grpcAddr != "" {
		var lc net.ListenConfig
		lis, err := lc.Listen(ctx, "tcp", opts.grpcAddr)
		if err != nil {
			if watcher != nil {
				_ = watcher.Close()
			}
			return fmt.Errorf("listen grpc %s: %w", opts.grpcAddr, err)
		}
		services = append(services, xrun.Service{
			Name: "grpc",
			Run:  xrun.GRPCServer(newGRPCServer(mw), lis, opts.shutdownTimeout),
		})
	}

	logger.Info(ctx, "xcorrctl serving",
		slog.String("addr", opts.addr),
		slog.String("grpc_addr", opts.grpcAddr),
		slog.String("served_by", mw.ServedBy()),
	)

	err = xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName("xcorrctl")}, services...)
	if errors.Is(err, xrun.ErrSignal) {
		return nil
	}
	return err
}

// loadServeSettings 合并设置，优先级：命令行 > 配置文件 > 环境变量 > 默认值。
func loadServeSettings(opts serveOptions) (xconf.Settings, xconf.Config, error) {
	settings, err := xconf.LoadSettings()
	if err != nil {
		return xconf.Settings{}, nil, err
	}

	var cfg xconf.Config
	if opts.configPath != "" {
		if cfg, err = xconf.New(opts.configPath); err != nil {
			return xconf.Settings{}, nil, err
		}
		if settings, err = settings.Apply(cfg); err != nil {
			return xconf.Settings{}, nil, err
		}
	}

	if opts.service != "" {
		settings.ServiceName = opts.service
	}
	if err := settings.Validate(); err != nil {
		return xconf.Settings{}, nil, err
	}
	return settings, cfg, nil
}

func buildLogger(settings xconf.Settings, w io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	build := xenv.Build()
	b := xlog.New().
		SetFormat(settings.LogFormat).
		SetLevelString(settings.LogLevel).
		SetDeploymentID(xenv.DeploymentID()).
		SetService(xlog.ServiceInfo{
			Name:        settings.ServiceName,
			Version:     build.Version,
			Environment: settings.Environment,
			GitCommit:   build.ShortCommit(),
		})
	if settings.Debug {
		b.SetLevel(xlog.LevelDebug)
	}
	if settings.LogFile != "" {
		b.SetRotation(settings.LogFile)
	} else if w != nil {
		b.SetOutput(w)
	}
	return b.Build()
}

func newMiddleware(settings xconf.Settings, logger xlog.Logger, rec xmetrics.Recorder) (*xtrace.Middleware, error) {
	opts := []xtrace.Option{
		xtrace.WithServiceShort(settings.ServiceShort),
		xtrace.WithLogRequests(settings.LogRequests),
		xtrace.WithLogger(logger),
		xtrace.WithMetrics(rec),
	}
	if len(settings.SkipPaths) > 0 {
		opts = append(opts, xtrace.WithSkipPaths(settings.SkipPaths...))
	}
	return xtrace.NewMiddleware(settings.ServiceName, opts...)
}

// echoResponse 是 /echo 的响应体
type echoResponse struct {
	TraceID      string            `json:"trace_id"`
	RequestID    string            `json:"request_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Outbound     map[string]string `json:"outbound_headers"`
}

func newMux(mw *xtrace.Middleware) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service":   mw.ServiceName(),
			"served_by": mw.ServedBy(),
		})
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tc := xctx.Current(ctx)
		writeJSON(w, http.StatusOK, echoResponse{
			TraceID:      tc.TraceID,
			RequestID:    tc.RequestID,
			ParentSpanID: tc.ParentSpanID,
			Outbound:     xtrace.TraceHeaders(ctx),
		})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newGRPCServer(mw *xtrace.Middleware) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(mw.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(mw.StreamServerInterceptor()),
	)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	return srv
}

// reloadLogLevel 返回配置变更回调：重新合并设置并把新的日志级别应用到 logger。
func reloadLogLevel(logger xlog.LoggerWithLevel, base xconf.Settings) xconf.WatchCallback {
	return func(cfg xconf.Config, err error) {
		ctx := context.Background()
		if err != nil {
			logger.Warn(ctx, "config reload failed", xlog.Err(err))
			return
		}
		next, err := base.Apply(cfg)
		if err != nil {
			logger.Warn(ctx, "config reload failed", xlog.Err(err))
			return
		}
		level, err := xlog.ParseLevel(next.LogLevel)
		if err != nil {
			logger.Warn(ctx, "config reload ignored invalid log level", xlog.Err(err))
			return
		}
		if level == logger.GetLevel() {
			return
		}
		logger.SetLevel(level)
		logger.Info(ctx, "log level changed", slog.String("level", level.String()))
	}
}

// requestTotal 汇总所有请求计数
func requestTotal(ctx context.Context, reader sdkmetric.Reader) (int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return 0, err
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != xmetrics.MetricRequests {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total, nil
}

func logRequestSummary(logger xlog.Logger, reader sdkmetric.Reader) {
	ctx := context.Background()
	total, err := requestTotal(ctx, reader)
	if err != nil {
		logger.Warn(ctx, "collect request metrics failed", xlog.Err(err))
		return
	}
	logger.Info(ctx, "xcorrctl stopped", slog.Int64("requests_total", total))
}
