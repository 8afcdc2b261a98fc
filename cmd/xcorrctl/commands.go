package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xcorr/pkg/context/xctx"
	"github.com/omeyang/xcorr/pkg/context/xenv"
	"github.com/omeyang/xcorr/pkg/observability/xtrace"
	"github.com/omeyang/xcorr/pkg/util/xid"
)

// exitError 表示命令已完成输出、只需设置非零退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数错误，对应退出码 2。
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

var errMissingArg = errors.New("missing argument")

func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{err: err}
}

func versionString() string {
	build := xenv.Build()
	version, commit, built := Version, GitCommit, BuildTime
	if version == "" {
		version = build.Version
	}
	if commit == "" {
		commit = build.ShortCommit()
	}
	if built == "" {
		built = build.BuildDate
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, built)
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createTraceIDCommand(),
		createRequestIDCommand(),
		createParseCommand(),
		createHeadersCommand(),
		createServeCommand(),
	}
}

func createTraceIDCommand() *cli.Command {
	return &cli.Command{
		Name:         "trace-id",
		Usage:        "生成追踪 ID（<时间戳hex>-<随机hex>-<服务短名>）",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "service-short",
				Aliases: []string{"s"},
				Usage:   "嵌入 ID 的服务短名",
				Value:   xid.DefaultServiceShort,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(cmd.Root().Writer, xid.NewTraceID(cmd.String("service-short")))
			return err
		},
	}
}

func createRequestIDCommand() *cli.Command {
	return &cli.Command{
		Name:         "request-id",
		Usage:        "生成请求 ID（<前缀>_<随机hex>）",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "prefix",
				Aliases: []string{"p"},
				Usage:   "请求 ID 前缀",
				Value:   xid.DefaultRequestPrefix,
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(cmd.Root().Writer, xid.NewRequestID(cmd.String("prefix")))
			return err
		},
	}
}

func createParseCommand() *cli.Command {
	return &cli.Command{
		Name:         "parse",
		Usage:        "解析追踪 ID，非法输入以退出码 1 结束",
		ArgsUsage:    "<trace-id>",
		OnUsageError: onUsageError,
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return &usageError{err: fmt.Errorf("%w: parse 需要且仅需要一个追踪 ID", errMissingArg)}
			}
			return cmdParse(cmd.Root().Writer, cmd.Args().First())
		},
	}
}

// cmdParse 输出解析结果。时间以 UTC RFC3339 输出，便于与日志比对。
func cmdParse(w io.Writer, raw string) error {
	parts := xid.ParseTraceID(raw)
	if !parts.Valid {
		fmt.Fprintf(w, "invalid: %q\n", parts.Raw)
		return &exitError{code: 1}
	}
	fmt.Fprintf(w, "raw:       %s\n", parts.Raw)
	fmt.Fprintf(w, "timestamp: %d (%s)\n", parts.Timestamp, parts.Time().UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "random:    %s\n", parts.Random)
	fmt.Fprintf(w, "service:   %s\n", parts.ServiceShort)
	return nil
}

func createHeadersCommand() *cli.Command {
	return &cli.Command{
		Name:         "headers",
		Usage:        "打印给定追踪字段对应的出站 Header",
		OnUsageError: onUsageError,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "trace-id", Usage: "当前追踪 ID"},
			&cli.StringFlag{Name: "request-id", Usage: "当前请求 ID，作为下游的 X-Parent-Span-ID"},
			&cli.StringFlag{
				Name:    "deployment-id",
				Usage:   "部署标识",
				Sources: cli.EnvVars("DEPLOYMENT_ID"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdHeaders(ctx, cmd.Root().Writer, xctx.TraceContext{
				TraceID:   cmd.String("trace-id"),
				RequestID: cmd.String("request-id"),
			}, cmd.String("deployment-id"))
		},
	}
}

// cmdHeaders 以 "Key: Value" 形式按 key 排序输出，未产生任何 Header 时输出空。
func cmdHeaders(ctx context.Context, w io.Writer, tc xctx.TraceContext, deploymentID string) error {
	ctx, err := xctx.SetTraceContext(ctx, tc)
	if err != nil {
		return err
	}
	p := xtrace.NewPropagator(xtrace.WithPropagatorDeploymentID(deploymentID))
	headers := p.TraceHeaders(ctx)

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, headers[k])
	}
	_, err = io.WriteString(w, b.String())
	return err
}
