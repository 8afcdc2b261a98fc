// xcorrctl 是 xcorr 追踪上下文工具集的命令行入口。
//
// 用法:
//
//	xcorrctl <命令> [命令参数]
//
// 命令:
//
//	trace-id       生成追踪 ID
//	request-id     生成请求 ID
//	parse <id>     解析追踪 ID
//	headers        打印给定追踪字段对应的出站 Header
//	serve          启动演示服务（HTTP + 可选 gRPC）
//
// 退出码:
//
//	0: 成功
//	1: 命令失败（parse: 输入不是合法的追踪 ID）
//	2: 参数错误
//
// 示例:
//
//	xcorrctl trace-id --service-short ordr
//	xcorrctl parse 65f1c2a0-3fa8b2c91d04-ordr
//	xcorrctl headers --trace-id abc --request-id ordr_1234
//	xcorrctl serve --addr :8080 --service order-service --config ./xcorr.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息可通过 -ldflags 注入:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// 未注入时回退到 xenv 的构建信息（GIT_COMMIT 等环境变量）。
var (
	Version   = ""
	GitCommit = ""
	BuildTime = ""
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

// createApp 创建 CLI 应用，所有输出写入 stdout/stderr 以便测试捕获。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xcorrctl",
		Usage:     "追踪上下文工具：生成/解析 ID、查看出站 Header、运行演示服务",
		Version:   versionString(),
		Writer:    stdout,
		ErrWriter: stderr,
		Commands:  createCommands(),
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，退出码统一由 run 映射。
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		OnUsageError:   onUsageError,
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)

	if err := app.Run(ctx, args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
