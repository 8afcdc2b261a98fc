// Package xrun 提供基于 errgroup + context 的进程生命周期管理。
//
// # 概述
//
// 一个进程通常同时运行 HTTP 服务、gRPC 服务和配置监听等多个长期任务。
// xrun 把它们放进同一个 [Group]：任一服务失败或收到终止信号时，
// 共享的 context 被取消，所有服务据此优雅退出。
//
// # 快速开始
//
//	srv := &http.Server{Addr: ":8080", Handler: mw.Handler(mux)}
//	err := xrun.Run(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.Service{Name: "http", Run: xrun.HTTPServer(srv, 10*time.Second)},
//	    xrun.Service{Name: "config", Run: watcher.Run},
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    err = nil
//	}
//
// # 日志
//
// 生命周期事件通过 xlog 输出，固定携带 group 与 service 字段：
// 服务启动/停止为 Debug，异常退出为 Warn，收到信号为 Info。
//
// # 与 Kubernetes 配合
//
// Pod 终止前会收到 SIGTERM。shutdownTimeout 应小于
// terminationGracePeriodSeconds（默认 30s），避免被 SIGKILL 打断。
package xrun
