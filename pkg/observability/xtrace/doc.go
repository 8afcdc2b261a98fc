// Package xtrace 提供请求生命周期中间件和追踪信息的跨服务传播。
//
// # 设计理念
//
// 追踪信息存储在 xctx 包的 Store 中，xtrace 负责传输层适配：
// 入站时确定 ID 并挂载 Store，出站时把 Store 的内容映射为 Header，
// 响应时把同一组 ID 写回给调用方。
//
// # 请求生命周期
//
// Middleware 对每个入站请求：
//  1. 读取 X-Trace-ID，缺失时用 service short 生成新的 trace ID
//  2. 总是生成新的 request ID（按跳生成，从不复用上游值）
//  3. 读取 X-Parent-Span-ID，缺失时保持为空
//  4. 挂载新 Store 并写入三个 ID，然后调用 handler
//  5. 正常返回时注入响应 Header 并输出 completed 日志
//  6. panic 时输出 failed 日志并以原值重新 panic
//  7. 任何退出路径都清空 Store
//
// 跳过集合中的路径（默认 /health、/、/favicon.ico）不输出 started/completed 日志，
// 但仍注入响应 Header；failed 日志不受跳过集合影响。
//
// # 协议
//
// 响应 Header：
//   - X-Trace-ID / X-Request-ID: 本请求的 ID
//   - X-Response-Time: 处理耗时，格式 "12.34ms"
//   - X-Served-By: "<服务名>-<短构建标识>"
//   - X-Deployment-ID: 仅在配置了部署标识时输出
//
// 出站 Header（TraceHeaders）：
//   - X-Trace-ID: 当前 trace ID
//   - X-Parent-Span-ID: 当前 request ID（成为下游的父 Span）
//   - X-Deployment-ID: 配置了部署标识时总是输出
//
// gRPC 使用同名小写 metadata key（x-trace-id、x-parent-span-id 等）。
//
// # 使用方式
//
//	mw, err := xtrace.NewMiddleware("order-service")
//	if err != nil {
//	    return err
//	}
//	http.ListenAndServe(addr, mw.Handler(mux))
//
// gRPC 使用 mw.UnaryServerInterceptor() / mw.StreamServerInterceptor()，
// 客户端使用 UnaryClientInterceptor() / StreamClientInterceptor()。
// gin 适配见子包 xtracegin。
package xtrace
