// Package xhttpc 提供自动传播追踪信息的出站 HTTP 客户端。
//
// 两种使用方式：
//   - Transport: http.RoundTripper，可接入任意 http.Client
//   - Client: 带 base URL、默认 Header、重试和熔断的便捷客户端
//
// 追踪 Header 来自请求 ctx 中的 xctx Store（见 xtrace.TraceHeaders）。
// 调用方显式设置的 Header 在键冲突时优先。
//
// # 重试
//
// WithRetry 开启重试，仅在传输错误或 5xx 响应时重试；
// 请求体在首次发送前读入内存，每次重试重新发送完整内容。
// 最后一次尝试仍为 5xx 时原样返回该响应，由调用方处理。
//
// # 熔断
//
// WithBreaker 基于 gobreaker，传输错误和 5xx 计为失败。
// 熔断打开时返回 ErrCircuitOpen，不再重试。
package xhttpc
