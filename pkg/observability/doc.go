// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，自动附带追踪字段
//   - xtrace: HTTP/gRPC 请求生命周期中间件与出站 Header 映射
//   - xmetrics: 请求计数与延迟指标，基于 OpenTelemetry metric
//   - xrotate: 日志文件轮转
//
// 设计原则：
//   - 追踪字段只从 context 中读取，日志与出站 Header 看到的是同一份数据
//   - 不产生 Span，不做采样和导出
package observability
