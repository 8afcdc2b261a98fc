// Package xmetrics 记录请求级指标：请求计数与耗时分布。
//
// [Recorder] 是对外接口，xtrace 中间件在每个请求结束时调用一次。
// [NewOTelRecorder] 基于 OpenTelemetry metric API 实现，
// 导出方式由调用方配置的 MeterProvider 决定；[NoopRecorder] 丢弃全部数据。
//
// 指标：
//
//	xcorr.requests          Int64Counter，单位 1
//	xcorr.request.duration  Float64Histogram，单位 ms
//
// 属性：transport、method、route、status_code、outcome（completed / failed）。
package xmetrics
