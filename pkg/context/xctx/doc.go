// Package xctx 提供按请求隔离的追踪上下文存储。
//
// # 概述
//
// 每个入站请求拥有一个独立的 [Store]，挂载在该请求的 context.Context 上。
// Store 保存三个相互独立、均可为空的字段：
//
//   - trace_id: 标识跨服务的一次逻辑操作，各跳保持不变
//   - request_id: 标识本服务对本次请求的处理（一跳），每跳重新生成
//   - parent_span_id: 上游调用方的 request_id，没有上游时为空
//
// 所有读取函数都对 nil context 和未挂载 Store 的 context 安全，返回空值。
//
// # 隔离模型
//
// Go 没有隐式的任务本地存储，隔离依靠 context 显式传递：
// 不同请求的 context 挂载不同的 Store，互相不可见。
// 同一请求内，从该 context 派生的所有 context 共享同一个 Store，
// 写入对后续读取立即可见。
//
// 需要在子 goroutine 中持有"快照"、不受父请求后续写入影响时，使用 [Fork]。
//
// # 快速开始
//
//	ctx, store, _ := xctx.NewContext(r.Context())
//	defer store.Clear()
//
//	store.Set(xctx.TraceContext{TraceID: traceID, RequestID: requestID})
//
//	xctx.TraceID(ctx)  // traceID
//	xctx.Current(ctx)  // TraceContext 快照
//
// # 写入语义
//
// [Store.Set] 与 [SetTraceContext] 只更新非空字段，
// 空字段表示"不修改"，不会把已有值覆盖为空。清空请使用 [Store.Clear]。
package xctx
