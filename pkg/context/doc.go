// Package context 提供请求上下文与运行环境相关的子包。
//
// 子包列表：
//   - xctx: 每个请求独立的追踪上下文存储（trace_id、request_id、parent_span_id）
//   - xenv: 部署标识与构建信息，进程启动时从环境变量加载一次
//
// 设计原则：
//   - 请求级数据通过 context.Context 传递，不使用全局变量
//   - 进程级数据只读，初始化后不再变化
package context
