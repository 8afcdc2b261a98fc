// Package xlog 提供基于 log/slog 的结构化日志，自动关联请求追踪信息。
//
// # 设计要点
//
//   - 所有方法强制传入 context.Context，日志从中读取 trace_id、request_id、parent_span_id
//   - 部署标识 deployment_id 与服务信息（service、version、environment、git_commit）
//     作为固定字段写入每条日志
//   - 支持 json / text 两种格式，json 格式使用 timestamp、message 作为时间和消息字段
//   - 支持运行时调整级别，Build 返回 cleanup 函数负责关闭轮转文件
//
// # 快速开始
//
//	logger, cleanup, err := xlog.New().
//	    SetFormat("json").
//	    SetLevelString("INFO").
//	    SetService(xlog.ServiceInfo{Name: "order-api", Version: "1.2.0"}).
//	    SetDeploymentID(xenv.DeploymentID()).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
//	logger.Info(ctx, "order created", slog.String("order_id", id))
//
// 输出示例：
//
//	{"timestamp":"...","level":"INFO","message":"order created","service":"order-api",
//	 "version":"1.2.0","order_id":"o-1","trace_id":"6710f3a2-9c1b44e0d2aa-orde","request_id":"orde_1f0e8d7c6b5a"}
//
// 未注入追踪信息的字段不会输出，不会出现空字符串。
package xlog
