// Package xid 生成并解析请求关联标识。
//
// # 标识格式
//
// 追踪 ID（trace id）贯穿一次逻辑操作经过的所有服务：
//
//	{十六进制 Unix 秒}-{12 位十六进制随机段}-{service_short}
//	例如: 6710f3a2-9c1b44e0d2aa-order
//
// 前两段固定为时间戳和随机段，其余所有段（重新以 "-" 拼接）都属于
// service_short，因此 service_short 自身可以包含 "-"。
//
// 请求 ID（request id）只标识一个服务对一次请求的处理（一跳）：
//
//	{prefix}_{12 位十六进制随机段}
//	例如: order_1f0e8d7c6b5a
//
// 随机段取自 crypto/rand（48 bit 熵），同一秒内生成的 ID 依靠随机段区分。
//
// # 快速开始
//
//	traceID := xid.NewTraceID("order")
//	requestID := xid.NewRequestID("order")
//
//	parts := xid.ParseTraceID(traceID)
//	if parts.Valid {
//	    fmt.Println(parts.Time(), parts.ServiceShort)
//	}
//
// # 时间单调性
//
// 同一个 [Generator] 生成的追踪 ID，时间戳段单调不减（精度到秒）。
// 系统时钟回拨时沿用上次的时间戳，不会生成"更早"的 ID。
//
// ParseTraceID 从不返回错误，格式不合法时通过 [TraceIDParts.Valid] 表达。
package xid
