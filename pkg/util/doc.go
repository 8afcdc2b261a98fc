// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 追踪 ID 与请求 ID 的生成和解析
package util
