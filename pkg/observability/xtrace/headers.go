package xtrace

// =============================================================================
// HTTP Header 常量
// =============================================================================

// HTTP Header 名称，大小写是对外契约
const (
	HeaderTraceID      = "X-Trace-ID"
	HeaderRequestID    = "X-Request-ID"
	HeaderParentSpanID = "X-Parent-Span-ID"
	HeaderDeploymentID = "X-Deployment-ID"
	HeaderResponseTime = "X-Response-Time"
	HeaderServedBy     = "X-Served-By"
)

// =============================================================================
// gRPC Metadata 常量
// =============================================================================

// Metadata Key 名称（遵循小写加连字符的 gRPC 惯例）
const (
	MetaTraceID      = "x-trace-id"
	MetaRequestID    = "x-request-id"
	MetaParentSpanID = "x-parent-span-id"
	MetaDeploymentID = "x-deployment-id"
	MetaResponseTime = "x-response-time"
	MetaServedBy     = "x-served-by"
)
