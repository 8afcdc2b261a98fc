package xlog

import (
	"log/slog"
	"time"
)

// =============================================================================
// 属性 Key 常量
// =============================================================================

const (
	KeyTimestamp    = "timestamp"
	KeyMessage      = "message"
	KeyLogger       = "logger"
	KeyService      = "service"
	KeyVersion      = "version"
	KeyEnvironment  = "environment"
	KeyGitCommit    = "git_commit"
	KeyDeploymentID = "deployment_id"

	KeyError      = "error"
	KeyException  = "exception"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatusCode = "status_code"
	KeyComponent  = "component"
)

// =============================================================================
// 便捷属性构造函数
// =============================================================================

// Err 创建错误属性，err 为 nil 时返回空属性（被 slog 忽略）
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Exception 创建异常堆栈属性，stack 为空时返回空属性
func Exception(stack []byte) slog.Attr {
	if len(stack) == 0 {
		return slog.Attr{}
	}
	return slog.String(KeyException, string(stack))
}

// DurationMS 以毫秒（保留小数）记录耗时
func DurationMS(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d)/float64(time.Millisecond))
}

// Method 创建 HTTP/RPC 方法属性
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Path 创建请求路径属性
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// StatusCode 创建状态码属性
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}
