package xconf

import "errors"

// 哨兵错误，调用方用 errors.Is 判断；具体原因通过 %w 包装在后面。
var (
	ErrEmptyPath         = errors.New("xconf: empty config path")
	ErrUnsupportedFormat = errors.New("xconf: unsupported config format")

	// ErrLoadFailed 读取文件或环境变量失败
	ErrLoadFailed = errors.New("xconf: failed to load config")
	// ErrParseFailed 内容不是合法的 YAML/JSON
	ErrParseFailed     = errors.New("xconf: failed to parse config")
	ErrUnmarshalFailed = errors.New("xconf: failed to unmarshal config")

	// ErrNotReloadable 由 NewFromBytes 创建的配置没有文件可以重读或监视
	ErrNotReloadable = errors.New("xconf: config not backed by a file")

	// ErrMissingServiceName 校验设置时服务名为空
	ErrMissingServiceName = errors.New("xconf: missing service name")
)
