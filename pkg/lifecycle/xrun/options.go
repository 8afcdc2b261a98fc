package xrun

import (
	"os"
	"slices"

	"github.com/omeyang/xcorr/pkg/observability/xlog"
)

type groupOptions struct {
	name            string
	logger          xlog.Logger
	signals         []os.Signal
	noSignalHandler bool
}

func defaultOptions() *groupOptions {
	return &groupOptions{name: "xrun"}
}

// log 返回配置的 logger，未配置时使用全局默认 logger。
func (o *groupOptions) log() xlog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return xlog.Named(xlog.Default(), "xrun")
}

// Option 配置 Group / Run。
type Option func(*groupOptions)

// WithName 设置 Group 名称，出现在所有生命周期日志的 group 字段中。
// 空字符串被忽略。
func WithName(name string) Option {
	return func(o *groupOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger 设置生命周期日志使用的 logger，nil 被忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *groupOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSignals 覆盖 Run 监听的信号列表。空列表回退到 [DefaultSignals]。
func WithSignals(signals ...os.Signal) Option {
	return func(o *groupOptions) {
		o.signals = slices.Clone(signals)
	}
}

// WithoutSignalHandler 关闭 Run 的信号监听，由调用方通过 ctx 控制退出。
func WithoutSignalHandler() Option {
	return func(o *groupOptions) {
		o.noSignalHandler = true
	}
}
