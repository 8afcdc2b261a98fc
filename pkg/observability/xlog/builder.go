package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xcorr/pkg/observability/xrotate"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// ReplaceAttrFunc 属性替换函数，返回空 Key 的 Attr 表示移除该属性
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// ServiceInfo 写入每条日志的服务固定字段，空字段不输出
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
	GitCommit   string
}

func (s ServiceInfo) attrs() []slog.Attr {
	fields := [...]struct{ key, value string }{
		{KeyService, s.Name},
		{KeyVersion, s.Version},
		{KeyEnvironment, s.Environment},
		{KeyGitCommit, s.GitCommit},
	}
	attrs := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if f.value != "" {
			attrs = append(attrs, slog.String(f.key, f.value))
		}
	}
	return attrs
}

// Builder 日志配置构建器
type Builder struct {
	output       io.Writer
	levelVar     *slog.LevelVar
	format       string
	addSource    bool
	enableEnrich bool
	service      ServiceInfo
	deploymentID string
	replaceAttr  ReplaceAttrFunc
	rotator      xrotate.Rotator
	onError      func(error)
	err          error
}

// New 创建配置构建器，默认输出到 stderr、Info 级别、json 格式、启用追踪注入
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)

	return &Builder{
		output:       os.Stderr,
		levelVar:     levelVar,
		format:       FormatJSON,
		enableEnrich: true,
	}
}

// SetOutput 设置日志输出目标
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if w != nil {
		b.output = w
	}
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别，如 LOG_LEVEL 的取值
func (b *Builder) SetLevelString(s string) *Builder {
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：json 或 text，空值使用 json
func (b *Builder) SetFormat(format string) *Builder {
	switch normalized := strings.ToLower(strings.TrimSpace(format)); normalized {
	case "":
		b.format = FormatJSON
	case FormatJSON, FormatText:
		b.format = normalized
	default:
		b.err = fmt.Errorf("xlog: unknown format %q", format)
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 是否从 context 注入追踪信息，默认启用
func (b *Builder) SetEnrich(enable bool) *Builder {
	b.enableEnrich = enable
	return b
}

// SetService 设置服务固定字段
func (b *Builder) SetService(info ServiceInfo) *Builder {
	b.service = info
	return b
}

// SetDeploymentID 设置部署标识，非空时写入每条日志。需要启用 enrich。
func (b *Builder) SetDeploymentID(id string) *Builder {
	b.deploymentID = strings.TrimSpace(id)
	return b
}

// SetRotation 输出到按大小轮转的文件
func (b *Builder) SetRotation(filename string, opts ...xrotate.Option) *Builder {
	rotator, err := xrotate.NewLumberjack(filename, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// SetOnError 设置内部错误回调（Handler.Handle 失败时调用）。
//
// 回调在写日志的 goroutine 上同步执行，应保持轻量。
// 回调内部再次触发的日志错误不会递归回调。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// SetReplaceAttr 设置属性替换函数，用于脱敏、重命名或过滤字段
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// Build 构建 Logger 实例
//
// 返回值：
//   - LoggerWithLevel: 日志实例，同时支持动态级别控制
//   - func() error: 清理函数，关闭轮转文件，可重复调用
//   - error: 配置错误
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		if b.rotator != nil {
			_ = b.rotator.Close()
		}
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:       b.levelVar,
		AddSource:   b.addSource,
		ReplaceAttr: b.buildReplaceAttr(),
	}

	var handler slog.Handler
	if b.format == FormatText {
		handler = slog.NewTextHandler(b.output, opts)
	} else {
		handler = slog.NewJSONHandler(b.output, opts)
	}

	if b.enableEnrich {
		// base 非 nil，不会返回错误
		handler, _ = NewEnrichHandler(handler, b.deploymentID)
	}

	if attrs := b.service.attrs(); len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	logger := &xlogger{
		handler:        handler,
		levelVar:       b.levelVar,
		onError:        b.onError,
		errorCount:     new(atomic.Uint64),
		addSource:      b.addSource,
		inErrorHandler: new(atomic.Bool),
	}

	return logger, b.createCleanup(), nil
}

// buildReplaceAttr json 格式下把顶层 time/msg 重命名为 timestamp/message，
// 再交给用户的替换函数
func (b *Builder) buildReplaceAttr() func([]string, slog.Attr) slog.Attr {
	user := b.replaceAttr
	if b.format != FormatJSON {
		return user
	}
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) == 0 {
			switch a.Key {
			case slog.TimeKey:
				a.Key = KeyTimestamp
			case slog.MessageKey:
				a.Key = KeyMessage
			}
		}
		if user != nil {
			return user(groups, a)
		}
		return a
	}
}

func (b *Builder) createCleanup() func() error {
	var once sync.Once
	rotator := b.rotator

	return func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
}
