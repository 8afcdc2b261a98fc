package xenv

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNotInitialized xenv 未初始化
	ErrNotInitialized = errors.New("xenv: not initialized, call Init() first")

	// ErrAlreadyInitialized 重复初始化
	ErrAlreadyInitialized = errors.New("xenv: already initialized")

	// ErrLoad 环境变量解析失败
	ErrLoad = errors.New("xenv: load env")
)

// =============================================================================
// 常量
// =============================================================================

const (
	// Unknown 构建信息缺失时的占位值
	Unknown = "unknown"

	// DefaultVersion APP_VERSION 未设置时的版本号
	DefaultVersion = "0.1.0"

	// shortCommitLen 短提交哈希长度
	shortCommitLen = 7
)

// =============================================================================
// 类型定义
// =============================================================================

// BuildInfo 构建元信息
type BuildInfo struct {
	GitCommit string `envconfig:"GIT_COMMIT" default:"unknown"`
	GitBranch string `envconfig:"GIT_BRANCH" default:"unknown"`
	BuildDate string `envconfig:"BUILD_DATE" default:"unknown"`
	Version   string `envconfig:"APP_VERSION" default:"0.1.0"`
}

// DefaultBuildInfo 返回全部字段为默认值的 BuildInfo
func DefaultBuildInfo() BuildInfo {
	return BuildInfo{GitCommit: Unknown, GitBranch: Unknown, BuildDate: Unknown, Version: DefaultVersion}
}

// ShortCommit 返回提交哈希前 7 位，未知时返回 "unknown"
func (b BuildInfo) ShortCommit() string {
	if b.GitCommit == "" || b.GitCommit == Unknown {
		return Unknown
	}
	if len(b.GitCommit) <= shortCommitLen {
		return b.GitCommit
	}
	return b.GitCommit[:shortCommitLen]
}

// Env 进程级环境信息
type Env struct {
	// DeploymentID 部署标识，为空表示未配置
	DeploymentID string `envconfig:"DEPLOYMENT_ID"`

	Build BuildInfo `ignored:"true"`
}

// Load 从环境变量读取 Env，不修改全局状态。显式设置为空的构建字段同样取默认值。
func Load() (Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if err := envconfig.Process("", &env.Build); err != nil {
		return Env{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	env.Build = fillBuildDefaults(env.Build)
	return env, nil
}

// =============================================================================
// 全局状态
// =============================================================================

var (
	// 初始化后值不变，读路径无需加锁
	global atomic.Pointer[Env]

	// globalMu 仅保护写路径（Init/InitWith/Reset）的并发序列化
	globalMu sync.Mutex
)

// Init 从环境变量初始化，应在 main() 启动阶段调用一次。
//
// 已初始化时返回 ErrAlreadyInitialized。
func Init() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global.Load() != nil {
		return ErrAlreadyInitialized
	}
	env, err := Load()
	if err != nil {
		return err
	}
	global.Store(&env)
	return nil
}

// MustInit 同 Init，失败时 panic。仅用于 main() 启动阶段。
func MustInit() {
	if err := Init(); err != nil {
		panic(err)
	}
}

// InitWith 使用指定值初始化，用于不依赖环境变量的场景（如集成测试）。
//
// env.Build 中的空字段会补齐为默认值。
func InitWith(env Env) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global.Load() != nil {
		return ErrAlreadyInitialized
	}
	env.Build = fillBuildDefaults(env.Build)
	global.Store(&env)
	return nil
}

func fillBuildDefaults(b BuildInfo) BuildInfo {
	def := DefaultBuildInfo()
	if b.GitCommit == "" {
		b.GitCommit = def.GitCommit
	}
	if b.GitBranch == "" {
		b.GitBranch = def.GitBranch
	}
	if b.BuildDate == "" {
		b.BuildDate = def.BuildDate
	}
	if b.Version == "" {
		b.Version = def.Version
	}
	return b
}

// =============================================================================
// 全局访问函数
// =============================================================================

// IsInitialized 返回是否已初始化
func IsInitialized() bool {
	return global.Load() != nil
}

// Current 返回当前 Env，未初始化时返回 ErrNotInitialized
func Current() (Env, error) {
	p := global.Load()
	if p == nil {
		return Env{}, ErrNotInitialized
	}
	return *p, nil
}

// DeploymentID 返回部署标识，未初始化或未配置时返回空字符串
func DeploymentID() string {
	if p := global.Load(); p != nil {
		return p.DeploymentID
	}
	return ""
}

// Build 返回构建信息，未初始化时返回 DefaultBuildInfo
func Build() BuildInfo {
	if p := global.Load(); p != nil {
		return p.Build
	}
	return DefaultBuildInfo()
}
