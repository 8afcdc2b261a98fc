package xconf

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// 运行环境名称
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Settings 服务设置
type Settings struct {
	Environment  string   `envconfig:"ENVIRONMENT" default:"development" koanf:"environment"`
	Debug        bool     `envconfig:"DEBUG" koanf:"debug"`
	LogLevel     string   `envconfig:"LOG_LEVEL" default:"INFO" koanf:"log_level"`
	LogFormat    string   `envconfig:"LOG_FORMAT" default:"json" koanf:"log_format"`
	LogFile      string   `envconfig:"LOG_FILE" koanf:"log_file"`
	ServiceName  string   `envconfig:"SERVICE_NAME" koanf:"service_name"`
	ServiceShort string   `envconfig:"SERVICE_SHORT" koanf:"service_short"`
	SkipPaths    []string `envconfig:"SKIP_PATHS" koanf:"skip_paths"`
	LogRequests  bool     `envconfig:"LOG_REQUESTS" default:"true" koanf:"log_requests"`
}

// DefaultSettings 返回不读取环境变量时的默认设置
func DefaultSettings() Settings {
	return Settings{
		Environment: EnvDevelopment,
		LogLevel:    "INFO",
		LogFormat:   "json",
		LogRequests: true,
	}
}

// LoadSettings 从环境变量加载设置。
// 设为空字符串的变量视为未设置，使用默认值。
func LoadSettings() (Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return s.withDefaults(), nil
}

// Apply 返回用 cfg 中出现的 key 覆盖后的设置副本，cfg 为 nil 时原样返回
func (s Settings) Apply(cfg Config) (Settings, error) {
	if cfg == nil {
		return s, nil
	}
	out := s
	out.SkipPaths = append([]string(nil), s.SkipPaths...)
	if err := cfg.Unmarshal("", &out); err != nil {
		return s, err
	}
	return out.withDefaults(), nil
}

// Validate 检查必填字段
func (s Settings) Validate() error {
	if strings.TrimSpace(s.ServiceName) == "" {
		return ErrMissingServiceName
	}
	return nil
}

// IsProduction 判断是否为生产环境（不区分大小写）
func (s Settings) IsProduction() bool {
	return strings.EqualFold(s.Environment, EnvProduction)
}

// IsDevelopment 判断是否为开发环境（不区分大小写）
func (s Settings) IsDevelopment() bool {
	return strings.EqualFold(s.Environment, EnvDevelopment)
}

// envconfig 对显式设为空字符串的变量不应用 default 标签
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.Environment == "" {
		s.Environment = d.Environment
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
	if s.LogFormat == "" {
		s.LogFormat = d.LogFormat
	}
	return s
}
