package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LoadOptions 配置加载选项
type LoadOptions struct {
	Paths     []string
	Optional  bool
	EnvPrefix string
	DotEnv    []string
	Overrides map[string]any
}

// LoadOption 配置加载选项函数
type LoadOption func(*LoadOptions)

// WithFiles 追加配置文件，按扩展名选择 JSON 或 YAML
func WithFiles(paths ...string) LoadOption {
	return func(o *LoadOptions) {
		o.Paths = append(o.Paths, paths...)
	}
}

// WithOptionalFiles 文件不存在时忽略
func WithOptionalFiles() LoadOption {
	return func(o *LoadOptions) {
		o.Optional = true
	}
}

// WithEnvPrefix 加载带前缀的环境变量（在文件之后，优先级更高）
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *LoadOptions) {
		o.EnvPrefix = prefix
	}
}

// WithDotEnv 追加 .env 文件，使用与环境变量相同的前缀，优先级介于文件和环境变量之间
func WithDotEnv(paths ...string) LoadOption {
	return func(o *LoadOptions) {
		o.DotEnv = append(o.DotEnv, paths...)
	}
}

// WithOverrides 最后加载的内存配置，优先级最高
func WithOverrides(data map[string]any) LoadOption {
	return func(o *LoadOptions) {
		o.Overrides = data
	}
}

// Load 按 文件 -> .env -> 环境变量 -> 覆盖值 的顺序加载配置
func Load(opts ...LoadOption) (ReloadableConfiguration, error) {
	options := &LoadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	builder := NewConfigurationBuilder()
	for _, p := range options.Paths {
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json":
			builder.AddJsonFile(p, options.Optional)
		case ".yaml", ".yml":
			builder.AddYamlFile(p, options.Optional)
		default:
			return nil, fmt.Errorf("config: unsupported file type %s", p)
		}
	}
	for _, p := range options.DotEnv {
		builder.AddDotEnvFile(p, options.EnvPrefix, options.Optional)
	}
	if options.EnvPrefix != "" {
		builder.AddEnvironmentVariables(options.EnvPrefix)
	}
	if options.Overrides != nil {
		builder.AddInMemory(options.Overrides)
	}

	return builder.BuildReloadable()
}
