package beans

import (
	"fmt"
	"strings"

	"github.com/gocrud/beans/annotation"
	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/singleton"
)

// Section 配置中 beans 选项所在的节
const Section = "beans"

// Options 容器选项，从配置节 beans 绑定
type Options struct {
	Environment string            `json:"environment"`
	Singleton   SingletonOptions  `json:"singleton"`
	Logging     LoggingOptions    `json:"logging"`
	Annotation  AnnotationOptions `json:"annotation"`
	Config      ConfigOptions     `json:"config"`
}

// SingletonOptions 单例注册表选项
type SingletonOptions struct {
	// SuppressedErrorLimit 单次创建最多记录的被抑制错误数
	SuppressedErrorLimit int `json:"suppressedErrorLimit"`
}

// LoggingOptions 日志选项
type LoggingOptions struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text | json | none
}

// ConfigOptions 配置重载选项
type ConfigOptions struct {
	// ReloadSchedule cron 表达式，非空时 Start 后按计划重新加载配置。
	// 在 Start 时读取，之后的重载不会修改计划。
	ReloadSchedule string `json:"reloadSchedule"`
}

// AnnotationOptions 注解模型选项
type AnnotationOptions struct {
	// FilterPackages 这些包下的注解类型不参与合并
	FilterPackages []string `json:"filterPackages"`
	// Metadata YAML 元数据文件
	Metadata []string `json:"metadata"`
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{
		Environment: "development",
		Singleton: SingletonOptions{
			SuppressedErrorLimit: singleton.DefaultSuppressedErrorLimit,
		},
		Logging: LoggingOptions{
			Level:  "info",
			Format: "text",
		},
		Annotation: AnnotationOptions{
			FilterPackages: []string{"lang"},
		},
	}
}

// Validate 校验选项
func (o *Options) Validate() error {
	if o.Singleton.SuppressedErrorLimit < 0 {
		return fmt.Errorf("beans: singleton.suppressedErrorLimit must not be negative, got %d", o.Singleton.SuppressedErrorLimit)
	}
	if _, err := logging.ParseLevel(o.Logging.Level); err != nil {
		return fmt.Errorf("beans: %w", err)
	}
	switch strings.ToLower(o.Logging.Format) {
	case "", "text", "json", "none":
	default:
		return fmt.Errorf("beans: unknown logging.format %q", o.Logging.Format)
	}
	return parseSchedule(o.Config.ReloadSchedule)
}

// filter 根据 FilterPackages 构造注解过滤器，空列表表示不过滤
func (o *Options) filter() annotation.Filter {
	if len(o.Annotation.FilterPackages) == 0 {
		return annotation.NoFilter
	}
	return annotation.Packages(o.Annotation.FilterPackages...)
}
