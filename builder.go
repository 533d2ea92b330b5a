package beans

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gocrud/beans/annotation"
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/singleton"
)

// Builder 容器构建器
type Builder struct {
	environment    string
	configBuilder  *config.ConfigurationBuilder
	loggingBuilder *logging.LoggingBuilder
	resolver       *annotation.ReflectResolver
	output         io.Writer
	configurators  []func(*Container) error
	errs           []error
	mu             sync.Mutex
}

// NewBuilder 创建容器构建器
func NewBuilder() *Builder {
	return &Builder{
		configBuilder:  config.NewConfigurationBuilder(),
		loggingBuilder: logging.NewLoggingBuilder(),
		resolver:       annotation.NewReflectResolver(),
		output:         os.Stdout,
	}
}

// UseEnvironment 设置环境，优先于配置中的 beans.environment
func (b *Builder) UseEnvironment(env string) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.environment = env
	return b
}

// UseOutput 设置控制台日志的输出位置
func (b *Builder) UseOutput(w io.Writer) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = w
	return b
}

// ConfigureConfiguration 配置配置系统
func (b *Builder) ConfigureConfiguration(configure func(*config.ConfigurationBuilder)) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.configBuilder)
	}
	return b
}

// ConfigureLogging 配置日志系统。最小级别以 beans.logging.level 为准
func (b *Builder) ConfigureLogging(configure func(*logging.LoggingBuilder)) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if configure != nil {
		configure(b.loggingBuilder)
	}
	return b
}

// RegisterAnnotation 注册 Go 结构体注解类型，错误在 Build 时返回
func (b *Builder) RegisterAnnotation(prototype annotation.Annotation, opts ...annotation.TypeOption) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.resolver.Register(prototype, opts...); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Configure 添加在容器创建后执行的配置器（注册单例、生命周期钩子等）
func (b *Builder) Configure(configurators ...func(*Container) error) *Builder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configurators = append(b.configurators, configurators...)
	return b
}

// Build 构建容器。每个 Builder 只应调用一次
func (b *Builder) Build() (*Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.errs) > 0 {
		return nil, fmt.Errorf("beans: invalid annotation registration: %w", errors.Join(b.errs...))
	}

	cfg, err := b.configBuilder.BuildReloadable()
	if err != nil {
		return nil, fmt.Errorf("beans: failed to build configuration: %w", err)
	}

	options, err := config.NewOptionsCache(cfg, Section, DefaultOptions())
	if err != nil {
		return nil, err
	}
	opts := options.Get()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	level, _ := logging.ParseLevel(opts.Logging.Level)
	b.loggingBuilder.SetMinimumLevel(level)
	switch strings.ToLower(opts.Logging.Format) {
	case "json":
		b.loggingBuilder.AddJson(b.output)
	case "none":
	default:
		b.loggingBuilder.AddConsole(logging.ConsoleLoggerOptions{
			Formatter: logging.NewTextFormatter(),
			Output:    b.output,
		})
	}
	factory := b.loggingBuilder.Build()
	logger := factory.CreateLogger("beans")

	envName := b.environment
	if envName == "" {
		envName = opts.Environment
	}

	c := &Container{
		config:   cfg,
		options:  config.NewOptionMonitor(options),
		factory:  factory,
		logger:   logger,
		env:      NewEnvironment(envName),
		resolver: b.resolver,
		registry: singleton.NewRegistry(
			singleton.WithLogger(factory.CreateLogger("singleton")),
			singleton.WithSuppressedErrorLimit(opts.Singleton.SuppressedErrorLimit),
		),
		lifecycle: NewLifecycle(logger),
	}

	if err := c.loadAnnotations(opts); err != nil {
		return nil, err
	}
	c.applied.Store(&opts)
	c.options.OnChange(c.applyOptions)

	logger.Info("Building container",
		logging.F("environment", envName),
		logging.F("filterPackages", opts.Annotation.FilterPackages))

	for _, configure := range b.configurators {
		if err := configure(c); err != nil {
			c.registry.DestroySingletons()
			return nil, err
		}
	}

	logger.Debug("Container built", logging.F("singletons", c.registry.SingletonCount()))
	return c, nil
}
