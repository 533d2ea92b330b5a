package beans

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gocrud/beans/annotation"
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/metadata"
	"github.com/gocrud/beans/singleton"
)

// Container 构建完成的容器
type Container struct {
	config  config.ReloadableConfiguration
	options config.OptionMonitor[Options]
	applied atomic.Pointer[Options]
	factory logging.LoggerFactory
	logger  logging.Logger
	env     Environment

	registry  *singleton.Registry
	resolver  *annotation.ReflectResolver
	metadata  atomic.Pointer[metadata.Metadata]
	mappings  atomic.Pointer[annotation.MappingCache]
	lifecycle *Lifecycle
	scheduler atomic.Pointer[reloadScheduler]

	closed atomic.Bool
}

// Configuration 获取配置
func (c *Container) Configuration() config.Configuration { return c.config }

// Options 获取最近一次生效的选项
func (c *Container) Options() Options { return *c.applied.Load() }

// Logger 获取容器日志记录器
func (c *Container) Logger() logging.Logger { return c.logger }

// LoggerFactory 获取日志工厂
func (c *Container) LoggerFactory() logging.LoggerFactory { return c.factory }

// Environment 获取环境
func (c *Container) Environment() Environment { return c.env }

// Registry 获取单例注册表
func (c *Container) Registry() *singleton.Registry { return c.registry }

// Lifecycle 获取生命周期钩子
func (c *Container) Lifecycle() *Lifecycle { return c.lifecycle }

// Mappings 获取当前的注解映射缓存
func (c *Container) Mappings() *annotation.MappingCache { return c.mappings.Load() }

// Metadata 获取已加载的 YAML 元数据，未配置时返回 nil
func (c *Container) Metadata() *metadata.Metadata { return c.metadata.Load() }

// Annotations 按搜索策略收集 source 上的合并注解
func (c *Container) Annotations(source annotation.Source, strategy annotation.SearchStrategy) *annotation.MergedAnnotations {
	return c.Mappings().From(source, strategy)
}

// SourceAnnotations 按名称查找元数据中的注解源并收集合并注解
func (c *Container) SourceAnnotations(name string, strategy annotation.SearchStrategy) (*annotation.MergedAnnotations, error) {
	md := c.Metadata()
	if md == nil {
		return nil, fmt.Errorf("beans: no metadata loaded, cannot find source %q", name)
	}
	source, ok := md.Source(name)
	if !ok {
		return nil, fmt.Errorf("beans: unknown source %q", name)
	}
	return c.Annotations(source, strategy), nil
}

// Reload 重新加载配置，beans 节的变更会立即生效
func (c *Container) Reload() error {
	if err := c.config.Reload(); err != nil {
		c.logger.Error("Failed to reload configuration", logging.Err(err))
		return err
	}
	return nil
}

// Start 开始监听可监听的配置源（如 etcd），按 config.reloadSchedule 启动定期重载，
// 然后执行启动钩子。监听在 ctx 取消后结束，定期重载在 Close 时停止
func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("Starting container", logging.F("environment", c.env.Name()))

	if err := c.config.Watch(ctx, func() { _ = c.Reload() }); err != nil {
		return err
	}
	if spec := c.Options().Config.ReloadSchedule; spec != "" {
		s, err := newReloadScheduler(spec, c.logger, c.Reload)
		if err != nil {
			return err
		}
		if c.scheduler.CompareAndSwap(nil, s) {
			s.start()
		}
	}
	return c.lifecycle.Start(ctx)
}

// Close 倒序执行停止钩子，然后销毁所有单例。重复调用无效果
func (c *Container) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	if s := c.scheduler.Swap(nil); s != nil {
		err = s.stop(ctx)
	}
	err = errors.Join(err, c.lifecycle.Stop(ctx))

	c.logger.Info("Destroying singletons", logging.F("count", c.registry.SingletonCount()))
	c.registry.DestroySingletons()
	c.logger.Info("Container closed")
	return err
}

// loadAnnotations 按选项构建解析器链和映射缓存
func (c *Container) loadAnnotations(opts Options) error {
	resolvers := annotation.ChainResolver{c.resolver}

	var md *metadata.Metadata
	if len(opts.Annotation.Metadata) > 0 {
		var err error
		md, err = metadata.Load(opts.Annotation.Metadata...)
		if err != nil {
			return fmt.Errorf("beans: failed to load annotation metadata: %w", err)
		}
		resolvers = append(resolvers, md.Resolver())
	}

	cache := annotation.NewMappingCache(resolvers,
		annotation.WithFilter(opts.filter()),
		annotation.WithLogger(c.factory.CreateLogger("annotation")))

	c.metadata.Store(md)
	c.mappings.Store(cache)
	return nil
}

// applyOptions 配置重载后应用新选项，失败时保留原有状态
func (c *Container) applyOptions(opts Options) {
	if err := opts.Validate(); err != nil {
		c.logger.Error("Ignoring invalid beans options", logging.Err(err))
		return
	}

	if err := c.loadAnnotations(opts); err != nil {
		c.logger.Error("Keeping previous annotation mappings", logging.Err(err))
		return
	}

	level, _ := logging.ParseLevel(opts.Logging.Level)
	c.factory.SetMinimumLevel(level)
	c.applied.Store(&opts)
	c.logger.Info("Options reloaded", logging.F("level", level.String()))
}
