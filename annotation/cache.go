package annotation

import (
	"sync"

	"github.com/gocrud/beans/logging"
)

// CacheOption 映射缓存选项
type CacheOption func(*MappingCache)

// WithFilter 设置注解过滤器，默认 PlainFilter
func WithFilter(filter Filter) CacheOption {
	return func(c *MappingCache) { c.filter = filter }
}

// WithContainers 设置可重复注解容器，默认 StandardContainers
func WithContainers(containers RepeatableContainers) CacheOption {
	return func(c *MappingCache) { c.containers = containers }
}

// WithLogger 设置日志记录器
func WithLogger(logger logging.Logger) CacheOption {
	return func(c *MappingCache) { c.logger = logging.OrNop(logger).WithCategory("annotation") }
}

// MappingCache 按注解类型缓存 AnnotationTypeMappings。
// 一个缓存对应一组 (解析器, 过滤器, 容器)；并发计算同一类型时结果相同，只保留先写入的一份。
type MappingCache struct {
	resolver   TypeResolver
	filter     Filter
	containers RepeatableContainers
	logger     logging.Logger

	mappings sync.Map // string -> *AnnotationTypeMappings
	types    sync.Map // *TypeDescriptor -> *preparedType
}

// NewMappingCache 创建映射缓存
func NewMappingCache(resolver TypeResolver, opts ...CacheOption) *MappingCache {
	c := &MappingCache{
		resolver:   resolver,
		filter:     PlainFilter,
		containers: StandardContainers(),
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolver 返回类型解析器
func (c *MappingCache) Resolver() TypeResolver { return c.resolver }

// Filter 返回注解过滤器
func (c *MappingCache) Filter() Filter { return c.filter }

// Mappings 返回根类型的映射；失败的结果不缓存
func (c *MappingCache) Mappings(typ string) (*AnnotationTypeMappings, error) {
	if v, ok := c.mappings.Load(typ); ok {
		return v.(*AnnotationTypeMappings), nil
	}
	desc, err := c.resolver.Resolve(typ)
	if err != nil {
		return nil, err
	}
	ms, err := c.buildMappings(desc)
	if err != nil {
		return nil, err
	}
	actual, _ := c.mappings.LoadOrStore(typ, ms)
	return actual.(*AnnotationTypeMappings), nil
}

func (c *MappingCache) prepared(desc *TypeDescriptor) (*preparedType, error) {
	if v, ok := c.types.Load(desc); ok {
		return v.(*preparedType), nil
	}
	p, err := prepare(desc)
	if err != nil {
		return nil, err
	}
	actual, _ := c.types.LoadOrStore(desc, p)
	return actual.(*preparedType), nil
}

// Clear 清空缓存，之后的查询重新计算
func (c *MappingCache) Clear() {
	c.mappings.Range(func(key, _ any) bool {
		c.mappings.Delete(key)
		return true
	})
	c.types.Range(func(key, _ any) bool {
		c.types.Delete(key)
		return true
	})
}
