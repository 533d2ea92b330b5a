// Package beans 组装单例注册表与合并注解模型。
//
// 配置节 beans 绑定到 Options，决定日志级别、注解过滤包和 YAML 元数据文件；
// Container 持有 singleton.Registry 与 annotation.MappingCache，Close 时按依赖顺序销毁单例。
package beans

import (
	"context"
	"io"

	"github.com/gocrud/beans/singleton"
)

// Singleton 获取或创建名为 name 的单例。
// 新创建的实例如果实现了 singleton.DisposableBean 或 io.Closer，会自动登记销毁回调
func Singleton[T any](ctx context.Context, c *Container, name string, factory func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	created := false
	obj, err := c.registry.GetOrCreateSingleton(ctx, name, func(ctx context.Context) (any, error) {
		v, err := factory(ctx)
		if err != nil {
			return nil, err
		}
		created = true
		return v, nil
	})
	if err != nil {
		return zero, err
	}

	if created {
		switch d := obj.(type) {
		case singleton.DisposableBean:
			c.registry.RegisterDisposableBean(name, d)
		case io.Closer:
			c.registry.RegisterDisposableBean(name, singleton.DisposableCloser(d))
		}
	}

	if obj == nil {
		return zero, nil
	}
	t, ok := obj.(T)
	if !ok {
		return zero, &singleton.BeanError{
			Bean:    name,
			Kind:    singleton.ErrIllegalState,
			Message: "singleton has unexpected type",
		}
	}
	return t, nil
}

// Lookup 返回已存在（或提前暴露）的单例
func Lookup[T any](ctx context.Context, c *Container, name string) (T, bool) {
	return singleton.GetAs[T](ctx, c.registry, name)
}

// DependsOn 记录 dependent 依赖 bean，销毁 bean 之前会先销毁 dependent
func (c *Container) DependsOn(dependent string, beans ...string) {
	for _, bean := range beans {
		c.registry.RegisterDependentBean(bean, dependent)
	}
}
