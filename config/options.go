package config

import (
	"fmt"
	"sync"
)

// Option 静态配置选项（应用生命周期内不变）
type Option[T any] interface {
	Value() T
}

// OptionMonitor 监听配置选项，总是返回最新一次成功绑定的值
type OptionMonitor[T any] interface {
	Value() T
	// OnChange 注册配置更新后的回调
	OnChange(fn func(T))
}

// OptionsCache 配置缓存，配置重载时重新绑定
type OptionsCache[T any] struct {
	config    Configuration
	section   string
	current   T
	listeners []func(T)
	mu        sync.RWMutex
}

// NewOptionsCache 创建配置缓存，initial 作为绑定前的初始值
func NewOptionsCache[T any](config Configuration, section string, initial T) (*OptionsCache[T], error) {
	cache := &OptionsCache[T]{
		config:  config,
		section: section,
		current: initial,
	}

	if err := cache.reload(); err != nil {
		return nil, err
	}

	if rc, ok := config.(interface{ OnReload(func()) }); ok {
		rc.OnReload(func() {
			// 重载失败时保留旧值
			_ = cache.reload()
		})
	}

	return cache, nil
}

// reload 在当前值的副本上绑定；节不存在时保持不变
func (c *OptionsCache[T]) reload() error {
	c.mu.RLock()
	value := c.current
	c.mu.RUnlock()

	if c.section != "" && c.config.Get(c.section) == "" {
		return nil
	}
	if err := c.config.Bind(c.section, &value); err != nil {
		return fmt.Errorf("failed to bind config section %s: %w", c.section, err)
	}

	c.mu.Lock()
	c.current = value
	listeners := make([]func(T), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(value)
	}
	return nil
}

// Get 获取当前配置值
func (c *OptionsCache[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// option 实现 Option[T] 接口
type option[T any] struct {
	value T
}

func (o *option[T]) Value() T {
	return o.value
}

// NewOption 创建静态配置选项
func NewOption[T any](value T) Option[T] {
	return &option[T]{value: value}
}

// optionMonitor 实现 OptionMonitor[T] 接口
type optionMonitor[T any] struct {
	cache *OptionsCache[T]
}

func (o *optionMonitor[T]) Value() T {
	return o.cache.Get()
}

func (o *optionMonitor[T]) OnChange(fn func(T)) {
	o.cache.mu.Lock()
	defer o.cache.mu.Unlock()
	o.cache.listeners = append(o.cache.listeners, fn)
}

// NewOptionMonitor 创建监听配置选项
func NewOptionMonitor[T any](cache *OptionsCache[T]) OptionMonitor[T] {
	return &optionMonitor[T]{cache: cache}
}
