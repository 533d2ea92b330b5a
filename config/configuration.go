package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Configuration 配置接口（类似于 .NET Core IConfiguration）
type Configuration interface {
	// Get 获取配置值
	Get(key string) string
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetStrings 获取字符串列表，支持序列和逗号分隔的字符串
	GetStrings(key string) []string
	// GetSection 获取配置节
	GetSection(key string) Configuration
	// Bind 绑定配置到结构体
	Bind(key string, target any) error
	// GetAll 获取所有配置
	GetAll() map[string]any
}

// ReloadableConfiguration 可以从配置源重新加载的配置
type ReloadableConfiguration interface {
	Configuration
	// Reload 重新加载所有配置源，失败时保留原有数据
	Reload() error
	// OnReload 注册重载成功后的回调
	OnReload(fn func())
	// Watch 启动所有可监听配置源的监听，源变更时调用 onChange，直到 ctx 取消
	Watch(ctx context.Context, onChange func()) error
}

// ConfigurationBuilder 配置构建器
type ConfigurationBuilder struct {
	sources []ConfigurationSource
	mu      sync.RWMutex
}

// ConfigurationSource 配置源接口
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// WatchableSource 可以监听变更的配置源
type WatchableSource interface {
	ConfigurationSource
	Watch(ctx context.Context, onChange func()) error
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{
		sources: make([]ConfigurationSource, 0),
	}
}

// Add 添加配置源
func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJsonFile 添加 JSON 文件配置源
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	isOptional := len(optional) > 0 && optional[0]
	return b.Add(&JsonFileSource{Path: path, Optional: isOptional})
}

// AddYamlFile 添加 YAML 文件配置源
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	isOptional := len(optional) > 0 && optional[0]
	return b.Add(&YamlFileSource{Path: path, Optional: isOptional})
}

// AddEnvironmentVariables 添加环境变量配置源
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddDotEnvFile 添加 .env 文件配置源，只读取带 prefix 前缀的键
func (b *ConfigurationBuilder) AddDotEnvFile(path, prefix string, optional ...bool) *ConfigurationBuilder {
	isOptional := len(optional) > 0 && optional[0]
	return b.Add(&DotEnvFileSource{Path: path, Prefix: prefix, Optional: isOptional})
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

// Build 构建配置
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	return b.BuildReloadable()
}

// BuildReloadable 构建可重载的配置
func (b *ConfigurationBuilder) BuildReloadable() (ReloadableConfiguration, error) {
	b.mu.RLock()
	sources := make([]ConfigurationSource, len(b.sources))
	copy(sources, b.sources)
	b.mu.RUnlock()

	c := &configuration{
		store:   NewValueStore(),
		paths:   &PathCache{},
		sources: sources,
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// configuration 配置实现。读取走 ValueStore 快照，不加锁
type configuration struct {
	store   *ValueStore
	paths   *PathCache
	sources []ConfigurationSource

	mu        sync.Mutex
	callbacks []func()
}

func newStatic(data map[string]any, paths *PathCache) *configuration {
	store := NewValueStore()
	store.Store(data)
	return &configuration{store: store, paths: paths}
}

// load 按顺序加载所有配置源（后面的会覆盖前面的）
func (c *configuration) load() error {
	data := make(map[string]any)
	for _, source := range c.sources {
		loaded, err := source.Load()
		if err != nil {
			return fmt.Errorf("failed to load config source %s: %w", source.Name(), err)
		}
		mergeMaps(data, loaded)
	}
	c.store.Store(data)
	return nil
}

func (c *configuration) Reload() error {
	c.mu.Lock()
	if err := c.load(); err != nil {
		c.mu.Unlock()
		return err
	}
	callbacks := make([]func(), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

func (c *configuration) OnReload(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

func (c *configuration) Watch(ctx context.Context, onChange func()) error {
	for _, source := range c.sources {
		ws, ok := source.(WatchableSource)
		if !ok {
			continue
		}
		if err := ws.Watch(ctx, onChange); err != nil {
			return fmt.Errorf("failed to watch config source %s: %w", source.Name(), err)
		}
	}
	return nil
}

// Get 获取配置值
func (c *configuration) Get(key string) string {
	value := c.getByPath(key)
	if value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetWithDefault 获取配置值，如果不存在则返回默认值
func (c *configuration) GetWithDefault(key, defaultValue string) string {
	value := c.Get(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt 获取整数配置值
func (c *configuration) GetInt(key string) (int, error) {
	value := c.getByPath(key)
	if value == nil {
		return 0, fmt.Errorf("key %s not found", key)
	}

	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("cannot convert %v to int", value)
	}
}

// GetBool 获取布尔配置值
func (c *configuration) GetBool(key string) (bool, error) {
	value := c.getByPath(key)
	if value == nil {
		return false, fmt.Errorf("key %s not found", key)
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("cannot convert %v to bool", value)
	}
}

// GetStrings 获取字符串列表
func (c *configuration) GetStrings(key string) []string {
	switch v := c.getByPath(key).(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case string:
		// 环境变量只能提供逗号分隔的形式
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

// GetSection 获取配置节，返回的是当前数据的快照
func (c *configuration) GetSection(key string) Configuration {
	if m, ok := c.getByPath(key).(map[string]any); ok {
		return newStatic(m, c.paths)
	}
	return newStatic(make(map[string]any), c.paths)
}

// Bind 绑定配置到结构体
func (c *configuration) Bind(key string, target any) error {
	data := c.getByPath(key)
	if data == nil {
		return fmt.Errorf("key %s not found", key)
	}

	// 使用 JSON 序列化/反序列化进行绑定
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	return nil
}

// GetAll 获取所有配置
func (c *configuration) GetAll() map[string]any {
	// 返回副本
	result := make(map[string]any)
	mergeMaps(result, c.store.Load())
	return result
}

// getByPath 通过路径获取值（支持 "a:b:c" 或 "a.b.c"）
func (c *configuration) getByPath(path string) any {
	data := c.store.Load()
	if path == "" {
		return data
	}

	current := any(data)
	for _, part := range c.paths.GetPathSegments(path) {
		if m, ok := current.(map[string]any); ok {
			current = m[part]
		} else {
			return nil
		}
	}

	return current
}

// mergeMaps 合并两个 map，嵌套的 map 会被复制而不是共享
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		if dstMap, ok := dst[k].(map[string]any); ok && srcIsMap {
			mergeMaps(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			copied := make(map[string]any, len(srcMap))
			mergeMaps(copied, srcMap)
			dst[k] = copied
			continue
		}
		dst[k] = v
	}
}
