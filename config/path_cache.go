package config

import (
	"strings"
	"sync"
)

// PathCache 缓存键路径的拆分结果，每个配置实例持有一个。
// ":" 与 "." 都是分隔符，空段会被忽略，"a::b" 与 "a.b" 等价
type PathCache struct {
	cache sync.Map // string -> []string
}

// GetPathSegments 返回 path 的各段，结果在多个调用方之间共享，不得修改
func (c *PathCache) GetPathSegments(path string) []string {
	if v, ok := c.cache.Load(path); ok {
		return v.([]string)
	}

	parts := strings.FieldsFunc(path, func(r rune) bool { return r == ':' || r == '.' })
	actual, _ := c.cache.LoadOrStore(path, parts)
	return actual.([]string)
}
