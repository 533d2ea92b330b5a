package config

import (
	"sync/atomic"
)

// ValueStore 保存配置数据快照。读取无锁，Store 整体替换快照并递增版本号
type ValueStore struct {
	data    atomic.Pointer[map[string]any]
	version atomic.Uint64
}

// NewValueStore 创建空的 ValueStore
func NewValueStore() *ValueStore {
	s := &ValueStore{}
	empty := make(map[string]any)
	s.data.Store(&empty)
	return s
}

// Load 返回当前快照，调用方不得修改
func (s *ValueStore) Load() map[string]any {
	if p := s.data.Load(); p != nil {
		return *p
	}
	return nil
}

// Store 替换快照，返回新的版本号
func (s *ValueStore) Store(data map[string]any) uint64 {
	s.data.Store(&data)
	return s.version.Add(1)
}

// Version 已执行的 Store 次数
func (s *ValueStore) Version() uint64 {
	return s.version.Load()
}
