package singleton

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// State 单例的生命周期状态
type State int32

const (
	// StateUncreated 尚未创建（可能已注册早期引用工厂）
	StateUncreated State = iota
	// StateInCreation 工厂正在执行
	StateInCreation
	// StateEarlyExposed 早期引用已对外暴露，创建尚未完成
	StateEarlyExposed
	// StateCreated 完整对象已就绪
	StateCreated
)

func (s State) String() string {
	switch s {
	case StateUncreated:
		return "uncreated"
	case StateInCreation:
		return "in-creation"
	case StateEarlyExposed:
		return "early-exposed"
	case StateCreated:
		return "created"
	default:
		return "unknown"
	}
}

// ObjectFactory 创建单例对象。ctx 携带当前创建上下文，嵌套请求其他 bean 时必须原样传入。
// ctx 只在调用 factory 的 goroutine 中使用：factory 派生的 goroutine 若需要获取 bean，
// 先用 WithoutCreation 去掉创建上下文，并且不能等待仍在创建中的祖先 bean。
type ObjectFactory func(ctx context.Context) (any, error)

// EarlyReferenceFactory 在循环引用时提供尚未初始化完成的对象
type EarlyReferenceFactory func() any

// DisposableBean 销毁时回调，每个 bean 最多调用一次
type DisposableBean interface {
	Destroy() error
}

// DisposableFunc 函数适配器
type DisposableFunc func() error

func (f DisposableFunc) Destroy() error { return f() }

// DisposableCloser 把 io.Closer 适配为 DisposableBean
func DisposableCloser(c io.Closer) DisposableBean {
	return DisposableFunc(c.Close)
}

// objectRef 允许存放 nil 实例：引用非空即表示“已有值”
type objectRef struct {
	value any
}

// Singleton 每个 bean 名称一个占位对象，同时也是该 bean 的创建锁。
// 字段通过原子操作读取，修改只在持锁时进行（AddSingletonFactory 除外）。
type Singleton struct {
	name     string
	position uint64

	mu    sync.Mutex
	owner atomic.Pointer[Creation]
	holds atomic.Int32

	state   atomic.Int32
	object  atomic.Pointer[objectRef]
	early   atomic.Pointer[objectRef]
	factory atomic.Pointer[EarlyReferenceFactory]
}

// Name bean 名称
func (s *Singleton) Name() string { return s.name }

// Position 占位对象分配时的单调序号
func (s *Singleton) Position() uint64 { return s.position }

// State 当前状态
func (s *Singleton) State() State { return State(s.state.Load()) }

// Object 返回完整对象
func (s *Singleton) Object() (any, bool) {
	if ref := s.object.Load(); ref != nil {
		return ref.value, true
	}
	return nil, false
}

// registered 对象、早期对象或待用工厂任一存在
func (s *Singleton) registered() bool {
	return s.object.Load() != nil || s.early.Load() != nil || s.factory.Load() != nil
}

// lock 以 owner 为重入凭证加锁；owner 为 nil 时不可重入
func (s *Singleton) lock(owner *Creation) {
	if owner != nil && s.owner.Load() == owner {
		s.holds.Add(1)
		return
	}
	s.mu.Lock()
	s.owner.Store(owner)
	s.holds.Store(1)
}

// tryLock 与 lock 相同，但锁被其他创建上下文持有时立即返回 false
func (s *Singleton) tryLock(owner *Creation) bool {
	if owner != nil && s.owner.Load() == owner {
		s.holds.Add(1)
		return true
	}
	if !s.mu.TryLock() {
		if s.owner.Load() != nil {
			return false
		}
		s.mu.Lock()
	}
	s.owner.Store(owner)
	s.holds.Store(1)
	return true
}

func (s *Singleton) unlock() {
	if s.holds.Add(-1) == 0 {
		s.owner.Store(nil)
		s.mu.Unlock()
	}
}

func (s *Singleton) setObject(obj any) {
	s.object.Store(&objectRef{value: obj})
	s.factory.Store(nil)
	s.early.Store(nil)
	s.state.Store(int32(StateCreated))
}

func (s *Singleton) setFactory(f EarlyReferenceFactory) {
	s.factory.Store(&f)
	s.early.Store(nil)
}

// exposeEarly 消费工厂并缓存早期对象，调用方需持锁
func (s *Singleton) exposeEarly() (any, bool) {
	fp := s.factory.Swap(nil)
	if fp == nil {
		if ref := s.early.Load(); ref != nil {
			return ref.value, true
		}
		return nil, false
	}
	obj := (*fp)()
	s.early.Store(&objectRef{value: obj})
	s.state.Store(int32(StateEarlyExposed))
	return obj, true
}

// reset 创建失败后回到未创建状态
func (s *Singleton) reset() {
	if s.object.Load() != nil {
		return
	}
	s.factory.Store(nil)
	s.early.Store(nil)
	s.state.Store(int32(StateUncreated))
}
