package singleton

import (
	"context"
	"errors"
	"sync"
)

// DefaultSuppressedErrorLimit 单次顶层创建最多记录的被抑制错误数
const DefaultSuppressedErrorLimit = 100

type creationKey struct{}

// Creation 是一次顶层创建调用树的上下文。
// 它随 context.Context 传入嵌套的工厂调用，既作为 bean 锁的重入凭证，
// 也收集嵌套创建中被抑制的错误。
// 同一个 Creation 不能在多个 goroutine 之间共享，见 WithoutCreation。
type Creation struct {
	limit int

	mu         sync.Mutex
	suppressed []error
}

func newCreation(limit int) *Creation {
	if limit <= 0 {
		limit = DefaultSuppressedErrorLimit
	}
	return &Creation{limit: limit}
}

// CreationFrom 从 ctx 中取出当前创建上下文，不在创建过程中时返回 nil
func CreationFrom(ctx context.Context) *Creation {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(creationKey{}).(*Creation)
	return c
}

func withCreation(ctx context.Context, c *Creation) context.Context {
	return context.WithValue(ctx, creationKey{}, c)
}

// WithoutCreation 返回不携带创建上下文的 ctx，在其上获取 bean 会开始新的顶层创建
func WithoutCreation(ctx context.Context) context.Context {
	if CreationFrom(ctx) == nil {
		return ctx
	}
	return withCreation(ctx, nil)
}

// OnSuppressedError 记录一个被吞掉的错误，超过上限后丢弃
func (c *Creation) OnSuppressedError(err error) {
	if c == nil || err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.suppressed) < c.limit {
		c.suppressed = append(c.suppressed, err)
	}
}

// SuppressedErrors 返回已记录错误的副本
func (c *Creation) SuppressedErrors() []error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.suppressed))
	copy(out, c.suppressed)
	return out
}

// attachTo 把被抑制的错误作为相关原因挂到失败的顶层创建上。
// 已经出现在 err 链上的错误会被跳过。
func (c *Creation) attachTo(bean string, err error) error {
	var related []error
	for _, s := range c.SuppressedErrors() {
		if !errors.Is(err, s) {
			related = append(related, s)
		}
	}
	if len(related) == 0 {
		return err
	}

	var be *BeanError
	if !errors.As(err, &be) {
		be = &BeanError{Bean: bean, Kind: ErrCreationFailed, Cause: err}
		err = be
	}
	for _, r := range related {
		be.AddRelatedCause(r)
	}
	return err
}

// CreationGuard 记录“正在创建”的 bean 名称，用于检测循环依赖
type CreationGuard struct {
	inCreation sync.Map // name -> struct{}
	exclusions sync.Map // name -> struct{}
}

// BeforeSingletonCreation 标记开始创建，已标记时返回 ErrCurrentlyInCreation
func (g *CreationGuard) BeforeSingletonCreation(name string) error {
	if g.isExcluded(name) {
		return nil
	}
	if _, loaded := g.inCreation.LoadOrStore(name, struct{}{}); loaded {
		return errCurrentlyInCreation(name)
	}
	return nil
}

// AfterSingletonCreation 取消标记，未标记时返回 ErrIllegalState
func (g *CreationGuard) AfterSingletonCreation(name string) error {
	if g.isExcluded(name) {
		return nil
	}
	if _, ok := g.inCreation.LoadAndDelete(name); !ok {
		return errIllegalState(name, "singleton isn't currently in creation")
	}
	return nil
}

// SetCurrentlyInCreation 为 false 时把 name 排除在创建检查之外
func (g *CreationGuard) SetCurrentlyInCreation(name string, inCreation bool) {
	if inCreation {
		g.exclusions.Delete(name)
	} else {
		g.exclusions.Store(name, struct{}{})
	}
}

// IsCurrentlyInCreation 未被排除且正在创建
func (g *CreationGuard) IsCurrentlyInCreation(name string) bool {
	return !g.isExcluded(name) && g.IsSingletonCurrentlyInCreation(name)
}

// IsSingletonCurrentlyInCreation 只看创建集合，不考虑排除
func (g *CreationGuard) IsSingletonCurrentlyInCreation(name string) bool {
	_, ok := g.inCreation.Load(name)
	return ok
}

func (g *CreationGuard) isExcluded(name string) bool {
	_, ok := g.exclusions.Load(name)
	return ok
}
