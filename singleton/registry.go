package singleton

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gocrud/beans/logging"
)

// Option 配置 Registry
type Option func(*Registry)

// WithLogger 设置日志记录器
func WithLogger(logger logging.Logger) Option {
	return func(r *Registry) {
		r.logger = logging.OrNop(logger).WithCategory("singleton")
	}
}

// WithSuppressedErrorLimit 设置单次创建记录的被抑制错误上限
func WithSuppressedErrorLimit(limit int) Option {
	return func(r *Registry) {
		r.suppressedLimit = limit
	}
}

type namesSnapshot struct {
	version uint64
	names   []string
}

// Registry 共享单例注册表。
// 不同 bean 的创建互不阻塞，同一 bean 的创建在其 Singleton 占位对象上串行化。
type Registry struct {
	singletons sync.Map // string -> *Singleton
	positions  atomic.Uint64

	version atomic.Uint64
	names   atomic.Pointer[namesSnapshot]

	guard         CreationGuard
	inDestruction atomic.Bool

	disposables disposableBeans
	graph       *DependencyGraph

	logger          logging.Logger
	suppressedLimit int
}

// NewRegistry 创建空注册表
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		graph:           NewDependencyGraph(),
		logger:          logging.Nop(),
		suppressedLimit: DefaultSuppressedErrorLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Graph 返回依赖关系图
func (r *Registry) Graph() *DependencyGraph {
	return r.graph
}

func (r *Registry) lookup(name string) (*Singleton, bool) {
	v, ok := r.singletons.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Singleton), true
}

// getOrCreatePlaceholder 原子地插入占位对象；竞争失败时序号被跳过，顺序依然单调
func (r *Registry) getOrCreatePlaceholder(name string) *Singleton {
	if s, ok := r.lookup(name); ok {
		return s
	}
	s := &Singleton{name: name, position: r.positions.Add(1)}
	actual, _ := r.singletons.LoadOrStore(name, s)
	return actual.(*Singleton)
}

// Placeholder 返回 name 的占位对象（不存在时为 nil）
func (r *Registry) Placeholder(name string) *Singleton {
	s, _ := r.lookup(name)
	return s
}

// RegisterSingleton 直接注册一个已创建的对象，instance 可以为 nil。
// 同名 bean 正在由工厂创建时返回 ErrCurrentlyInCreation。
func (r *Registry) RegisterSingleton(name string, instance any) error {
	return r.RegisterSingletonContext(context.Background(), name, instance)
}

// RegisterSingletonContext 与 RegisterSingleton 相同。
// 在 name 自己的工厂内部以工厂的 ctx 调用时可以提前发布对象，之后的请求都返回这个对象。
func (r *Registry) RegisterSingletonContext(ctx context.Context, name string, instance any) error {
	s := r.getOrCreatePlaceholder(name)
	if !s.tryLock(CreationFrom(ctx)) {
		if existing, ok := s.Object(); ok {
			return errAlreadyRegistered(name, existing)
		}
		return errCurrentlyInCreation(name)
	}
	defer s.unlock()

	if existing, ok := s.Object(); ok {
		return errAlreadyRegistered(name, existing)
	}
	r.addSingleton(s, instance)
	return nil
}

func (r *Registry) addSingleton(s *Singleton, obj any) {
	s.setObject(obj)
	r.singletonsChanged()
}

// AddSingletonFactory 注册用于解决循环引用的早期引用工厂。
// 通常在 bean 自己的 ObjectFactory 内部、依赖注入之前调用。
func (r *Registry) AddSingletonFactory(name string, factory EarlyReferenceFactory) {
	if factory == nil {
		return
	}
	s := r.getOrCreatePlaceholder(name)
	s.setFactory(factory)
	r.singletonsChanged()
}

// GetSingleton 返回已创建的对象，必要时暴露早期引用
func (r *Registry) GetSingleton(ctx context.Context, name string) (any, bool) {
	return r.LookupSingleton(ctx, name, true)
}

// LookupSingleton 不触发创建地查找：完整对象优先；bean 正在创建时返回早期对象，
// allowEarlyReference 为 true 时最多消费一次早期引用工厂。
func (r *Registry) LookupSingleton(ctx context.Context, name string, allowEarlyReference bool) (any, bool) {
	s, ok := r.lookup(name)
	if !ok {
		return nil, false
	}
	if obj, ok := s.Object(); ok {
		return obj, true
	}
	if !r.guard.IsSingletonCurrentlyInCreation(name) {
		return nil, false
	}
	if ref := s.early.Load(); ref != nil {
		return ref.value, true
	}
	if !allowEarlyReference {
		return nil, false
	}

	s.lock(CreationFrom(ctx))
	defer s.unlock()

	if obj, ok := s.Object(); ok {
		return obj, true
	}
	if ref := s.early.Load(); ref != nil {
		return ref.value, true
	}
	obj, ok := s.exposeEarly()
	if ok {
		r.logger.Trace("exposed early singleton reference", logging.F("bean", name))
	}
	return obj, ok
}

// GetOrCreateSingleton 返回 name 对应的对象，不存在时通过 factory 创建。
// 同一 bean 的并发请求只会调用一次 factory。
func (r *Registry) GetOrCreateSingleton(ctx context.Context, name string, factory ObjectFactory) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	s := r.getOrCreatePlaceholder(name)
	if obj, ok := s.Object(); ok {
		return obj, nil
	}

	creation := CreationFrom(ctx)
	topLevel := creation == nil
	if topLevel {
		creation = newCreation(r.suppressedLimit)
		ctx = withCreation(ctx, creation)
	}

	s.lock(creation)
	defer s.unlock()

	// 双重检查：其他 goroutine 可能已完成创建
	if obj, ok := s.Object(); ok {
		return obj, nil
	}
	if r.inDestruction.Load() {
		return nil, errCreationNotAllowed(name)
	}
	if err := r.guard.BeforeSingletonCreation(name); err != nil {
		return nil, err
	}
	s.state.Store(int32(StateInCreation))
	r.logger.Trace("creating shared instance of singleton bean", logging.F("bean", name))

	obj, err := r.invokeFactory(ctx, s, factory)
	if existing, ok := s.Object(); ok {
		// 工厂已通过 RegisterSingletonContext 发布了对象
		if err != nil {
			r.logger.Debug("singleton registered before factory failed", logging.F("bean", name), logging.Err(err))
		}
		return existing, nil
	}
	if err != nil {
		s.reset()
		r.singletonsChanged()
		if topLevel {
			return nil, creation.attachTo(name, err)
		}
		creation.OnSuppressedError(err)
		return nil, err
	}

	r.addSingleton(s, obj)
	return obj, nil
}

// invokeFactory 无论成功、失败还是 panic 都会取消创建标记；panic 时占位对象回到未创建状态
func (r *Registry) invokeFactory(ctx context.Context, s *Singleton, factory ObjectFactory) (obj any, err error) {
	returned := false
	defer func() {
		if afterErr := r.guard.AfterSingletonCreation(s.name); afterErr != nil && err == nil {
			obj, err = nil, afterErr
		}
		if !returned {
			s.reset()
			r.singletonsChanged()
		}
	}()
	obj, err = factory(ctx)
	returned = true
	return obj, err
}

// RemoveSingleton 从注册表移除 name 的所有状态
func (r *Registry) RemoveSingleton(name string) {
	if _, loaded := r.singletons.LoadAndDelete(name); loaded {
		r.singletonsChanged()
	}
}

// ContainsSingleton 是否已有完整对象
func (r *Registry) ContainsSingleton(name string) bool {
	s, ok := r.lookup(name)
	if !ok {
		return false
	}
	_, ok = s.Object()
	return ok
}

// SingletonNames 按占位对象分配顺序返回已注册的名称
func (r *Registry) SingletonNames() []string {
	v := r.version.Load()
	if snap := r.names.Load(); snap != nil && snap.version == v {
		return cloneStrings(snap.names)
	}

	var all []*Singleton
	r.singletons.Range(func(_, value any) bool {
		s := value.(*Singleton)
		if s.registered() {
			all = append(all, s)
		}
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].position < all[j].position })

	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.name
	}
	r.names.Store(&namesSnapshot{version: v, names: names})
	return cloneStrings(names)
}

// SingletonCount 已注册的单例数量
func (r *Registry) SingletonCount() int {
	return len(r.SingletonNames())
}

func (r *Registry) singletonsChanged() {
	r.version.Add(1)
}

// SetCurrentlyInCreation 见 CreationGuard.SetCurrentlyInCreation
func (r *Registry) SetCurrentlyInCreation(name string, inCreation bool) {
	r.guard.SetCurrentlyInCreation(name, inCreation)
}

// IsCurrentlyInCreation 未被排除且正在创建
func (r *Registry) IsCurrentlyInCreation(name string) bool {
	return r.guard.IsCurrentlyInCreation(name)
}

// IsSingletonCurrentlyInCreation name 是否在创建集合中
func (r *Registry) IsSingletonCurrentlyInCreation(name string) bool {
	return r.guard.IsSingletonCurrentlyInCreation(name)
}

// BeforeSingletonCreation 见 CreationGuard.BeforeSingletonCreation
func (r *Registry) BeforeSingletonCreation(name string) error {
	return r.guard.BeforeSingletonCreation(name)
}

// AfterSingletonCreation 见 CreationGuard.AfterSingletonCreation
func (r *Registry) AfterSingletonCreation(name string) error {
	return r.guard.AfterSingletonCreation(name)
}

// IsCurrentlyInDestruction 是否处于销毁阶段
func (r *Registry) IsCurrentlyInDestruction() bool {
	return r.inDestruction.Load()
}

// RegisterDependentBean 记录 dependent 依赖 bean，bean 销毁前会先销毁 dependent
func (r *Registry) RegisterDependentBean(bean, dependent string) {
	r.graph.RegisterDependent(bean, dependent)
}

// RegisterContainedBean 记录 containing 包含 contained
func (r *Registry) RegisterContainedBean(contained, containing string) {
	r.graph.RegisterContained(contained, containing)
}

// IsDependent dependent 是否传递地依赖 bean
func (r *Registry) IsDependent(bean, dependent string) bool {
	return r.graph.IsDependent(bean, dependent)
}

// HasDependentBean bean 是否有依赖方
func (r *Registry) HasDependentBean(bean string) bool {
	return r.graph.HasDependents(bean)
}

// DependentBeans 依赖 bean 的名称
func (r *Registry) DependentBeans(bean string) []string {
	return r.graph.Dependents(bean)
}

// DependenciesForBean bean 依赖的名称
func (r *Registry) DependenciesForBean(bean string) []string {
	return r.graph.Dependencies(bean)
}

// GetAs 泛型查找辅助
func GetAs[T any](ctx context.Context, r *Registry, name string) (T, bool) {
	var zero T
	obj, ok := r.GetSingleton(ctx, name)
	if !ok {
		return zero, false
	}
	v, ok := obj.(T)
	return v, ok
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
