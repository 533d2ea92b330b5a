package annotation

// Selector 在多个候选中挑选一个
type Selector interface {
	// IsBestCandidate 为 true 时立即返回该候选，不再继续扫描
	IsBestCandidate(candidate *MergedAnnotation) bool
	Select(existing, candidate *MergedAnnotation) *MergedAnnotation
}

type nearest struct{}

// Nearest 深度最小者优先，同深度时先扫描到的优先
func Nearest() Selector { return nearest{} }

func (nearest) IsBestCandidate(c *MergedAnnotation) bool { return c.Depth() == 0 }

func (nearest) Select(existing, candidate *MergedAnnotation) *MergedAnnotation {
	if candidate.Depth() < existing.Depth() {
		return candidate
	}
	return existing
}

type firstDirectlyDeclared struct{}

// FirstDirectlyDeclared 第一个直接声明的注解优先，否则保留第一个候选
func FirstDirectlyDeclared() Selector { return firstDirectlyDeclared{} }

func (firstDirectlyDeclared) IsBestCandidate(c *MergedAnnotation) bool { return c.Depth() == 0 }

func (firstDirectlyDeclared) Select(existing, candidate *MergedAnnotation) *MergedAnnotation {
	if existing.Depth() > 0 && candidate.Depth() == 0 {
		return candidate
	}
	return existing
}

type getOptions struct {
	predicate func(*MergedAnnotation) bool
	selector  Selector
}

// GetOption Get 的选项
type GetOption func(*getOptions)

// WithPredicate 只考虑满足条件的候选
func WithPredicate(predicate func(*MergedAnnotation) bool) GetOption {
	return func(o *getOptions) { o.predicate = predicate }
}

// WithSelector 替换默认的 Nearest 选择器
func WithSelector(selector Selector) GetOption {
	return func(o *getOptions) { o.selector = selector }
}

// MergedAnnotations 一个元素按某种策略扫描得到的全部注解，构造后不可变
type MergedAnnotations struct {
	source     Source
	strategy   SearchStrategy
	cache      *MappingCache
	aggregates []*Aggregate
}

// From 扫描 source 上的注解
func From(source Source, cache *MappingCache, strategy SearchStrategy) *MergedAnnotations {
	return &MergedAnnotations{
		source:     source,
		strategy:   strategy,
		cache:      cache,
		aggregates: cache.scan(source, strategy),
	}
}

// From 使用当前缓存扫描 source
func (c *MappingCache) From(source Source, strategy SearchStrategy) *MergedAnnotations {
	return From(source, c, strategy)
}

func (a *MergedAnnotations) Source() Source { return a.source }

func (a *MergedAnnotations) Strategy() SearchStrategy { return a.strategy }

// Aggregates 扫描到的聚合，按访问顺序
func (a *MergedAnnotations) Aggregates() []*Aggregate {
	out := make([]*Aggregate, len(a.aggregates))
	copy(out, a.aggregates)
	return out
}

// each 按聚合顺序、聚合内按深度升序遍历，fn 返回 false 时停止
func (a *MergedAnnotations) each(typ string, fn func(*MergedAnnotation) bool) {
	for _, agg := range a.aggregates {
		for _, e := range agg.entries {
			if typ != "" && e.mapping.Type() != typ {
				continue
			}
			if !fn(a.merged(agg, e)) {
				return
			}
		}
	}
}

func (a *MergedAnnotations) merged(agg *Aggregate, e aggregateEntry) *MergedAnnotation {
	return &MergedAnnotation{
		mapping:        e.mapping,
		root:           agg.annotations[e.annotation],
		source:         agg.source,
		aggregateIndex: agg.index,
		cache:          a.cache,
	}
}

// IsPresent 直接声明或作为元注解出现
func (a *MergedAnnotations) IsPresent(typ string) bool {
	found := false
	a.each(typ, func(*MergedAnnotation) bool {
		found = true
		return false
	})
	return found
}

// IsDirectlyPresent 直接声明在某个被扫描的元素上
func (a *MergedAnnotations) IsDirectlyPresent(typ string) bool {
	found := false
	a.each(typ, func(m *MergedAnnotation) bool {
		found = m.Depth() == 0
		return !found
	})
	return found
}

// Get 返回选中的注解；没有时返回 IsPresent 为 false 的 MergedAnnotation
func (a *MergedAnnotations) Get(typ string, opts ...GetOption) *MergedAnnotation {
	o := getOptions{selector: Nearest()}
	for _, opt := range opts {
		opt(&o)
	}

	var result *MergedAnnotation
	a.each(typ, func(m *MergedAnnotation) bool {
		if o.predicate != nil && !o.predicate(m) {
			return true
		}
		if o.selector.IsBestCandidate(m) {
			result = m
			return false
		}
		if result == nil {
			result = m
		} else {
			result = o.selector.Select(result, m)
		}
		return true
	})
	if result == nil {
		return Missing()
	}
	return result
}

// Stream 按遍历顺序返回某类型的全部注解
func (a *MergedAnnotations) Stream(typ string) []*MergedAnnotation {
	var out []*MergedAnnotation
	a.each(typ, func(m *MergedAnnotation) bool {
		out = append(out, m)
		return true
	})
	return out
}

// All 按遍历顺序返回全部注解
func (a *MergedAnnotations) All() []*MergedAnnotation {
	return a.Stream("")
}
