package annotation

// RepeatableContainers 识别容器注解，并返回其中重复的注解
type RepeatableContainers interface {
	// Repeated 返回容器中的注解；ann 不是容器时 ok 为 false
	Repeated(ann *DeclaredAnnotation, resolver TypeResolver) (repeated []*DeclaredAnnotation, ok bool)
}

// StandardContainers 通过类型描述识别容器：
// 容器的 value 属性是注解数组，且元素类型声明 Container 指向该容器。
func StandardContainers() RepeatableContainers {
	return standardContainers{}
}

type standardContainers struct{}

func (standardContainers) Repeated(ann *DeclaredAnnotation, resolver TypeResolver) ([]*DeclaredAnnotation, bool) {
	container, err := resolver.Resolve(ann.Type())
	if err != nil {
		return nil, false
	}
	value, ok := container.Attribute("value")
	if !ok || value.Kind != KindAnnotation || !value.Array || value.Type == "" {
		return nil, false
	}
	repeatable, err := resolver.Resolve(value.Type)
	if err != nil || repeatable.Container != container.Name {
		return nil, false
	}
	return containedValues(ann, value)
}

// ExplicitContainers 显式声明的 (可重复注解, 容器) 对
type ExplicitContainers struct {
	pairs map[string]string
}

// ContainersOf 声明 container 是 repeatable 的容器
func ContainersOf(repeatable, container string) *ExplicitContainers {
	return (&ExplicitContainers{pairs: make(map[string]string)}).And(repeatable, container)
}

// And 追加一对声明
func (c *ExplicitContainers) And(repeatable, container string) *ExplicitContainers {
	c.pairs[container] = repeatable
	return c
}

func (c *ExplicitContainers) Repeated(ann *DeclaredAnnotation, resolver TypeResolver) ([]*DeclaredAnnotation, bool) {
	repeatable, ok := c.pairs[ann.Type()]
	if !ok {
		return nil, false
	}
	attr := &AttributeDescriptor{Name: "value", Kind: KindAnnotation, Array: true, Type: repeatable}
	if container, err := resolver.Resolve(ann.Type()); err == nil {
		if declared, ok := container.Attribute("value"); ok {
			attr = declared
		}
	}
	repeated, ok := containedValues(ann, attr)
	if !ok {
		return nil, false
	}
	out := repeated[:0]
	for _, r := range repeated {
		if r.Type() == repeatable {
			out = append(out, r)
		}
	}
	return out, true
}

// NoContainers 不展开任何容器
func NoContainers() RepeatableContainers {
	return noContainers{}
}

type noContainers struct{}

func (noContainers) Repeated(*DeclaredAnnotation, TypeResolver) ([]*DeclaredAnnotation, bool) {
	return nil, false
}

func containedValues(ann *DeclaredAnnotation, attr *AttributeDescriptor) ([]*DeclaredAnnotation, bool) {
	raw, ok := ann.Get(attr.Name)
	if !ok {
		return nil, false
	}
	v, err := coerce(raw, attr)
	if err != nil {
		return nil, false
	}
	repeated, ok := v.([]*DeclaredAnnotation)
	return repeated, ok
}

// expand 递归展开容器，并丢弃被过滤的注解
func expand(anns []*DeclaredAnnotation, containers RepeatableContainers, filter Filter, resolver TypeResolver) []*DeclaredAnnotation {
	out := make([]*DeclaredAnnotation, 0, len(anns))
	var walk func(ann *DeclaredAnnotation)
	walk = func(ann *DeclaredAnnotation) {
		if ann == nil {
			return
		}
		if repeated, ok := containers.Repeated(ann, resolver); ok {
			for _, r := range repeated {
				walk(r)
			}
			return
		}
		if filter.Matches(ann.Type()) {
			return
		}
		out = append(out, ann)
	}
	for _, ann := range anns {
		walk(ann)
	}
	return out
}
