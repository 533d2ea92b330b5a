package annotation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// AliasRef 指向被别名的属性；Annotation 为空表示同一注解类型
type AliasRef struct {
	Annotation string
	Attribute  string
}

// AttributeDescriptor 注解属性的结构描述
type AttributeDescriptor struct {
	Name  string
	Kind  AttributeKind
	Array bool
	// Type 枚举类型名，或嵌套注解的类型名
	Type       string
	Default    any
	HasDefault bool
	AliasFor   *AliasRef
}

// TypeDescriptor 注解类型的结构描述，不要求对应的 Go 类型存在
type TypeDescriptor struct {
	Name        string
	Attributes  []AttributeDescriptor
	Annotations []*DeclaredAnnotation
	// Inherited 为 true 时，该注解在 InheritedAnnotations 策略下沿父类链可见
	Inherited bool
	// Container 可重复注解的容器类型名
	Container string
}

// Attribute 按名称查找属性
func (t *TypeDescriptor) Attribute(name string) (*AttributeDescriptor, bool) {
	i := t.attributeIndex(name)
	if i < 0 {
		return nil, false
	}
	return &t.Attributes[i], true
}

func (t *TypeDescriptor) attributeIndex(name string) int {
	for i := range t.Attributes {
		if t.Attributes[i].Name == name {
			return i
		}
	}
	return -1
}

// aliasTarget 返回属性指向的 (类型, 属性)，同类型别名补全为自身类型
func (t *TypeDescriptor) aliasTarget(i int) (string, string, bool) {
	ref := t.Attributes[i].AliasFor
	if ref == nil {
		return "", "", false
	}
	typ := ref.Annotation
	if typ == "" {
		typ = t.Name
	}
	return typ, ref.Attribute, true
}

// TypeResolver 按类型名解析注解类型描述
type TypeResolver interface {
	Resolve(name string) (*TypeDescriptor, error)
}

// ResolverFunc 函数适配器
type ResolverFunc func(name string) (*TypeDescriptor, error)

func (f ResolverFunc) Resolve(name string) (*TypeDescriptor, error) { return f(name) }

// StaticResolver 内存中的类型描述表
type StaticResolver struct {
	mu    sync.RWMutex
	types map[string]*TypeDescriptor
}

// NewStaticResolver 创建静态解析器
func NewStaticResolver(descriptors ...*TypeDescriptor) *StaticResolver {
	r := &StaticResolver{types: make(map[string]*TypeDescriptor)}
	r.Register(descriptors...)
	return r
}

// Register 注册或替换类型描述
func (r *StaticResolver) Register(descriptors ...*TypeDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range descriptors {
		r.types[d.Name] = d
	}
}

func (r *StaticResolver) Resolve(name string) (*TypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.types[name]; ok {
		return d, nil
	}
	return nil, errTypeNotFound(name)
}

// Names 返回已注册的类型名（排序）
func (r *StaticResolver) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChainResolver 依次尝试多个解析器，只有 ErrTypeNotFound 会继续尝试下一个
type ChainResolver []TypeResolver

func (c ChainResolver) Resolve(name string) (*TypeDescriptor, error) {
	for _, r := range c {
		d, err := r.Resolve(name)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, ErrTypeNotFound) {
			return nil, err
		}
	}
	return nil, errTypeNotFound(name)
}

// preparedType 校验后的类型描述，默认值已规范化
type preparedType struct {
	*TypeDescriptor
	defaults []any
	mirrors  [][]int
	mirrorOf []int
}

// prepare 校验同类型别名并计算镜像属性组
func prepare(d *TypeDescriptor) (*preparedType, error) {
	p := &preparedType{
		TypeDescriptor: d,
		defaults:       make([]any, len(d.Attributes)),
		mirrorOf:       make([]int, len(d.Attributes)),
	}

	for i := range d.Attributes {
		attr := &d.Attributes[i]
		if attr.HasDefault {
			v, err := coerce(attr.Default, attr)
			if err != nil {
				return nil, fmt.Errorf("default of @%s.%s: %w", d.Name, attr.Name, err)
			}
			p.defaults[i] = v
		}
		if d.attributeIndex(attr.Name) != i {
			return nil, fmt.Errorf("annotation: @%s declares attribute %q twice", d.Name, attr.Name)
		}
	}

	parent := make([]int, len(d.Attributes))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return parent[i]
	}
	union := func(a, b int) { parent[find(a)] = find(b) }

	// 指向同一目标的属性互为隐式镜像
	targets := make(map[AliasRef]int)
	for i := range d.Attributes {
		typ, attrName, ok := d.aliasTarget(i)
		if !ok {
			continue
		}
		attr := &d.Attributes[i]
		if typ == d.Name {
			j := d.attributeIndex(attrName)
			if j < 0 {
				return nil, errInvalidAlias(d.Name, attr.Name, "points to missing attribute %q", attrName)
			}
			if j == i {
				return nil, errInvalidAlias(d.Name, attr.Name, "points to itself")
			}
			if err := compatible(d.Name, attr, &d.Attributes[j]); err != nil {
				return nil, err
			}
			union(i, j)
			continue
		}
		key := AliasRef{Annotation: typ, Attribute: attrName}
		if j, seen := targets[key]; seen {
			union(i, j)
		} else {
			targets[key] = i
		}
	}

	groups := make(map[int][]int)
	for i := range d.Attributes {
		groups[find(i)] = append(groups[find(i)], i)
	}
	for i := range p.mirrorOf {
		p.mirrorOf[i] = -1
	}
	for i := range d.Attributes {
		group := groups[find(i)]
		if len(group) < 2 || group[0] != i {
			continue
		}
		for _, member := range group {
			p.mirrorOf[member] = len(p.mirrors)
		}
		p.mirrors = append(p.mirrors, group)
	}
	return p, nil
}

// compatible 别名两端元素类型必须一致，数组属性不能别名到标量属性
func compatible(typ string, from, to *AttributeDescriptor) error {
	if from.Kind != to.Kind {
		return errInvalidAlias(typ, from.Name, "is %s but its alias %q is %s", from.Kind, to.Name, to.Kind)
	}
	if from.Array && !to.Array {
		return errInvalidAlias(typ, from.Name, "is an array but its alias %q is not", to.Name)
	}
	return nil
}

func (p *preparedType) isDefault(i int, v any) bool {
	return p.Attributes[i].HasDefault && valuesEqual(p.defaults[i], v)
}

// read 从实例读取属性 i，并在镜像组内解析。
// set 表示取得的值不等于默认值；镜像组内出现不同的非默认值时报错。
func (p *preparedType) read(instance *DeclaredAnnotation, i int) (value any, present, set bool, err error) {
	if instance == nil {
		return nil, false, false, nil
	}
	if p.mirrorOf[i] < 0 {
		return p.readOne(instance, i)
	}

	var chosen string
	for _, j := range p.mirrors[p.mirrorOf[i]] {
		v, ok, isSet, err := p.readOne(instance, j)
		if err != nil {
			return nil, false, false, err
		}
		if !ok || !isSet {
			continue
		}
		if set && !valuesEqual(value, v) {
			return nil, false, false, fmt.Errorf("%w: @%s declares %s=%s and %s=%s",
				ErrAttributeConflict, p.Name, chosen, formatValue(value), p.Attributes[j].Name, formatValue(v))
		}
		value, present, set, chosen = v, true, true, p.Attributes[j].Name
	}
	if set {
		return value, true, true, nil
	}
	return p.readOne(instance, i)
}

func (p *preparedType) readOne(instance *DeclaredAnnotation, i int) (any, bool, bool, error) {
	attr := &p.Attributes[i]
	raw, ok := instance.Get(attr.Name)
	if !ok {
		return nil, false, false, nil
	}
	v, err := coerce(raw, attr)
	if err != nil {
		return nil, false, false, fmt.Errorf("@%s: %w", p.Name, err)
	}
	return v, true, !p.isDefault(i, v), nil
}
