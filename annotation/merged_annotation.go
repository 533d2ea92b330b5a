package annotation

import (
	"fmt"
	"sync"
)

// MergedAnnotation 别名已合并、默认值已补全的注解视图。
// 由 (映射, 根注解实例, 聚合位置) 确定，构造后不可变。
type MergedAnnotation struct {
	mapping        *AnnotationTypeMapping
	root           *DeclaredAnnotation
	source         Source
	aggregateIndex int
	cache          *MappingCache

	synthOnce   sync.Once
	synthesized *Synthesized
	synthErr    error
	structs     sync.Map // reflect.Type -> any
}

var missing = &MergedAnnotation{aggregateIndex: -1}

// Missing 表示不存在的注解，所有属性访问都返回 ErrNoSuchElement
func Missing() *MergedAnnotation { return missing }

// Type 注解类型名，不存在时为空
func (m *MergedAnnotation) Type() string {
	if m.mapping == nil {
		return ""
	}
	return m.mapping.Type()
}

func (m *MergedAnnotation) IsPresent() bool { return m.mapping != nil }

// IsDirectlyPresent 直接声明在元素上
func (m *MergedAnnotation) IsDirectlyPresent() bool { return m.mapping != nil && m.mapping.depth == 0 }

// IsMetaPresent 作为元注解出现
func (m *MergedAnnotation) IsMetaPresent() bool { return m.mapping != nil && m.mapping.depth > 0 }

// Depth 不存在时为 -1
func (m *MergedAnnotation) Depth() int {
	if m.mapping == nil {
		return -1
	}
	return m.mapping.depth
}

// AggregateIndex 注解所在元素在扫描顺序中的位置，不存在时为 -1
func (m *MergedAnnotation) AggregateIndex() int { return m.aggregateIndex }

// IsFromInherited 来自父类、接口或外层元素
func (m *MergedAnnotation) IsFromInherited() bool { return m.aggregateIndex > 0 }

// Source 声明根注解的元素
func (m *MergedAnnotation) Source() Source { return m.source }

// Mapping 对应的类型映射
func (m *MergedAnnotation) Mapping() *AnnotationTypeMapping { return m.mapping }

// MetaSource 声明当前元注解的那一层注解，直接声明时返回 nil
func (m *MergedAnnotation) MetaSource() *MergedAnnotation {
	if m.mapping == nil || m.mapping.source == nil {
		return nil
	}
	return m.at(m.mapping.source)
}

// Root 直接声明在元素上的那个注解
func (m *MergedAnnotation) Root() *MergedAnnotation {
	if m.mapping == nil || m.mapping.depth == 0 {
		return m
	}
	return m.at(m.mapping.root)
}

// MetaTypes 从根注解到当前注解的类型名
func (m *MergedAnnotation) MetaTypes() []string {
	if m.mapping == nil {
		return nil
	}
	return m.mapping.MetaTypes()
}

func (m *MergedAnnotation) at(mapping *AnnotationTypeMapping) *MergedAnnotation {
	return &MergedAnnotation{
		mapping:        mapping,
		root:           m.root,
		source:         m.source,
		aggregateIndex: m.aggregateIndex,
		cache:          m.cache,
	}
}

func (m *MergedAnnotation) instanceFor(mapping *AnnotationTypeMapping) *DeclaredAnnotation {
	if mapping.depth == 0 {
		return m.root
	}
	return mapping.annotation
}

func (m *MergedAnnotation) attributeIndex(name string) (int, error) {
	if m.mapping == nil {
		return -1, fmt.Errorf("%w: annotation is not present", ErrNoSuchElement)
	}
	i := m.mapping.typ.attributeIndex(name)
	if i < 0 {
		return -1, errNoSuchAttribute(m.Type(), name)
	}
	return i, nil
}

// GetValue 返回合并后的属性值。
// 祖先上覆盖该属性的别名优先：声明了就用声明值，未声明则用别名一端的默认值。
// 没有覆盖时读取本映射的实例，镜像组内第一个不等于默认值的值胜出，最后回退到属性默认值。
func (m *MergedAnnotation) GetValue(name string) (any, error) {
	i, err := m.attributeIndex(name)
	if err != nil {
		return nil, err
	}
	return m.resolve(i)
}

func (m *MergedAnnotation) resolve(i int) (any, error) {
	attr := &m.mapping.typ.Attributes[i]

	for _, ref := range m.mapping.candidates[i] {
		if ref.mapping == m.mapping {
			break
		}
		v, present, _, err := ref.mapping.typ.read(m.instanceFor(ref.mapping), ref.index)
		if err != nil {
			return nil, err
		}
		if present {
			return coerce(v, attr)
		}
		// 覆盖端没有默认值时继续向下一个候选查找
		if ref.mapping.typ.Attributes[ref.index].HasDefault {
			return coerce(cloneValue(ref.mapping.typ.defaults[ref.index]), attr)
		}
	}

	v, present, _, err := m.mapping.typ.read(m.instanceFor(m.mapping), i)
	if err != nil {
		return nil, err
	}
	if present {
		return coerce(v, attr)
	}
	if attr.HasDefault {
		return cloneValue(m.mapping.typ.defaults[i]), nil
	}
	return nil, fmt.Errorf("%w: @%s.%s", ErrRequiredAttribute, m.Type(), attr.Name)
}

// GetDefaultValue 返回属性默认值；ok 为 false 表示属性没有默认值
func (m *MergedAnnotation) GetDefaultValue(name string) (value any, ok bool, err error) {
	i, err := m.attributeIndex(name)
	if err != nil {
		return nil, false, err
	}
	if !m.mapping.typ.Attributes[i].HasDefault {
		return nil, false, nil
	}
	return cloneValue(m.mapping.typ.defaults[i]), true, nil
}

// HasDefaultValue 合并后的值等于默认值
func (m *MergedAnnotation) HasDefaultValue(name string) (bool, error) {
	i, err := m.attributeIndex(name)
	if err != nil {
		return false, err
	}
	v, err := m.resolve(i)
	if err != nil {
		return false, err
	}
	return m.mapping.typ.isDefault(i, v), nil
}

// HasNonDefaultValue 合并后的值不等于默认值
func (m *MergedAnnotation) HasNonDefaultValue(name string) (bool, error) {
	isDefault, err := m.HasDefaultValue(name)
	return !isDefault, err
}

func typed[T any](m *MergedAnnotation, name string) (T, error) {
	var zero T
	v, err := m.GetValue(name)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: @%s.%s is %T, not %T", ErrTypeMismatch, m.Type(), name, v, zero)
	}
	return t, nil
}

func (m *MergedAnnotation) GetString(name string) (string, error) { return typed[string](m, name) }

func (m *MergedAnnotation) GetBool(name string) (bool, error) { return typed[bool](m, name) }

func (m *MergedAnnotation) GetInt(name string) (int, error) { return typed[int](m, name) }

func (m *MergedAnnotation) GetLong(name string) (int64, error) { return typed[int64](m, name) }

func (m *MergedAnnotation) GetDouble(name string) (float64, error) { return typed[float64](m, name) }

func (m *MergedAnnotation) GetStringArray(name string) ([]string, error) {
	return typed[[]string](m, name)
}

func (m *MergedAnnotation) GetIntArray(name string) ([]int, error) { return typed[[]int](m, name) }

func (m *MergedAnnotation) GetClass(name string) (ClassRef, error) { return typed[ClassRef](m, name) }

func (m *MergedAnnotation) GetClassArray(name string) ([]ClassRef, error) {
	return typed[[]ClassRef](m, name)
}

func (m *MergedAnnotation) GetEnum(name string) (EnumValue, error) { return typed[EnumValue](m, name) }

func (m *MergedAnnotation) GetEnumArray(name string) ([]EnumValue, error) {
	return typed[[]EnumValue](m, name)
}

// GetAnnotation 把嵌套注解作为独立的根注解合并
func (m *MergedAnnotation) GetAnnotation(name string) (*MergedAnnotation, error) {
	d, err := typed[*DeclaredAnnotation](m, name)
	if err != nil {
		return nil, err
	}
	return m.nested(d)
}

func (m *MergedAnnotation) GetAnnotationArray(name string) ([]*MergedAnnotation, error) {
	ds, err := typed[[]*DeclaredAnnotation](m, name)
	if err != nil {
		return nil, err
	}
	out := make([]*MergedAnnotation, len(ds))
	for i, d := range ds {
		if out[i], err = m.nested(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (m *MergedAnnotation) nested(d *DeclaredAnnotation) (*MergedAnnotation, error) {
	ms, err := m.cache.Mappings(d.Type())
	if err != nil {
		return nil, fmt.Errorf("nested @%s in @%s: %w", d.Type(), m.Type(), err)
	}
	return &MergedAnnotation{
		mapping:        ms.Get(0),
		root:           d,
		source:         m.source,
		aggregateIndex: m.aggregateIndex,
		cache:          m.cache,
	}, nil
}

// AsMap 按声明顺序合并全部属性
func (m *MergedAnnotation) AsMap() (map[string]any, error) {
	if m.mapping == nil {
		return nil, fmt.Errorf("%w: annotation is not present", ErrNoSuchElement)
	}
	out := make(map[string]any, len(m.mapping.typ.Attributes))
	for i := range m.mapping.typ.Attributes {
		v, err := m.resolve(i)
		if err != nil {
			return nil, err
		}
		out[m.mapping.typ.Attributes[i].Name] = v
	}
	return out, nil
}

func (m *MergedAnnotation) String() string {
	if m.mapping == nil {
		return "@<missing>"
	}
	s, err := m.Synthesize()
	if err != nil {
		return "@" + m.Type() + "(<" + err.Error() + ">)"
	}
	return s.String()
}
