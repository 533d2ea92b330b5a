package annotation

import (
	"fmt"
	"reflect"
)

// Synthesized 合并后属性的只读快照，实现 Annotation
type Synthesized struct {
	typ    string
	names  []string
	values map[string]any
}

func (s *Synthesized) AnnotationType() string { return s.typ }

// Names 按声明顺序返回属性名
func (s *Synthesized) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Get 返回属性值的副本
func (s *Synthesized) Get(name string) (any, bool) {
	v, ok := s.values[name]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Declared 转换为内存构造的 DeclaredAnnotation
func (s *Synthesized) Declared() *DeclaredAnnotation {
	attrs := make([]Attr, len(s.names))
	for i, name := range s.names {
		attrs[i] = A(name, s.values[name])
	}
	return NewDeclared(s.typ, attrs...)
}

// Equal 与另一个合成注解或声明实例的类型及全部属性相等
func (s *Synthesized) Equal(other any) bool {
	switch o := other.(type) {
	case *Synthesized:
		return o != nil && s.Declared().Equal(o.Declared())
	case *DeclaredAnnotation:
		return s.Declared().Equal(o)
	}
	return false
}

func (s *Synthesized) String() string { return s.Declared().String() }

// Synthesize 返回合成注解，每个 MergedAnnotation 只计算一次
func (m *MergedAnnotation) Synthesize() (*Synthesized, error) {
	m.synthOnce.Do(func() {
		values, err := m.AsMap()
		if err != nil {
			m.synthErr = err
			return
		}
		s := &Synthesized{typ: m.Type(), values: values}
		for _, attr := range m.mapping.typ.Attributes {
			s.names = append(s.names, attr.Name)
		}
		m.synthesized = s
	})
	return m.synthesized, m.synthErr
}

// SynthesizeAs 把合并后的属性填入注解结构体 T，结果按类型缓存
func SynthesizeAs[T Annotation](m *MergedAnnotation) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()
	if v, ok := m.structs.Load(t); ok {
		return v.(T), nil
	}
	if !m.IsPresent() {
		return zero, fmt.Errorf("%w: annotation is not present", ErrNoSuchElement)
	}

	out, err := m.synthesizeInto(t)
	if err != nil {
		return zero, err
	}
	actual, _ := m.structs.LoadOrStore(t, out.Interface())
	return actual.(T), nil
}

func (m *MergedAnnotation) synthesizeInto(t reflect.Type) (reflect.Value, error) {
	st := t
	if t.Kind() == reflect.Pointer {
		st = t.Elem()
	}
	if st.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("annotation: cannot synthesize @%s as %s", m.Type(), t)
	}

	ptr := reflect.New(st)
	if a, ok := ptr.Interface().(Annotation); ok && a.AnnotationType() != m.Type() {
		return reflect.Value{}, fmt.Errorf("%w: %s implements @%s, not @%s", ErrTypeMismatch, t, a.AnnotationType(), m.Type())
	}

	values, err := m.AsMap()
	if err != nil {
		return reflect.Value{}, err
	}
	for _, f := range attributeFields(st) {
		v, ok := values[f.name]
		if !ok {
			continue
		}
		if err := m.assign(ptr.Elem().FieldByIndex(f.index), v); err != nil {
			return reflect.Value{}, fmt.Errorf("@%s.%s: %w", m.Type(), f.name, err)
		}
	}

	if t.Kind() == reflect.Pointer {
		return ptr, nil
	}
	return ptr.Elem(), nil
}

func (m *MergedAnnotation) assign(dst reflect.Value, v any) error {
	switch val := v.(type) {
	case *DeclaredAnnotation:
		inner, err := m.synthesizeNested(val, dst.Type())
		if err != nil {
			return err
		}
		dst.Set(inner)
		return nil
	case []*DeclaredAnnotation:
		if dst.Kind() != reflect.Slice {
			return fmt.Errorf("%w: cannot assign annotation array to %s", ErrTypeMismatch, dst.Type())
		}
		out := reflect.MakeSlice(dst.Type(), len(val), len(val))
		for i, d := range val {
			inner, err := m.synthesizeNested(d, dst.Type().Elem())
			if err != nil {
				return err
			}
			out.Index(i).Set(inner)
		}
		dst.Set(out)
		return nil
	}

	if v == nil {
		return nil
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := m.assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	src := reflect.ValueOf(v)
	if src.Kind() == reflect.Slice && dst.Kind() == reflect.Slice {
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := convertInto(out.Index(i), src.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	}
	return convertInto(dst, src)
}

func (m *MergedAnnotation) synthesizeNested(d *DeclaredAnnotation, t reflect.Type) (reflect.Value, error) {
	nested, err := m.nested(d)
	if err != nil {
		return reflect.Value{}, err
	}
	if t.Kind() == reflect.Interface {
		s, err := nested.Synthesize()
		if err != nil {
			return reflect.Value{}, err
		}
		if !reflect.TypeOf(s).AssignableTo(t) {
			return reflect.Value{}, fmt.Errorf("%w: cannot assign @%s to %s", ErrTypeMismatch, d.Type(), t)
		}
		return reflect.ValueOf(s), nil
	}
	return nested.synthesizeInto(t)
}

// convertInto 只做同类数值之间的转换，不允许数字转字符串
func convertInto(dst, src reflect.Value) error {
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if numeric(src.Kind()) && numeric(dst.Kind()) || src.Kind() == dst.Kind() && src.Type().ConvertibleTo(dst.Type()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("%w: cannot assign %s to %s", ErrTypeMismatch, src.Type(), dst.Type())
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
