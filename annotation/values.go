package annotation

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// EnumValue 枚举常量引用
type EnumValue struct {
	Type string
	Name string
}

func (e EnumValue) String() string {
	if e.Type == "" {
		return e.Name
	}
	return e.Type + "." + e.Name
}

// ClassRef 类型引用，只保存名字，不要求类型可加载
type ClassRef struct {
	Name string
}

func (c ClassRef) String() string { return c.Name }

// AttributeKind 属性值的元素类型
type AttributeKind int

const (
	KindString AttributeKind = iota
	KindBool
	KindInt
	KindLong
	KindDouble
	KindEnum
	KindClass
	KindAnnotation
)

var kindNames = [...]string{"string", "bool", "int", "long", "double", "enum", "class", "annotation"}

func (k AttributeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind 解析元数据文件中的类型名
func ParseKind(s string) (AttributeKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "boolean":
		return KindBool, nil
	case "integer":
		return KindInt, nil
	case "float":
		return KindDouble, nil
	}
	for i, n := range kindNames {
		if n == name {
			return AttributeKind(i), nil
		}
	}
	return KindString, fmt.Errorf("annotation: unknown attribute kind %q", s)
}

var kindTypes = [...]reflect.Type{
	KindString:     reflect.TypeOf(""),
	KindBool:       reflect.TypeOf(false),
	KindInt:        reflect.TypeOf(0),
	KindLong:       reflect.TypeOf(int64(0)),
	KindDouble:     reflect.TypeOf(float64(0)),
	KindEnum:       reflect.TypeOf(EnumValue{}),
	KindClass:      reflect.TypeOf(ClassRef{}),
	KindAnnotation: reflect.TypeOf((*DeclaredAnnotation)(nil)),
}

// cloneValue 复制切片，标量原样返回
func cloneValue(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.IsNil() {
		return v
	}
	out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
	reflect.Copy(out, rv)
	return out.Interface()
}

// coerce 把任意来源的值规范为属性声明对应的 Go 类型；数组属性接受单个标量
func coerce(v any, attr *AttributeDescriptor) (any, error) {
	if !attr.Array {
		return coerceScalar(v, attr)
	}

	rv := reflect.ValueOf(v)
	if v == nil || rv.Kind() != reflect.Slice {
		elem, err := coerceScalar(v, attr)
		if err != nil {
			return nil, err
		}
		out := reflect.MakeSlice(reflect.SliceOf(kindTypes[attr.Kind]), 1, 1)
		out.Index(0).Set(reflect.ValueOf(elem))
		return out.Interface(), nil
	}

	out := reflect.MakeSlice(reflect.SliceOf(kindTypes[attr.Kind]), rv.Len(), rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, err := coerceScalar(rv.Index(i).Interface(), attr)
		if err != nil {
			return nil, err
		}
		out.Index(i).Set(reflect.ValueOf(elem))
	}
	return out.Interface(), nil
}

func coerceScalar(v any, attr *AttributeDescriptor) (any, error) {
	mismatch := func() (any, error) { return nil, errTypeMismatch(attr.Name, attr.Kind, attr.Array, v) }

	switch attr.Kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt, KindLong:
		n, ok := toInt64(v)
		if !ok {
			return mismatch()
		}
		if attr.Kind == KindLong {
			return n, nil
		}
		if n > math.MaxInt32 || n < math.MinInt32 {
			return mismatch()
		}
		return int(n), nil
	case KindDouble:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case KindEnum:
		switch e := v.(type) {
		case EnumValue:
			if e.Type == "" {
				e.Type = attr.Type
			}
			return e, nil
		case string:
			return EnumValue{Type: attr.Type, Name: e}, nil
		}
	case KindClass:
		switch c := v.(type) {
		case ClassRef:
			return c, nil
		case string:
			return ClassRef{Name: c}, nil
		}
	case KindAnnotation:
		switch a := v.(type) {
		case *DeclaredAnnotation:
			if a == nil {
				return mismatch()
			}
			return a, nil
		case Annotation:
			return DeclaredOf(a), nil
		}
	}
	return mismatch()
}

func toInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	}
	return 0, false
}

// valuesEqual 比较两个规范化后的值，嵌套注解按属性比较
func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case *DeclaredAnnotation:
		bv, ok := b.(*DeclaredAnnotation)
		return ok && av.Equal(bv)
	case []*DeclaredAnnotation:
		bv, ok := b.([]*DeclaredAnnotation)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !av[i].Equal(bv[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%q", t)
	case []string:
		parts := make([]string, len(t))
		for i, s := range t {
			parts[i] = fmt.Sprintf("%q", s)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatValue(rv.Index(i).Interface())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}
