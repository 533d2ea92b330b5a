package annotation

import (
	"reflect"
	"strings"
	"unicode"
)

// Annotation 由 Go 结构体实现的运行期注解
type Annotation interface {
	AnnotationType() string
}

// Attr 一个声明的属性
type Attr struct {
	Name  string
	Value any
}

// A 构造属性
func A(name string, value any) Attr {
	return Attr{Name: name, Value: value}
}

// DeclaredAnnotation 声明在某处的一个注解实例（类型名 + 属性）。
// 可以包装运行期的 Annotation 值，也可以在内存中直接构造；构造后不可变。
type DeclaredAnnotation struct {
	typ    string
	names  []string
	values map[string]any
	live   Annotation
}

// NewDeclared 在内存中构造注解实例，重复的属性名以最后一次为准
func NewDeclared(typ string, attrs ...Attr) *DeclaredAnnotation {
	d := &DeclaredAnnotation{typ: typ, values: make(map[string]any, len(attrs))}
	for _, a := range attrs {
		d.put(a.Name, a.Value)
	}
	return d
}

// DeclaredOf 通过反射读取运行期注解的字段。
// 零值字段视为未声明，合并时使用类型的默认值。
// 需要显式声明 false、0 或 "" 时使用指针字段：nil 为未声明，非 nil 总是声明。
func DeclaredOf(a Annotation) *DeclaredAnnotation {
	if s, ok := a.(*Synthesized); ok {
		return s.Declared()
	}
	d := &DeclaredAnnotation{typ: a.AnnotationType(), values: make(map[string]any), live: a}

	rv := reflect.ValueOf(a)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return d
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return d
	}

	for _, f := range attributeFields(rv.Type()) {
		fv, declared := fieldValue(rv.FieldByIndex(f.index))
		if !declared {
			continue
		}
		d.put(f.name, liveValue(fv))
	}
	return d
}

func (d *DeclaredAnnotation) put(name string, value any) {
	if _, exists := d.values[name]; !exists {
		d.names = append(d.names, name)
	}
	d.values[name] = cloneValue(value)
}

// Type 注解类型名
func (d *DeclaredAnnotation) Type() string { return d.typ }

// Names 按声明顺序返回属性名
func (d *DeclaredAnnotation) Names() []string {
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Get 返回属性值；切片每次都返回新的副本
func (d *DeclaredAnnotation) Get(name string) (any, bool) {
	v, ok := d.values[name]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Live 返回被包装的运行期注解，内存构造的实例返回 nil
func (d *DeclaredAnnotation) Live() Annotation { return d.live }

// Equal 类型相同且所有属性值相等
func (d *DeclaredAnnotation) Equal(other *DeclaredAnnotation) bool {
	if d == other {
		return true
	}
	if d == nil || other == nil || d.typ != other.typ || len(d.values) != len(other.values) {
		return false
	}
	for name, v := range d.values {
		ov, ok := other.values[name]
		if !ok || !valuesEqual(v, ov) {
			return false
		}
	}
	return true
}

func (d *DeclaredAnnotation) String() string {
	var b strings.Builder
	b.WriteByte('@')
	b.WriteString(d.typ)
	b.WriteByte('(')
	for i, name := range d.names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(formatValue(d.values[name]))
	}
	b.WriteByte(')')
	return b.String()
}

var annotationIface = reflect.TypeOf((*Annotation)(nil)).Elem()

// fieldValue 解开指针字段。nil 指针返回元素类型的零值且 declared 为 false
func fieldValue(fv reflect.Value) (v reflect.Value, declared bool) {
	if fv.Kind() != reflect.Pointer {
		return fv, !fv.IsZero()
	}
	if fv.IsNil() {
		return reflect.Zero(fv.Type().Elem()), false
	}
	return fv.Elem(), true
}

// liveValue 把嵌套的注解结构体转换为 DeclaredAnnotation
func liveValue(v reflect.Value) any {
	t := v.Type()
	if t.Implements(annotationIface) && t.Kind() != reflect.Interface {
		return DeclaredOf(v.Interface().(Annotation))
	}
	if t.Kind() == reflect.Slice && t.Elem().Implements(annotationIface) {
		out := make([]*DeclaredAnnotation, v.Len())
		for i := range out {
			out[i] = DeclaredOf(v.Index(i).Interface().(Annotation))
		}
		return out
	}
	return v.Interface()
}

type attributeField struct {
	name     string
	index    []int
	required bool
	alias    string
}

// attributeFields 列出结构体上作为属性的导出字段。
// 标签 attr:"name,required" 可以改名或标记必填，attr:"-" 跳过该字段。
func attributeFields(t reflect.Type) []attributeField {
	var fields []attributeField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}
		tag := sf.Tag.Get("attr")
		if tag == "-" {
			continue
		}
		f := attributeField{name: lowerCamel(sf.Name), index: sf.Index, alias: sf.Tag.Get("alias")}
		if tag != "" {
			name, opts, _ := strings.Cut(tag, ",")
			if name != "" {
				f.name = name
			}
			f.required = opts == "required"
		}
		fields = append(fields, f)
	}
	return fields
}

// lowerCamel: Value -> value, URL -> url, URLPath -> urlPath
func lowerCamel(s string) string {
	runes := []rune(s)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == 1 || n == len(runes):
		for i := 0; i < n; i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	default:
		// 最后一个大写字母属于下一个单词
		for i := 0; i < n-1; i++ {
			runes[i] = unicode.ToLower(runes[i])
		}
	}
	return string(runes)
}
