package annotation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// TypeOption 注册运行期注解类型时的附加信息
type TypeOption func(*TypeDescriptor)

// MetaAnnotated 声明该注解类型上的元注解
func MetaAnnotated(annotations ...Annotation) TypeOption {
	return func(d *TypeDescriptor) {
		for _, a := range annotations {
			d.Annotations = append(d.Annotations, DeclaredOf(a))
		}
	}
}

// Inherited 标记注解沿父类链可见
func Inherited() TypeOption {
	return func(d *TypeDescriptor) { d.Inherited = true }
}

// RepeatableIn 声明可重复注解的容器类型
func RepeatableIn(container string) TypeOption {
	return func(d *TypeDescriptor) { d.Container = container }
}

// ReflectResolver 从注册的 Go 结构体原型推导类型描述。
// 原型字段的值即为属性默认值，指针字段取其指向的值，nil 时为元素类型的零值；
// alias 标签声明别名，格式为 "attr" 或 "Type:attr"。
type ReflectResolver struct {
	mu    sync.RWMutex
	types map[string]*TypeDescriptor
}

// NewReflectResolver 创建反射解析器
func NewReflectResolver() *ReflectResolver {
	return &ReflectResolver{types: make(map[string]*TypeDescriptor)}
}

// Register 注册注解原型
func (r *ReflectResolver) Register(prototype Annotation, opts ...TypeOption) error {
	d, err := describe(prototype)
	if err != nil {
		return err
	}
	for _, opt := range opts {
		opt(d)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[d.Name] = d
	return nil
}

// MustRegister 与 Register 相同，出错时 panic
func (r *ReflectResolver) MustRegister(prototype Annotation, opts ...TypeOption) *ReflectResolver {
	if err := r.Register(prototype, opts...); err != nil {
		panic(err)
	}
	return r
}

func (r *ReflectResolver) Resolve(name string) (*TypeDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.types[name]; ok {
		return d, nil
	}
	return nil, errTypeNotFound(name)
}

func describe(prototype Annotation) (*TypeDescriptor, error) {
	rv := reflect.ValueOf(prototype)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("annotation: nil prototype %T", prototype)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("annotation: prototype %T is not a struct", prototype)
	}

	d := &TypeDescriptor{Name: prototype.AnnotationType()}
	for _, f := range attributeFields(rv.Type()) {
		fv, _ := fieldValue(rv.FieldByIndex(f.index))
		attr := AttributeDescriptor{Name: f.name}
		if err := describeKind(&attr, fv.Type()); err != nil {
			return nil, fmt.Errorf("annotation: @%s.%s: %w", d.Name, f.name, err)
		}
		if !f.required {
			attr.HasDefault = true
			attr.Default = liveValue(fv)
			if e, ok := attr.Default.(EnumValue); ok && attr.Type == "" {
				attr.Type = e.Type
			}
		}
		if f.alias != "" {
			attr.AliasFor = parseAlias(f.alias)
		}
		d.Attributes = append(d.Attributes, attr)
	}
	return d, nil
}

func parseAlias(tag string) *AliasRef {
	if i := strings.LastIndex(tag, ":"); i >= 0 {
		return &AliasRef{Annotation: tag[:i], Attribute: tag[i+1:]}
	}
	return &AliasRef{Attribute: tag}
}

func describeKind(attr *AttributeDescriptor, t reflect.Type) error {
	if t.Kind() == reflect.Slice {
		attr.Array = true
		t = t.Elem()
	}

	switch {
	case t == kindTypes[KindEnum]:
		attr.Kind = KindEnum
		return nil
	case t == kindTypes[KindClass]:
		attr.Kind = KindClass
		return nil
	case t.Kind() != reflect.Interface && t.Implements(annotationIface):
		attr.Kind = KindAnnotation
		attr.Type = reflect.Zero(t).Interface().(Annotation).AnnotationType()
		return nil
	}

	switch t.Kind() {
	case reflect.String:
		attr.Kind = KindString
	case reflect.Bool:
		attr.Kind = KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		attr.Kind = KindInt
	case reflect.Int64:
		attr.Kind = KindLong
	case reflect.Float32, reflect.Float64:
		attr.Kind = KindDouble
	default:
		return fmt.Errorf("unsupported attribute type %s", t)
	}
	return nil
}
