package metadata

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gocrud/beans/annotation"
)

// Metadata 由一个或多个文档构建的类型解析器和元素表
type Metadata struct {
	resolver *annotation.StaticResolver
	sources  map[string]*annotation.SimpleSource
}

// Load 读取并合并多个元数据文件，后出现的同名类型覆盖先前的
func Load(paths ...string) (*Metadata, error) {
	docs := make([]*Document, 0, len(paths))
	for _, path := range paths {
		doc, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return New(docs...)
}

// New 从已解析的文档构建
func New(docs ...*Document) (*Metadata, error) {
	m := &Metadata{
		resolver: annotation.NewStaticResolver(),
		sources:  make(map[string]*annotation.SimpleSource),
	}

	var specs []SourceSpec
	for _, doc := range docs {
		for i := range doc.Types {
			desc, err := buildType(&doc.Types[i])
			if err != nil {
				return nil, err
			}
			m.resolver.Register(desc)
		}
		for _, spec := range doc.Sources {
			if spec.Name == "" {
				return nil, fmt.Errorf("metadata: source without name")
			}
			if _, exists := m.sources[spec.Name]; exists {
				return nil, fmt.Errorf("metadata: source %s declared twice", spec.Name)
			}
			source := annotation.NewSource(spec.Name)
			for _, a := range spec.Annotations {
				declared, err := buildAnnotation(a.Type, &a.Attributes)
				if err != nil {
					return nil, fmt.Errorf("metadata: source %s: %w", spec.Name, err)
				}
				source.Annotate(declared)
			}
			m.sources[spec.Name] = source
			specs = append(specs, spec)
		}
	}

	// 所有元素创建后再连接，允许跨文档引用
	for _, spec := range specs {
		if err := m.link(spec); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metadata) link(spec SourceSpec) error {
	source := m.sources[spec.Name]
	ref := func(role, name string) (*annotation.SimpleSource, error) {
		s, ok := m.sources[name]
		if !ok {
			return nil, fmt.Errorf("metadata: source %s: unknown %s %s", spec.Name, role, name)
		}
		return s, nil
	}

	if spec.Superclass != "" {
		s, err := ref("superclass", spec.Superclass)
		if err != nil {
			return err
		}
		source.Extends(s)
	}
	for _, name := range spec.Interfaces {
		s, err := ref("interface", name)
		if err != nil {
			return err
		}
		source.Implements(s)
	}
	if spec.Enclosing != "" {
		s, err := ref("enclosing", spec.Enclosing)
		if err != nil {
			return err
		}
		source.EnclosedBy(s)
	}
	return nil
}

// Resolver 文档中声明的注解类型
func (m *Metadata) Resolver() *annotation.StaticResolver { return m.resolver }

// Source 按名称查找元素
func (m *Metadata) Source(name string) (annotation.Source, bool) {
	s, ok := m.sources[name]
	if !ok {
		return nil, false
	}
	return s, true
}

// SourceNames 排序后的元素名
func (m *Metadata) SourceNames() []string {
	names := make([]string, 0, len(m.sources))
	for name := range m.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildType(spec *TypeSpec) (*annotation.TypeDescriptor, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("metadata: type without name")
	}
	desc := &annotation.TypeDescriptor{
		Name:      spec.Name,
		Inherited: spec.Inherited,
		Container: spec.Container,
	}

	for i := range spec.Attributes {
		attr, err := buildAttribute(&spec.Attributes[i])
		if err != nil {
			return nil, fmt.Errorf("metadata: @%s: %w", spec.Name, err)
		}
		desc.Attributes = append(desc.Attributes, attr)
	}
	for _, a := range spec.Annotations {
		declared, err := buildAnnotation(a.Type, &a.Attributes)
		if err != nil {
			return nil, fmt.Errorf("metadata: @%s: %w", spec.Name, err)
		}
		desc.Annotations = append(desc.Annotations, declared)
	}
	return desc, nil
}

func buildAttribute(spec *AttributeSpec) (annotation.AttributeDescriptor, error) {
	attr := annotation.AttributeDescriptor{Name: spec.Name, Array: spec.Array, Type: spec.Type}
	if spec.Name == "" {
		return attr, fmt.Errorf("attribute without name")
	}

	kind := spec.Kind
	if kind == "" {
		kind = "string"
	}
	k, err := annotation.ParseKind(kind)
	if err != nil {
		return attr, fmt.Errorf("attribute %s: %w", spec.Name, err)
	}
	attr.Kind = k

	if spec.AliasFor != "" {
		attr.AliasFor = &annotation.AliasRef{Attribute: spec.AliasFor}
		if i := strings.LastIndex(spec.AliasFor, ":"); i >= 0 {
			attr.AliasFor = &annotation.AliasRef{Annotation: spec.AliasFor[:i], Attribute: spec.AliasFor[i+1:]}
		}
	}

	switch {
	case spec.Default.Kind != 0:
		v, err := convertNode(&spec.Default)
		if err != nil {
			return attr, fmt.Errorf("attribute %s: %w", spec.Name, err)
		}
		attr.Default, attr.HasDefault = v, true
	case !spec.Required:
		attr.Default, attr.HasDefault = zeroValue(attr), true
	}
	return attr, nil
}

// zeroValue 未声明默认值时的零值
func zeroValue(attr annotation.AttributeDescriptor) any {
	if attr.Array {
		return []any{}
	}
	switch attr.Kind {
	case annotation.KindBool:
		return false
	case annotation.KindInt, annotation.KindLong:
		return 0
	case annotation.KindDouble:
		return 0.0
	case annotation.KindEnum:
		return annotation.EnumValue{Type: attr.Type}
	case annotation.KindClass:
		return annotation.ClassRef{}
	case annotation.KindAnnotation:
		return annotation.NewDeclared(attr.Type)
	default:
		return ""
	}
}

// buildAnnotation 按文档中的键顺序构造注解
func buildAnnotation(typ string, attrs *yaml.Node) (*annotation.DeclaredAnnotation, error) {
	if typ == "" {
		return nil, fmt.Errorf("annotation without type")
	}
	if attrs.Kind == 0 {
		return annotation.NewDeclared(typ), nil
	}
	if attrs.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: attributes of @%s must be a mapping", attrs.Line, typ)
	}

	var list []annotation.Attr
	for i := 0; i+1 < len(attrs.Content); i += 2 {
		name := attrs.Content[i].Value
		v, err := convertNode(attrs.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("@%s.%s: %w", typ, name, err)
		}
		list = append(list, annotation.A(name, v))
	}
	return annotation.NewDeclared(typ, list...), nil
}

// convertNode 标量按 YAML 类型解码，序列转为切片，映射转为嵌套注解
func convertNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return convertNode(n.Alias)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := convertNode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if nested, ok := asAnnotations(out); ok {
			return nested, nil
		}
		return out, nil
	case yaml.MappingNode:
		var spec AnnotationSpec
		if err := n.Decode(&spec); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		if spec.Type == "" {
			return nil, fmt.Errorf("line %d: nested annotation without type", n.Line)
		}
		return buildAnnotation(spec.Type, &spec.Attributes)
	}
	return nil, fmt.Errorf("line %d: unsupported value", n.Line)
}

func asAnnotations(values []any) ([]*annotation.DeclaredAnnotation, bool) {
	if len(values) == 0 {
		return nil, false
	}
	out := make([]*annotation.DeclaredAnnotation, len(values))
	for i, v := range values {
		d, ok := v.(*annotation.DeclaredAnnotation)
		if !ok {
			return nil, false
		}
		out[i] = d
	}
	return out, true
}
