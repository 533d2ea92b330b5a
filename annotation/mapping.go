package annotation

import (
	"github.com/gocrud/beans/logging"
)

type attributeRef struct {
	mapping *AnnotationTypeMapping
	index   int
}

// AnnotationTypeMapping 根注解类型下的一条元注解路径
type AnnotationTypeMapping struct {
	source     *AnnotationTypeMapping
	root       *AnnotationTypeMapping
	depth      int
	typ        *preparedType
	annotation *DeclaredAnnotation
	// candidates[i] 从最靠近根的别名到属性 i 本身
	candidates [][]attributeRef
}

// Type 注解类型名
func (m *AnnotationTypeMapping) Type() string { return m.typ.Name }

// Depth 0 为直接声明，每经过一层元注解加 1
func (m *AnnotationTypeMapping) Depth() int { return m.depth }

// Source 父映射，根映射返回 nil
func (m *AnnotationTypeMapping) Source() *AnnotationTypeMapping { return m.source }

func (m *AnnotationTypeMapping) Root() *AnnotationTypeMapping { return m.root }

// Descriptor 注解类型描述
func (m *AnnotationTypeMapping) Descriptor() *TypeDescriptor { return m.typ.TypeDescriptor }

// MetaAnnotation 声明在父类型上的元注解实例，根映射返回 nil
func (m *AnnotationTypeMapping) MetaAnnotation() *DeclaredAnnotation { return m.annotation }

// MetaTypes 从根到当前映射的类型名
func (m *AnnotationTypeMapping) MetaTypes() []string {
	types := make([]string, m.depth+1)
	for cur := m; cur != nil; cur = cur.source {
		types[cur.depth] = cur.Type()
	}
	return types
}

// MirrorSets 互为镜像的属性名分组
func (m *AnnotationTypeMapping) MirrorSets() [][]string {
	out := make([][]string, len(m.typ.mirrors))
	for i, set := range m.typ.mirrors {
		for _, idx := range set {
			out[i] = append(out[i], m.typ.Attributes[idx].Name)
		}
	}
	return out
}

// AliasedBy 返回在祖先映射上覆盖了属性 name 的属性，形如 "Type.attr"
func (m *AnnotationTypeMapping) AliasedBy(name string) []string {
	i := m.typ.attributeIndex(name)
	if i < 0 {
		return nil
	}
	var out []string
	for _, ref := range m.candidates[i] {
		if ref.mapping != m {
			out = append(out, ref.mapping.Type()+"."+ref.mapping.typ.Attributes[ref.index].Name)
		}
	}
	return out
}

func (m *AnnotationTypeMapping) inPath(typ string) bool {
	for cur := m; cur != nil; cur = cur.source {
		if cur.Type() == typ {
			return true
		}
	}
	return false
}

// link 计算每个属性的别名链，并校验祖先上指向本类型的别名
func (m *AnnotationTypeMapping) link() error {
	attrs := m.typ.Attributes
	m.candidates = make([][]attributeRef, len(attrs))

	var ancestors []*AnnotationTypeMapping
	for cur := m.source; cur != nil; cur = cur.source {
		ancestors = append([]*AnnotationTypeMapping{cur}, ancestors...)
	}

	for _, p := range ancestors {
		for j := range p.typ.Attributes {
			typ, name, ok := p.typ.aliasTarget(j)
			if !ok || typ != m.Type() || typ == p.Type() {
				continue
			}
			i := m.typ.attributeIndex(name)
			if i < 0 {
				return errInvalidAlias(p.Type(), p.typ.Attributes[j].Name,
					"points to missing attribute %q of @%s", name, m.Type())
			}
			if err := compatible(p.Type(), &p.typ.Attributes[j], &attrs[i]); err != nil {
				return err
			}
			m.candidates[i] = appendRefs(m.candidates[i], p.candidates[j]...)
		}
	}
	for i := range attrs {
		m.candidates[i] = appendRefs(m.candidates[i], attributeRef{mapping: m, index: i})
	}
	return nil
}

func appendRefs(dst []attributeRef, refs ...attributeRef) []attributeRef {
next:
	for _, ref := range refs {
		for _, existing := range dst {
			if existing == ref {
				continue next
			}
		}
		dst = append(dst, ref)
	}
	return dst
}

// AnnotationTypeMappings 一个根注解类型的全部映射，按深度升序
type AnnotationTypeMappings struct {
	mappings []*AnnotationTypeMapping
}

// Len 映射数量
func (ms *AnnotationTypeMappings) Len() int { return len(ms.mappings) }

// Get 第 i 个映射，0 为根映射
func (ms *AnnotationTypeMappings) Get(i int) *AnnotationTypeMapping { return ms.mappings[i] }

// All 按深度升序返回全部映射
func (ms *AnnotationTypeMappings) All() []*AnnotationTypeMapping {
	out := make([]*AnnotationTypeMapping, len(ms.mappings))
	copy(out, ms.mappings)
	return out
}

// buildMappings 广度优先展开元注解。
// 元注解路径上出现环时跳过；无法解析或别名无效的元注解记录日志后跳过。
func (c *MappingCache) buildMappings(rootType *TypeDescriptor) (*AnnotationTypeMappings, error) {
	prepared, err := c.prepared(rootType)
	if err != nil {
		return nil, err
	}
	root := &AnnotationTypeMapping{typ: prepared}
	root.root = root
	if err := root.link(); err != nil {
		return nil, err
	}

	ms := &AnnotationTypeMappings{mappings: []*AnnotationTypeMapping{root}}
	queue := []*AnnotationTypeMapping{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]

		for _, meta := range expand(parent.typ.Annotations, c.containers, c.filter, c.resolver) {
			if parent.inPath(meta.Type()) {
				continue
			}
			child, err := c.metaMapping(parent, meta)
			if err != nil {
				c.logger.Warn("skipping meta-annotation",
					logging.F("root", root.Type()),
					logging.F("declaredOn", parent.Type()),
					logging.F("type", meta.Type()),
					logging.Err(err))
				continue
			}
			ms.mappings = append(ms.mappings, child)
			queue = append(queue, child)
		}
	}

	c.checkAliasTargets(ms)
	return ms, nil
}

func (c *MappingCache) metaMapping(parent *AnnotationTypeMapping, meta *DeclaredAnnotation) (*AnnotationTypeMapping, error) {
	desc, err := c.resolver.Resolve(meta.Type())
	if err != nil {
		return nil, err
	}
	prepared, err := c.prepared(desc)
	if err != nil {
		return nil, err
	}
	child := &AnnotationTypeMapping{
		source:     parent,
		root:       parent.root,
		depth:      parent.depth + 1,
		typ:        prepared,
		annotation: meta,
	}
	if err := child.link(); err != nil {
		return nil, err
	}
	return child, nil
}

// checkAliasTargets 别名指向的注解类型不在元注解树中时只记录日志
func (c *MappingCache) checkAliasTargets(ms *AnnotationTypeMappings) {
	present := make(map[string]bool, len(ms.mappings))
	for _, m := range ms.mappings {
		present[m.Type()] = true
	}
	for _, m := range ms.mappings {
		for j := range m.typ.Attributes {
			typ, _, ok := m.typ.aliasTarget(j)
			if ok && typ != m.Type() && !present[typ] {
				c.logger.Warn("alias target is not meta-present",
					logging.F("type", m.Type()),
					logging.F("attribute", m.typ.Attributes[j].Name),
					logging.F("target", typ))
			}
		}
	}
}
