package annotation

// Source 被扫描的注解元素。
// 运行期反射、字节码解析或元数据文件都可以实现该接口；实现必须可以作为 map 的键比较。
type Source interface {
	// Annotations 直接声明在该元素上的注解
	Annotations() []*DeclaredAnnotation
	// Superclass 父类，没有时返回 nil
	Superclass() Source
	Interfaces() []Source
	// Enclosing 外层元素，没有时返回 nil
	Enclosing() Source
	String() string
}

// SimpleSource 在内存中构造的 Source
type SimpleSource struct {
	name        string
	annotations []*DeclaredAnnotation
	superclass  *SimpleSource
	interfaces  []*SimpleSource
	enclosing   *SimpleSource
}

// NewSource 创建名为 name 的元素
func NewSource(name string) *SimpleSource {
	return &SimpleSource{name: name}
}

// Annotate 追加声明的注解
func (s *SimpleSource) Annotate(annotations ...*DeclaredAnnotation) *SimpleSource {
	s.annotations = append(s.annotations, annotations...)
	return s
}

// AnnotateWith 追加运行期注解
func (s *SimpleSource) AnnotateWith(annotations ...Annotation) *SimpleSource {
	for _, a := range annotations {
		s.annotations = append(s.annotations, DeclaredOf(a))
	}
	return s
}

// Extends 设置父类
func (s *SimpleSource) Extends(superclass *SimpleSource) *SimpleSource {
	s.superclass = superclass
	return s
}

// Implements 追加实现的接口
func (s *SimpleSource) Implements(interfaces ...*SimpleSource) *SimpleSource {
	s.interfaces = append(s.interfaces, interfaces...)
	return s
}

// EnclosedBy 设置外层元素
func (s *SimpleSource) EnclosedBy(enclosing *SimpleSource) *SimpleSource {
	s.enclosing = enclosing
	return s
}

func (s *SimpleSource) Annotations() []*DeclaredAnnotation {
	out := make([]*DeclaredAnnotation, len(s.annotations))
	copy(out, s.annotations)
	return out
}

func (s *SimpleSource) Superclass() Source {
	if s.superclass == nil {
		return nil
	}
	return s.superclass
}

func (s *SimpleSource) Interfaces() []Source {
	out := make([]Source, len(s.interfaces))
	for i, itf := range s.interfaces {
		out[i] = itf
	}
	return out
}

func (s *SimpleSource) Enclosing() Source {
	if s.enclosing == nil {
		return nil
	}
	return s.enclosing
}

func (s *SimpleSource) String() string { return s.name }
