package annotation

import (
	"fmt"
	"sort"

	"github.com/gocrud/beans/logging"
)

// SearchStrategy 决定扫描哪些相关元素
type SearchStrategy int

const (
	// Direct 只扫描元素本身
	Direct SearchStrategy = iota
	// InheritedAnnotations 沿父类链扫描，父类上只保留标记为 Inherited 且子类未声明的注解
	InheritedAnnotations
	// Superclass 沿父类链扫描全部注解
	Superclass
	// TypeHierarchy 扫描父类与接口的完整层次
	TypeHierarchy
	// Exhaustive 在 TypeHierarchy 基础上继续扫描外层元素
	Exhaustive
)

func (s SearchStrategy) String() string {
	switch s {
	case Direct:
		return "DIRECT"
	case InheritedAnnotations:
		return "INHERITED_ANNOTATIONS"
	case Superclass:
		return "SUPERCLASS"
	case TypeHierarchy:
		return "TYPE_HIERARCHY"
	case Exhaustive:
		return "EXHAUSTIVE"
	default:
		return fmt.Sprintf("SearchStrategy(%d)", int(s))
	}
}

type aggregateEntry struct {
	annotation int
	mapping    *AnnotationTypeMapping
}

// Aggregate 一个被访问元素上的注解及其映射
type Aggregate struct {
	index       int
	source      Source
	annotations []*DeclaredAnnotation
	// entries 按深度升序，同深度按注解声明顺序
	entries []aggregateEntry
}

// Index 元素在扫描顺序中的位置，0 为根元素
func (a *Aggregate) Index() int { return a.index }

func (a *Aggregate) Source() Source { return a.source }

// Annotations 展开容器并过滤后保留的注解
func (a *Aggregate) Annotations() []*DeclaredAnnotation {
	out := make([]*DeclaredAnnotation, len(a.annotations))
	copy(out, a.annotations)
	return out
}

// relatedSources 按策略返回需要访问的元素，每个元素只出现一次
func relatedSources(root Source, strategy SearchStrategy) []Source {
	var out []Source
	seen := make(map[Source]bool)
	add := func(s Source) bool {
		if s == nil || seen[s] {
			return false
		}
		seen[s] = true
		out = append(out, s)
		return true
	}

	switch strategy {
	case Direct:
		add(root)
	case InheritedAnnotations, Superclass:
		for s := root; s != nil && add(s); s = s.Superclass() {
		}
	case TypeHierarchy, Exhaustive:
		var walk func(s Source)
		walk = func(s Source) {
			if !add(s) {
				return
			}
			for _, itf := range s.Interfaces() {
				walk(itf)
			}
			walk(s.Superclass())
			if strategy == Exhaustive {
				walk(s.Enclosing())
			}
		}
		walk(root)
	}
	return out
}

// scan 生成聚合列表；无法映射的注解记录日志后跳过
func (c *MappingCache) scan(root Source, strategy SearchStrategy) []*Aggregate {
	sources := relatedSources(root, strategy)
	aggregates := make([]*Aggregate, 0, len(sources))
	declared := make(map[string]bool)

	for index, source := range sources {
		agg := &Aggregate{index: index, source: source}
		for _, ann := range expand(source.Annotations(), c.containers, c.filter, c.resolver) {
			ms, err := c.Mappings(ann.Type())
			if err != nil {
				c.logger.Warn("skipping annotation",
					logging.F("source", source.String()),
					logging.F("type", ann.Type()),
					logging.Err(err))
				continue
			}
			if strategy == InheritedAnnotations && index > 0 {
				if !ms.Get(0).Descriptor().Inherited || declared[ann.Type()] {
					continue
				}
			}

			i := len(agg.annotations)
			agg.annotations = append(agg.annotations, ann)
			for _, m := range ms.mappings {
				agg.entries = append(agg.entries, aggregateEntry{annotation: i, mapping: m})
			}
		}
		for _, ann := range agg.annotations {
			declared[ann.Type()] = true
		}
		sort.SliceStable(agg.entries, func(i, j int) bool {
			return agg.entries[i].mapping.depth < agg.entries[j].mapping.depth
		})
		aggregates = append(aggregates, agg)
	}
	return aggregates
}
