package singleton

import "sync"

// orderedSet 保持插入顺序的字符串集合
type orderedSet struct {
	index map[string]int
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{index: make(map[string]int)}
}

func (s *orderedSet) add(v string) bool {
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.items)
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet) has(v string) bool {
	_, ok := s.index[v]
	return ok
}

func (s *orderedSet) remove(v string) {
	i, ok := s.index[v]
	if !ok {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, v)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
}

func (s *orderedSet) len() int { return len(s.items) }

func (s *orderedSet) slice() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// DependencyGraph 维护 bean 之间的依赖和包含关系。
// dependents 与 dependencies 互为镜像：A 依赖 B 时，dependents[B] 含 A，dependencies[A] 含 B。
type DependencyGraph struct {
	mu           sync.Mutex
	dependents   map[string]*orderedSet
	dependencies map[string]*orderedSet
	contained    map[string]*orderedSet // containing -> contained
}

// NewDependencyGraph 创建空图
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		dependents:   make(map[string]*orderedSet),
		dependencies: make(map[string]*orderedSet),
		contained:    make(map[string]*orderedSet),
	}
}

// RegisterDependent 记录 dependent 依赖 bean
func (g *DependencyGraph) RegisterDependent(bean, dependent string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addEdge(bean, dependent)
}

func (g *DependencyGraph) addEdge(bean, dependent string) {
	set, ok := g.dependents[bean]
	if !ok {
		set = newOrderedSet()
		g.dependents[bean] = set
	}
	if !set.add(dependent) {
		return
	}
	deps, ok := g.dependencies[dependent]
	if !ok {
		deps = newOrderedSet()
		g.dependencies[dependent] = deps
	}
	deps.add(bean)
}

// RegisterContained 记录 containing 包含 contained；包含方同时被视为依赖被包含方
func (g *DependencyGraph) RegisterContained(contained, containing string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.contained[containing]
	if !ok {
		set = newOrderedSet()
		g.contained[containing] = set
	}
	if !set.add(contained) {
		return
	}
	g.addEdge(contained, containing)
}

// IsDependent dependent 是否（直接或传递地）依赖 bean
func (g *DependencyGraph) IsDependent(bean, dependent string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isDependent(bean, dependent, make(map[string]bool))
}

func (g *DependencyGraph) isDependent(bean, dependent string, seen map[string]bool) bool {
	if seen[bean] {
		return false
	}
	set, ok := g.dependents[bean]
	if !ok {
		return false
	}
	if set.has(dependent) {
		return true
	}
	seen[bean] = true
	for _, transitive := range set.items {
		if g.isDependent(transitive, dependent, seen) {
			return true
		}
	}
	return false
}

// HasDependents bean 是否有依赖方
func (g *DependencyGraph) HasDependents(bean string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.dependents[bean]
	return ok && set.len() > 0
}

// Dependents 依赖 bean 的名称
func (g *DependencyGraph) Dependents(bean string) []string {
	return g.get(g.dependents, bean)
}

// Dependencies bean 依赖的名称
func (g *DependencyGraph) Dependencies(bean string) []string {
	return g.get(g.dependencies, bean)
}

// Contained bean 包含的名称
func (g *DependencyGraph) Contained(bean string) []string {
	return g.get(g.contained, bean)
}

func (g *DependencyGraph) get(m map[string]*orderedSet, bean string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := m[bean]
	if !ok {
		return []string{}
	}
	return set.slice()
}

// takeDependents 移除并返回 bean 的全部依赖方，同时维护镜像
func (g *DependencyGraph) takeDependents(bean string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.dependents[bean]
	if !ok {
		return nil
	}
	delete(g.dependents, bean)
	for _, d := range set.items {
		g.removeFrom(g.dependencies, d, bean)
	}
	return set.slice()
}

// takeContained 移除并返回 bean 包含的 bean
func (g *DependencyGraph) takeContained(bean string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.contained[bean]
	if !ok {
		return nil
	}
	delete(g.contained, bean)
	return set.slice()
}

// Remove 删除与 bean 相关的所有边
func (g *DependencyGraph) Remove(bean string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if set, ok := g.dependencies[bean]; ok {
		for _, dep := range set.items {
			g.removeFrom(g.dependents, dep, bean)
		}
		delete(g.dependencies, bean)
	}
	if set, ok := g.dependents[bean]; ok {
		for _, d := range set.items {
			g.removeFrom(g.dependencies, d, bean)
		}
		delete(g.dependents, bean)
	}
	for containing, set := range g.contained {
		set.remove(bean)
		if set.len() == 0 {
			delete(g.contained, containing)
		}
	}
	delete(g.contained, bean)
}

func (g *DependencyGraph) removeFrom(m map[string]*orderedSet, key, value string) {
	set, ok := m[key]
	if !ok {
		return
	}
	set.remove(value)
	if set.len() == 0 {
		delete(m, key)
	}
}

// Clear 清空全部关系
func (g *DependencyGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dependents = make(map[string]*orderedSet)
	g.dependencies = make(map[string]*orderedSet)
	g.contained = make(map[string]*orderedSet)
}

// consistent 检查镜像不变式，供测试使用
func (g *DependencyGraph) consistent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for bean, set := range g.dependents {
		for _, d := range set.items {
			deps, ok := g.dependencies[d]
			if !ok || !deps.has(bean) {
				return false
			}
		}
	}
	for d, set := range g.dependencies {
		for _, bean := range set.items {
			ds, ok := g.dependents[bean]
			if !ok || !ds.has(d) {
				return false
			}
		}
	}
	return true
}
