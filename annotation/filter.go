package annotation

import "strings"

// Filter 决定哪些注解类型在扫描与映射时被忽略
type Filter interface {
	Matches(typeName string) bool
}

// FilterFunc 函数适配器
type FilterFunc func(typeName string) bool

func (f FilterFunc) Matches(typeName string) bool { return f(typeName) }

var (
	// PlainFilter 忽略 lang 包下的元注解
	PlainFilter = Packages("lang")
	// NoFilter 不忽略任何注解
	NoFilter Filter = FilterFunc(func(string) bool { return false })
	// AllFilter 忽略所有注解
	AllFilter Filter = FilterFunc(func(string) bool { return true })
)

type packagesFilter []string

// Packages 忽略给定包（及其子包）下的注解类型
func Packages(packages ...string) Filter {
	prefixes := make(packagesFilter, 0, len(packages))
	for _, p := range packages {
		p = strings.TrimSuffix(p, ".")
		if p != "" {
			prefixes = append(prefixes, p+".")
		}
	}
	return prefixes
}

func (f packagesFilter) Matches(typeName string) bool {
	for _, prefix := range f {
		if strings.HasPrefix(typeName, prefix) {
			return true
		}
	}
	return false
}

func (f packagesFilter) String() string {
	return "packages(" + strings.Join(f, ", ") + ")"
}
