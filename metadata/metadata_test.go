package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/beans/annotation"
)

const typesYAML = `
types:
  - name: lang.Documented
  - name: org.acme.Component
    annotations:
      - type: lang.Documented
    attributes:
      - name: value
  - name: org.acme.Service
    annotations:
      - type: org.acme.Component
    attributes:
      - name: value
        aliasFor: org.acme.Component:value
  - name: org.acme.Scope
    inherited: true
    attributes:
      - name: value
        kind: enum
        type: org.acme.ScopeMode
        default: SINGLETON
      - name: proxy
        kind: bool
  - name: org.acme.Qualifier
    container: org.acme.Qualifiers
    attributes:
      - name: value
        required: true
  - name: org.acme.Qualifiers
    attributes:
      - name: value
        kind: annotation
        type: org.acme.Qualifier
        array: true
  - name: org.acme.Timeouts
    attributes:
      - name: millis
        kind: long
        array: true
        default: [100, 200]
      - name: ratio
        kind: double
      - name: fallback
        kind: annotation
        type: org.acme.Qualifier
`

const sourcesYAML = `
sources:
  - name: com.example.BaseService
    annotations:
      - type: org.acme.Scope
        attributes:
          value: PROTOTYPE
  - name: com.example.OrderService
    superclass: com.example.BaseService
    interfaces: [com.example.Orders]
    annotations:
      - type: org.acme.Service
        attributes:
          value: orders
      - type: org.acme.Qualifiers
        attributes:
          value:
            - type: org.acme.Qualifier
              attributes: {value: primary}
            - type: org.acme.Qualifier
              attributes: {value: fast}
      - type: org.acme.Timeouts
        attributes:
          ratio: 0.5
          fallback:
            type: org.acme.Qualifier
            attributes:
              value: slow
  - name: com.example.Orders
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func loadFixture(t *testing.T) (*Metadata, *annotation.MappingCache) {
	t.Helper()
	dir := t.TempDir()
	md, err := Load(writeFile(t, dir, "types.yaml", typesYAML), writeFile(t, dir, "sources.yaml", sourcesYAML))
	require.NoError(t, err)
	return md, annotation.NewMappingCache(md.Resolver())
}

func TestLoad(t *testing.T) {
	md, _ := loadFixture(t)

	assert.Equal(t, []string{"com.example.BaseService", "com.example.OrderService", "com.example.Orders"}, md.SourceNames())
	assert.Contains(t, md.Resolver().Names(), "org.acme.Service")

	source, ok := md.Source("com.example.OrderService")
	require.True(t, ok)
	assert.Equal(t, "com.example.BaseService", source.Superclass().String())
	require.Len(t, source.Interfaces(), 1)
	assert.Equal(t, "com.example.Orders", source.Interfaces()[0].String())

	_, ok = md.Source("com.example.Nope")
	assert.False(t, ok)
}

func TestMetadata_MergedAnnotations(t *testing.T) {
	md, cache := loadFixture(t)
	source, _ := md.Source("com.example.OrderService")

	annotations := cache.From(source, annotation.InheritedAnnotations)

	component := annotations.Get("org.acme.Component")
	require.True(t, component.IsPresent())
	assert.Equal(t, 1, component.Depth())
	value, err := component.GetString("value")
	require.NoError(t, err)
	assert.Equal(t, "orders", value)
	assert.False(t, annotations.IsPresent("lang.Documented"))

	scope := annotations.Get("org.acme.Scope")
	require.True(t, scope.IsPresent())
	assert.True(t, scope.IsFromInherited())
	mode, err := scope.GetEnum("value")
	require.NoError(t, err)
	assert.Equal(t, annotation.EnumValue{Type: "org.acme.ScopeMode", Name: "PROTOTYPE"}, mode)
	proxy, err := scope.GetBool("proxy")
	require.NoError(t, err)
	assert.False(t, proxy)

	qualifiers := annotations.Stream("org.acme.Qualifier")
	require.Len(t, qualifiers, 2)
	first, err := qualifiers[0].GetString("value")
	require.NoError(t, err)
	assert.Equal(t, "primary", first)

	timeouts := annotations.Get("org.acme.Timeouts")
	millis, err := timeouts.GetValue("millis")
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, millis)
	ratio, err := timeouts.GetDouble("ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.5, ratio)

	fallback, err := timeouts.GetAnnotation("fallback")
	require.NoError(t, err)
	slow, err := fallback.GetString("value")
	require.NoError(t, err)
	assert.Equal(t, "slow", slow)
}

func TestParse_AttributeOrderPreserved(t *testing.T) {
	doc, err := Parse([]byte(`
sources:
  - name: S
    annotations:
      - type: x.T
        attributes: {b: 1, a: 2, c: [x, y]}
`))
	require.NoError(t, err)

	md, err := New(doc)
	require.NoError(t, err)
	source, _ := md.Source("S")
	declared := source.Annotations()[0]
	assert.Equal(t, []string{"b", "a", "c"}, declared.Names())
	c, _ := declared.Get("c")
	assert.Equal(t, []any{"x", "y"}, c)
}

func TestNew_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown superclass": `
sources:
  - name: A
    superclass: Missing
`,
		"duplicate source": `
sources:
  - name: A
  - name: A
`,
		"bad kind": `
types:
  - name: x.T
    attributes:
      - name: v
        kind: map
`,
		"nested without type": `
sources:
  - name: A
    annotations:
      - type: x.T
        attributes:
          inner: {value: 1}
`,
		"type without name": `
types:
  - attributes: []
`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			doc, err := Parse([]byte(content))
			require.NoError(t, err)
			_, err = New(doc)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("types: [: bad"))
	assert.Error(t, err)
}
