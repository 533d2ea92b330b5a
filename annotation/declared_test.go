package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclaredAnnotation_ArrayIsCopied(t *testing.T) {
	d := NewDeclared("test.Transactional", A("labels", []string{"a", "b"}))

	first, ok := d.Get("labels")
	require.True(t, ok)
	second, _ := d.Get("labels")
	assert.Equal(t, first, second)

	first.([]string)[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, second)

	third, _ := d.Get("labels")
	assert.Equal(t, []string{"a", "b"}, third)
}

func TestDeclaredAnnotation_SourceSliceIsCopied(t *testing.T) {
	labels := []string{"a"}
	d := NewDeclared("x", A("labels", labels))
	labels[0] = "changed"

	v, _ := d.Get("labels")
	assert.Equal(t, []string{"a"}, v)
}

func TestDeclaredOf(t *testing.T) {
	d := DeclaredOf(Wrapper{
		Inner:    Component{Value: "in"},
		Children: []Component{{Value: "c1"}, {Value: "c2"}},
		Target:   ClassRef{Name: "pkg.Type"},
	})

	assert.Equal(t, "test.Wrapper", d.Type())
	assert.Equal(t, []string{"inner", "children", "type"}, d.Names())
	assert.NotNil(t, d.Live())

	inner, ok := d.Get("inner")
	require.True(t, ok)
	assert.True(t, inner.(*DeclaredAnnotation).Equal(NewDeclared("test.Component", A("value", "in"))))

	children, _ := d.Get("children")
	assert.Len(t, children, 2)

	target, _ := d.Get("type")
	assert.Equal(t, ClassRef{Name: "pkg.Type"}, target)
}

func TestDeclaredAnnotation_EqualAndString(t *testing.T) {
	a := NewDeclared("test.Component", A("value", "x"))
	b := DeclaredOf(Component{Value: "x"})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewDeclared("test.Component", A("value", "y"))))
	assert.False(t, a.Equal(nil))
	assert.Equal(t, `@test.Component(value="x")`, a.String())
}

func TestLowerCamel(t *testing.T) {
	tests := map[string]string{
		"Value":    "value",
		"URL":      "url",
		"URLPath":  "urlPath",
		"ID":       "id",
		"value":    "value",
		"ReadOnly": "readOnly",
	}
	for in, want := range tests {
		assert.Equal(t, want, lowerCamel(in), in)
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		attr AttributeDescriptor
		in   any
		want any
		err  bool
	}{
		{"int from int64", AttributeDescriptor{Kind: KindInt}, int64(5), 5, false},
		{"long from int", AttributeDescriptor{Kind: KindLong}, 5, int64(5), false},
		{"double from int", AttributeDescriptor{Kind: KindDouble}, 2, 2.0, false},
		{"int from integral float", AttributeDescriptor{Kind: KindInt}, 3.0, 3, false},
		{"int from fraction", AttributeDescriptor{Kind: KindInt}, 3.5, nil, true},
		{"enum from string", AttributeDescriptor{Kind: KindEnum, Type: "E"}, "A", EnumValue{Type: "E", Name: "A"}, false},
		{"class from string", AttributeDescriptor{Kind: KindClass}, "pkg.T", ClassRef{Name: "pkg.T"}, false},
		{"scalar to array", AttributeDescriptor{Kind: KindString, Array: true}, "x", []string{"x"}, false},
		{"any slice", AttributeDescriptor{Kind: KindInt, Array: true}, []any{1, 2}, []int{1, 2}, false},
		{"string mismatch", AttributeDescriptor{Kind: KindString}, 1, nil, true},
		{"array to scalar", AttributeDescriptor{Kind: KindString}, []string{"x"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerce(tt.in, &tt.attr)
			if tt.err {
				assert.ErrorIs(t, err, ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Boolean")
	require.NoError(t, err)
	assert.Equal(t, KindBool, k)

	k, err = ParseKind("annotation")
	require.NoError(t, err)
	assert.Equal(t, KindAnnotation, k)

	_, err = ParseKind("map")
	assert.Error(t, err)
}

type Flag struct {
	Enabled *bool
	Retries *int
	Name    string
}

func (Flag) AnnotationType() string { return "test.Flag" }

func ptr[T any](v T) *T { return &v }

func TestDeclaredOf_PointerFieldsDeclareZeroValues(t *testing.T) {
	resolver := NewReflectResolver().MustRegister(Flag{Enabled: ptr(true), Retries: ptr(3), Name: "n"})
	d, err := resolver.Resolve("test.Flag")
	require.NoError(t, err)
	assert.Equal(t, KindBool, d.Attributes[0].Kind)
	assert.Equal(t, true, d.Attributes[0].Default)
	assert.Equal(t, KindInt, d.Attributes[1].Kind)

	declared := DeclaredOf(Flag{Enabled: ptr(false), Retries: ptr(0)})
	assert.Equal(t, []string{"enabled", "retries"}, declared.Names())

	cache := NewMappingCache(resolver)
	flag := cache.From(NewSource("S").AnnotateWith(Flag{Enabled: ptr(false), Retries: ptr(0)}), Direct).Get("test.Flag")
	enabled, err := flag.GetBool("enabled")
	require.NoError(t, err)
	assert.False(t, enabled)
	retries, err := flag.GetInt("retries")
	require.NoError(t, err)
	assert.Equal(t, 0, retries)
	requireString(t, flag, "name", "n")

	unset := cache.From(NewSource("U").AnnotateWith(Flag{}), Direct).Get("test.Flag")
	enabled, err = unset.GetBool("enabled")
	require.NoError(t, err)
	assert.True(t, enabled)

	synthesized, err := SynthesizeAs[Flag](flag)
	require.NoError(t, err)
	require.NotNil(t, synthesized.Enabled)
	assert.False(t, *synthesized.Enabled)
	require.NotNil(t, synthesized.Retries)
	assert.Equal(t, 0, *synthesized.Retries)
	assert.Equal(t, "n", synthesized.Name)
}
