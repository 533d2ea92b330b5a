package annotation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gocrud/beans/logging"
)

type Component struct {
	Value string
}

func (Component) AnnotationType() string { return "test.Component" }

type Service struct {
	Value string `alias:"test.Component:value"`
}

func (Service) AnnotationType() string { return "test.Service" }

type RestService struct {
	Value string `alias:"test.Service:value"`
}

func (RestService) AnnotationType() string { return "test.RestService" }

type Transactional struct {
	Value              string `alias:"transactionManager"`
	TransactionManager string `alias:"value"`
	Timeout            int
	Labels             []string
	ReadOnly           bool
	Isolation          EnumValue
}

func (Transactional) AnnotationType() string { return "test.Transactional" }

type Inheritable struct {
	Name string
}

func (Inheritable) AnnotationType() string { return "test.Inheritable" }

type Role struct {
	Name string
}

func (Role) AnnotationType() string { return "test.Role" }

type Roles struct {
	Value []Role
}

func (Roles) AnnotationType() string { return "test.Roles" }

type Wrapper struct {
	Inner    Component
	Children []Component
	Target   ClassRef `attr:"type"`
}

func (Wrapper) AnnotationType() string { return "test.Wrapper" }

type Documented struct{}

func (Documented) AnnotationType() string { return "lang.Documented" }

func testResolver() *ReflectResolver {
	return NewReflectResolver().
		MustRegister(Documented{}).
		MustRegister(Component{}, MetaAnnotated(Documented{})).
		MustRegister(Service{}, MetaAnnotated(Component{})).
		MustRegister(RestService{}, MetaAnnotated(Service{})).
		MustRegister(Transactional{Timeout: -1, Isolation: EnumValue{Type: "test.Isolation", Name: "DEFAULT"}}).
		MustRegister(Inheritable{}, Inherited()).
		MustRegister(Role{}, RepeatableIn("test.Roles")).
		MustRegister(Roles{}).
		MustRegister(Wrapper{Target: ClassRef{Name: "lang.Object"}})
}

func memoryLogger(t *testing.T) (logging.Logger, *logging.MemoryLoggerProvider) {
	t.Helper()
	mem := logging.NewMemoryLoggerProvider()
	factory := logging.NewLoggingBuilder().SetMinimumLevel(logging.LogLevelTrace).AddProvider(mem).Build()
	return factory.CreateLogger("test"), mem
}

func requireString(t *testing.T, m *MergedAnnotation, name, want string) {
	t.Helper()
	got, err := m.GetString(name)
	require.NoError(t, err)
	require.Equal(t, want, got)
}
