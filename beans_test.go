package beans

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gocrud/beans/annotation"
	"github.com/gocrud/beans/config"
	"github.com/gocrud/beans/logging"
	"github.com/gocrud/beans/singleton"
)

const metadataYAML = `
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
sources:
  - name: com.example.OrderService
    annotations:
      - type: org.acme.Service
        attributes:
          value: orders
`

type Named struct {
	Value string
}

func (Named) AnnotationType() string { return "beans.test.Named" }

type resource struct {
	name   string
	closed *[]string
}

func (r *resource) Close() error {
	*r.closed = append(*r.closed, r.name)
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newBuilder(mem *logging.MemoryLoggerProvider, settings map[string]any) *Builder {
	beans := map[string]any{"logging": map[string]any{"format": "none"}}
	for k, v := range settings {
		beans[k] = v
	}
	return NewBuilder().
		ConfigureConfiguration(func(b *config.ConfigurationBuilder) {
			b.AddInMemory(map[string]any{"beans": beans})
		}).
		ConfigureLogging(func(b *logging.LoggingBuilder) {
			b.AddProvider(mem)
		})
}

func TestBuild_BindsOptions(t *testing.T) {
	mem := logging.NewMemoryLoggerProvider()
	c, err := newBuilder(mem, map[string]any{
		"environment": "staging",
		"singleton":   map[string]any{"suppressedErrorLimit": 3},
		"logging":     map[string]any{"level": "debug", "format": "none"},
	}).Build()
	require.NoError(t, err)

	opts := c.Options()
	assert.Equal(t, 3, opts.Singleton.SuppressedErrorLimit)
	assert.Equal(t, "debug", opts.Logging.Level)
	assert.Equal(t, []string{"lang"}, opts.Annotation.FilterPackages)
	assert.True(t, c.Environment().IsStaging())
	assert.Nil(t, c.Metadata())

	entries := mem.Entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "Building container", entries[0].Message)
	assert.Len(t, mem.Filter(logging.LogLevelDebug), len(entries))
}

func TestBuild_Defaults(t *testing.T) {
	c, err := NewBuilder().UseOutput(&discard{}).UseEnvironment("production").Build()
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), c.Options())
	assert.True(t, c.Environment().IsProduction())
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestBuild_InvalidOptions(t *testing.T) {
	tests := map[string]map[string]any{
		"level":    {"logging": map[string]any{"level": "verbose"}},
		"format":   {"logging": map[string]any{"format": "xml"}},
		"limit":    {"singleton": map[string]any{"suppressedErrorLimit": -1}},
		"schedule": {"config": map[string]any{"reloadSchedule": "every day"}},
	}
	for name, settings := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := newBuilder(logging.NewMemoryLoggerProvider(), settings).Build()
			assert.Error(t, err)
		})
	}
}

func TestBuild_InvalidAnnotation(t *testing.T) {
	_, err := NewBuilder().RegisterAnnotation(nil).Build()
	assert.Error(t, err)
}

func TestBuild_ConfiguratorFailureDestroysSingletons(t *testing.T) {
	var closed []string
	boom := errors.New("boom")

	_, err := newBuilder(logging.NewMemoryLoggerProvider(), nil).
		Configure(func(c *Container) error {
			_, err := Singleton(context.Background(), c, "db", func(context.Context) (*resource, error) {
				return &resource{name: "db", closed: &closed}, nil
			})
			return err
		}, func(*Container) error {
			return boom
		}).
		Build()

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"db"}, closed)
}

func TestSingleton_CreatesOnceAndDestroysOnClose(t *testing.T) {
	c, err := newBuilder(logging.NewMemoryLoggerProvider(), nil).Build()
	require.NoError(t, err)

	var closed []string
	calls := 0
	newResource := func(name string) func(context.Context) (*resource, error) {
		return func(context.Context) (*resource, error) {
			calls++
			return &resource{name: name, closed: &closed}, nil
		}
	}

	ctx := context.Background()
	db, err := Singleton(ctx, c, "db", newResource("db"))
	require.NoError(t, err)
	again, err := Singleton(ctx, c, "db", newResource("db"))
	require.NoError(t, err)
	assert.Same(t, db, again)
	assert.Equal(t, 1, calls)

	_, err = Singleton(ctx, c, "repo", newResource("repo"))
	require.NoError(t, err)
	_, err = Singleton(ctx, c, "cache", newResource("cache"))
	require.NoError(t, err)
	c.DependsOn("repo", "db")

	found, ok := Lookup[*resource](ctx, c, "repo")
	require.True(t, ok)
	assert.Equal(t, "repo", found.name)

	var stopped []string
	c.Lifecycle().OnStop(func(context.Context) error { stopped = append(stopped, "first"); return nil })
	c.Lifecycle().OnStop(func(context.Context) error { stopped = append(stopped, "second"); return nil })

	require.NoError(t, c.Close(ctx))
	assert.Equal(t, []string{"second", "first"}, stopped)
	// 倒序销毁；repo 依赖 db，先于 db 销毁
	assert.Equal(t, []string{"cache", "repo", "db"}, closed)
	assert.Zero(t, c.Registry().SingletonCount())

	require.NoError(t, c.Close(ctx))
	assert.Len(t, closed, 3)
}

func TestSingleton_TypeMismatch(t *testing.T) {
	c, err := newBuilder(logging.NewMemoryLoggerProvider(), nil).Build()
	require.NoError(t, err)
	require.NoError(t, c.Registry().RegisterSingleton("port", 8080))

	_, err = Singleton(context.Background(), c, "port", func(context.Context) (string, error) {
		return "", nil
	})
	assert.ErrorIs(t, err, singleton.ErrIllegalState)
}

func TestSingleton_FactoryError(t *testing.T) {
	c, err := newBuilder(logging.NewMemoryLoggerProvider(), nil).Build()
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = Singleton(context.Background(), c, "broken", func(context.Context) (*resource, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Registry().ContainsSingleton("broken"))
}

func TestContainer_Annotations(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "metadata.yaml", metadataYAML)

	c, err := newBuilder(logging.NewMemoryLoggerProvider(), map[string]any{
		"annotation": map[string]any{"metadata": []any{path}},
	}).RegisterAnnotation(Named{Value: "default"}).Build()
	require.NoError(t, err)
	require.NotNil(t, c.Metadata())

	merged, err := c.SourceAnnotations("com.example.OrderService", annotation.TypeHierarchy)
	require.NoError(t, err)

	component := merged.Get("org.acme.Component")
	require.True(t, component.IsPresent())
	value, err := component.GetString("value")
	require.NoError(t, err)
	assert.Equal(t, "orders", value)
	assert.False(t, merged.IsPresent("lang.Documented"))

	_, err = c.SourceAnnotations("com.example.Unknown", annotation.Direct)
	assert.Error(t, err)

	source := annotation.NewSource("com.example.Handler").AnnotateWith(Named{})
	named := c.Annotations(source, annotation.Direct).Get("beans.test.Named")
	value, err = named.GetString("value")
	require.NoError(t, err)
	assert.Equal(t, "default", value)
}

func TestContainer_SourceAnnotationsWithoutMetadata(t *testing.T) {
	c, err := newBuilder(logging.NewMemoryLoggerProvider(), nil).Build()
	require.NoError(t, err)
	_, err = c.SourceAnnotations("com.example.OrderService", annotation.Direct)
	assert.Error(t, err)
}

func TestContainer_Reload(t *testing.T) {
	dir := t.TempDir()
	metadataPath := writeFile(t, dir, "metadata.yaml", metadataYAML)
	configPath := writeFile(t, dir, "beans.yaml", `
beans:
  logging:
    level: warn
    format: none
  annotation:
    metadata: [`+metadataPath+`]
`)

	mem := logging.NewMemoryLoggerProvider()
	c, err := NewBuilder().
		ConfigureConfiguration(func(b *config.ConfigurationBuilder) { b.AddYamlFile(configPath) }).
		ConfigureLogging(func(b *logging.LoggingBuilder) { b.AddProvider(mem) }).
		Build()
	require.NoError(t, err)

	c.Logger().Info("hidden")
	assert.Empty(t, mem.Entries())

	before := c.Mappings()
	merged, err := c.SourceAnnotations("com.example.OrderService", annotation.Direct)
	require.NoError(t, err)
	assert.False(t, merged.IsPresent("lang.Documented"))

	writeFile(t, dir, "beans.yaml", `
beans:
  logging:
    level: debug
    format: none
  annotation:
    filterPackages: []
    metadata: [`+metadataPath+`]
`)
	require.NoError(t, c.Reload())

	assert.Equal(t, "debug", c.Options().Logging.Level)
	assert.NotSame(t, before, c.Mappings())

	c.Logger().Info("shown")
	var messages []string
	for _, e := range mem.Entries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "shown")

	merged, err = c.SourceAnnotations("com.example.OrderService", annotation.Direct)
	require.NoError(t, err)
	assert.True(t, merged.IsPresent("lang.Documented"))

	// 无效配置不影响当前状态
	current := c.Mappings()
	writeFile(t, dir, "beans.yaml", "beans:\n  logging:\n    level: loud\n")
	require.NoError(t, c.Reload())
	assert.Same(t, current, c.Mappings())
	assert.Equal(t, "debug", c.Options().Logging.Level)
	errorsLogged := mem.Filter(logging.LogLevelError)
	require.Len(t, errorsLogged, 1)
	assert.Equal(t, "Ignoring invalid beans options", errorsLogged[0].Message)
}

type etcdStub struct {
	mu     sync.Mutex
	level  string
	events chan clientv3.WatchResponse
}

func (e *etcdStub) setLevel(level string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.level = level
}

func (e *etcdStub) Get(context.Context, string, ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &clientv3.GetResponse{Kvs: []*mvccpb.KeyValue{
		{Key: []byte("/cfg/beans/logging/level"), Value: []byte(e.level)},
		{Key: []byte("/cfg/beans/logging/format"), Value: []byte("none")},
	}}, nil
}

func (e *etcdStub) Watch(context.Context, string, ...clientv3.OpOption) clientv3.WatchChan {
	return e.events
}

func (e *etcdStub) RequestProgress(context.Context) error { return nil }

func (e *etcdStub) Close() error { return nil }

func TestContainer_WatchesEtcd(t *testing.T) {
	stub := &etcdStub{level: "warn", events: make(chan clientv3.WatchResponse, 1)}
	c, err := NewBuilder().
		ConfigureConfiguration(func(b *config.ConfigurationBuilder) {
			b.Add(&config.EtcdSource{Options: config.EtcdOptions{Prefix: "/cfg"}, Client: stub})
		}).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Options().Logging.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	stub.setLevel("trace")
	stub.events <- clientv3.WatchResponse{Events: []*clientv3.Event{{Type: mvccpb.PUT}}}

	require.Eventually(t, func() bool {
		return c.Options().Logging.Level == "trace"
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, c.Close(context.Background()))
}

func TestLifecycle_StopContinuesAfterFailure(t *testing.T) {
	mem := logging.NewMemoryLoggerProvider()
	logger := logging.NewLoggingBuilder().AddProvider(mem).Build().CreateLogger("beans")
	l := NewLifecycle(logger)

	var order []string
	first := errors.New("first")
	l.OnStop(func(context.Context) error { order = append(order, "a"); return nil })
	l.OnStop(func(context.Context) error { order = append(order, "b"); return first })

	err := l.Stop(context.Background())
	assert.ErrorIs(t, err, first)
	assert.Equal(t, []string{"b", "a"}, order)
	assert.Len(t, mem.Filter(logging.LogLevelError), 1)
}

func TestRun(t *testing.T) {
	var events []string
	b := newBuilder(logging.NewMemoryLoggerProvider(), nil).Configure(func(c *Container) error {
		c.Lifecycle().OnStart(func(context.Context) error { events = append(events, "start"); return nil })
		c.Lifecycle().OnStop(func(context.Context) error { events = append(events, "stop"); return nil })
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, Run(ctx, b))
	assert.Equal(t, []string{"start", "stop"}, events)
}

func TestRun_StartFailure(t *testing.T) {
	boom := errors.New("boom")
	stopped := false
	b := newBuilder(logging.NewMemoryLoggerProvider(), nil).Configure(func(c *Container) error {
		c.Lifecycle().OnStart(func(context.Context) error { return boom })
		c.Lifecycle().OnStop(func(context.Context) error { stopped = true; return nil })
		return nil
	})

	assert.ErrorIs(t, Run(context.Background(), b), boom)
	assert.True(t, stopped)
}

func TestContainer_ScheduledReload(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, "beans.yaml", `
beans:
  logging:
    level: warn
    format: none
  config:
    reloadSchedule: "@every 1s"
`)

	c, err := NewBuilder().
		ConfigureConfiguration(func(b *config.ConfigurationBuilder) { b.AddYamlFile(configPath) }).
		ConfigureLogging(func(b *logging.LoggingBuilder) { b.AddProvider(logging.NewMemoryLoggerProvider()) }).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "@every 1s", c.Options().Config.ReloadSchedule)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	writeFile(t, dir, "beans.yaml", `
beans:
  logging:
    level: debug
    format: none
  config:
    reloadSchedule: "@every 1s"
`)
	require.Eventually(t, func() bool {
		return c.Options().Logging.Level == "debug"
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, c.Close(context.Background()))
	assert.Nil(t, c.scheduler.Load())
}
