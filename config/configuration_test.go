package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValueStore(t *testing.T) {
	store := NewValueStore()
	assert.Empty(t, store.Load())
	assert.Zero(t, store.Version())

	assert.Equal(t, uint64(1), store.Store(map[string]any{"key": "value"}))
	assert.Equal(t, "value", store.Load()["key"])
	assert.Equal(t, uint64(1), store.Version())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Load()
		}()
	}
	wg.Wait()
}

func TestPathCache(t *testing.T) {
	cache := &PathCache{}

	parts := cache.GetPathSegments("a:b.c")
	assert.Equal(t, []string{"a", "b", "c"}, parts)
	assert.Equal(t, parts, cache.GetPathSegments("a:b.c"))
	assert.Equal(t, []string{"a", "b"}, cache.GetPathSegments("a::b."))
}

func TestConfiguration_SourcesOverride(t *testing.T) {
	jsonPath := writeFile(t, "app.json", `{"beans": {"logging": {"level": "info"}, "name": "json"}}`)
	yamlPath := writeFile(t, "app.yaml", "beans:\n  logging:\n    level: debug\n  limit: 5\n")

	cfg, err := NewConfigurationBuilder().
		AddJsonFile(jsonPath).
		AddYamlFile(yamlPath).
		AddYamlFile(filepath.Join(t.TempDir(), "missing.yaml"), true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Get("beans:logging:level"))
	assert.Equal(t, "json", cfg.Get("beans.name"))
	limit, err := cfg.GetInt("beans:limit")
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	assert.Equal(t, "fallback", cfg.GetWithDefault("beans:none", "fallback"))
	_, err = cfg.GetInt("beans:none")
	assert.Error(t, err)

	section := cfg.GetSection("beans:logging")
	assert.Equal(t, "debug", section.Get("level"))
}

func TestConfiguration_MissingRequiredFile(t *testing.T) {
	_, err := NewConfigurationBuilder().AddJsonFile(filepath.Join(t.TempDir(), "none.json")).Build()
	assert.Error(t, err)
}

func TestConfiguration_Environment(t *testing.T) {
	t.Setenv("BEANSTEST_SINGLETON_LIMIT", "7")
	t.Setenv("BEANSTEST_LOGGING_ENABLED", "true")
	t.Setenv("BEANSTEST_ANNOTATION_PACKAGES", "lang, org.acme")

	cfg, err := NewConfigurationBuilder().AddEnvironmentVariables("BEANSTEST_").Build()
	require.NoError(t, err)

	limit, err := cfg.GetInt("singleton:limit")
	require.NoError(t, err)
	assert.Equal(t, 7, limit)

	enabled, err := cfg.GetBool("logging:enabled")
	require.NoError(t, err)
	assert.True(t, enabled)

	assert.Equal(t, []string{"lang", "org.acme"}, cfg.GetStrings("annotation:packages"))
}

func TestConfiguration_DotEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "# comment\nBEANS_LOGGING_LEVEL=debug\nBEANS_SINGLETON_LIMIT=4\nOTHER=ignored\n")

	cfg, err := NewConfigurationBuilder().
		AddDotEnvFile(path, "BEANS_").
		AddDotEnvFile(filepath.Join(t.TempDir(), "missing.env"), "BEANS_", true).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Get("logging:level"))
	limit, err := cfg.GetInt("singleton:limit")
	require.NoError(t, err)
	assert.Equal(t, 4, limit)
	assert.Empty(t, cfg.Get("other"))

	_, err = NewConfigurationBuilder().AddDotEnvFile(filepath.Join(t.TempDir(), "missing.env"), "").Build()
	assert.Error(t, err)
}

func TestConfiguration_Bind(t *testing.T) {
	type settings struct {
		Level    string   `json:"level"`
		Packages []string `json:"packages"`
		Limit    int      `json:"limit"`
	}

	cfg, err := NewConfigurationBuilder().AddInMemory(map[string]any{
		"section": map[string]any{
			"level":    "warn",
			"packages": []any{"a", "b"},
			"limit":    3,
		},
	}).Build()
	require.NoError(t, err)

	s, err := Get[settings](cfg, "section")
	require.NoError(t, err)
	assert.Equal(t, settings{Level: "warn", Packages: []string{"a", "b"}, Limit: 3}, s)
	assert.Equal(t, []string{"a", "b"}, cfg.GetStrings("section:packages"))

	_, err = Get[settings](cfg, "missing")
	assert.Error(t, err)

	fallback, err := GetOrDefault(cfg, "missing", settings{Level: "info"})
	require.NoError(t, err)
	assert.Equal(t, "info", fallback.Level)

	partial, err := GetOrDefault(cfg, "section", settings{Limit: 100})
	require.NoError(t, err)
	assert.Equal(t, 3, partial.Limit)
}

func TestConfiguration_GetAllIsCopy(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 1}}
	cfg, err := NewConfigurationBuilder().AddInMemory(data).Build()
	require.NoError(t, err)

	all := cfg.GetAll()
	all["a"].(map[string]any)["b"] = 2
	data["a"].(map[string]any)["b"] = 3

	assert.Equal(t, "1", cfg.Get("a:b"))
}

func TestLoad(t *testing.T) {
	yamlPath := writeFile(t, "beans.yml", "beans:\n  name: file\n  limit: 1\n  level: info\n")
	envPath := writeFile(t, ".env", "LOADTEST_BEANS_LIMIT=9\nLOADTEST_BEANS_LEVEL=warn\n")
	t.Setenv("LOADTEST_BEANS_LIMIT", "2")

	cfg, err := Load(
		WithFiles(yamlPath, filepath.Join(t.TempDir(), "absent.json")),
		WithDotEnv(envPath),
		WithOptionalFiles(),
		WithEnvPrefix("LOADTEST_"),
		WithOverrides(map[string]any{"beans": map[string]any{"name": "override"}}),
	)
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.Get("beans:name"))
	assert.Equal(t, "2", cfg.Get("beans:limit"))
	assert.Equal(t, "warn", cfg.Get("beans:level"))

	_, err = Load(WithFiles("config.toml"))
	assert.Error(t, err)
}

func TestOptionsCache_Reload(t *testing.T) {
	type logging struct {
		Level string `json:"level"`
	}
	path := writeFile(t, "reload.yaml", "logging:\n  level: info\n")

	cfg, err := NewConfigurationBuilder().AddYamlFile(path).BuildReloadable()
	require.NoError(t, err)

	cache, err := NewOptionsCache(cfg, "logging", logging{Level: "none"})
	require.NoError(t, err)
	monitor := NewOptionMonitor(cache)
	assert.Equal(t, "info", monitor.Value().Level)

	var changed []string
	monitor.OnChange(func(l logging) { changed = append(changed, l.Level) })

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))
	require.NoError(t, cfg.Reload())
	assert.Equal(t, "debug", monitor.Value().Level)
	assert.Equal(t, []string{"debug"}, changed)

	// 重载失败时保留原数据
	require.NoError(t, os.WriteFile(path, []byte("logging: [unclosed"), 0o644))
	assert.Error(t, cfg.Reload())
	assert.Equal(t, "debug", cfg.Get("logging:level"))

	assert.Equal(t, 42, NewOption(42).Value())
}

type fakeKV struct {
	kvs []*mvccpb.KeyValue
	key string
}

func (f *fakeKV) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.key = key
	return &clientv3.GetResponse{Kvs: f.kvs}, nil
}

func TestEtcdSource(t *testing.T) {
	kv := &fakeKV{kvs: []*mvccpb.KeyValue{
		{Key: []byte("/beans/singleton/suppressedErrorLimit"), Value: []byte("10")},
		{Key: []byte("/beans/logging"), Value: []byte(`{"level": "warn"}`)},
		{Key: []byte("/beans/annotation/filterPackages"), Value: []byte("- lang\n- org.acme\n")},
		{Key: []byte("/beans/name"), Value: []byte("plain text")},
		{Key: []byte("/beans"), Value: []byte("ignored")},
	}}

	cfg, err := NewConfigurationBuilder().
		Add(&EtcdSource{Options: EtcdOptions{Prefix: "/beans"}, Client: kv}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "/beans", kv.key)
	limit, err := cfg.GetInt("singleton:suppressedErrorLimit")
	require.NoError(t, err)
	assert.Equal(t, 10, limit)
	assert.Equal(t, "warn", cfg.Get("logging:level"))
	assert.Equal(t, []string{"lang", "org.acme"}, cfg.GetStrings("annotation:filterPackages"))
	assert.Equal(t, "plain text", cfg.Get("name"))
}

type fakeWatchKV struct {
	fakeKV
	events chan clientv3.WatchResponse
}

func (f *fakeWatchKV) Watch(context.Context, string, ...clientv3.OpOption) clientv3.WatchChan {
	return f.events
}

func (f *fakeWatchKV) RequestProgress(context.Context) error { return nil }

func (f *fakeWatchKV) Close() error { return nil }

func TestEtcdSource_Watch(t *testing.T) {
	kv := &fakeWatchKV{
		fakeKV: fakeKV{kvs: []*mvccpb.KeyValue{{Key: []byte("/app/level"), Value: []byte("info")}}},
		events: make(chan clientv3.WatchResponse),
	}
	cfg, err := NewConfigurationBuilder().
		AddInMemory(map[string]any{"name": "static"}).
		Add(&EtcdSource{Options: EtcdOptions{Prefix: "/app"}, Client: kv}).
		BuildReloadable()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Get("level"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan error, 1)
	require.NoError(t, cfg.Watch(ctx, func() {
		reloaded <- cfg.Reload()
	}))

	kv.kvs = []*mvccpb.KeyValue{{Key: []byte("/app/level"), Value: []byte("debug")}}
	kv.events <- clientv3.WatchResponse{}
	kv.events <- clientv3.WatchResponse{Events: []*clientv3.Event{{Type: mvccpb.PUT}}}

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not trigger a reload")
	}
	assert.Equal(t, "debug", cfg.Get("level"))
	assert.Equal(t, "static", cfg.Get("name"))
	close(kv.events)
}

func TestEtcdSource_WatchUnsupportedClient(t *testing.T) {
	source := &EtcdSource{Options: EtcdOptions{Prefix: "/app"}, Client: &fakeKV{}}
	assert.Error(t, source.Watch(context.Background(), func() {}))
}

func BenchmarkConfigGet(b *testing.B) {
	config, _ := NewConfigurationBuilder().AddInMemory(map[string]any{
		"server": map[string]any{
			"host": "localhost",
			"port": 8080,
		},
	}).BuildReloadable()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		config.Get("server:host")
	}
}
