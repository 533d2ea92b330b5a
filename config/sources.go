package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// JsonFileSource JSON 文件配置源
type JsonFileSource struct {
	Path     string
	Optional bool
}

func (s *JsonFileSource) Name() string {
	return fmt.Sprintf("JsonFile(%s)", s.Path)
}

func (s *JsonFileSource) Load() (map[string]any, error) {
	data, err := readOptional(s.Path, s.Optional)
	if err != nil || data == nil {
		return make(map[string]any), err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return result, nil
}

// YamlFileSource YAML 文件配置源
type YamlFileSource struct {
	Path     string
	Optional bool
}

func (s *YamlFileSource) Name() string {
	return fmt.Sprintf("YamlFile(%s)", s.Path)
}

func (s *YamlFileSource) Load() (map[string]any, error) {
	data, err := readOptional(s.Path, s.Optional)
	if err != nil || data == nil {
		return make(map[string]any), err
	}

	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if result == nil {
		result = make(map[string]any)
	}
	return result, nil
}

// readOptional 可选文件不存在时返回 nil, nil
func readOptional(path string, optional bool) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// EnvironmentVariableSource 环境变量配置源。
// BEANS_SINGLETON_LIMIT=5 在前缀为 BEANS_ 时得到 singleton:limit = 5
type EnvironmentVariableSource struct {
	Prefix string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]any, error) {
	result := make(map[string]any)

	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		setEnvValue(result, s.Prefix, key, value)
	}

	return result, nil
}

// DotEnvFileSource .env 文件配置源，键的转换规则与环境变量相同
type DotEnvFileSource struct {
	Path     string
	Prefix   string
	Optional bool
}

func (s *DotEnvFileSource) Name() string {
	return fmt.Sprintf("DotEnvFile(%s)", s.Path)
}

func (s *DotEnvFileSource) Load() (map[string]any, error) {
	result := make(map[string]any)

	values, err := godotenv.Read(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	for key, value := range values {
		setEnvValue(result, s.Prefix, key, value)
	}
	return result, nil
}

// setEnvValue 去掉前缀后转换为小写（保持与 JSON 配置一致），并将 _ 转换为 :
func setEnvValue(result map[string]any, prefix, key, value string) {
	if prefix != "" {
		if !strings.HasPrefix(key, prefix) {
			return
		}
		key = strings.TrimPrefix(key, prefix)
	}
	if key == "" {
		return
	}
	key = strings.ReplaceAll(strings.ToLower(key), "_", ":")
	setNestedValue(result, key, parseScalar(value))
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load() (map[string]any, error) {
	// 返回副本
	result := make(map[string]any)
	mergeMaps(result, s.Data)
	return result, nil
}

// setNestedValue 设置嵌套值
func setNestedValue(data map[string]any, path string, value any) {
	parts := strings.Split(path, ":")
	current := data

	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		m, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = m
	}

	current[parts[len(parts)-1]] = value
}

// parseScalar 尝试把字符串转换为整数、浮点数或布尔值，否则保持为字符串
func parseScalar(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// EtcdOptions etcd 配置选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 读取超时时间（默认 5 秒）
	DialTimeout time.Duration // 拨号超时时间（默认 5 秒）
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return b.Add(&EtcdSource{Options: opts})
}

// KV etcd 读取接口，*clientv3.Client 满足该接口
type KV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// EtcdSource etcd 配置源。Client 为空时每次加载都会新建并关闭一个客户端
type EtcdSource struct {
	Options EtcdOptions
	Client  KV
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) newClient() (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return cli, nil
}

// prefix 获取指定前缀下的所有配置
func (s *EtcdSource) prefix() string {
	if s.Options.Prefix == "" {
		return "/"
	}
	return s.Options.Prefix
}

func (s *EtcdSource) Load() (map[string]any, error) {
	kv := s.Client
	if kv == nil {
		cli, err := s.newClient()
		if err != nil {
			return nil, err
		}
		defer cli.Close()
		kv = cli
	}

	timeout := s.Options.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := kv.Get(ctx, s.prefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get config from etcd: %w", err)
	}

	result := make(map[string]any)
	for _, item := range resp.Kvs {
		key := strings.TrimPrefix(strings.TrimPrefix(string(item.Key), s.Options.Prefix), "/")
		if key == "" {
			continue
		}
		// 将路径分隔符 / 转换为 :
		setNestedValue(result, strings.ReplaceAll(key, "/", ":"), decodeValue(item.Value))
	}

	return result, nil
}

// Watch 监听前缀下的变更，每批事件调用一次 onChange，直到 ctx 取消。
// Client 为空时新建一个客户端并在 ctx 取消后关闭；非空时必须实现 clientv3.Watcher
func (s *EtcdSource) Watch(ctx context.Context, onChange func()) error {
	var watcher clientv3.Watcher
	var closer func() error
	if s.Client == nil {
		cli, err := s.newClient()
		if err != nil {
			return err
		}
		watcher, closer = cli, cli.Close
	} else {
		w, ok := s.Client.(clientv3.Watcher)
		if !ok {
			return fmt.Errorf("%s: client does not support watch", s.Name())
		}
		watcher = w
	}

	ch := watcher.Watch(ctx, s.prefix(), clientv3.WithPrefix())
	go func() {
		if closer != nil {
			defer closer()
		}
		for resp := range ch {
			if resp.Err() != nil || len(resp.Events) == 0 {
				continue
			}
			onChange()
		}
	}()
	return nil
}

// decodeValue 依次尝试 JSON、YAML，都失败时作为普通字符串
func decodeValue(raw []byte) any {
	var jsonValue any
	if err := json.Unmarshal(raw, &jsonValue); err == nil {
		return jsonValue
	}
	var yamlValue any
	if err := yaml.Unmarshal(raw, &yamlValue); err == nil && yamlValue != nil {
		return yamlValue
	}
	return string(raw)
}
