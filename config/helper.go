package config

// Get 绑定指定节的配置到新的 T；section 为空时绑定整个配置
func Get[T any](cfg Configuration, section string) (T, error) {
	var t T
	err := cfg.Bind(section, &t)
	return t, err
}

// GetOrDefault 与 Get 相同，但节不存在时返回 fallback 而不是错误
func GetOrDefault[T any](cfg Configuration, section string, fallback T) (T, error) {
	if section != "" && cfg.Get(section) == "" {
		return fallback, nil
	}
	t := fallback
	err := cfg.Bind(section, &t)
	return t, err
}
