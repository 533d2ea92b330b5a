package logging

import (
	"io"
	"os"
	"sync"
)

// LoggingBuilder 日志构建器
type LoggingBuilder struct {
	providers    []LoggerProvider
	minimumLevel LogLevel
	mu           sync.RWMutex
}

// NewLoggingBuilder 创建日志构建器
func NewLoggingBuilder() *LoggingBuilder {
	return &LoggingBuilder{
		providers:    make([]LoggerProvider, 0),
		minimumLevel: LogLevelInfo,
	}
}

// SetMinimumLevel 设置最小日志级别
func (b *LoggingBuilder) SetMinimumLevel(level LogLevel) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minimumLevel = level
	return b
}

// AddProvider 添加日志提供者
func (b *LoggingBuilder) AddProvider(provider LoggerProvider) *LoggingBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.providers = append(b.providers, provider)
	return b
}

// AddConsole 添加控制台日志（文本格式，stdout）
func (b *LoggingBuilder) AddConsole(options ...ConsoleLoggerOptions) *LoggingBuilder {
	opts := ConsoleLoggerOptions{
		Formatter: &TextFormatter{
			IncludeTimestamp: true,
			TimestampFormat:  "2006-01-02 15:04:05",
			ColorOutput:      true,
		},
		Output: os.Stdout,
	}
	if len(options) > 0 {
		opts = options[0]
	}
	return b.AddProvider(NewConsoleLoggerProvider(opts))
}

// AddJson 添加 JSON 格式输出
func (b *LoggingBuilder) AddJson(w io.Writer) *LoggingBuilder {
	return b.AddProvider(NewConsoleLoggerProvider(ConsoleLoggerOptions{
		Formatter: NewJsonFormatter(),
		Output:    w,
	}))
}

// Build 构建日志工厂
func (b *LoggingBuilder) Build() LoggerFactory {
	b.mu.RLock()
	defer b.mu.RUnlock()

	factory := newLoggerFactory(b.minimumLevel)

	for _, provider := range b.providers {
		factory.AddProvider(provider)
	}

	return factory
}
