package logging

import (
	"sync"
	"time"
)

// MemoryLoggerProvider 内存日志提供者，保留所有条目，主要用于测试断言
type MemoryLoggerProvider struct {
	mu           sync.RWMutex
	entries      []LogEntry
	minimumLevel LogLevel
}

// NewMemoryLoggerProvider 创建内存日志提供者
func NewMemoryLoggerProvider() *MemoryLoggerProvider {
	return &MemoryLoggerProvider{minimumLevel: LogLevelTrace}
}

func (p *MemoryLoggerProvider) CreateLogger(category string) Logger {
	return &memoryLogger{provider: p, category: category}
}

func (p *MemoryLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.minimumLevel = level
}

// Entries 返回已记录条目的副本
func (p *MemoryLoggerProvider) Entries() []LogEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]LogEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Filter 返回指定级别及以上的条目
func (p *MemoryLoggerProvider) Filter(level LogLevel) []LogEntry {
	var out []LogEntry
	for _, e := range p.Entries() {
		if e.Level >= level {
			out = append(out, e)
		}
	}
	return out
}

// Reset 清空已记录条目
func (p *MemoryLoggerProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = nil
}

func (p *MemoryLoggerProvider) append(entry LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry.Level < p.minimumLevel {
		return
	}
	p.entries = append(p.entries, entry)
}

type memoryLogger struct {
	provider *MemoryLoggerProvider
	category string
	fields   []Field
}

func (l *memoryLogger) Trace(msg string, fields ...Field) { l.Log(LogLevelTrace, msg, fields...) }
func (l *memoryLogger) Debug(msg string, fields ...Field) { l.Log(LogLevelDebug, msg, fields...) }
func (l *memoryLogger) Info(msg string, fields ...Field)  { l.Log(LogLevelInfo, msg, fields...) }
func (l *memoryLogger) Warn(msg string, fields ...Field)  { l.Log(LogLevelWarn, msg, fields...) }
func (l *memoryLogger) Error(msg string, fields ...Field) { l.Log(LogLevelError, msg, fields...) }

// Fatal 在内存提供者中只记录，不退出进程
func (l *memoryLogger) Fatal(msg string, fields ...Field) { l.Log(LogLevelFatal, msg, fields...) }

func (l *memoryLogger) Log(level LogLevel, msg string, fields ...Field) {
	l.provider.append(LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *memoryLogger) WithFields(fields ...Field) Logger {
	return &memoryLogger{provider: l.provider, category: l.category, fields: mergeFields(l.fields, fields)}
}

func (l *memoryLogger) WithCategory(category string) Logger {
	return &memoryLogger{provider: l.provider, category: category, fields: l.fields}
}
