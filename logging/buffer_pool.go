package logging

import (
	"bytes"
	"sync"
)

// maxPooledBuffer 超过该容量的 buffer 不再归还，避免偶发的大条目长期占用内存
const maxPooledBuffer = 64 << 10

// BufferPool 格式化用的字节缓冲池
type BufferPool struct {
	pool sync.Pool
}

// NewBufferPool 创建新的缓冲池
func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any { return bytes.NewBuffer(make([]byte, 0, 256)) },
		},
	}
}

// Get 获取一个空 buffer
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put 归还 buffer
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b.Cap() > maxPooledBuffer {
		return
	}
	b.Reset()
	p.pool.Put(b)
}

// GlobalBufferPool 全局缓冲池实例
var GlobalBufferPool = NewBufferPool()
