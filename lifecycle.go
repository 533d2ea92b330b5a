package beans

import (
	"context"
	"errors"
	"sync"

	"github.com/gocrud/beans/logging"
)

// Lifecycle 管理容器的启动和停止钩子
type Lifecycle struct {
	onStart []func(context.Context) error
	onStop  []func(context.Context) error
	logger  logging.Logger
	mu      sync.Mutex
}

// NewLifecycle 创建新的生命周期管理器
func NewLifecycle(logger logging.Logger) *Lifecycle {
	return &Lifecycle{logger: logging.OrNop(logger)}
}

// OnStart 注册启动钩子
func (l *Lifecycle) OnStart(fn func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStart = append(l.onStart, fn)
}

// OnStop 注册停止钩子
func (l *Lifecycle) OnStop(fn func(context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onStop = append(l.onStop, fn)
}

// Start 按注册顺序执行启动钩子，遇到第一个错误即返回
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	hooks := append([]func(context.Context) error(nil), l.onStart...)
	l.mu.Unlock()

	for _, fn := range hooks {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop 倒序执行停止钩子。失败不会中断其余钩子，所有错误合并返回
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	hooks := append([]func(context.Context) error(nil), l.onStop...)
	l.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i](ctx); err != nil {
			l.logger.Error("Stop hook failed", logging.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
