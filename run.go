package beans

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gocrud/beans/logging"
)

// ShutdownTimeout Run 关闭容器时的超时时间
var ShutdownTimeout = 5 * time.Second

// Run 构建并启动容器，阻塞到 ctx 取消或收到退出信号，然后关闭容器
func Run(ctx context.Context, b *Builder) error {
	c, err := b.Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		c.logger.Error("Failed to start container", logging.Err(err))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		_ = c.Close(shutdownCtx)
		return err
	}

	<-ctx.Done()

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return c.Close(shutdownCtx)
}
