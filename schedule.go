package beans

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/gocrud/beans/logging"
)

// reloadScheduler 按 cron 表达式定期重新加载配置，用于没有监听能力的文件类配置源
type reloadScheduler struct {
	cron   *cron.Cron
	spec   string
	logger logging.Logger
}

// parseSchedule 校验表达式，支持标准五段格式和 @every 1m 之类的描述符
func parseSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("beans: invalid config.reloadSchedule %q: %w", spec, err)
	}
	return nil
}

func newReloadScheduler(spec string, logger logging.Logger, reload func() error) (*reloadScheduler, error) {
	s := &reloadScheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(newCronLogger(logger)))),
		spec:   spec,
		logger: logger,
	}
	_, err := s.cron.AddFunc(spec, func() {
		logger.Debug("Scheduled configuration reload", logging.F("schedule", spec))
		_ = reload()
	})
	if err != nil {
		return nil, fmt.Errorf("beans: failed to schedule configuration reload: %w", err)
	}
	return s, nil
}

func (s *reloadScheduler) start() {
	s.logger.Info("Configuration reload scheduled", logging.F("schedule", s.spec))
	s.cron.Start()
}

// stop 停止调度并等待正在执行的重载结束，或 ctx 超时
func (s *reloadScheduler) stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger 把 cron 的日志接口适配到 logging.Logger
type cronLogger struct {
	logger logging.Logger
}

func newCronLogger(logger logging.Logger) cron.Logger {
	return &cronLogger{logger: logger}
}

func (l *cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, convertToFields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(convertToFields(keysAndValues), logging.Err(err))...)
}

func convertToFields(keysAndValues []any) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
