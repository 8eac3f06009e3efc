package server

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Run 启动所有服务器并阻塞，直到 ctx 结束或任一服务器异常退出，随后关闭全部服务器。
// ctx 正常结束时返回 nil。
func Run(ctx context.Context, logger *zap.Logger, managers ...*Manager) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	started := make([]*Manager, 0, len(managers))
	var runErr error
	for _, m := range managers {
		if err := m.Start(); err != nil {
			runErr = fmt.Errorf("start %s: %w", m.Name(), err)
			break
		}
		started = append(started, m)
	}

	if runErr == nil {
		failed := make(chan error, 1)
		for _, m := range started {
			go func() {
				select {
				case err := <-m.Errors():
					select {
					case failed <- fmt.Errorf("%s: %w", m.Name(), err):
					default:
					}
				case <-ctx.Done():
				}
			}()
		}

		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
		case runErr = <-failed:
			logger.Error("server exited unexpectedly", zap.Error(runErr))
		}
	}

	// 关闭使用独立上下文，父 ctx 此时可能已结束
	errs := []error{runErr}
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Shutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", started[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
