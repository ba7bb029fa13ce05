package server

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Group 统一管理多个服务器
type Group struct {
	managers []*Manager
	logger   *zap.Logger
}

// NewGroup 创建服务器组，nil Manager 会被忽略
func NewGroup(logger *zap.Logger, managers ...*Manager) *Group {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Group{logger: logger.With(zap.String("component", "server_group"))}
	for _, m := range managers {
		if m != nil {
			g.managers = append(g.managers, m)
		}
	}
	return g
}

// Start 依次启动；任一失败时关闭已启动的服务器
func (g *Group) Start() error {
	for i, m := range g.managers {
		if err := m.Start(); err != nil {
			for _, started := range g.managers[:i] {
				_ = started.Shutdown(context.Background())
			}
			return err
		}
	}
	return nil
}

// Wait 阻塞到收到 SIGINT/SIGTERM、ctx 结束或任一服务器异常退出。
// 服务器异常时返回该错误。
func (g *Group) Wait(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, len(g.managers))
	for _, m := range g.managers {
		go func(m *Manager) {
			select {
			case err := <-m.Errors():
				errCh <- err
			case <-ctx.Done():
			}
		}(m)
	}

	select {
	case <-ctx.Done():
		g.logger.Info("shutdown requested", zap.Error(context.Cause(ctx)))
		return nil
	case err := <-errCh:
		g.logger.Error("server exited unexpectedly", zap.Error(err))
		return err
	}
}

// Shutdown 并发关闭所有服务器，单个失败不影响其他服务器排空
func (g *Group) Shutdown(ctx context.Context) error {
	var eg errgroup.Group
	for _, m := range g.managers {
		eg.Go(func() error {
			return m.Shutdown(ctx)
		})
	}
	return eg.Wait()
}
