package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🌐 HTTP 服务器管理器
// =============================================================================

// maxHeaderBytes 提问放在 body 里，请求头只有鉴权与追踪字段
const maxHeaderBytes = 64 << 10

// Config 单个监听端口的配置
type Config struct {
	Addr        string
	ReadTimeout time.Duration
	// BatchTimeout 一次完整批次的上限，用作写超时
	BatchTimeout time.Duration
	// ShutdownTimeout 排空等待；超时后取消仍在运行的批次
	ShutdownTimeout time.Duration
}

// Manager 封装一个 http.Server。
// 所有请求上下文派生自 Manager 持有的 batches；排空超时后取消它，
// 批次中的自动化步骤随之结束并关闭浏览器会话。
type Manager struct {
	name     string
	server   *http.Server
	listener net.Listener
	errCh    chan error
	config   Config
	logger   *zap.Logger

	batches context.Context
	abort   context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewManager 创建服务器管理器，name 用于日志区分
func NewManager(name string, handler http.Handler, config Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	batches, abort := context.WithCancel(context.Background())
	m := &Manager{
		name:    name,
		errCh:   make(chan error, 1),
		config:  config,
		logger:  logger.With(zap.String("component", "http_server"), zap.String("server", name)),
		batches: batches,
		abort:   abort,
	}
	m.server = &http.Server{
		Addr:              config.Addr,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadTimeout,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.BatchTimeout,
		IdleTimeout:       2 * config.ReadTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return m.batches },
	}
	return m
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Start 启动服务器（非阻塞）
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("%s server is closed", m.name)
	}
	if m.listener != nil {
		return fmt.Errorf("%s server already started", m.name)
	}

	listener, err := net.Listen("tcp", m.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.Addr, err)
	}

	m.listener = listener
	m.logger.Info("starting HTTP server",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("batch_timeout", m.config.BatchTimeout),
	)

	go m.serve(listener)
	return nil
}

func (m *Manager) serve(listener net.Listener) {
	if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("HTTP server failed", zap.Error(err))
		select {
		case m.errCh <- fmt.Errorf("%s server: %w", m.name, err):
		default:
		}
	}
}

// Shutdown 停止接收新请求并等待进行中的批次完成，可重复调用。
// 等待超过 ShutdownTimeout（或 ctx 结束）时取消剩余批次、强制断开连接并返回超时错误。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	defer m.abort()

	m.logger.Info("draining HTTP server", zap.Duration("timeout", m.config.ShutdownTimeout))

	drainCtx, cancel := ctx, context.CancelFunc(func() {})
	if m.config.ShutdownTimeout > 0 {
		drainCtx, cancel = context.WithTimeout(ctx, m.config.ShutdownTimeout)
	}
	defer cancel()

	err := m.server.Shutdown(drainCtx)
	if err == nil {
		m.logger.Info("HTTP server stopped")
		return nil
	}

	m.logger.Warn("drain timed out, aborting in-flight batches", zap.Error(err))
	m.abort()
	if cerr := m.server.Close(); cerr != nil {
		m.logger.Error("HTTP server close failed", zap.Error(cerr))
	}
	return err
}

// Errors returns asynchronous server errors.
func (m *Manager) Errors() <-chan error {
	return m.errCh
}

// Addr 返回监听地址；启动后为实际地址
func (m *Manager) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener != nil {
		return m.listener.Addr().String()
	}
	return m.config.Addr
}

// IsRunning 已启动且尚未关闭
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener != nil && !m.closed
}
