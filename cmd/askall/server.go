package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/askall/api/handlers"
	"github.com/BaSui01/askall/config"
	"github.com/BaSui01/askall/internal/metrics"
	"github.com/BaSui01/askall/internal/server"
	"github.com/BaSui01/askall/internal/telemetry"
)

// skipAuthPaths 不需要 API Key 的路径
var skipAuthPaths = []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

// =============================================================================
// 🖥️ Server
// =============================================================================

// Server 是 askall 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	app       *app
	telemetry *telemetry.Providers

	healthHandler *handlers.HealthHandler
	queryHandler  *handlers.QueryHandler

	metricsCollector *metrics.Collector

	httpManager    *server.Manager
	metricsManager *server.Manager
	group          *server.Group

	// Rate limiter 清理 goroutine 的生命周期
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 组装流水线并启动 HTTP 与 metrics 服务器（非阻塞）
func (s *Server) Start() error {
	providers, err := telemetry.Init(s.cfg.Telemetry, deployment(s.cfg, telemetry.ModeServe), s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = providers

	s.metricsCollector = metrics.NewCollector("askall", s.logger)

	s.app, err = buildApp(s.cfg, s.metricsCollector, s.logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	s.initHandlers()

	s.httpManager = server.NewManager("http", s.buildHTTPHandler(), s.serverConfig(s.cfg.Server.HTTPPort), s.logger)
	if s.cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsManager = server.NewManager("metrics", mux, s.serverConfig(s.cfg.Server.MetricsPort), s.logger)
	}

	s.group = server.NewGroup(s.logger, s.httpManager, s.metricsManager)
	if err := s.group.Start(); err != nil {
		return err
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("cache_enabled", s.cfg.Cache.Enabled),
		zap.Bool("telemetry_enabled", s.telemetry.Enabled()),
	)
	return nil
}

func (s *Server) initHandlers() {
	var cachePing handlers.Pinger
	if s.app.cache != nil {
		cachePing = s.app.cache
	}
	s.healthHandler = handlers.NewHealthHandler(s.app.sessions, cachePing, s.app.orchestrator, s.logger)
	s.queryHandler = handlers.NewQueryHandler(s.app.orchestrator, s.logger)
}

// buildHTTPHandler 注册路由并套上中间件链
func (s *Server) buildHTTPHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/api/v1/query", s.queryHandler.HandleQuery)
	mux.HandleFunc("/query", s.queryHandler.HandleQuery)

	rateLimiterCtx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	return Chain(mux,
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		Observe(s.logger, s.metricsCollector, skipAuthPaths),
		APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, skipAuthPaths, s.logger),
		QueryDeadline(s.cfg.Server.WriteTimeout),
	)
}

func (s *Server) serverConfig(port int) server.Config {
	return server.Config{
		Addr:            fmt.Sprintf(":%d", port),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		BatchTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// Wait 阻塞到收到关闭信号或服务器异常退出
func (s *Server) Wait(ctx context.Context) error {
	return s.group.Wait(ctx)
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.group != nil {
		if err := s.group.Shutdown(ctx); err != nil {
			s.logger.Error("server shutdown error", zap.Error(err))
		}
	}

	if s.app != nil {
		if err := s.app.Close(); err != nil {
			s.logger.Error("cache close error", zap.Error(err))
		}
	}

	if err := s.telemetry.Shutdown(ctx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
