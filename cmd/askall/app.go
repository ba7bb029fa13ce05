package main

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/askall/auth"
	"github.com/BaSui01/askall/automator"
	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/cache"
	"github.com/BaSui01/askall/config"
	"github.com/BaSui01/askall/internal/metrics"
	"github.com/BaSui01/askall/internal/telemetry"
	"github.com/BaSui01/askall/orchestrator"
	"github.com/BaSui01/askall/retry"
	"github.com/BaSui01/askall/types"
)

// app 一次进程内组装好的查询流水线
type app struct {
	orchestrator *orchestrator.Orchestrator
	sessions     *browser.SessionManager
	cache        *cache.ResponseCache
}

// Close 释放缓存后端
func (a *app) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

// buildApp 按配置组装 SessionManager、三个自动化器、缓存与编排器。
// collector 为 nil 时不记录 Prometheus 指标。
func buildApp(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*app, error) {
	a := &app{}

	var (
		automatorObs automator.Observer
		cacheObs     cache.Observer
		orchObs      orchestrator.Observer
	)
	if collector != nil {
		automatorObs, cacheObs, orchObs = collector, collector, collector
	}

	var responses orchestrator.Cache
	if cfg.Cache.Enabled {
		store, err := openStore(cfg.Cache, logger)
		if err != nil {
			return nil, err
		}
		opts := []cache.Option{
			cache.WithTTL(cfg.Cache.TTL),
			cache.WithLocalSize(cfg.Cache.LocalSize),
			cache.WithLogger(logger),
		}
		if cacheObs != nil {
			opts = append(opts, cache.WithObserver(cacheObs))
		}
		a.cache = cache.New(store, opts...)
		responses = a.cache
	} else {
		logger.Info("response cache disabled")
	}

	flow := auth.NewFlow(logger, auth.WithTimeouts(cfg.Auth.FlowTimeouts()))
	creds := cfg.Auth.Credentials()
	if creds.Empty() {
		logger.Warn("no identity provider credentials configured, logins will wait for manual completion")
	}

	runners := make([]orchestrator.Runner, 0, len(types.Platforms()))
	for _, desc := range automator.Descriptors() {
		if url := cfg.Platforms.URL(desc.Platform); url != "" {
			desc = desc.WithEntryURL(url)
		}

		policy := cfg.Retry.Policy()
		if collector != nil {
			platform := desc.Platform
			policy.OnRetry = func(int, error, time.Duration) { collector.RecordRetry(platform) }
		}

		opts := []automator.Option{
			automator.WithAuth(flow, creds),
			automator.WithRetryer(retry.NewRetryer(policy, logger)),
			automator.WithTimeouts(cfg.Timeouts),
			automator.WithLogger(logger),
		}
		if automatorObs != nil {
			opts = append(opts, automator.WithObserver(automatorObs))
		}
		runners = append(runners, automator.New(desc, opts...))
	}

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if orchObs != nil {
		orchOpts = append(orchOpts, orchestrator.WithObserver(orchObs))
	}
	a.sessions = browser.NewSessionManager(cfg.Browser, logger)
	a.orchestrator = orchestrator.New(
		a.sessions,
		runners,
		responses,
		orchOpts...,
	)
	return a, nil
}

// deployment 描述本进程，用作遥测 resource
func deployment(cfg *config.Config, mode string) telemetry.Deployment {
	return telemetry.Deployment{
		Version:   Version,
		Mode:      mode,
		Platforms: types.Platforms(),
		Browser:   cfg.Browser,
	}
}

// openStore 按 backend 打开缓存持久化层
func openStore(cfg config.CacheConfig, logger *zap.Logger) (cache.Store, error) {
	switch cfg.Backend {
	case config.CacheBackendFile, "":
		store, err := cache.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("open file cache: %w", err)
		}
		logger.Info("response cache ready", zap.String("backend", "file"), zap.String("dir", store.Dir()))
		return store, nil
	case config.CacheBackendRedis:
		store, err := cache.NewRedisStore(cfg.Redis, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("open redis cache: %w", err)
		}
		logger.Info("response cache ready", zap.String("backend", "redis"), zap.String("addr", cfg.Redis.Addr))
		return store, nil
	case config.CacheBackendSQL:
		store, err := cache.NewSQLStore(cfg.Database.SQLConfig(), cfg.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("open sql cache: %w", err)
		}
		logger.Info("response cache ready", zap.String("backend", "sql"), zap.String("driver", cfg.Database.Driver))
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}
