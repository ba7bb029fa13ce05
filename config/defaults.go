package config

import (
	"time"

	"github.com/BaSui01/askall/auth"
	"github.com/BaSui01/askall/automator"
	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/cache"
	"github.com/BaSui01/askall/internal/database"
	"github.com/BaSui01/askall/retry"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Browser:   browser.DefaultConfig(),
		Auth:      DefaultAuthConfig(),
		Timeouts:  automator.DefaultTimeouts(),
		Retry:     DefaultRetryConfig(),
		Cache:     DefaultCacheConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    1,
		RateLimitBurst:  3,
	}
}

// DefaultAuthConfig 返回默认登录配置，账号需由 YAML 或环境变量提供
func DefaultAuthConfig() AuthConfig {
	t := auth.DefaultTimeouts()
	return AuthConfig{
		SecretProbe: t.SecretProbe,
		ManualWait:  t.ManualWait,
		PopupWait:   t.PopupWait,
	}
}

// DefaultRetryConfig 返回默认重试配置
func DefaultRetryConfig() RetryConfig {
	p := retry.DefaultPolicy()
	return RetryConfig{MaxRetries: p.MaxRetries, Delay: p.Delay}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:   true,
		Backend:   CacheBackendFile,
		Dir:       ".cache/responses",
		TTL:       cache.DefaultTTL,
		LocalSize: 256,
		Redis: cache.RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Name:   ".cache/responses.db",
			Port:   5432,
			Pool:   database.DefaultPoolConfig(),
		},
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "askall",
		SampleRate:   0.1,
	}
}
