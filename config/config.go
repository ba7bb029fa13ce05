package config

import (
	"fmt"
	"time"

	"github.com/BaSui01/askall/auth"
	"github.com/BaSui01/askall/automator"
	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/cache"
	"github.com/BaSui01/askall/internal/database"
	"github.com/BaSui01/askall/retry"
	"github.com/BaSui01/askall/types"
)

// Config 是 askall 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Browser 浏览器会话配置
	Browser browser.Config `yaml:"browser" env:"BROWSER"`

	// Platforms 各平台入口覆盖
	Platforms PlatformsConfig `yaml:"platforms" env:"PLATFORMS"`

	// Auth 身份提供方账号与等待时间
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// Timeouts 自动化各步骤超时
	Timeouts automator.Timeouts `yaml:"timeouts" env:"TIMEOUTS"`

	// Retry 填写提交步骤的重试
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Cache 回答缓存
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口，0 表示不启动
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需覆盖一次完整批次
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// API Keys，为空时不鉴权
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 每个 IP 的请求速率
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发上限
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// PlatformsConfig 平台入口 URL 覆盖，空串使用内置值
type PlatformsConfig struct {
	ClaudeURL string `yaml:"claude_url" env:"CLAUDE_URL"`
	OpenAIURL string `yaml:"openai_url" env:"OPENAI_URL"`
	GeminiURL string `yaml:"gemini_url" env:"GEMINI_URL"`
}

// URL 返回平台的覆盖地址
func (p PlatformsConfig) URL(platform types.Platform) string {
	switch platform {
	case types.PlatformClaude:
		return p.ClaudeURL
	case types.PlatformOpenAI:
		return p.OpenAIURL
	case types.PlatformGemini:
		return p.GeminiURL
	default:
		return ""
	}
}

// AuthConfig 身份提供方配置
type AuthConfig struct {
	Identity    string        `yaml:"identity" env:"IDENTITY"`
	Secret      string        `yaml:"secret" env:"SECRET"`
	SecretProbe time.Duration `yaml:"secret_probe" env:"SECRET_PROBE"`
	ManualWait  time.Duration `yaml:"manual_wait" env:"MANUAL_WAIT"`
	PopupWait   time.Duration `yaml:"popup_wait" env:"POPUP_WAIT"`
}

// Credentials 账号
func (a AuthConfig) Credentials() auth.Credentials {
	return auth.Credentials{Identity: a.Identity, Secret: a.Secret}
}

// FlowTimeouts 登录流程等待时间
func (a AuthConfig) FlowTimeouts() auth.Timeouts {
	return auth.Timeouts{SecretProbe: a.SecretProbe, ManualWait: a.ManualWait, PopupWait: a.PopupWait}
}

// RetryConfig 重试配置
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	Delay      time.Duration `yaml:"delay" env:"DELAY"`
}

// Policy 转换为重试策略
func (r RetryConfig) Policy() *retry.Policy {
	return &retry.Policy{MaxRetries: r.MaxRetries, Delay: r.Delay}
}

// Cache backends
const (
	CacheBackendFile  = "file"
	CacheBackendRedis = "redis"
	CacheBackendSQL   = "sql"
)

// CacheConfig 缓存配置
type CacheConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 后端: file, redis, sql
	Backend string `yaml:"backend" env:"BACKEND"`
	// file 后端目录
	Dir string `yaml:"dir" env:"DIR"`
	// 有效期
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 本地 LRU 条目数，0 表示关闭
	LocalSize int `yaml:"local_size" env:"LOCAL_SIZE"`
	// Redis 后端
	Redis cache.RedisConfig `yaml:"redis" env:"REDIS"`
	// SQL 后端
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: sqlite, postgres, mysql
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名，sqlite 时为文件路径
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 连接池
	Pool database.PoolConfig `yaml:"pool" env:"POOL"`
}

// DSN 返回数据库连接字符串
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite", "":
		return d.Name
	default:
		return ""
	}
}

// SQLConfig 转换为缓存 SQL 配置
func (d DatabaseConfig) SQLConfig() cache.SQLConfig {
	return cache.SQLConfig{Driver: d.Driver, DSN: d.DSN(), Pool: d.Pool}
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}
