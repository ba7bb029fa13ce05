// =============================================================================
// 📦 askall 配置加载器
// =============================================================================
// 默认值 → YAML 文件 → 环境变量。
// 每个字段的环境变量名由 env tag 按层级拼接，如 ASKALL_BROWSER_PROFILE_DIR；
// 设置 <NAME>_FILE 时从该文件读取值（身份提供方密码、Redis/数据库密码等）。
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("askall.yaml").
//	    WithEnvPrefix("ASKALL").
//	    Load()
// =============================================================================
package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/askall/types"
)

// fileSuffix 指向密钥文件的环境变量后缀
const fileSuffix = "_FILE"

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{envPrefix: "ASKALL"}
}

// WithConfigPath 设置配置文件路径；文件不存在时使用默认值
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := loadYAML(l.configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}
	if err := overlayEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// =============================================================================
// 🌱 环境变量覆盖
// =============================================================================

// overlayEnv 按 env tag 递归覆盖结构体字段，未设置的变量保持原值
func overlayEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		tag := t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		name := prefix + "_" + tag
		field := v.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := overlayEnv(field, name); err != nil {
				return err
			}
			continue
		}

		value, ok, err := lookupEnv(name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := setField(field, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	return nil
}

// lookupEnv 优先读取 name；未设置时读取 name_FILE 指向的文件，去掉末尾换行
func lookupEnv(name string) (string, bool, error) {
	if value := os.Getenv(name); value != "" {
		return value, true, nil
	}
	path := os.Getenv(name + fileSuffix)
	if path == "" {
		return "", false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("read %s%s: %w", name, fileSuffix, err)
	}
	return strings.TrimRight(string(data), "\r\n"), true, nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 逗号分隔，用于 api_keys 与 extra_flags
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// =============================================================================
// 🔍 校验
// =============================================================================

// Validate 验证配置，一次报告全部问题
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateBrowser()...)
	errs = append(errs, c.validatePlatforms()...)
	errs = append(errs, c.validateAutomation()...)
	errs = append(errs, c.validateCache()...)

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateServer() []string {
	var errs []string
	s := c.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if s.MetricsPort < 0 || s.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if s.MetricsPort != 0 && s.MetricsPort == s.HTTPPort {
		errs = append(errs, "metrics port must differ from HTTP port")
	}
	if s.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must not be negative")
	}
	return errs
}

func (c *Config) validateBrowser() []string {
	var errs []string
	b := c.Browser
	// 远程模式下 profile 由远端 Chrome 管理
	if b.ProfileDir == "" && b.RemoteURL == "" {
		errs = append(errs, "browser.profile_dir is required")
	}
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		errs = append(errs, "browser viewport must be positive")
	}
	if u := b.RemoteURL; u != "" && !strings.HasPrefix(u, "ws://") && !strings.HasPrefix(u, "wss://") {
		errs = append(errs, "browser.remote_url must be a ws:// or wss:// DevTools address")
	}
	return errs
}

func (c *Config) validatePlatforms() []string {
	var errs []string
	for _, p := range types.Platforms() {
		raw := c.Platforms.URL(p)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Sprintf("platforms.%s_url must be an absolute http(s) URL", p))
		}
	}
	return errs
}

func (c *Config) validateAutomation() []string {
	var errs []string
	if c.Auth.Secret != "" && c.Auth.Identity == "" {
		errs = append(errs, "auth.identity is required when auth.secret is set")
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, "retry.max_retries must not be negative")
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, "retry.delay must not be negative")
	}
	if c.Timeouts.Answer > 0 && c.Timeouts.Navigation > 0 && c.Timeouts.Answer < c.Timeouts.Navigation {
		errs = append(errs, "timeouts.answer must not be shorter than timeouts.navigation")
	}
	return errs
}

func (c *Config) validateCache() []string {
	if !c.Cache.Enabled {
		return nil
	}
	var errs []string
	switch c.Cache.Backend {
	case CacheBackendFile:
		if c.Cache.Dir == "" {
			errs = append(errs, "cache.dir is required for the file backend")
		}
	case CacheBackendRedis:
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, "cache.redis.addr is required for the redis backend")
		}
	case CacheBackendSQL:
		if c.Cache.Database.DSN() == "" {
			errs = append(errs, "cache.database is incomplete for the sql backend")
		}
		if err := c.Cache.Database.Pool.Validate(); err != nil {
			errs = append(errs, "cache.database.pool: "+err.Error())
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown cache backend %q", c.Cache.Backend))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, "cache.ttl must be positive")
	}
	return errs
}
