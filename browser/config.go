package browser

import "time"

// DefaultUserAgent 固定的桌面 Chrome UA
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config 浏览器配置
type Config struct {
	Headless          bool          `yaml:"headless" env:"HEADLESS"`
	ProfileDir        string        `yaml:"profile_dir" env:"PROFILE_DIR"`
	ExecPath          string        `yaml:"exec_path" env:"EXEC_PATH"`
	// RemoteURL 已运行 Chrome 的 DevTools websocket 地址（ws://host:port/devtools/browser/<id>）；
	// 设置后不再本地启动，ProfileDir 与启动参数由该 Chrome 自己决定
	RemoteURL         string        `yaml:"remote_url" env:"REMOTE_URL"`
	ViewportWidth     int           `yaml:"viewport_width" env:"VIEWPORT_WIDTH"`
	ViewportHeight    int           `yaml:"viewport_height" env:"VIEWPORT_HEIGHT"`
	DeviceScaleFactor float64       `yaml:"device_scale_factor" env:"DEVICE_SCALE_FACTOR"`
	UserAgent         string        `yaml:"user_agent" env:"USER_AGENT"`
	IgnoreCertErrors  bool          `yaml:"ignore_cert_errors" env:"IGNORE_CERT_ERRORS"`
	ExtraFlags        []string      `yaml:"extra_flags" env:"EXTRA_FLAGS"`
	LaunchTimeout     time.Duration `yaml:"launch_timeout" env:"LAUNCH_TIMEOUT"`
	PollInterval      time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// DefaultConfig returns the settings the automation flows were tuned against.
func DefaultConfig() Config {
	return Config{
		Headless:          false,
		ProfileDir:        ".browser-data",
		ViewportWidth:     1280,
		ViewportHeight:    800,
		DeviceScaleFactor: 2,
		UserAgent:         DefaultUserAgent,
		IgnoreCertErrors:  true,
		LaunchTimeout:     30 * time.Second,
		PollInterval:      250 * time.Millisecond,
	}
}
