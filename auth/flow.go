package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/askall/browser"
)

// Outcome 登录结果
type Outcome int

const (
	// OutcomeSucceeded 自动填写账号密码并提交
	OutcomeSucceeded Outcome = iota
	// OutcomeManualCompleted 退化为人工登录，并在人工窗口内观察到导航
	OutcomeManualCompleted
	// OutcomeManualTimedOut 人工窗口内没有任何导航
	OutcomeManualTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeManualCompleted:
		return "manual_completed"
	case OutcomeManualTimedOut:
		return "manual_timed_out"
	default:
		return "unknown"
	}
}

// Credentials 身份提供方账号
type Credentials struct {
	Identity string `yaml:"identity" env:"IDENTITY"`
	Secret   string `yaml:"secret" env:"SECRET"`
}

// Empty 未配置账号
func (c Credentials) Empty() bool {
	return c.Identity == ""
}

// String 不输出密码
func (c Credentials) String() string {
	if c.Secret == "" {
		return c.Identity
	}
	return c.Identity + ":******"
}

// Landmarks 身份提供方登录页的地标
type Landmarks struct {
	Identity browser.Landmark
	Secret   browser.Landmark
	Next     browser.Landmark
}

// GoogleLandmarks Google 账号登录页
func GoogleLandmarks() Landmarks {
	return Landmarks{
		Identity: browser.CSS("identity-field", `input[type="email"]`),
		Secret:   browser.CSS("secret-field", `input[type="password"]`),
		Next:     browser.ButtonText("next", "Next"),
	}
}

// Timeouts 登录流程的等待时间
type Timeouts struct {
	// SecretProbe 等待密码框出现
	SecretProbe time.Duration `yaml:"secret_probe" env:"SECRET_PROBE"`
	// ManualWait 等待人工完成登录
	ManualWait time.Duration `yaml:"manual_wait" env:"MANUAL_WAIT"`
	// PopupWait 等待身份提供方弹出窗口
	PopupWait time.Duration `yaml:"popup_wait" env:"POPUP_WAIT"`
}

// DefaultTimeouts 默认等待时间
func DefaultTimeouts() Timeouts {
	return Timeouts{
		SecretProbe: 5 * time.Second,
		ManualWait:  60 * time.Second,
		PopupWait:   5 * time.Second,
	}
}

// Option 配置 Flow
type Option func(*Flow)

// WithLandmarks 替换身份提供方地标
func WithLandmarks(l Landmarks) Option {
	return func(f *Flow) { f.landmarks = l }
}

// WithTimeouts 设置等待时间，零值字段保持默认
func WithTimeouts(t Timeouts) Option {
	return func(f *Flow) {
		if t.SecretProbe > 0 {
			f.timeouts.SecretProbe = t.SecretProbe
		}
		if t.ManualWait > 0 {
			f.timeouts.ManualWait = t.ManualWait
		}
		if t.PopupWait > 0 {
			f.timeouts.PopupWait = t.PopupWait
		}
	}
}

// Flow 身份提供方登录流程
type Flow struct {
	landmarks Landmarks
	timeouts  Timeouts
	logger    *zap.Logger
}

// NewFlow 创建登录流程
func NewFlow(logger *zap.Logger, opts ...Option) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Flow{
		landmarks: GoogleLandmarks(),
		timeouts:  DefaultTimeouts(),
		logger:    logger.With(zap.String("component", "auth")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Timeouts 返回生效的等待时间
func (f *Flow) Timeouts() Timeouts {
	return f.timeouts
}

// PopupWait 身份提供方弹窗的等待时间
func (f *Flow) PopupWait() time.Duration {
	return f.timeouts.PopupWait
}

// Login 在 page 上执行登录。不返回错误，失败时退化为人工等待。
func (f *Flow) Login(ctx context.Context, page browser.Page, creds Credentials) Outcome {
	f.logger.Info("attempting identity provider login; manual completion may be required once")

	if creds.Empty() {
		f.logger.Warn("no identity configured, waiting for manual login")
		return f.waitManual(ctx, page)
	}

	if err := f.submitIdentity(ctx, page, creds.Identity); err != nil {
		f.logger.Warn("identity step failed, waiting for manual login", zap.Error(err))
		return f.waitManual(ctx, page)
	}

	if err := page.WaitVisible(ctx, f.landmarks.Secret, f.timeouts.SecretProbe); err != nil {
		f.logger.Info("secret field not found automatically, waiting for manual entry", zap.Error(err))
		return f.waitManual(ctx, page)
	}

	if err := f.submitSecret(ctx, page, creds.Secret); err != nil {
		f.logger.Warn("secret step failed, waiting for manual login", zap.Error(err))
		return f.waitManual(ctx, page)
	}

	f.logger.Info("credentials submitted")
	return OutcomeSucceeded
}

func (f *Flow) submitIdentity(ctx context.Context, page browser.Page, identity string) error {
	if err := page.Fill(ctx, f.landmarks.Identity, identity); err != nil {
		return err
	}
	return page.Click(ctx, f.landmarks.Next)
}

func (f *Flow) submitSecret(ctx context.Context, page browser.Page, secret string) error {
	if err := page.Fill(ctx, f.landmarks.Secret, secret); err != nil {
		return err
	}
	return page.Click(ctx, f.landmarks.Next)
}

func (f *Flow) waitManual(ctx context.Context, page browser.Page) Outcome {
	err := page.WaitNavigation(ctx, f.timeouts.ManualWait)
	switch {
	case err == nil:
		f.logger.Info("manual login completed")
		return OutcomeManualCompleted
	case errors.Is(err, browser.ErrNavigationTimeout):
		f.logger.Warn("timed out waiting for manual login", zap.Duration("waited", f.timeouts.ManualWait))
	default:
		f.logger.Warn("manual login wait ended", zap.Error(err))
	}
	return OutcomeManualTimedOut
}
