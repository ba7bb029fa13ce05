package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// maskWebdriverJS 在每个文档加载前隐藏 navigator.webdriver
const maskWebdriverJS = `Object.defineProperty(navigator, "webdriver", {get: () => undefined});`

// SessionManager 基于 chromedp 打开持久化 Session
type SessionManager struct {
	config Config
	logger *zap.Logger
}

// NewSessionManager 创建 SessionManager
func NewSessionManager(config Config, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		config: config,
		logger: logger.With(zap.String("component", "session_manager")),
	}
}

// launchFlags 本地启动时追加在 chromedp 默认参数之后的命令行开关；ExtraFlags 可覆盖同名开关
func (m *SessionManager) launchFlags() map[string]any {
	cfg := m.config
	flags := map[string]any{
		"headless":                  cfg.Headless,
		"user-data-dir":             cfg.ProfileDir,
		"disable-blink-features":    "AutomationControlled",
		"enable-automation":         false,
		"ignore-certificate-errors": cfg.IgnoreCertErrors,
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if cfg.UserAgent != "" {
		flags["user-agent"] = cfg.UserAgent
	}
	for _, f := range cfg.ExtraFlags {
		name, value, hasValue := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

func (m *SessionManager) allocatorOptions() []chromedp.ExecAllocatorOption {
	flags := m.launchFlags()
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+len(flags)+1)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if m.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.config.ExecPath))
	}
	return opts
}

// newAllocator 配置了 RemoteURL 时连接已运行的 Chrome，否则本地启动
func (m *SessionManager) newAllocator() (context.Context, context.CancelFunc) {
	if m.config.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), m.config.RemoteURL)
	}
	return chromedp.NewExecAllocator(context.Background(), m.allocatorOptions()...)
}

// Ping 检查下一次 Open 的前置条件，不启动浏览器。
// 远程模式下拨号 DevTools 地址；本地模式下确认 profile 目录可写，登录状态保存在这里。
func (m *SessionManager) Ping(ctx context.Context) error {
	if m.config.RemoteURL != "" {
		u, err := url.Parse(m.config.RemoteURL)
		if err != nil {
			return fmt.Errorf("parse remote url: %w", err)
		}
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return fmt.Errorf("devtools unreachable: %w", err)
		}
		return conn.Close()
	}

	dir := m.config.ProfileDir
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("profile dir: %w", err)
	}
	f, err := os.CreateTemp(dir, ".askall-ping-*")
	if err != nil {
		return fmt.Errorf("profile dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Open 启动浏览器；返回的 Session 生命周期独立于 ctx，由 Close 释放
func (m *SessionManager) Open(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := m.newAllocator()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	timeout := m.config.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := attach(ctx, browserCtx, timeout); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	m.logger.Info("browser session opened",
		zap.Bool("headless", m.config.Headless),
		zap.Bool("remote", m.config.RemoteURL != ""),
		zap.String("profile_dir", m.config.ProfileDir),
		zap.Int("viewport_w", m.config.ViewportWidth),
		zap.Int("viewport_h", m.config.ViewportHeight))

	return &chromeSession{
		config:        m.config,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        m.logger,
	}, nil
}

// attach 对 NewContext 返回的上下文执行首次 Run。
// chromedp 把目标的消息循环绑定在首次 Run 的 ctx 上，所以这里不能传派生上下文；
// 调用方的 ctx 与 timeout 只限制等待时间。
func attach(ctx, cdpCtx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(cdpCtx) }()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case err := <-done:
		return err
	case <-expired:
		return fmt.Errorf("target not ready within %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

type chromeSession struct {
	config        Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *zap.Logger

	mu     sync.Mutex
	pages  []*chromePage
	closed bool
}

// NewPage 在共享浏览器中打开新标签页并完成指纹弱化
func (s *chromeSession) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	s.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	if err := attach(ctx, tabCtx, s.config.LaunchTimeout); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	p := &chromePage{ctx: tabCtx, cancel: cancel, config: s.config, logger: s.logger}

	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		if _, err := page.AddScriptToEvaluateOnNewDocument(maskWebdriverJS).Do(ctx); err != nil {
			return err
		}
		if s.config.ViewportWidth > 0 && s.config.ViewportHeight > 0 {
			return emulation.SetDeviceMetricsOverride(
				int64(s.config.ViewportWidth),
				int64(s.config.ViewportHeight),
				s.config.DeviceScaleFactor,
				false,
			).Do(ctx)
		}
		return nil
	}))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("prepare tab: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		cancel()
		return nil, ErrSessionClosed
	}
	s.pages = append(s.pages, p)
	return p, nil
}

// Close 关闭所有标签页与浏览器进程
func (s *chromeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pages := s.pages
	s.pages = nil
	s.mu.Unlock()

	for _, p := range pages {
		_ = p.Close()
	}

	err := chromedp.Cancel(s.browserCtx)
	s.browserCancel()
	s.allocCancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("browser close reported error", zap.Error(err))
		return fmt.Errorf("close browser: %w", err)
	}
	s.logger.Info("browser session closed", zap.Int("tabs", len(pages)))
	return nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	config    Config
	logger    *zap.Logger
	closeOnce sync.Once
}

// run 在标签页上下文中执行动作，同时服从调用方 ctx 的截止时间与取消
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("navigating", zap.String("url", url))
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) Visible(ctx context.Context, lm Landmark) (bool, error) {
	var visible bool
	if err := p.run(ctx, chromedp.Evaluate(lm.visibleJS(), &visible)); err != nil {
		return false, fmt.Errorf("probe %s: %w", lm, err)
	}
	return visible, nil
}

func (p *chromePage) WaitVisible(ctx context.Context, lm Landmark, timeout time.Duration) error {
	return PollVisible(ctx, p, lm, timeout, p.config.PollInterval)
}

// point 视口坐标
type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Click 在第一个可见匹配元素的中心派发一次真实鼠标点击
func (p *chromePage) Click(ctx context.Context, lm Landmark) error {
	p.logger.Debug("clicking", zap.String("landmark", lm.String()))
	var at *point
	err := p.run(ctx,
		chromedp.Evaluate(lm.centerJS(), &at),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if at == nil {
				return ErrLandmarkNotFound
			}
			return chromedp.MouseClickXY(at.X, at.Y).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", lm, err)
	}
	return nil
}

func (p *chromePage) ClickForPopup(ctx context.Context, lm Landmark, timeout time.Duration) (Page, error) {
	opener := chromedp.FromContext(p.ctx)
	if opener == nil || opener.Target == nil {
		return nil, errors.New("page has no target")
	}
	openerID := opener.Target.TargetID

	waitCtx, cancelWait := context.WithCancel(p.ctx)
	defer cancelWait()
	popups := chromedp.WaitNewTarget(waitCtx, func(info *target.Info) bool {
		return info.OpenerID == openerID
	})

	if err := p.Click(ctx, lm); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case id := <-popups:
		popupCtx, cancel := chromedp.NewContext(p.ctx, chromedp.WithTargetID(id))
		if err := attach(ctx, popupCtx, timeout); err != nil {
			cancel()
			return nil, fmt.Errorf("attach popup: %w", err)
		}
		popup := &chromePage{ctx: popupCtx, cancel: cancel, config: p.config, logger: p.logger}
		p.logger.Debug("popup attached", zap.String("target", id.String()))
		return popup, nil
	case <-timer.C:
		return nil, ErrNoPopup
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *chromePage) Fill(ctx context.Context, lm Landmark, text string) error {
	var cleared bool
	err := p.run(ctx,
		chromedp.Evaluate(lm.clearJS(), &cleared),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !cleared {
				return ErrLandmarkNotFound
			}
			return input.InsertText(text).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", lm, err)
	}
	return nil
}

func (p *chromePage) PressEnter(ctx context.Context) error {
	return p.run(ctx, chromedp.KeyEvent(kb.Enter))
}

func (p *chromePage) Text(ctx context.Context, lm Landmark) (string, error) {
	var text *string
	if err := p.run(ctx, chromedp.Evaluate(lm.lastTextJS(), &text)); err != nil {
		return "", fmt.Errorf("read %s: %w", lm, err)
	}
	if text == nil {
		return "", fmt.Errorf("read %s: %w", lm, ErrLandmarkNotFound)
	}
	return *text, nil
}

func (p *chromePage) WaitNavigation(ctx context.Context, timeout time.Duration) error {
	navigated := make(chan struct{}, 1)
	listenCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	chromedp.ListenTarget(listenCtx, func(ev any) {
		switch ev.(type) {
		case *page.EventLoadEventFired, *page.EventNavigatedWithinDocument:
			select {
			case navigated <- struct{}{}:
			default:
			}
		}
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-navigated:
		return nil
	case <-timer.C:
		return ErrNavigationTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrSessionClosed
	}
}

func (p *chromePage) Close() error {
	p.closeOnce.Do(p.cancel)
	return nil
}
