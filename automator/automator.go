package automator

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/askall/auth"
	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/retry"
	"github.com/BaSui01/askall/types"
)

// Timeouts 各步骤的等待上限
type Timeouts struct {
	Navigation   time.Duration `yaml:"navigation" env:"NAVIGATION"`
	Probe        time.Duration `yaml:"probe" env:"PROBE"`
	EntrySurface time.Duration `yaml:"entry_surface" env:"ENTRY_SURFACE"`
	LoginSettle  time.Duration `yaml:"login_settle" env:"LOGIN_SETTLE"`
	// Answer 从提交到取得稳定回答的总时长
	Answer time.Duration `yaml:"answer" env:"ANSWER"`
	// StableFor 回答文本保持不变多久后视为生成完毕
	StableFor    time.Duration `yaml:"stable_for" env:"STABLE_FOR"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// DefaultTimeouts 默认等待上限
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:   30 * time.Second,
		Probe:        5 * time.Second,
		EntrySurface: 10 * time.Second,
		LoginSettle:  60 * time.Second,
		Answer:       120 * time.Second,
		StableFor:    2 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	if t.Navigation <= 0 {
		t.Navigation = d.Navigation
	}
	if t.Probe <= 0 {
		t.Probe = d.Probe
	}
	if t.EntrySurface <= 0 {
		t.EntrySurface = d.EntrySurface
	}
	if t.LoginSettle <= 0 {
		t.LoginSettle = d.LoginSettle
	}
	if t.Answer <= 0 {
		t.Answer = d.Answer
	}
	if t.StableFor < 0 {
		t.StableFor = 0
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	return t
}

// Option 配置 Automator
type Option func(*Automator)

// WithAuth 设置登录流程与账号
func WithAuth(flow *auth.Flow, creds auth.Credentials) Option {
	return func(a *Automator) {
		a.auth = flow
		a.creds = creds
	}
}

// WithRetryer 替换填写提交步骤的重试器
func WithRetryer(r retry.Retryer) Option {
	return func(a *Automator) { a.retryer = r }
}

// WithTimeouts 设置等待上限，零值字段使用默认
func WithTimeouts(t Timeouts) Option {
	return func(a *Automator) { a.timeouts = t.withDefaults() }
}

// WithObserver 设置状态迁移观察者
func WithObserver(o Observer) Option {
	return func(a *Automator) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(a *Automator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// Automator 单个平台的自动化执行器
type Automator struct {
	desc     Descriptor
	auth     *auth.Flow
	creds    auth.Credentials
	retryer  retry.Retryer
	timeouts Timeouts
	observer Observer
	logger   *zap.Logger
}

// New 创建平台自动化执行器
func New(desc Descriptor, opts ...Option) *Automator {
	a := &Automator{
		desc:     desc,
		timeouts: DefaultTimeouts(),
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(
		zap.String("component", "automator"),
		zap.String("platform", string(desc.Platform)),
	)
	if a.auth == nil {
		a.auth = auth.NewFlow(a.logger)
	}
	if a.retryer == nil {
		a.retryer = retry.NewRetryer(retry.DefaultPolicy(), a.logger)
	}
	return a
}

// Platform 返回平台标识
func (a *Automator) Platform() types.Platform {
	return a.desc.Platform
}

// Descriptor 返回平台描述
func (a *Automator) Descriptor() Descriptor {
	return a.desc
}

// Run 在 session 中新开标签页，提问并返回去除首尾空白的回答。
// 标签页在返回前总会关闭。
func (a *Automator) Run(ctx context.Context, session browser.Session, question string) (string, error) {
	r := &run{Automator: a, state: StateStart}

	page, err := session.NewPage(ctx)
	if err != nil {
		return "", r.fail(types.ErrSessionUnavailable, "open tab", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			a.logger.Debug("close tab", zap.Error(cerr))
		}
	}()
	r.page = page

	steps := []func(context.Context) error{
		r.navigate,
		r.authenticate,
		r.compose,
		func(ctx context.Context) error { return r.submit(ctx, question) },
		r.awaitAnswer,
		r.extract,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return "", err
		}
	}
	return r.answer, nil
}

// run 一次执行的可变状态
type run struct {
	*Automator
	page        browser.Page
	state       State
	loginResult *auth.Outcome
	answer      string
}

func (r *run) transition(to State) {
	from := r.state
	r.state = to
	r.logger.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	r.observer.OnTransition(r.desc.Platform, from, to)
}

func (r *run) fail(code types.ErrorCode, msg string, cause error) error {
	r.logger.Warn("automation failed",
		zap.Stringer("state", r.state),
		zap.String("code", string(code)),
		zap.String("step", msg),
		zap.Error(cause),
	)
	r.transition(StateFailed)
	return types.NewError(code, msg).WithCause(cause).WithPlatform(r.desc.Platform)
}

func (r *run) navigate(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, r.timeouts.Navigation)
	defer cancel()
	if err := r.page.Navigate(navCtx, r.desc.EntryURL); err != nil {
		return r.fail(types.ErrNavigation, "load "+r.desc.EntryURL, err)
	}
	r.transition(StateNavigated)
	return nil
}

func (r *run) authenticate(ctx context.Context) error {
	if r.desc.SignIn.IsZero() || !r.probe(ctx, r.desc.SignIn) {
		r.transition(StateAuthenticated)
		return nil
	}

	r.logger.Info("login required")
	if err := r.page.Click(ctx, r.desc.SignIn); err != nil {
		r.logger.Warn("click sign-in", zap.Error(err))
	}

	target := r.page
	if !r.desc.IdentityProvider.IsZero() {
		target = r.enterIdentityProvider(ctx)
	}
	if target != nil {
		outcome := r.auth.Login(ctx, target, r.creds)
		r.loginResult = &outcome
		r.logger.Info("login finished", zap.Stringer("outcome", outcome))
		if target != r.page {
			if err := target.Close(); err != nil {
				r.logger.Debug("close identity provider popup", zap.Error(err))
			}
		}
	}

	// 人工登录分支已经等过一次导航
	if r.loginResult == nil || *r.loginResult == auth.OutcomeSucceeded {
		if err := r.page.WaitNavigation(ctx, r.timeouts.LoginSettle); err != nil {
			r.logger.Warn("page did not settle after login", zap.Error(err))
		}
	}
	r.transition(StateAuthenticated)
	return nil
}

// enterIdentityProvider 点击身份提供方入口，返回登录应进行的页；入口不存在时返回 nil
func (r *run) enterIdentityProvider(ctx context.Context) browser.Page {
	if !r.probe(ctx, r.desc.IdentityProvider) {
		return nil
	}
	if r.desc.IdentityPopup {
		popup, err := r.page.ClickForPopup(ctx, r.desc.IdentityProvider, r.auth.PopupWait())
		if err == nil {
			return popup
		}
		r.logger.Info("no identity provider popup, logging in on the same tab", zap.Error(err))
		return r.page
	}
	if err := r.page.Click(ctx, r.desc.IdentityProvider); err != nil {
		r.logger.Warn("click identity provider", zap.Error(err))
	}
	return r.page
}

func (r *run) compose(ctx context.Context) error {
	if !r.desc.NewConversation.IsZero() && r.probe(ctx, r.desc.NewConversation) {
		if err := r.page.Click(ctx, r.desc.NewConversation); err != nil {
			r.logger.Debug("start new conversation", zap.Error(err))
		}
	}
	r.selectModel(ctx)

	if err := r.page.WaitVisible(ctx, r.desc.EntrySurface, r.timeouts.EntrySurface); err != nil {
		code := types.ErrUIContract
		if r.loginResult != nil && *r.loginResult == auth.OutcomeManualTimedOut {
			code = types.ErrAuthentication
		}
		return r.fail(code, "locate entry surface", err)
	}
	r.transition(StateComposing)
	return nil
}

// selectModel 尽力选择模型，失败时沿用平台默认
func (r *run) selectModel(ctx context.Context) {
	if r.desc.ModelSelector.IsZero() || r.desc.ModelOption.IsZero() {
		return
	}
	if !r.probe(ctx, r.desc.ModelSelector) {
		return
	}
	if err := r.page.Click(ctx, r.desc.ModelSelector); err != nil {
		r.logger.Info("could not open model selector, continuing with default", zap.Error(err))
		return
	}
	if err := r.page.WaitVisible(ctx, r.desc.ModelOption, r.timeouts.Probe); err != nil {
		r.logger.Info("model option not offered, continuing with default", zap.Error(err))
		return
	}
	if err := r.page.Click(ctx, r.desc.ModelOption); err != nil {
		r.logger.Info("could not select model, continuing with default", zap.Error(err))
	}
}

func (r *run) submit(ctx context.Context, question string) error {
	err := r.retryer.Do(ctx, func() error {
		if err := r.page.Fill(ctx, r.desc.EntrySurface, question); err != nil {
			return err
		}
		return r.page.PressEnter(ctx)
	})
	if err != nil {
		return r.fail(types.ErrUIContract, "fill and submit question", err)
	}
	r.transition(StateSubmitted)
	return nil
}

func (r *run) awaitAnswer(ctx context.Context) error {
	deadline := time.Now().Add(r.timeouts.Answer)
	if err := r.page.WaitVisible(ctx, r.desc.Answer, r.timeouts.Answer); err != nil {
		return r.fail(types.ErrUIContract, "wait for answer", err)
	}
	r.transition(StateResponseReady)

	text, err := r.stableText(ctx, deadline)
	if err != nil {
		return r.fail(types.ErrExtraction, "read answer", err)
	}
	r.answer = text
	return nil
}

// stableText 轮询最后一个回答的文本，直到 StableFor 内不再变化或到达 deadline
func (r *run) stableText(ctx context.Context, deadline time.Time) (string, error) {
	text, err := r.page.Text(ctx, r.desc.Answer)
	if err != nil || r.timeouts.StableFor == 0 {
		return text, err
	}

	ticker := time.NewTicker(r.timeouts.PollInterval)
	defer ticker.Stop()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	changedAt := time.Now()
	for time.Since(changedAt) < r.timeouts.StableFor {
		select {
		case <-ctx.Done():
			return text, nil
		case <-timer.C:
			r.logger.Warn("answer still changing at deadline, using latest text")
			return text, nil
		case <-ticker.C:
		}
		next, err := r.page.Text(ctx, r.desc.Answer)
		if err != nil {
			return text, nil
		}
		if next != text {
			text = next
			changedAt = time.Now()
		}
	}
	return text, nil
}

func (r *run) extract(ctx context.Context) error {
	answer := strings.TrimSpace(r.answer)
	if answer == "" {
		return r.fail(types.ErrExtraction, "answer is empty", errors.New("empty text content"))
	}
	r.answer = answer
	r.transition(StateExtracted)
	return nil
}

// probe 在 Probe 超时内检查地标是否可见，探测出错按不可见处理
func (r *run) probe(ctx context.Context, lm browser.Landmark) bool {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeouts.Probe)
	defer cancel()
	ok, err := r.page.Visible(probeCtx, lm)
	if err != nil {
		r.logger.Debug("probe landmark", zap.Stringer("landmark", lm), zap.Error(err))
		return false
	}
	return ok
}
