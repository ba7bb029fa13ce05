// Package browsertest 提供按地标名称编排的内存 Session 与 Page，
// 用于在不启动 Chrome 的情况下测试自动化状态机。
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/askall/browser"
)

// Page 可编排的假标签页；所有地标按 Landmark.Name 匹配
type Page struct {
	mu sync.Mutex

	visible  map[string]bool
	texts    map[string][]string
	failures map[string][]error
	onClick  map[string]func(*Page)

	// Popup 非空时 ClickForPopup 返回它
	Popup *Page
	// NavigationErr 作为 WaitNavigation 的结果
	NavigationErr error

	calls  []string
	closed int
}

// NewPage 创建空白假页
func NewPage() *Page {
	return &Page{
		visible:  make(map[string]bool),
		texts:    make(map[string][]string),
		failures: make(map[string][]error),
		onClick:  make(map[string]func(*Page)),
	}
}

// SetVisible 设置地标可见性
func (p *Page) SetVisible(name string, visible bool) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visible[name] = visible
	return p
}

// SetText 设置 Text 的返回序列，最后一个值会被重复返回
func (p *Page) SetText(name string, values ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[name] = values
	p.visible[name] = true
	return p
}

// Fail 让操作依次返回 errs 中的错误，用完后恢复正常
// op 形如 "navigate"、"click:Sign in"、"fill:composer"、"enter"、"text:answer"
func (p *Page) Fail(op string, errs ...error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op] = append(p.failures[op], errs...)
	return p
}

// OnClick 在点击地标时执行副作用（例如登录后隐藏登录按钮）
func (p *Page) OnClick(name string, fn func(*Page)) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[name] = fn
	return p
}

// Calls 返回调用记录
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Count 统计以 prefix 开头的调用次数
func (p *Page) Count(prefix string) int {
	n := 0
	for _, c := range p.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Closed 返回 Close 被调用的次数
func (p *Page) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	op := call
	if i := strings.Index(call, "="); i >= 0 {
		op = call[:i]
	}
	if errs := p.failures[op]; len(errs) > 0 {
		p.failures[op] = errs[1:]
		return errs[0]
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.record("navigate=" + url)
}

func (p *Page) Visible(ctx context.Context, lm browser.Landmark) (bool, error) {
	if err := p.record("visible:" + lm.Name); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[lm.Name], nil
}

func (p *Page) WaitVisible(ctx context.Context, lm browser.Landmark, timeout time.Duration) error {
	if err := p.record("wait:" + lm.Name); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible[lm.Name] {
		return browser.ErrLandmarkTimeout
	}
	return nil
}

func (p *Page) Click(ctx context.Context, lm browser.Landmark) error {
	if err := p.record("click:" + lm.Name); err != nil {
		return err
	}
	p.mu.Lock()
	visible := p.visible[lm.Name]
	fn := p.onClick[lm.Name]
	p.mu.Unlock()
	if !visible {
		return fmt.Errorf("click %s: %w", lm.Name, browser.ErrLandmarkNotFound)
	}
	if fn != nil {
		fn(p)
	}
	return nil
}

func (p *Page) ClickForPopup(ctx context.Context, lm browser.Landmark, timeout time.Duration) (browser.Page, error) {
	if err := p.Click(ctx, lm); err != nil {
		return nil, err
	}
	p.mu.Lock()
	popup := p.Popup
	p.mu.Unlock()
	if popup == nil {
		return nil, browser.ErrNoPopup
	}
	return popup, nil
}

func (p *Page) Fill(ctx context.Context, lm browser.Landmark, text string) error {
	if err := p.record("fill:" + lm.Name + "=" + text); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible[lm.Name] {
		return fmt.Errorf("fill %s: %w", lm.Name, browser.ErrLandmarkNotFound)
	}
	return nil
}

func (p *Page) PressEnter(ctx context.Context) error {
	return p.record("enter")
}

func (p *Page) Text(ctx context.Context, lm browser.Landmark) (string, error) {
	if err := p.record("text:" + lm.Name); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	values, ok := p.texts[lm.Name]
	if !ok || len(values) == 0 {
		return "", fmt.Errorf("read %s: %w", lm.Name, browser.ErrLandmarkNotFound)
	}
	v := values[0]
	if len(values) > 1 {
		p.texts[lm.Name] = values[1:]
	}
	return v, nil
}

func (p *Page) WaitNavigation(ctx context.Context, timeout time.Duration) error {
	if err := p.record("wait_navigation"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.NavigationErr
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

// Session 假 Session，NewPage 依次返回 Pages 中的页，用完后返回空白页
type Session struct {
	mu sync.Mutex

	Pages      []*Page
	NewPageErr error

	opened []*Page
	closed int
}

// NewSession 创建假 Session
func NewSession(pages ...*Page) *Session {
	return &Session{Pages: pages}
}

func (s *Session) NewPage(ctx context.Context) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return nil, browser.ErrSessionClosed
	}
	if s.NewPageErr != nil {
		return nil, s.NewPageErr
	}
	var p *Page
	if len(s.Pages) > 0 {
		p = s.Pages[0]
		s.Pages = s.Pages[1:]
	} else {
		p = NewPage()
	}
	s.opened = append(s.opened, p)
	return p, nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Closed 返回 Close 被调用的次数
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Opened 返回已打开的页
func (s *Session) Opened() []*Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Page(nil), s.opened...)
}

// Opener 假 Opener
type Opener struct {
	mu sync.Mutex

	Session *Session
	Err     error
	opens   int
}

// NewOpener 创建总是返回 session 的 Opener
func NewOpener(session *Session) *Opener {
	return &Opener{Session: session}
}

func (o *Opener) Open(ctx context.Context) (browser.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	if o.Err != nil {
		return nil, o.Err
	}
	if o.Session == nil {
		return nil, errors.New("no session configured")
	}
	return o.Session, nil
}

// Opens 返回 Open 被调用的次数
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}

var (
	_ browser.Page    = (*Page)(nil)
	_ browser.Session = (*Session)(nil)
	_ browser.Opener  = (*Opener)(nil)
)
