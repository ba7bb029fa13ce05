package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLandmarkTimeout 地标在超时内未出现
	ErrLandmarkTimeout = errors.New("landmark not visible before timeout")
	// ErrLandmarkNotFound 地标当前不存在
	ErrLandmarkNotFound = errors.New("landmark not found")
	// ErrNavigationTimeout 超时内没有发生导航
	ErrNavigationTimeout = errors.New("no navigation before timeout")
	// ErrNoPopup 点击后没有弹出新窗口
	ErrNoPopup = errors.New("no popup opened")
	// ErrSessionClosed Session 已关闭
	ErrSessionClosed = errors.New("browser session closed")
)

// Page 一个标签页
type Page interface {
	// Navigate 加载 URL，受 ctx 约束
	Navigate(ctx context.Context, url string) error
	// Visible 立即探测地标是否可见
	Visible(ctx context.Context, lm Landmark) (bool, error)
	// WaitVisible 等待地标可见，超时返回 ErrLandmarkTimeout
	WaitVisible(ctx context.Context, lm Landmark, timeout time.Duration) error
	// Click 点击第一个匹配元素
	Click(ctx context.Context, lm Landmark) error
	// ClickForPopup 点击并等待由本页打开的新窗口；未弹出时返回 ErrNoPopup
	ClickForPopup(ctx context.Context, lm Landmark, timeout time.Duration) (Page, error)
	// Fill 清空输入区并写入文本
	Fill(ctx context.Context, lm Landmark, text string) error
	// PressEnter 向焦点元素发送回车
	PressEnter(ctx context.Context) error
	// Text 返回最后一个匹配元素的文本
	Text(ctx context.Context, lm Landmark) (string, error)
	// WaitNavigation 等待一次页面导航，超时返回 ErrNavigationTimeout
	WaitNavigation(ctx context.Context, timeout time.Duration) error
	// Close 关闭标签页，可重复调用
	Close() error
}

// Session 一次批次共享的浏览器上下文
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	// Close 释放所有标签页与浏览器，可重复调用
	Close() error
}

// Opener 打开 Session
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// PollVisible 以固定间隔轮询 Visible，直到可见、超时或 ctx 结束
func PollVisible(ctx context.Context, page Page, lm Landmark, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := page.Visible(ctx, lm)
		if err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrLandmarkTimeout
		case <-ticker.C:
		}
	}
}
