package automator

import "github.com/BaSui01/askall/types"

// State 自动化状态
type State int

const (
	StateStart State = iota
	StateNavigated
	StateAuthenticated
	StateComposing
	StateSubmitted
	StateResponseReady
	StateExtracted
	StateFailed
)

var stateNames = [...]string{
	StateStart:         "start",
	StateNavigated:     "navigated",
	StateAuthenticated: "authenticated",
	StateComposing:     "composing",
	StateSubmitted:     "submitted",
	StateResponseReady: "response_ready",
	StateExtracted:     "extracted",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StateExtracted || s == StateFailed
}

// Observer 接收状态迁移通知
type Observer interface {
	OnTransition(platform types.Platform, from, to State)
}

// ObserverFunc 函数适配器
type ObserverFunc func(platform types.Platform, from, to State)

func (f ObserverFunc) OnTransition(platform types.Platform, from, to State) {
	f(platform, from, to)
}

type nopObserver struct{}

func (nopObserver) OnTransition(types.Platform, State, State) {}
