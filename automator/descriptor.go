package automator

import (
	"github.com/BaSui01/askall/browser"
	"github.com/BaSui01/askall/types"
)

// Descriptor 描述一个平台的入口与 UI 地标
type Descriptor struct {
	Platform types.Platform
	EntryURL string

	// SignIn 可见表示需要登录
	SignIn browser.Landmark
	// IdentityProvider 进入身份提供方的按钮，零值表示点击 SignIn 后直接在本页登录
	IdentityProvider browser.Landmark
	// IdentityPopup 身份提供方可能在弹出窗口中打开
	IdentityPopup bool

	NewConversation browser.Landmark
	// ModelSelector 与 ModelOption 可选，选择失败时继续使用默认模型
	ModelSelector browser.Landmark
	ModelOption   browser.Landmark

	EntrySurface browser.Landmark
	// Answer 匹配所有回答元素，取最后一个
	Answer browser.Landmark
}

// Claude claude.ai
func Claude() Descriptor {
	return Descriptor{
		Platform:         types.PlatformClaude,
		EntryURL:         "https://claude.ai",
		SignIn:           browser.ButtonText("sign-in", "Sign in", "Login"),
		IdentityProvider: browser.ButtonText("identity-provider", "Continue with Google"),
		IdentityPopup:    true,
		NewConversation:  browser.XPath("new-conversation", `//button[contains(normalize-space(.), "New Chat")]`),
		EntrySurface:     browser.CSS("entry-surface", `div[contenteditable="true"]`),
		Answer:           browser.CSS("answer", `div[data-message-author="assistant"]`),
	}
}

// OpenAI chat.openai.com
func OpenAI() Descriptor {
	return Descriptor{
		Platform:         types.PlatformOpenAI,
		EntryURL:         "https://chat.openai.com",
		SignIn:           browser.XPath("sign-in", `//button[contains(normalize-space(.), "Log in")]`),
		IdentityProvider: browser.XPath("identity-provider", `//button[contains(normalize-space(.), "Continue with Google")]`),
		ModelSelector:    browser.XPath("model-selector", `//button[contains(normalize-space(.), "GPT-")]`),
		ModelOption:      browser.RoleText("model-option", "option", "o3-mini-high"),
		EntrySurface:     browser.CSS("entry-surface", `div[role="textbox"]`),
		Answer:           browser.CSS("answer", `div[data-message-author-role="assistant"]`),
	}
}

// Gemini gemini.google.com
func Gemini() Descriptor {
	return Descriptor{
		Platform:      types.PlatformGemini,
		EntryURL:      "https://gemini.google.com/",
		SignIn:        browser.XPath("sign-in", `//a[contains(normalize-space(.), "Sign in")]`),
		ModelSelector: browser.XPath("model-selector", `//button[contains(normalize-space(.), "Gemini")]`),
		ModelOption:   browser.RoleText("model-option", "option", "2.5"),
		EntrySurface:  browser.CSS("entry-surface", "textarea"),
		Answer:        browser.CSS("answer", `div[role="region"][aria-label*="Response"]`),
	}
}

// Descriptors 按 types.Platforms() 顺序返回内置描述
func Descriptors() []Descriptor {
	return []Descriptor{Claude(), OpenAI(), Gemini()}
}

// DescriptorFor 返回平台的内置描述
func DescriptorFor(p types.Platform) (Descriptor, bool) {
	for _, d := range Descriptors() {
		if d.Platform == p {
			return d, true
		}
	}
	return Descriptor{}, false
}

// WithEntryURL 覆盖入口 URL，空串保持不变
func (d Descriptor) WithEntryURL(url string) Descriptor {
	if url != "" {
		d.EntryURL = url
	}
	return d
}
