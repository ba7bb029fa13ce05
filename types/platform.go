package types

import "fmt"

// Platform identifies one of the fixed conversational web interfaces.
type Platform string

const (
	PlatformClaude Platform = "claude"
	PlatformOpenAI Platform = "openai"
	PlatformGemini Platform = "gemini"
)

// Platforms returns every supported platform in result order.
func Platforms() []Platform {
	return []Platform{PlatformClaude, PlatformOpenAI, PlatformGemini}
}

// DisplayName returns the label shown to people.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformClaude:
		return "Claude"
	case PlatformOpenAI:
		return "OpenAI"
	case PlatformGemini:
		return "Gemini"
	default:
		return string(p)
	}
}

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	for _, known := range Platforms() {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform parses a platform identifier.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", NewError(ErrInvalidRequest, fmt.Sprintf("unknown platform %q", s))
	}
	return p, nil
}

// Result sources
const (
	SourceCache   = "cache"
	SourceBrowser = "browser"
)

// ResultError is the machine-readable failure attached to a PlatformResult.
type ResultError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// PlatformResult is the answer (or failure) for one platform in one batch.
type PlatformResult struct {
	Platform Platform     `json:"platform"`
	Response string       `json:"response"`
	Error    *ResultError `json:"error,omitempty"`
	Source   string       `json:"source,omitempty"`
}

// Failed reports whether the result carries a failure descriptor.
func (r PlatformResult) Failed() bool {
	return r.Error != nil
}

// PlaceholderResponse is the text shown in place of an answer when a platform failed.
func PlaceholderResponse(p Platform) string {
	return fmt.Sprintf("Error: Could not get response from %s. You may need to login manually first.", p.DisplayName())
}

// NewFailedResult builds the platform-tagged placeholder result for err.
func NewFailedResult(p Platform, err error) PlatformResult {
	code := GetErrorCode(err)
	if code == "" {
		code = ErrInternalError
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return PlatformResult{
		Platform: p,
		Response: PlaceholderResponse(p),
		Error:    &ResultError{Code: code, Message: msg},
		Source:   SourceBrowser,
	}
}
