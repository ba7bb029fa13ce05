// Package fixtures 提供测试用的平台结果样例。
package fixtures

import "github.com/BaSui01/askall/types"

// Question 样例问题
const Question = "What is the capital of France?"

// Answered 三个平台都从浏览器拿到回答
func Answered() []types.PlatformResult {
	return []types.PlatformResult{
		{Platform: types.PlatformClaude, Response: "The capital of France is Paris.", Source: types.SourceBrowser},
		{Platform: types.PlatformOpenAI, Response: "Paris is the capital of France.", Source: types.SourceBrowser},
		{Platform: types.PlatformGemini, Response: "The capital of France is Paris.", Source: types.SourceBrowser},
	}
}

// Mixed 一个浏览器回答、一个缓存命中、一个失败
func Mixed() []types.PlatformResult {
	return []types.PlatformResult{
		{Platform: types.PlatformClaude, Response: "Paris", Source: types.SourceBrowser},
		{Platform: types.PlatformOpenAI, Response: "Paris", Source: types.SourceCache},
		types.NewFailedResult(types.PlatformGemini, types.NewError(types.ErrUIContract, "entry surface not found")),
	}
}

// AllFailed 三个平台都失败
func AllFailed(code types.ErrorCode) []types.PlatformResult {
	out := make([]types.PlatformResult, 0, 3)
	for _, p := range types.Platforms() {
		out = append(out, types.NewFailedResult(p, types.NewError(code, "injected failure")))
	}
	return out
}
