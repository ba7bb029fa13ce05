package client

import (
	"fmt"
	"strings"

	"github.com/BaSui01/askall/types"
	"github.com/pmezard/go-difflib/difflib"
)

// Comparison 一对平台回答的差异
type Comparison struct {
	From, To types.Platform
	// Diff 统一格式差异，两者相同时为空
	Diff string
}

// Identical 两个回答是否一致
func (c Comparison) Identical() bool {
	return c.Diff == ""
}

// Compare 对结果逐对做统一格式 diff，顺序为 (0,1) (0,2) (1,2) ...
// 失败的平台不参与比较。
func Compare(results []types.PlatformResult) []Comparison {
	ok := make([]types.PlatformResult, 0, len(results))
	for _, r := range results {
		if !r.Failed() {
			ok = append(ok, r)
		}
	}

	var out []Comparison
	for i := 0; i < len(ok); i++ {
		for j := i + 1; j < len(ok); j++ {
			out = append(out, Comparison{
				From: ok[i].Platform,
				To:   ok[j].Platform,
				Diff: unifiedDiff(ok[i], ok[j]),
			})
		}
	}
	return out
}

func unifiedDiff(a, b types.PlatformResult) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(ensureNewline(a.Response)),
		B:        difflib.SplitLines(ensureNewline(b.Response)),
		FromFile: a.Platform.DisplayName(),
		ToFile:   b.Platform.DisplayName(),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("diff failed: %v\n", err)
	}
	return text
}

func ensureNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
