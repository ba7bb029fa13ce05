package api

import "github.com/BaSui01/askall/types"

// QueryRequest 提问请求
type QueryRequest struct {
	Question string `json:"question"`
}

// QueryResponse 提问结果，按平台固定顺序排列
type QueryResponse struct {
	Results []types.PlatformResult `json:"results"`
}

// VersionInfo 版本信息
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}
