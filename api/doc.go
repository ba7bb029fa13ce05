// Copyright (c) askall Authors.
// Licensed under the MIT License.

// Package api 定义 askall HTTP 接口的请求与响应结构。
//
// # 接口
//
//	POST /api/v1/query   {"question": "..."}
//	POST /query          同上（兼容路径）
//	GET  /health /healthz /ready /version
//
// 成功响应使用统一信封：
//
//	{"success": true, "data": {"results": [...]}, "timestamp": "...", "request_id": "..."}
//
// 配置了 API Key 时，请求需携带 X-API-Key 头。
package api
