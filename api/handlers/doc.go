// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 askall HTTP API 的请求处理器。

# 核心类型

  - QueryHandler: 提问处理器，把问题交给编排器并返回各平台结果
  - HealthHandler: 健康检查（/health, /healthz, /ready, /version）
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo: 结构化错误信息
  - Pinger / Batches: 就绪检查依赖的浏览器、缓存与批次状态

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON
  - 请求验证：DecodeJSONBody（64 KB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码映射
  - request_id 从请求上下文写入响应
*/
package handlers
