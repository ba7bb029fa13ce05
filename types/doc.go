// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package types 提供 askall 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 cache、automator、
orchestrator、api 等上层模块提供统一的类型契约。

# 核心类型

  - Platform: 目标对话平台枚举（claude / openai / gemini），顺序固定
  - PlatformResult: 单个平台的答案或带平台标签的失败描述
  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码、Retryable、Platform 标记
*/
package types
