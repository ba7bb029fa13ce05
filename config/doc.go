// Copyright (c) askall Authors.
// Licensed under the MIT License.

// Package config 提供 askall 的配置加载。
//
// 配置优先级为 默认值 → YAML 文件 → 环境变量（默认前缀 ASKALL），
// 嵌套字段的环境变量名由各层 env 标签以下划线拼接，例如
// ASKALL_AUTH_IDENTITY、ASKALL_BROWSER_HEADLESS、ASKALL_CACHE_REDIS_ADDR。
package config
