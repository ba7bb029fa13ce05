// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、平台自动化、
浏览器会话与回答缓存。

# 概述

Collector 通过 promauto 注册全部指标，按 namespace 隔离。它同时实现
cache.Observer、automator.Observer 与 orchestrator.Observer，
由 cmd/askall 在装配时注入各组件。

# 主要能力

  - HTTP 指标：请求总数与耗时，状态码归类为 2xx/3xx/4xx/5xx。
  - 平台指标：按 platform/source/outcome 统计结果与耗时，
    记录状态机迁移与填写提交的重试次数。
  - 会话指标：浏览器会话打开成功与失败次数。
  - 缓存指标：按层（local/store）统计命中，未命中与存储错误计数。
*/
package metrics
