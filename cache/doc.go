// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package cache 提供按（平台，问题）寻址、带 TTL 的答案缓存。

# 概述

ResponseCache 位于 Orchestrator 与浏览器自动化之间：同一问题在有效期
（默认 24 小时）内再次提交时，直接返回上次抽取到的答案，不再驱动浏览器。
缓存只是优化手段，任何存储读写错误都被降级为“未命中”或“忽略写入”，
绝不会中断一次查询。

# 核心类型

  - ResponseCache: Get / Put 入口，负责键派生、过期判断与错误降级
  - Store: 持久化后端接口（Load / Save / Ping / Close）
  - FileStore: 默认后端，每个条目一个 JSON 文件，进程重启后仍然有效
  - RedisStore: 基于 go-redis 的共享后端
  - SQLStore: 基于 gorm 的后端，支持 sqlite / postgres / mysql

# 过期策略

过期为惰性判断：读取时比较 now - CreatedAt 与 TTL，过期条目视为不存在，
不做后台清理。新的 Put 会直接覆盖同键旧条目。
*/
package cache
