// Copyright (c) askall Authors.
// Licensed under the MIT License.

// Package tlsutil 集中提供加固的 TLS 配置（TLS 1.2+，仅 AEAD 密码套件），
// 供 askall 客户端与 Redis 缓存后端使用。
package tlsutil
