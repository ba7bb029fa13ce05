// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package database 管理 SQL 缓存后端的 GORM 连接池。

Pool 按 PoolConfig 设置 database/sql 连接池参数（sqlite 固定单连接），
按 SweepInterval 在后台调用 Sweeper 清理过期回答，并提供 Ping / Sweep / Close
供缓存后端与 /ready 使用。
*/
package database
