// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package client 提供 askall 的 HTTP 客户端与交互式命令行。

Client 调用服务端 POST /api/v1/query 并解析统一响应信封；REPL 读取问题、
打印各平台回答，并保存最近一次结果供 compare 命令逐对比较。
*/
package client
