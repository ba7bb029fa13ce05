// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
askall 是把同一个问题依次发给 Claude、OpenAI、Gemini 网页端的命令行与 HTTP 服务。

# 子命令

	askall serve   [--config path]             启动 HTTP 服务与 metrics 端口
	askall ask     [--config path] "question"  进程内执行一次批次并打印结果
	askall chat    [--addr url] [--api-key k]  连接服务端的交互式问答
	askall health  [--addr url]                健康检查
	askall version                             版本信息

配置优先级：默认值 → YAML → ASKALL_* 环境变量。
*/
package main
