// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
包 server 管理 HTTP 服务器生命周期：非阻塞启动、优雅关闭与信号监听。

# 核心类型

  - Manager：封装单个 net/http.Server，持有监听器与异步错误通道。
    请求上下文派生自 Manager 的批次上下文，排空超时后统一取消。
  - Group：统一启动和关闭多个 Manager（API 端口与 metrics 端口），
    关闭时并发排空各服务器。

# 使用

Group.Wait 阻塞到收到 SIGINT/SIGTERM、ctx 结束或任一服务器异常退出，
随后调用方执行 Group.Shutdown。批次可能持续数分钟：ShutdownTimeout
内完成的批次正常返回，超时仍未完成的批次被取消，浏览器会话随之关闭。
*/
package server
