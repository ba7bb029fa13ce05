// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
包 browser 提供共享持久化浏览器上下文与“按地标探测”的页面能力。

# 概述

一次查询批次只打开一个 Session：它基于磁盘上固定的用户数据目录启动
Chrome，因此各平台登录后的 cookie 与 local storage 会跨进程保留。
每个平台在该 Session 中打开自己的标签页（Page），批次结束时无论成败
都会统一关闭。

# 核心接口

  - Landmark：一个 UI 地标（CSS 或 XPath），其出现与否标志自动化状态
  - Page：标签页操作，Visible / WaitVisible / Click / Fill / PressEnter /
    Text / WaitNavigation / ClickForPopup / Close
  - Session：NewPage + 幂等的 Close
  - Opener：打开 Session 的入口，SessionManager 为 chromedp 实现

# 指纹弱化

SessionManager 关闭 AutomationControlled 特性与 enable-automation 标志，
固定视口与 UserAgent，并在每个新标签页注入脚本隐藏 navigator.webdriver。
不做更进一步的反自动化对抗。

# 测试

browsertest 子包提供按地标名称编排的内存 Session/Page，用于在不启动
浏览器的情况下测试上层状态机。
*/
package browser
