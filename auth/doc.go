// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package auth 实现第三方身份提供方（Google）的登录流程。

# 概述

Flow.Login 在给定标签页上依次填写账号、点击 Next、探测密码框并提交。
任何一步失败都会退化为等待人工完成登录：在人工窗口内发生一次页面导航
即视为人工登录完成，否则返回 OutcomeManualTimedOut。

Login 从不返回错误，调用方根据 Outcome 决定后续动作。
*/
package auth
