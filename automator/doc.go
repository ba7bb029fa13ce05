// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package automator 驱动单个对话平台的一次完整网页交互。

# 状态机

	Start → Navigated → Authenticated → Composing → Submitted → ResponseReady → Extracted

任一状态的前置条件失败或等待超时都会转到 Failed，并返回带平台标签的
*types.Error。三个平台共用同一状态机，差异仅在 Descriptor 中的入口 URL
与各个 UI 地标。

# 登录策略

先探测登录地标，只有可见时才点击进入身份提供方并委托 auth.Flow；
登录结束后等待页面稳定，这一步从不直接失败。
*/
package automator
