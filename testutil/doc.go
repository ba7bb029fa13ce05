// Copyright (c) askall Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 askall 测试共享的辅助函数。

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup
  - 异步断言: AssertEventuallyTrue / WaitFor
  - 结果断言: AssertResultOrder / AssertFailedWith
  - 数据工具: MustJSON / MustParseJSON

# 子包

  - testutil/fixtures: 常用的平台结果样例
*/
package testutil
