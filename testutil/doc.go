// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 CodeCrew 测试的共享工具和辅助函数。

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext
  - 对话记录: Transcript 构造带任务种子的记录，AssertSources / AssertIndexed
    检查发言顺序与位置
  - 异步断言: AssertEventuallyTrue / WaitFor

# 子包

  - testutil/mocks: ScriptedProvider，按脚本返回补全结果或错误的 llm.Provider
  - testutil/fixtures: 代码开发团队的脚本化回复
*/
package testutil
