// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
包 conversation 提供轮询式（round-robin）多智能体对话引擎。

# 概述

多个 Agent 按固定顺序轮流发言，每轮把完整对话记录交给当前 Agent，
由其调用补全服务生成一条消息并追加到记录末尾。每次追加后评估终止
条件，满足即停止，触发终止的 Agent 是最后一个发言者。

# 核心类型

  - Participant：对话参与者接口，定义 Name / Produce 两个方法
  - Agent：基于 llm.Provider 的参与者，只持有名称与静态指令，
    每轮从对话记录重建上下文，不保留跨轮状态
  - Termination：可组合的终止条件值类型，由 MaxTurns、SentinelMatch
    与 Or 构造，Evaluate 为纯函数
  - RoundRobin：调度器状态机 Idle -> Running -> Completed | Failed，
    每个实例只运行一次

# 错误语义

  - 构造期问题（空团队、重名、非正的轮次上限、终止条件缺少 MaxTurns）返回
    *types.ConfigurationError，不会执行任何一轮
  - 补全失败以 *types.GenerationFailure 表示，调度器不重试，
    立即停止并通过 *RunError 返回部分对话记录
  - ctx 取消只在轮次边界生效，进行中的一轮会完成并被追加，
    随后返回包裹 *types.CancelledError 的 *RunError

# 可观测性

每次运行与每一轮各创建一个 OpenTelemetry span；TurnRecorder 接收
每轮耗时与错误，TurnObserver 在每条消息追加后按顺序回调。
*/
package conversation
