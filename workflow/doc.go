// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package workflow 提供代码开发团队的工作流编排。

# 概述

CodeDevelopment 把 agent/conversation 的轮询调度器与 agent/artifacts
的产物提取组合成一次调用：给定任务描述，编写者、评审者与优化者按顺序
轮流发言，直到达到轮次上限或出现结束标记，然后从对话记录中提取初始
代码、评审意见与最终代码。

# 核心类型

  - Config / AgentConfig：团队、轮次上限、结束标记与模型参数，
    DefaultConfig 返回 CodeWriter / CodeReviewer / CodeOptimizer 团队
  - CodeDevelopment：工作流门面，Run 每次创建独立的 Agent 与调度器
  - WorkflowResult：成功运行的不可变结果，Stats 返回摘要指标
  - RunFailure：失败时返回，保留部分对话记录与已用时间
  - RunBatch / BatchReport / Summary：基于 errgroup 的并发批量运行

# 扩展点

  - MetricsRecorder：运行与轮次指标（internal/metrics.Collector）
  - Archive：结果归档（workflow/history.Store）
  - Observer：消息追加回调，用于实时输出进度

子包 history 基于 GORM 持久化运行记录。
*/
package workflow
