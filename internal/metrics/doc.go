// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package metrics 提供基于 Prometheus 的工作流指标采集。

# 指标

  - workflow_runs_total{status, stop_reason}、workflow_run_duration_seconds{status}、
    workflow_run_turns：每次运行记录一次
  - conversation_turns_total{agent, status}、conversation_turn_duration_seconds{agent}：
    每轮对话记录一次
  - generation_failures_total{agent, kind}：按 FailureKind 统计补全失败
  - llm_tokens_used_total{type}、llm_cost_total：累计 Token 用量与成本

Collector 实现 workflow.MetricsRecorder（含 conversation.TurnRecorder），
Handler 返回 /metrics 抓取端点，通常交给 internal/server 对外提供。
传入独立的 prometheus.Registry 可避免测试之间的重复注册。
*/
package metrics
