// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package main 提供 CodeCrew 命令行程序入口。

# 子命令

  - run：对单个任务运行编写 / 评审 / 优化工作流，任务来自 -task、
    -file 或标准输入，结果按 ORIGINAL TASK / INITIAL CODE /
    REVIEW FEEDBACK / FINAL CODE 分节输出，-json 输出完整结果
  - batch：从 YAML 文件读取任务列表并发运行，输出汇总
  - history：列出、查看或清理运行历史（需要 database.enabled）
  - version：显示构建信息

# 组件装配

补全客户端按 openaicompat → 限流 → 重试 → Redis 缓存（可选）的顺序
包装；可选组件包括 OpenTelemetry 导出、Prometheus /metrics 服务与
GORM 运行历史。API Key 取自 llm.api_key、CODECREW_LLM_API_KEY 或
OPENAI_API_KEY，缺失时以配置错误退出。
*/
package main
