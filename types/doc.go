// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package types 提供 CodeCrew 全局共享的类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、workflow、llm
等上层模块提供统一的类型契约：对话消息、对话记录（Transcript）、
Token 用量以及结构化错误体系。

# 核心类型

  - Message：对话时间线中的一条消息（Source、Content、Index）
  - Transcript：一次运行的有序消息记录，只追加不修改
  - TokenUsage：Token 用量统计
  - Error / ErrorCode：结构化错误，含 Retryable 标记
  - GenerationFailure：补全服务失败（连接、限流、配额、超时、响应异常）
  - ConfigurationError：构造期发现的配置错误
  - CancelledError：在轮次边界生效的协作式取消

# 错误工具链

GetErrorCode / IsRetryable 通过 errors.As 识别以上所有错误类型，
调用方无需关心具体的包装层级。
*/
package types
