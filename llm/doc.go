// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package llm 定义补全服务（Completion Client）边界。

# 概述

对话引擎只通过 Provider 接口与外部 LLM 交互：输入一组角色化消息，
输出一次补全。所有失败统一以 *Error 表达，ErrorCode 区分连接错误、
限流、配额、超时与响应异常等子类型，上层据此归类为 GenerationFailure。

# 组合方式

重试、限流、缓存等策略都以包装 Provider 的方式叠加，而不是放进调度器：

  - llm/retry：指数退避重试
  - llm/middleware：客户端限流（golang.org/x/time/rate）
  - llm/cache：基于 Redis 的补全缓存
  - llm/providers/openaicompat：OpenAI 兼容 HTTP 实现

包装器会把 Close 透传给内部 Provider，使连接在每条退出路径上都能释放。
*/
package llm
