// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package providers 提供各 LLM Provider 共享的 OpenAI 兼容协议类型与
错误映射工具。

# 主要能力

  - MapHTTPError：HTTP 状态码 → llm.Error（401/403/429/400/5xx/529），
    并区分限流与配额耗尽
  - MapTransportError：网络层错误 → 超时或上游错误
  - ReadErrorMessage：解析 OpenAI 风格错误体，失败时回退原文
  - ConvertMessagesToOpenAI / ToLLMChatResponse：请求与响应格式转换，
    空 choices 视为响应异常

具体的 HTTP 实现见 openaicompat 子包。
*/
package providers
