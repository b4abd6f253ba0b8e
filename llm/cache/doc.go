// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package cache 提供补全请求级别的响应缓存。

# 概述

CachingProvider 包装任意 llm.Provider，以模型、采样参数与消息列表的
SHA-256 作为键，把成功的 ChatResponse 以 JSON 写入 Store。同一任务
重跑时，相同前缀的轮次可以直接命中缓存。

# 主要能力

  - Store 接口：由 internal/cache.Manager（Redis）实现。
  - 故障隔离：读写缓存失败只记录日志并计数，补全照常进行。
  - 统计：Stats 返回命中、未命中与存储错误计数。
*/
package cache
