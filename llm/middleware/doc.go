// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package middleware 提供包装 llm.Provider 的横切中间件。

# 概述

中间件与被包装的 Provider 实现同一接口，因此可以在补全边界上任意
叠加，调度器对此无感知。

# 主要能力

  - RateLimitedProvider：基于 golang.org/x/time/rate 的令牌桶客户端限流，
    等待中断时返回可重试的 ErrRateLimited，可与 llm/retry 组合。
*/
package middleware
