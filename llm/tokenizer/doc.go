// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

// Package tokenizer 提供统一的 Token 计数接口，支持 tiktoken 精确计数
// 与 CJK 感知的估算器，用于在服务端未报告用量时估算每轮消耗。
package tokenizer
