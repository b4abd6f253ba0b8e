// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为工作流运行与对话轮次的 span 以及 codecrew.workflow.* 指标
// 安装全局 TracerProvider 和 MeterProvider。
// 遥测关闭时保留 noop 实现，不连接任何外部服务。
package telemetry
