// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

// Package config 提供 CodeCrew 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（CODECREW_ 前缀）的顺序加载，
// 覆盖工作流、补全服务、缓存、运行历史数据库、日志、遥测与指标。
// Validate 把每个非法字段报告为 *types.ConfigurationError。
package config
