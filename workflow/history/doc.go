// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package history 基于 GORM 持久化工作流运行记录。

Store 实现 workflow.Archive：成功与失败的运行都写入 workflow_runs 表，
对话以 JSON 文本保存，失败运行保留部分对话与错误信息。Get、List 与
Prune 供命令行 history 子命令查询与清理。
*/
package history
