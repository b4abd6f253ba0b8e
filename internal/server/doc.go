// Copyright (c) CodeCrew Authors.
// Licensed under the MIT License.

/*
Package server 管理后台 HTTP 服务器的生命周期。

命令行在开启指标时用 Manager 在独立端口暴露 Prometheus /metrics：
Start 非阻塞启动，Shutdown 在超时内优雅关闭，Errors 传播后台错误。
*/
package server
