// Copyright (c) GenFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 genflow 服务端与命令行入口。

# 概述

cmd/genflow 把内置的结构化生成 flow 暴露为 HTTP API、MCP 工具与一次性
命令。程序支持 YAML 配置文件加 GENFLOW_* 环境变量、结构化日志（zap）、
Prometheus 指标采集、OpenTelemetry 追踪以及日志级别热重载。

# 核心类型

  - App        — flow 运行时：注册表、后端、执行器与可选的重试包装
  - Server     — 主服务器，管理 API 与 Metrics 双端口及优雅关闭
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 子命令

  - serve：启动 API（可挂载 MCP SSE）与 Metrics 服务
  - run / batch：调用单个或多个 flow 并输出校验后的 JSON
  - flows / check：列出 flow，校验定义与配置
  - mcp：以 stdio 方式提供 MCP 工具
  - health / version

# 中间件链

Recovery、RequestID、SecurityHeaders、OTelTracing、MetricsMiddleware、
RequestLogger、CORS、RateLimiter（基于 IP）、Auth（X-API-Key 或 JWT Bearer）。
错误响应统一使用 handlers 包的响应信封。

构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
