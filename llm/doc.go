// Copyright 2026 GenFlow Authors
// Use of this source code is governed by the project license.

/*
包 llm 定义生成式后端的统一接入契约。

# 概述

Flow 执行器只依赖 [Backend] 接口：输入一个已渲染的 [Request]
（文本指令、独立的媒体附件、生成配置），返回原始的 [Response]
（文本和/或媒体）。具体服务商适配位于 llm/providers 下。

# 核心类型

  - [Backend]：后端接口，提供 Generate / Name
  - [Request]：渲染后的请求，Prompt 与 Media 分离
  - [GenerationConfig]：ResponseModalities 与 SafetySettings
  - [HarmThreshold]：安全阈值，按严格程度有序
  - [Error]：带错误码与可重试标记的后端错误
  - [BackendRegistry]：按名称管理多个后端并指定默认后端

# 错误语义

后端错误统一为 [*Error]，Retryable 字段决定调用方重试策略是否生效。
*/
package llm
