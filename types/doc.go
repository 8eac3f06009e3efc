// Copyright 2026 GenFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 genflow 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 schema、flow、llm、api
等上层模块提供统一的错误契约，避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误，含 HTTP 状态码、Retryable、Provider 标记
  - FieldError        — 字段级校验错误（路径 + 约束 + 消息），可直接展示给终端用户

# 错误分类

  - ErrSchemaConfiguration   — Flow 定义或 Schema 本身有缺陷（编程错误，启动即失败）
  - ErrInputValidation       — 调用方输入不符合输入 Schema（可恢复，面向用户）
  - ErrBackendCallFailed     — 生成后端不可达、报错或返回空结果（可恢复）
  - ErrOutputValidation      — 后端输出违反输出 Schema（可恢复，记录用于诊断）
*/
package types
