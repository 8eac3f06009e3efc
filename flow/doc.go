// Copyright 2026 GenFlow Authors
// Use of this source code is governed by the project license.

/*
# 概述

包 flow 实现结构化生成 Flow 的注册与执行：每个 Flow 由输入 Schema、
提示模板（或渲染函数）、输出 Schema 与生成配置组成，执行器负责把
一次调用推进过状态机：

	Idle -> ValidatingInput -> Rendering -> AwaitingBackend -> ValidatingOutput -> Succeeded | Failed

任何阶段的失败都以 *types.Error 返回，错误码区分四类：

  - SCHEMA_CONFIGURATION：Flow 定义本身有缺陷（注册期或渲染期发现）
  - INPUT_VALIDATION_FAILED：输入不满足输入 Schema，携带字段级错误
  - BACKEND_CALL_FAILED：后端报错、ctx 取消或超时、结果为空、缺少必需媒体
  - OUTPUT_VALIDATION_FAILED：后端结果不是 JSON 或不满足输出 Schema

执行器从不返回部分填充的输出，也从不自动重试；需要重试的调用方
使用 [RetryPolicy]。

# 并发

[Registry] 在 [Registry.Seal] 之后只读，读取路径不加锁；[Executor]
不持有单次调用的状态，可被任意多个 goroutine 并发使用。
[InvokeAll] 以有界并发批量执行相互独立的调用。

# 类型化调用

	out, err := flow.Run[KeywordInput, KeywordOutput](ctx, exec, "keywordResearch", in)
*/
package flow
