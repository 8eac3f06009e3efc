// Copyright (c) GenFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 genflow HTTP API 的请求处理器实现。

# 核心类型

  - FlowHandler      — flow 列表、详情与调用（/api/v1/flows）
  - HealthHandler    — 存活与就绪检查（/health, /healthz, /ready, /version）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ErrorInfo        — 结构化错误信息，含 code、message、fields
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码与字节数
  - HealthCheck      — 可插拔就绪检查接口（注册表、后端探活）

# 错误映射

INPUT_VALIDATION_FAILED 返回 400 并附带字段级错误；FLOW_NOT_FOUND 返回 404；
BACKEND_CALL_FAILED 与 OUTPUT_VALIDATION_FAILED 返回 502，截止时间到达时返回 504；
SCHEMA_CONFIGURATION 返回 500。服务端错误只返回通用消息，细节写入日志。
*/
package handlers
