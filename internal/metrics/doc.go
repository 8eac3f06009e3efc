// Copyright 2026 GenFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 请求、
Flow 调用与生成后端三个维度。

# 核心类型

  - Collector：指标收集器，使用 promauto 注册 Counter、Histogram、
    Gauge 向量指标，按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为
    2xx/3xx/4xx/5xx。
  - Flow 指标：调用总数（flow/outcome/error_code）、调用耗时、
    状态转换计数与进行中调用数。Collector.Observer 返回的
    flow.Observer 可直接传给 flow.WithObserver。
  - 后端指标：后端调用耗时与 Token 用量（prompt/completion）。
*/
package metrics
