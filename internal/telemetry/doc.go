// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 genflow 提供集中式的 TracerProvider 和 MeterProvider 配置。
// 当遥测功能禁用时，使用 noop 实现，不连接任何外部服务。
//
// FlowTracer 是 flow.Observer 实现，每次调用生成一个 span，
// 状态转换记录为 span 事件，失败时附带错误码。
// FlowMeter 通过 OTLP 导出调用次数、耗时与 token 用量。
package telemetry
