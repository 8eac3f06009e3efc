// Package config 提供 genflow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序加载，
// 环境变量前缀默认为 GENFLOW；Watcher 在配置文件变更时重新加载，
// 服务端据此在运行时调整日志级别。
package config
