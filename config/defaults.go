// =============================================================================
// 📦 genflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Flows:     DefaultFlowsConfig(),
		MCP:       DefaultMCPConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    150 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		MaxBodyBytes:    16 << 20,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultLLMConfig 返回默认后端配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:   "gemini",
		Model:      "gemini-2.0-flash",
		ImageModel: "gemini-2.0-flash-preview-image-generation",
		Timeout:    60 * time.Second,
	}
}

// DefaultFlowsConfig 返回默认流程调用配置
func DefaultFlowsConfig() FlowsConfig {
	return FlowsConfig{
		Timeout:    120 * time.Second,
		BatchLimit: 4,
		Retry: RetryConfig{
			MaxRetries: 0,
			BaseDelay:  500 * time.Millisecond,
			MaxDelay:   10 * time.Second,
		},
	}
}

// DefaultMCPConfig 返回默认 MCP 配置
func DefaultMCPConfig() MCPConfig {
	return MCPConfig{
		Enabled:  false,
		BasePath: "/mcp",
		Name:     "genflow",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "genflow",
		SampleRate:   0.1,
	}
}
