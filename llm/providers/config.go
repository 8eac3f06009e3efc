package providers

import "time"

// BaseProviderConfig 所有后端共享的基础配置字段。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// GeminiConfig Gemini 后端配置
type GeminiConfig struct {
	BaseProviderConfig `yaml:",inline"`
	// ImageModel 用于请求 IMAGE 模态时的默认模型
	ImageModel string `json:"image_model,omitempty" yaml:"image_model,omitempty"`
}
