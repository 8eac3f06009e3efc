// =============================================================================
// 📦 genflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("GENFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/types"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 genflow 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM 生成式后端配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Flows 流程调用配置
	Flows FlowsConfig `yaml:"flows" env:"FLOWS"`

	// MCP 工具服务配置
	MCP MCPConfig `yaml:"mcp" env:"MCP"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时，需大于流程调用超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 空闲连接超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 请求体上限（字节），图片 data URI 需要较大的值
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"MAX_BODY_BYTES"`
	// CORS 允许的来源，为空时不启用 CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// 每个 IP 的限流速率（请求/秒），0 表示不限流
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 限流突发容量
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// API Key 列表，为空且未配置 JWT 时不鉴权
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// 允许通过查询参数 api_key 传递密钥
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// JWT 鉴权配置
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
	// TLS 证书与私钥文件，均设置时以 HTTPS 提供服务
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// TLSEnabled 报告是否配置了 TLS 证书
func (c ServerConfig) TLSEnabled() bool { return c.TLSCertFile != "" && c.TLSKeyFile != "" }

// JWTConfig JWT 鉴权配置（HS256）
type JWTConfig struct {
	// 签名密钥，为空时不启用
	Secret string `yaml:"secret" env:"SECRET"`
	// 期望的签发者，可为空
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// 期望的受众，可为空
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

// Enabled 表示是否启用 JWT 鉴权
func (c JWTConfig) Enabled() bool { return c.Secret != "" }

// LLMConfig 生成式后端配置
type LLMConfig struct {
	// 后端类型，目前支持 gemini
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key，为空时回落到 GEMINI_API_KEY / GOOGLE_API_KEY
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 文本模型
	Model string `yaml:"model" env:"MODEL"`
	// 图像模型，请求 IMAGE 模态时使用
	ImageModel string `yaml:"image_model" env:"IMAGE_MODEL"`
	// HTTP 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// FlowsConfig 流程调用配置
type FlowsConfig struct {
	// 单次调用超时，由调用方施加，0 表示不限
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 批量调用并发上限
	BatchLimit int `yaml:"batch_limit" env:"BATCH_LIMIT"`
	// 调用方重试策略，默认关闭
	Retry RetryConfig `yaml:"retry" env:"RETRY"`
}

// RetryConfig 重试配置
type RetryConfig struct {
	// 首次调用后的最大重试次数，0 表示关闭
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 初始退避
	BaseDelay time.Duration `yaml:"base_delay" env:"BASE_DELAY"`
	// 最大退避
	MaxDelay time.Duration `yaml:"max_delay" env:"MAX_DELAY"`
	// 是否重试输出校验失败
	RetryOutputValidation bool `yaml:"retry_output_validation" env:"RETRY_OUTPUT_VALIDATION"`
}

// MCPConfig MCP 工具服务配置
type MCPConfig struct {
	// 是否在 HTTP 服务上挂载 SSE 端点
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// SSE 挂载路径
	BasePath string `yaml:"base_path" env:"BASE_PATH"`
	// 服务名称
	Name string `yaml:"name" env:"NAME"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// RetryPolicy 将重试配置转换为 flow.RetryPolicy
func (c RetryConfig) RetryPolicy() flow.RetryPolicy {
	p := flow.DefaultRetryPolicy()
	if c.MaxRetries > 0 {
		p.MaxRetries = uint64(c.MaxRetries)
	}
	if c.BaseDelay > 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	if c.RetryOutputValidation {
		p.RetryOn = append(p.RetryOn, types.ErrOutputValidation)
	}
	return p
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// apiKeyFallbacks 是 LLM.APIKey 为空时依次读取的环境变量
var apiKeyFallbacks = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "GENFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// ConfigPath 返回配置文件路径
func (l *Loader) ConfigPath() string { return l.configPath }

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		for _, key := range apiKeyFallbacks {
			if v := os.Getenv(key); v != "" {
				cfg.LLM.APIKey = v
				break
			}
		}
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			out := parts[:0]
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.HTTPPort {
		errs = append(errs, "metrics port must differ from HTTP port")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, "rate_limit_rps must not be negative")
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst <= 0 {
		errs = append(errs, "rate_limit_burst must be positive when rate limiting is enabled")
	}

	if c.LLM.Provider != "gemini" {
		errs = append(errs, fmt.Sprintf("unsupported llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, "llm timeout must not be negative")
	}

	if c.Flows.Timeout < 0 {
		errs = append(errs, "flows timeout must not be negative")
	}
	if c.Flows.Retry.MaxRetries < 0 || c.Flows.Retry.MaxRetries > 10 {
		errs = append(errs, "flows retry max_retries must be between 0 and 10")
	}
	if c.Flows.Timeout > 0 && c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Flows.Timeout {
		errs = append(errs, "server write_timeout must exceed flows timeout")
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.BasePath, "/") {
		errs = append(errs, "mcp base_path must start with /")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("invalid log format %q", c.Log.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
