package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/genflow/internal/datauri"
)

// 统一的后端错误码，用于对齐 HTTP 状态与可重试性。
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"      // 参数/格式错误
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"         // 未授权或密钥失效
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"            // 权限或内容策略拒绝
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"         // 上游或本地限流
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"       // 额度/配额用尽
	ErrContentFiltered     ErrorCode = "LLM_CONTENT_FILTERED"     // 命中内容安全
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"     // 模型过载
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"     // 上游超时
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"       // 上游 5xx/网络错误
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE" // 后端不可用
	ErrEmptyResponse       ErrorCode = "LLM_EMPTY_RESPONSE"       // 无文本也无媒体
)

type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Code, e.Message)
}

// IsRetryable reports whether err carries a retryable backend error.
func IsRetryable(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Retryable
}

// Modality 是后端可返回的内容形态。
type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityImage Modality = "IMAGE"
)

// HarmCategory 是安全过滤的类别。
type HarmCategory string

const (
	HarmCategoryHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategoryDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
	HarmCategoryHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmCategorySexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
)

// HarmCategories lists every category in a stable order.
var HarmCategories = []HarmCategory{
	HarmCategoryHateSpeech,
	HarmCategoryDangerousContent,
	HarmCategoryHarassment,
	HarmCategorySexuallyExplicit,
}

// HarmThreshold 从最严格到最宽松排列。
type HarmThreshold string

const (
	BlockLowAndAbove    HarmThreshold = "BLOCK_LOW_AND_ABOVE"
	BlockMediumAndAbove HarmThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	BlockOnlyHigh       HarmThreshold = "BLOCK_ONLY_HIGH"
	BlockNone           HarmThreshold = "BLOCK_NONE"
)

// Restrictiveness orders thresholds: 0 is the most restrictive, -1 means unknown.
func (t HarmThreshold) Restrictiveness() int {
	switch t {
	case BlockLowAndAbove:
		return 0
	case BlockMediumAndAbove:
		return 1
	case BlockOnlyHigh:
		return 2
	case BlockNone:
		return 3
	default:
		return -1
	}
}

// SafetySetting pairs a category with its blocking threshold.
type SafetySetting struct {
	Category  HarmCategory  `json:"category"`
	Threshold HarmThreshold `json:"threshold"`
}

// GenerationConfig 是 Flow 声明的生成参数，原样传给后端。
type GenerationConfig struct {
	ResponseModalities []Modality      `json:"responseModalities,omitempty"`
	SafetySettings     []SafetySetting `json:"safetySettings,omitempty"`
}

// IsZero reports whether no generation option is set.
func (c GenerationConfig) IsZero() bool {
	return len(c.ResponseModalities) == 0 && len(c.SafetySettings) == 0
}

// Wants reports whether m is among the requested response modalities.
func (c GenerationConfig) Wants(m Modality) bool {
	for _, x := range c.ResponseModalities {
		if x == m {
			return true
		}
	}
	return false
}

// Equal compares two configs element by element.
func (c GenerationConfig) Equal(o GenerationConfig) bool {
	if len(c.ResponseModalities) != len(o.ResponseModalities) || len(c.SafetySettings) != len(o.SafetySettings) {
		return false
	}
	for i := range c.ResponseModalities {
		if c.ResponseModalities[i] != o.ResponseModalities[i] {
			return false
		}
	}
	for i := range c.SafetySettings {
		if c.SafetySettings[i] != o.SafetySettings[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no slices with c.
func (c GenerationConfig) Clone() GenerationConfig {
	out := GenerationConfig{}
	if c.ResponseModalities != nil {
		out.ResponseModalities = append([]Modality(nil), c.ResponseModalities...)
	}
	if c.SafetySettings != nil {
		out.SafetySettings = append([]SafetySetting(nil), c.SafetySettings...)
	}
	return out
}

// AllowAll returns safety settings at BLOCK_NONE for every category.
func AllowAll() []SafetySetting {
	out := make([]SafetySetting, 0, len(HarmCategories))
	for _, c := range HarmCategories {
		out = append(out, SafetySetting{Category: c, Threshold: BlockNone})
	}
	return out
}

// Media 是一个媒体附件，内容为内联字节或远程 URL 二选一。
type Media struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
}

// MediaFromDataURI decodes a data URI into an inline media part.
func MediaFromDataURI(s string) (Media, error) {
	u, err := datauri.Parse(s)
	if err != nil {
		return Media{}, err
	}
	return Media{MIMEType: u.MIMEType, Data: u.Data}, nil
}

// DataURI encodes inline media; URL media is returned as is.
func (m Media) DataURI() string {
	if len(m.Data) == 0 && m.URL != "" {
		return m.URL
	}
	return datauri.Encode(m.MIMEType, m.Data)
}

// Request 是渲染后的后端请求，Prompt 与 Media 分离。
type Request struct {
	Prompt           string           `json:"prompt"`
	Media            []Media          `json:"media,omitempty"`
	GenerationConfig GenerationConfig `json:"generationConfig"`
	// Model 覆盖后端默认模型，可为空。
	Model string `json:"model,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Response 是后端原始结果，Text 与 Media 均可为空。
type Response struct {
	Text         string    `json:"text,omitempty"`
	Media        []Media   `json:"media,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	Usage        Usage     `json:"usage,omitempty"`
	FinishReason string    `json:"finish_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Empty reports whether the response holds neither text nor media.
func (r *Response) Empty() bool {
	return r == nil || (r.Text == "" && len(r.Media) == 0)
}

// HealthStatus 表示后端健康检查结果。
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Backend 是生成式后端的统一接口。
type Backend interface {
	// Generate 发起一次生成调用，ctx 取消时应尽快返回
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name 返回后端的唯一标识
	Name() string
}

// HealthChecker 由支持探活的后端实现。
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
