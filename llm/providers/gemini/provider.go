package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/internal/tlsutil"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultModel      = "gemini-2.0-flash"
	DefaultImageModel = "gemini-2.0-flash-preview-image-generation"
	defaultTimeout    = 60 * time.Second
	providerName      = "gemini"
)

// Backend 实现 Google Gemini 的 llm.Backend
// Gemini API 特点：
// 1. 使用 x-goog-api-key 请求头认证
// 2. 媒体以 inlineData/fileData 分片与文本指令并列
// 3. 图像生成通过 responseModalities 请求 IMAGE
type Backend struct {
	cfg    providers.GeminiConfig
	client *http.Client
	logger *zap.Logger
}

var (
	_ llm.Backend       = (*Backend)(nil)
	_ llm.HealthChecker = (*Backend)(nil)
)

// NewBackend 创建 Gemini Backend
func NewBackend(cfg providers.GeminiConfig, logger *zap.Logger) *Backend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Backend{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(timeout),
		logger: logger.With(zap.String("component", "gemini_backend")),
	}
}

func (b *Backend) Name() string { return providerName }

func (b *Backend) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(b.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	b.buildHeaders(httpReq)

	resp, err := b.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, providers.MapTransportError(err, b.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		msg := providers.ReadErrorMessage(resp.Body)
		return &llm.HealthStatus{Healthy: false, Latency: latency}, providers.MapHTTPError(resp.StatusCode, msg, b.Name())
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Gemini 消息结构
type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings   []geminiSafetySetting   `json:"safetySettings,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *geminiUsageMetadata  `json:"usageMetadata,omitempty"`
	ModelVersion   string                `json:"modelVersion,omitempty"`
	ResponseID     string                `json:"responseId,omitempty"`
}

func (b *Backend) buildHeaders(req *http.Request) {
	// Gemini 使用 x-goog-api-key 认证
	req.Header.Set("x-goog-api-key", b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// buildRequest 将渲染后的请求转换为 Gemini 格式, 媒体分片在前、文本指令在后
func buildRequest(req *llm.Request) geminiRequest {
	content := geminiContent{Role: "user"}
	for _, m := range req.Media {
		if len(m.Data) > 0 {
			content.Parts = append(content.Parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: m.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(m.Data),
			}})
			continue
		}
		if m.URL != "" {
			content.Parts = append(content.Parts, geminiPart{FileData: &geminiFileData{
				MimeType: m.MIMEType,
				FileURI:  m.URL,
			}})
		}
	}
	if req.Prompt != "" {
		content.Parts = append(content.Parts, geminiPart{Text: req.Prompt})
	}

	body := geminiRequest{Contents: []geminiContent{content}}

	cfg := req.GenerationConfig
	if len(cfg.ResponseModalities) > 0 {
		gc := &geminiGenerationConfig{}
		for _, m := range cfg.ResponseModalities {
			gc.ResponseModalities = append(gc.ResponseModalities, string(m))
		}
		body.GenerationConfig = gc
	}
	for _, s := range cfg.SafetySettings {
		body.SafetySettings = append(body.SafetySettings, geminiSafetySetting{
			Category:  string(s.Category),
			Threshold: string(s.Threshold),
		})
	}
	return body
}

// Generate 调用 generateContent
func (b *Backend) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: "request is nil", HTTPStatus: http.StatusBadRequest, Provider: b.Name()}
	}

	model := b.chooseModel(req)
	payload, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, &llm.Error{Code: llm.ErrInvalidRequest, Message: err.Error(), HTTPStatus: http.StatusBadRequest, Provider: b.Name()}
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(b.cfg.BaseURL, "/"), model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	b.buildHeaders(httpReq)

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		b.logger.Warn("gemini request failed", zap.String("model", model), zap.Error(err))
		return nil, providers.MapTransportError(err, b.Name())
	}
	defer providers.SafeCloseBody(resp.Body)

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		b.logger.Warn("gemini returned error status",
			zap.String("model", model),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, providers.MapHTTPError(resp.StatusCode, msg, b.Name())
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrUpstreamError,
			Message:    fmt.Sprintf("decode response: %v", err),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   b.Name(),
		}
	}

	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return nil, &llm.Error{
			Code:       llm.ErrContentFiltered,
			Message:    "prompt blocked: " + gr.PromptFeedback.BlockReason,
			HTTPStatus: http.StatusBadRequest,
			Provider:   b.Name(),
		}
	}

	out, err := toResponse(gr, b.Name(), model)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("gemini generate completed",
		zap.String("model", model),
		zap.Int("media", len(out.Media)),
		zap.Int("text_len", len(out.Text)),
		zap.Duration("latency", time.Since(start)))
	return out, nil
}

func toResponse(gr geminiResponse, provider, model string) (*llm.Response, error) {
	out := &llm.Response{Provider: provider, Model: model, CreatedAt: time.Now()}
	if gr.ModelVersion != "" {
		out.Model = gr.ModelVersion
	}

	if len(gr.Candidates) > 0 {
		candidate := gr.Candidates[0]
		out.FinishReason = candidate.FinishReason

		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.InlineData != nil {
				data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, &llm.Error{
						Code:       llm.ErrUpstreamError,
						Message:    fmt.Sprintf("invalid inline data: %v", err),
						HTTPStatus: http.StatusBadGateway,
						Provider:   provider,
					}
				}
				out.Media = append(out.Media, llm.Media{MIMEType: part.InlineData.MimeType, Data: data})
			}
			if part.FileData != nil {
				out.Media = append(out.Media, llm.Media{MIMEType: part.FileData.MimeType, URL: part.FileData.FileURI})
			}
		}
		out.Text = text.String()

		if out.Empty() && candidate.FinishReason == "SAFETY" {
			return nil, &llm.Error{
				Code:       llm.ErrContentFiltered,
				Message:    "candidate blocked by safety settings",
				HTTPStatus: http.StatusBadRequest,
				Provider:   provider,
			}
		}
	}

	if gr.UsageMetadata != nil {
		out.Usage = llm.Usage{
			PromptTokens:     gr.UsageMetadata.PromptTokenCount,
			CompletionTokens: gr.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      gr.UsageMetadata.TotalTokenCount,
		}
	}
	return out, nil
}

func (b *Backend) chooseModel(req *llm.Request) string {
	if req.Model != "" {
		return req.Model
	}
	if req.GenerationConfig.Wants(llm.ModalityImage) {
		return b.cfg.ImageModel
	}
	return b.cfg.Model
}
