package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/llm/providers"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBackend(providers.GeminiConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: "test-key", BaseURL: srv.URL},
	}, zap.NewNop())
}

func TestBackend_Defaults(t *testing.T) {
	b := NewBackend(providers.GeminiConfig{}, nil)
	assert.Equal(t, "gemini", b.Name())
	assert.Equal(t, DefaultBaseURL, b.cfg.BaseURL)
	assert.Equal(t, DefaultModel, b.cfg.Model)
	assert.Equal(t, DefaultImageModel, b.cfg.ImageModel)
	assert.Equal(t, 60*time.Second, b.client.Timeout)
}

func TestBackend_GenerateText(t *testing.T) {
	var got geminiRequest
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"role":"model","parts":[{"text":"{\"title\":"},{"text":"\"Hi\"}"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}
		}`))
	})

	resp, err := b.Generate(context.Background(), &llm.Request{Prompt: "generate meta tags"})
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Hi"}`, resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "gemini", resp.Provider)

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Equal(t, "generate meta tags", got.Contents[0].Parts[0].Text)
	assert.Nil(t, got.GenerationConfig)
	assert.Empty(t, got.SafetySettings)
}

func TestBackend_GenerateImageRequestEncoding(t *testing.T) {
	photo := []byte("\x89PNG\r\n\x1a\nphoto")
	processed := []byte("\x89PNG\r\n\x1a\nprocessed")

	var got geminiRequest
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/"+DefaultImageModel+":generateContent", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{
					map[string]any{"text": "Here you go"},
					map[string]any{"inlineData": map[string]any{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(processed)}},
				}},
			}},
		})
	})

	resp, err := b.Generate(context.Background(), &llm.Request{
		Prompt: "remove the background",
		Media: []llm.Media{
			{MIMEType: "image/png", Data: photo},
			{MIMEType: "image/jpeg", URL: "https://cdn.example.com/b.jpg"},
		},
		GenerationConfig: llm.GenerationConfig{
			ResponseModalities: []llm.Modality{llm.ModalityText, llm.ModalityImage},
			SafetySettings:     llm.AllowAll(),
		},
	})
	require.NoError(t, err)

	parts := got.Contents[0].Parts
	require.Len(t, parts, 3)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(photo), parts[0].InlineData.Data)
	require.NotNil(t, parts[1].FileData)
	assert.Equal(t, "https://cdn.example.com/b.jpg", parts[1].FileData.FileURI)
	assert.Equal(t, "remove the background", parts[2].Text)

	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, []string{"TEXT", "IMAGE"}, got.GenerationConfig.ResponseModalities)
	require.Len(t, got.SafetySettings, 4)
	for _, s := range got.SafetySettings {
		assert.Equal(t, "BLOCK_NONE", s.Threshold)
	}

	assert.Equal(t, "Here you go", resp.Text)
	require.Len(t, resp.Media, 1)
	assert.Equal(t, processed, resp.Media[0].Data)
	assert.Equal(t, "image/png", resp.Media[0].MIMEType)
}

func TestBackend_ModelOverride(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", r.URL.Path)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}],"modelVersion":"gemini-1.5-pro-002"}`))
	})
	resp, err := b.Generate(context.Background(), &llm.Request{Prompt: "x", Model: "gemini-1.5-pro"})
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-pro-002", resp.Model)
}

func TestBackend_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      llm.ErrorCode
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","status":"UNAUTHENTICATED"}}`, llm.ErrUnauthorized, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, llm.ErrRateLimited, true},
		{"quota", http.StatusBadRequest, `{"error":{"message":"Quota exceeded"}}`, llm.ErrQuotaExceeded, false},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"invalid argument"}}`, llm.ErrInvalidRequest, false},
		{"unavailable", http.StatusServiceUnavailable, `overloaded`, llm.ErrUpstreamError, true},
		{"gateway timeout", http.StatusGatewayTimeout, ``, llm.ErrUpstreamTimeout, true},
		{"internal", http.StatusInternalServerError, `{}`, llm.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := b.Generate(context.Background(), &llm.Request{Prompt: "x"})
			var le *llm.Error
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.code, le.Code)
			assert.Equal(t, tt.retryable, le.Retryable)
			assert.Equal(t, tt.status, le.HTTPStatus)
		})
	}
}

func TestBackend_BlockedPrompt(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})
	_, err := b.Generate(context.Background(), &llm.Request{Prompt: "x"})
	var le *llm.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, llm.ErrContentFiltered, le.Code)
}

func TestBackend_SafetyFinishWithoutContent(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`))
	})
	_, err := b.Generate(context.Background(), &llm.Request{Prompt: "x"})
	var le *llm.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, llm.ErrContentFiltered, le.Code)
}

func TestBackend_EmptyCandidatesIsEmptyResponse(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})
	resp, err := b.Generate(context.Background(), &llm.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.True(t, resp.Empty())
}

func TestBackend_MalformedBody(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := b.Generate(context.Background(), &llm.Request{Prompt: "x"})
	var le *llm.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, llm.ErrUpstreamError, le.Code)
}

func TestBackend_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := b.Generate(ctx, &llm.Request{Prompt: "x"})
	var le *llm.Error
	require.True(t, errors.As(err, &le))
	assert.False(t, le.Retryable)
}

func TestBackend_NilRequest(t *testing.T) {
	b := NewBackend(providers.GeminiConfig{}, zap.NewNop())
	_, err := b.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestBackend_HealthCheck(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	status, err := b.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	down := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	status, err = down.HealthCheck(context.Background())
	assert.Error(t, err)
	assert.False(t, status.Healthy)
}

func TestBackend_Integration(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	b := NewBackend(providers.GeminiConfig{
		BaseProviderConfig: providers.BaseProviderConfig{APIKey: apiKey, Timeout: 30 * time.Second},
	}, zap.NewNop())

	resp, err := b.Generate(context.Background(), &llm.Request{Prompt: "Say 'test' only"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
}
