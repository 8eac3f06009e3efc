package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/api"
	"github.com/BaSui01/genflow/catalog"
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/testutil/fixtures"
	"github.com/BaSui01/genflow/testutil/mocks"
)

func newFlowMux(t *testing.T, backend llm.Backend, opts ...FlowHandlerOption) *http.ServeMux {
	t.Helper()
	reg := catalog.NewRegistry()
	h := NewFlowHandler(reg, flow.NewExecutor(reg, backend), zap.NewNop(), opts...)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func dataAs[T any](t *testing.T, resp Response) T {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestFlowHandler_List(t *testing.T) {
	mux := newFlowMux(t, mocks.NewMockBackend())
	w := do(mux, http.MethodGet, "/api/v1/flows", "")
	require.Equal(t, http.StatusOK, w.Code)

	list := dataAs[api.FlowListResponse](t, decodeResponse(t, w))
	assert.Equal(t, 5, list.Total)
	names := make([]string, 0, len(list.Flows))
	for _, f := range list.Flows {
		names = append(names, f.Name)
	}
	assert.Equal(t, catalog.NewRegistry().Names(), names)
}

func TestFlowHandler_Describe(t *testing.T) {
	mux := newFlowMux(t, mocks.NewMockBackend())

	w := do(mux, http.MethodGet, "/api/v1/flows/"+catalog.RemoveBackground, "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := dataAs[api.FlowDetail](t, decodeResponse(t, w))
	assert.True(t, detail.RequiresMedia)
	assert.Contains(t, string(detail.InputSchema), "photoDataUri")
	assert.Contains(t, string(detail.OutputSchema), "processedPhotoDataUri")

	w = do(mux, http.MethodGet, "/api/v1/flows/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "FLOW_NOT_FOUND", decodeResponse(t, w).Error.Code)
}

func TestFlowHandler_Invoke(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.Fenced(fixtures.BacklinksJSON))
	mux := newFlowMux(t, backend)

	w := do(mux, http.MethodPost, "/api/v1/flows/"+catalog.CheckBacklinks+"/invoke", `{"domain":"example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := dataAs[api.InvokeResponse](t, decodeResponse(t, w))
	assert.Equal(t, catalog.CheckBacklinks, out.Flow)
	assert.Equal(t, "mock", out.Provider)
	var backlinks catalog.BacklinkOutput
	require.NoError(t, json.Unmarshal(out.Output, &backlinks))
	assert.Equal(t, 54.0, backlinks.DomainAuthority)
	require.Len(t, backlinks.Backlinks, 1)
}

func TestFlowHandler_Invoke_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		backend  llm.Backend
		flow     string
		body     string
		status   int
		code     string
		backends int
	}{
		{
			name:    "input validation",
			backend: mocks.NewTextBackend(fixtures.BacklinksJSON),
			flow:    catalog.CheckBacklinks,
			body:    `{"domain":"nope"}`,
			status:  http.StatusBadRequest,
			code:    "INPUT_VALIDATION_FAILED",
		},
		{
			name:    "body not an object",
			backend: mocks.NewTextBackend(fixtures.BacklinksJSON),
			flow:    catalog.CheckBacklinks,
			body:    `["example.com"]`,
			status:  http.StatusBadRequest,
			code:    "INPUT_VALIDATION_FAILED",
		},
		{
			name:    "unknown flow",
			backend: mocks.NewMockBackend(),
			flow:    "nope",
			body:    `{}`,
			status:  http.StatusNotFound,
			code:    "FLOW_NOT_FOUND",
		},
		{
			name:     "backend failure",
			backend:  mocks.NewErrorBackend(&llm.Error{Code: llm.ErrUpstreamError, Message: "503", Retryable: true}),
			flow:     catalog.ResearchKeywords,
			body:     `{"topic":"sourdough"}`,
			status:   http.StatusBadGateway,
			code:     "BACKEND_CALL_FAILED",
			backends: 1,
		},
		{
			name:     "output validation",
			backend:  mocks.NewTextBackend(fixtures.BacklinksMissingAuthorityJSON),
			flow:     catalog.CheckBacklinks,
			body:     `{"domain":"example.com"}`,
			status:   http.StatusBadGateway,
			code:     "OUTPUT_VALIDATION_FAILED",
			backends: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newFlowMux(t, tt.backend)
			w := do(mux, http.MethodPost, "/api/v1/flows/"+tt.flow+"/invoke", tt.body)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			if mb, ok := tt.backend.(*mocks.MockBackend); ok {
				assert.Equal(t, tt.backends, mb.GetCallCount())
			}
		})
	}
}

func TestFlowHandler_Invoke_FieldErrors(t *testing.T) {
	mux := newFlowMux(t, mocks.NewMockBackend())
	w := do(mux, http.MethodPost, "/api/v1/flows/"+catalog.CheckBacklinks+"/invoke", `{"domain":"nope"}`)

	resp := decodeResponse(t, w)
	require.NotEmpty(t, resp.Error.Fields)
	assert.Equal(t, "domain", resp.Error.Fields[0].Path)
	assert.Equal(t, "Please enter a valid domain name (e.g. example.com)", resp.Error.Fields[0].Message)
}

func TestFlowHandler_Invoke_Timeout(t *testing.T) {
	backend := mocks.NewMockBackend().WithDelay(time.Second)
	mux := newFlowMux(t, backend, WithInvokeTimeout(20*time.Millisecond))

	w := do(mux, http.MethodPost, "/api/v1/flows/"+catalog.ResearchKeywords+"/invoke", `{"topic":"sourdough"}`)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, "BACKEND_CALL_FAILED", decodeResponse(t, w).Error.Code)
}

func TestFlowHandler_Invoke_BodyLimit(t *testing.T) {
	mux := newFlowMux(t, mocks.NewMockBackend(), WithMaxBodyBytes(64))
	body := `{"text":"` + strings.Repeat("a", 200) + `"}`

	w := do(mux, http.MethodPost, "/api/v1/flows/"+catalog.CheckPlagiarism+"/invoke", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestFlowHandler_Invoke_ContentType(t *testing.T) {
	mux := newFlowMux(t, mocks.NewMockBackend())
	r := httptest.NewRequest(http.MethodPost, "/api/v1/flows/"+catalog.ResearchKeywords+"/invoke", strings.NewReader(`{"topic":"x"}`))
	r.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestFlowHandler_Invoke_WithRetryPolicy(t *testing.T) {
	backend := mocks.NewFlakyBackend(1, &llm.Error{Code: llm.ErrUpstreamError, Message: "503", Retryable: true}, fixtures.KeywordsJSON)
	reg := catalog.NewRegistry()
	policy := flow.DefaultRetryPolicy()
	policy.MaxRetries = 2
	policy.BaseDelay = time.Millisecond
	h := NewFlowHandler(reg, policy.Wrap(flow.NewExecutor(reg, backend)), nil)
	mux := http.NewServeMux()
	h.Register(mux)

	w := do(mux, http.MethodPost, "/api/v1/flows/"+catalog.ResearchKeywords+"/invoke", `{"topic":"sourdough"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, backend.GetCallCount())
}

func TestFlowHandler_InvokeRejectsTrailingValues(t *testing.T) {
	reg := catalog.NewRegistry()
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON)
	h := NewFlowHandler(reg, flow.NewExecutor(reg, backend), nil)
	mux := http.NewServeMux()
	h.Register(mux)

	w := do(mux, http.MethodPost, "/api/v1/flows/"+catalog.CheckBacklinks+"/invoke", `{"domain":"example.com"} {"domain":"example.org"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, backend.GetCallCount())
}
