package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/catalog"
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/internal/ctxkeys"
	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/testutil/fixtures"
	"github.com/BaSui01/genflow/testutil/mocks"
	"github.com/BaSui01/genflow/types"
)

func newTestServer(t *testing.T, backend llm.Backend, opts ...Option) *Server {
	t.Helper()
	reg := catalog.NewRegistry()
	exec := flow.NewExecutor(reg, backend)
	return New(reg, exec, append([]Option{WithLogger(zap.NewNop())}, opts...)...)
}

func callTool(t *testing.T, s *Server, name string, args any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := s.handler(name)(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func textOf(t *testing.T, c mcp.Content) string {
	t.Helper()
	switch v := c.(type) {
	case mcp.TextContent:
		return v.Text
	case *mcp.TextContent:
		return v.Text
	}
	t.Fatalf("content is %T, not text", c)
	return ""
}

func TestNew_OneToolPerFlow(t *testing.T) {
	s := newTestServer(t, mocks.NewMockBackend())

	tools := s.Tools()
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, catalog.NewRegistry().Names(), names)
	assert.NotNil(t, s.MCPServer())

	// 工具输入 schema 即 flow 的输入 schema
	for _, tool := range tools {
		if tool.Name != catalog.CheckBacklinks {
			continue
		}
		var sch map[string]any
		require.NoError(t, json.Unmarshal(tool.RawInputSchema, &sch))
		assert.Equal(t, "object", sch["type"])
		assert.Contains(t, sch["properties"], "domain")
	}
}

func TestToolCall_Success(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON)
	s := newTestServer(t, backend)

	res := callTool(t, s, catalog.CheckBacklinks, map[string]any{"domain": "example.com"})
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res.Content[0])), &out))
	assert.Equal(t, 54.0, out["domainAuthority"])
	assert.Equal(t, 1, backend.GetCallCount())
}

func TestToolCall_InputValidation(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON)
	s := newTestServer(t, backend)

	res := callTool(t, s, catalog.CheckBacklinks, map[string]any{"domain": "not a domain"})
	require.True(t, res.IsError)

	var body struct {
		Code   types.ErrorCode    `json:"code"`
		Fields []types.FieldError `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res.Content[0])), &body))
	assert.Equal(t, types.ErrInputValidation, body.Code)
	require.NotEmpty(t, body.Fields)
	assert.Equal(t, "domain", body.Fields[0].Path)
	assert.Equal(t, 0, backend.GetCallCount())
}

func TestToolCall_BadArguments(t *testing.T) {
	s := newTestServer(t, mocks.NewMockBackend())
	res := callTool(t, s, catalog.CheckBacklinks, []any{"example.com"})
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res.Content[0]), string(types.ErrInputValidation))
}

func TestToolCall_BackendFailure(t *testing.T) {
	s := newTestServer(t, mocks.NewErrorBackend(errors.New("boom")))
	res := callTool(t, s, catalog.ResearchKeywords, map[string]any{"topic": "sourdough"})
	assert.True(t, res.IsError)
	assert.Contains(t, textOf(t, res.Content[0]), string(types.ErrBackendCallFailed))
}

func TestToolCall_ImageContent(t *testing.T) {
	s := newTestServer(t, mocks.NewMockBackend().WithResponse(fixtures.ImageResponse()))
	res := callTool(t, s, catalog.RemoveBackground, map[string]any{"photoDataUri": fixtures.PNGDataURI()})
	require.False(t, res.IsError)
	require.Len(t, res.Content, 2)

	switch img := res.Content[1].(type) {
	case mcp.ImageContent:
		assert.Equal(t, "image/png", img.MIMEType)
	case *mcp.ImageContent:
		assert.Equal(t, "image/png", img.MIMEType)
	default:
		t.Fatalf("second content is %T", img)
	}
}

func TestToolCall_TimeoutAndTransport(t *testing.T) {
	var transport string
	backend := mocks.NewMockBackend().WithFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		transport, _ = ctxkeys.Transport(ctx)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := newTestServer(t, backend, WithTimeout(20*time.Millisecond))

	res := callTool(t, s, catalog.ResearchKeywords, map[string]any{"topic": "sourdough"})
	assert.True(t, res.IsError)
	assert.Equal(t, "mcp", transport)
}

func TestArguments(t *testing.T) {
	obj, err := arguments(nil)
	require.NoError(t, err)
	assert.Empty(t, obj)

	obj, err = arguments(json.RawMessage(`{"topic":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, "x", obj["topic"])

	_, err = arguments(json.RawMessage(`[1]`))
	assert.Error(t, err)
	_, err = arguments("topic")
	assert.Error(t, err)
}

func TestSSEHandler_RejectsUnknownPath(t *testing.T) {
	s := newTestServer(t, mocks.NewMockBackend())
	h := s.SSEHandler("/mcp/")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/mcp/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
