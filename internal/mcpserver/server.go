package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/internal/ctxkeys"
	"github.com/BaSui01/genflow/types"
)

// Server exposes every registered flow as an MCP tool.
type Server struct {
	mcp     *server.MCPServer
	inv     flow.Invoker
	tools   []mcp.Tool
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*options)

type options struct {
	name    string
	version string
	timeout time.Duration
	logger  *zap.Logger
}

// WithImplementation sets the server name and version reported to clients.
func WithImplementation(name, version string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
		if version != "" {
			o.version = version
		}
	}
}

// WithTimeout bounds every tool call.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New registers one tool per flow in reg. Calls run through inv.
func New(reg *flow.Registry, inv flow.Invoker, opts ...Option) *Server {
	o := options{name: "genflow", version: "dev", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		mcp:     server.NewMCPServer(o.name, o.version, server.WithToolCapabilities(true)),
		inv:     inv,
		timeout: o.timeout,
		logger:  o.logger.With(zap.String("component", "mcp_server")),
	}
	for _, d := range reg.List() {
		tool := mcp.NewToolWithRawSchema(d.Name, toolDescription(d), d.InputSchema)
		s.mcp.AddTool(tool, s.handler(d.Name))
		s.tools = append(s.tools, tool)
	}
	s.logger.Info("mcp tools registered", zap.Int("tools", len(s.tools)))
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Tools returns the registered tools in flow name order.
func (s *Server) Tools() []mcp.Tool { return append([]mcp.Tool(nil), s.tools...) }

// SSEHandler serves the SSE transport under basePath ("/sse" and "/message").
func (s *Server) SSEHandler(basePath string) http.Handler {
	return server.NewSSEServer(s.mcp, server.WithStaticBasePath(strings.TrimSuffix(basePath, "/")))
}

// ServeStdio serves the stdio transport until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := arguments(request.Params.Arguments)
		if err != nil {
			return errorResult(types.NewError(types.ErrInputValidation, err.Error()).WithFlow(name)), nil
		}

		ctx = ctxkeys.WithTransport(ctx, "mcp")
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		res, err := s.inv.Invoke(ctx, name, input)
		if err != nil {
			te, ok := types.AsError(err)
			if !ok {
				te = types.NewError(types.ErrInternalError, err.Error()).WithFlow(name)
			}
			s.logger.Debug("tool call failed", zap.String("flow", name), zap.String("code", string(te.Code)))
			return errorResult(te), nil
		}

		result := &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(res.Raw))},
		}
		for _, m := range res.Media {
			if len(m.Data) > 0 && strings.HasPrefix(m.MIMEType, "image/") {
				result.Content = append(result.Content, mcp.NewImageContent(base64.StdEncoding.EncodeToString(m.Data), m.MIMEType))
			}
		}
		return result, nil
	}
}

// arguments maps the tool arguments onto a flow input object.
func arguments(args any) (map[string]any, error) {
	switch v := args.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case json.RawMessage:
		var obj map[string]any
		if err := json.Unmarshal(v, &obj); err != nil {
			return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("arguments must be a JSON object, got %T", args)
	}
}

// errorResult encodes the error as a JSON tool error so clients can read codes and field paths.
func errorResult(te *types.Error) *mcp.CallToolResult {
	body, err := json.Marshal(struct {
		Code    types.ErrorCode    `json:"code"`
		Message string             `json:"message"`
		Fields  []types.FieldError `json:"fields,omitempty"`
	}{te.Code, te.Message, te.Fields})
	if err != nil {
		return mcp.NewToolResultError(te.Message)
	}
	return mcp.NewToolResultError(string(body))
}

func toolDescription(d flow.Descriptor) string {
	if d.RequiresMedia {
		return d.Description + " Returns the generated image as image content."
	}
	return d.Description
}
