package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/api"
	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/internal/ctxkeys"
	"github.com/BaSui01/genflow/types"
)

// =============================================================================
// 🔁 Flow Handler
// =============================================================================

// FlowHandler 提供 flow 的列表、详情与调用端点
type FlowHandler struct {
	registry *flow.Registry
	invoker  flow.Invoker
	timeout  time.Duration
	maxBody  int64
	logger   *zap.Logger
}

// FlowHandlerOption 配置 FlowHandler
type FlowHandlerOption func(*FlowHandler)

// WithInvokeTimeout 为每次调用设置超时
func WithInvokeTimeout(d time.Duration) FlowHandlerOption {
	return func(h *FlowHandler) { h.timeout = d }
}

// WithMaxBodyBytes 限制调用请求体大小
func WithMaxBodyBytes(n int64) FlowHandlerOption {
	return func(h *FlowHandler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewFlowHandler 创建 flow 处理器，调用经由 inv（可为带重试的 Invoker）
func NewFlowHandler(reg *flow.Registry, inv flow.Invoker, logger *zap.Logger, opts ...FlowHandlerOption) *FlowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &FlowHandler{
		registry: reg,
		invoker:  inv,
		maxBody:  16 << 20,
		logger:   logger.With(zap.String("handler", "flows")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register 在 mux 上注册 flow 路由
func (h *FlowHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/flows", h.HandleList)
	mux.HandleFunc("GET /api/v1/flows/{name}", h.HandleDescribe)
	mux.HandleFunc("POST /api/v1/flows/{name}/invoke", h.HandleInvoke)
}

// HandleList 列出全部 flow
// @Summary flow 列表
// @Tags flows
// @Produce json
// @Success 200 {object} Response{data=api.FlowListResponse}
// @Router /api/v1/flows [get]
func (h *FlowHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	descs := h.registry.List()
	out := api.FlowListResponse{Flows: make([]api.FlowSummary, 0, len(descs)), Total: len(descs)}
	for _, d := range descs {
		out.Flows = append(out.Flows, api.NewFlowSummary(d))
	}
	WriteSuccess(w, r, out)
}

// HandleDescribe 返回 flow 详情与 schema
// @Summary flow 详情
// @Tags flows
// @Produce json
// @Param name path string true "flow 名称"
// @Success 200 {object} Response{data=api.FlowDetail}
// @Failure 404 {object} Response
// @Router /api/v1/flows/{name} [get]
func (h *FlowHandler) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	d, err := h.registry.Describe(r.PathValue("name"))
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.NewFlowDetail(d))
}

// HandleInvoke 以请求体作为输入对象调用 flow
// @Summary 调用 flow
// @Tags flows
// @Accept json
// @Produce json
// @Param name path string true "flow 名称"
// @Success 200 {object} Response{data=api.InvokeResponse}
// @Failure 400 {object} Response "输入校验失败，error.fields 列出违规字段"
// @Failure 404 {object} Response "flow 不存在"
// @Failure 502 {object} Response "后端调用失败或输出校验失败"
// @Failure 504 {object} Response "调用超时"
// @Router /api/v1/flows/{name}/invoke [post]
func (h *FlowHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := h.registry.Describe(name); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorMessage(w, r, http.StatusRequestEntityTooLarge, types.ErrInvalidRequest, "request body too large", h.logger)
			return
		}
		WriteErrorMessage(w, r, http.StatusBadRequest, types.ErrInvalidRequest, "failed to read request body", h.logger)
		return
	}

	input, err := flow.DecodeInput(body)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInputValidation, "request body must be a JSON object").
			WithFlow(name).
			WithFields(types.FieldError{Constraint: "json", Message: "request body must be a JSON object"}).
			WithCause(err), h.logger)
		return
	}

	ctx := ctxkeys.WithTransport(r.Context(), "http")
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	res, err := h.invoker.Invoke(ctx, name, input)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}
	WriteSuccess(w, r, api.NewInvokeResponse(res))
}
