package api

import (
	"encoding/json"

	"github.com/BaSui01/genflow/flow"
	"github.com/BaSui01/genflow/llm"
)

// =============================================================================
// Flow 类型
// =============================================================================

// FlowSummary 是 flow 列表中的一项。
// @Description flow 概要
type FlowSummary struct {
	// flow 名称
	Name string `json:"name" example:"checkBacklinks"`
	// flow 描述
	Description string `json:"description,omitempty"`
	// 请求的响应模态
	ResponseModalities []llm.Modality `json:"response_modalities,omitempty"`
	// 是否要求后端返回媒体
	RequiresMedia bool `json:"requires_media,omitempty"`
}

// FlowListResponse 是 GET /api/v1/flows 的数据部分。
// @Description flow 列表
type FlowListResponse struct {
	Flows []FlowSummary `json:"flows"`
	Total int           `json:"total"`
}

// FlowDetail 是 GET /api/v1/flows/{name} 的数据部分。
// @Description flow 详情，包含输入与输出 JSON Schema
type FlowDetail struct {
	FlowSummary
	// 输入 JSON Schema
	InputSchema json.RawMessage `json:"input_schema" swaggertype:"object"`
	// 输出 JSON Schema
	OutputSchema json.RawMessage `json:"output_schema" swaggertype:"object"`
}

// InvokeResponse 是 POST /api/v1/flows/{name}/invoke 的数据部分。
// @Description 通过输出校验的 flow 结果
type InvokeResponse struct {
	// flow 名称
	Flow string `json:"flow"`
	// 校验后的输出对象
	Output json.RawMessage `json:"output" swaggertype:"object"`
	// 处理调用的后端
	Provider string `json:"provider,omitempty" example:"gemini"`
	// 使用的模型
	Model string `json:"model,omitempty" example:"gemini-2.0-flash"`
	// Token 用量
	Usage *llm.Usage `json:"usage,omitempty"`
	// 调用耗时（毫秒）
	DurationMs int64 `json:"duration_ms"`
}

// NewFlowSummary 由描述符构造概要。
func NewFlowSummary(d flow.Descriptor) FlowSummary {
	return FlowSummary{
		Name:               d.Name,
		Description:        d.Description,
		ResponseModalities: d.ResponseModalities,
		RequiresMedia:      d.RequiresMedia,
	}
}

// NewFlowDetail 由描述符构造详情。
func NewFlowDetail(d flow.Descriptor) FlowDetail {
	return FlowDetail{
		FlowSummary:  NewFlowSummary(d),
		InputSchema:  d.InputSchema,
		OutputSchema: d.OutputSchema,
	}
}

// NewInvokeResponse 由调用结果构造响应。
func NewInvokeResponse(res *flow.Result) InvokeResponse {
	out := InvokeResponse{
		Flow:       res.Flow,
		Output:     res.Raw,
		Provider:   res.Provider,
		Model:      res.Model,
		DurationMs: res.Duration.Milliseconds(),
	}
	if res.Usage != (llm.Usage{}) {
		u := res.Usage
		out.Usage = &u
	}
	return out
}
