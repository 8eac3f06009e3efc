package flow

import (
	"encoding/json"
	"regexp"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/schema"
)

// RenderFunc maps a validated input onto a backend request.
// It is the alternative to a prompt template for flows that attach media.
type RenderFunc func(input map[string]any) (*llm.Request, error)

// MediaOutputFunc builds the output object from media returned by the backend.
// The object it returns still passes output validation.
type MediaOutputFunc func(resp *llm.Response) (map[string]any, error)

// Definition declares one structured generation flow.
type Definition struct {
	Name        string
	Description string

	InputSchema  *schema.JSONSchema
	OutputSchema *schema.JSONSchema

	// Exactly one of Template and Render is set.
	Template string
	Render   RenderFunc

	// Config is sent to the backend unchanged.
	Config llm.GenerationConfig
	// Model overrides the backend default model.
	Model string

	// RequireMedia fails the invocation when the backend returns no media.
	RequireMedia    bool
	OutputFromMedia MediaOutputFunc
}

// Descriptor is the public view of a registered flow.
type Descriptor struct {
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	InputSchema        json.RawMessage `json:"inputSchema"`
	OutputSchema       json.RawMessage `json:"outputSchema"`
	ResponseModalities []llm.Modality  `json:"responseModalities,omitempty"`
	RequiresMedia      bool            `json:"requiresMedia,omitempty"`
	Templated          bool            `json:"templated"`
}

var flowNameRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]{0,63}$`)

// clone returns a copy whose schemas and config share nothing with d.
func (d Definition) clone() Definition {
	d.InputSchema = d.InputSchema.Clone()
	d.OutputSchema = d.OutputSchema.Clone()
	d.Config = d.Config.Clone()
	return d
}

// structured reports whether the prompt should carry the JSON-only instruction.
func (d Definition) structured() bool {
	return d.Render == nil && d.OutputFromMedia == nil && d.OutputSchema != nil && d.OutputSchema.Type == schema.TypeObject
}
