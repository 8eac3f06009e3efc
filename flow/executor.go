package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/schema"
	"github.com/BaSui01/genflow/types"
)

// Invoker runs a named flow. *Executor and RetryPolicy.Wrap results satisfy it.
type Invoker interface {
	Invoke(ctx context.Context, name string, input map[string]any) (*Result, error)
}

// Result is a successful invocation.
type Result struct {
	Flow string `json:"flow"`
	// Output is the validated output object.
	Output map[string]any `json:"output"`
	// Raw is Output encoded as JSON.
	Raw      json.RawMessage `json:"-"`
	Media    []llm.Media     `json:"-"`
	Provider string          `json:"provider,omitempty"`
	Model    string          `json:"model,omitempty"`
	Usage    llm.Usage       `json:"usage,omitempty"`
	Trace    []State         `json:"-"`
	Duration time.Duration   `json:"duration"`
}

// Decode unmarshals the validated output into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.Raw, v)
}

// Executor drives invocations through the state machine.
// It holds no per-call state and is safe for concurrent use.
type Executor struct {
	registry  *Registry
	backend   llm.Backend
	validator *schema.Validator
	observer  Observer
	logger    *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver adds an observer; multiple calls accumulate.
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) {
		if o == nil {
			return
		}
		switch cur := e.observer.(type) {
		case NopObserver:
			e.observer = o
		case Observers:
			e.observer = append(cur, o)
		default:
			e.observer = Observers{cur, o}
		}
	}
}

// WithValidator sets the schema validator used for input and output checks.
func WithValidator(v *schema.Validator) ExecutorOption {
	return func(e *Executor) {
		if v != nil {
			e.validator = v
		}
	}
}

// NewExecutor creates an executor over reg and backend.
func NewExecutor(reg *Registry, backend llm.Backend, opts ...ExecutorOption) *Executor {
	e := &Executor{
		registry:  reg,
		backend:   backend,
		validator: reg.validator,
		observer:  NopObserver{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(zap.String("component", "flow_executor"))
	return e
}

// Registry returns the registry the executor reads from.
func (e *Executor) Registry() *Registry { return e.registry }

// Backend returns the backend the executor calls.
func (e *Executor) Backend() llm.Backend { return e.backend }

// call is the bookkeeping of one invocation.
type call struct {
	e        *Executor
	ctx      context.Context
	flow     string
	state    State
	trace    []State
	start    time.Time
	backend  time.Duration
	provider string
}

func (c *call) enter(s State) {
	c.e.observer.OnTransition(c.ctx, c.flow, c.state, s)
	c.state = s
	c.trace = append(c.trace, s)
}

func (c *call) fail(err *types.Error) (*Result, error) {
	reached := c.state
	c.enter(StateFailed)

	fields := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		fields = append(fields, f.Path)
	}
	logFields := []zap.Field{
		zap.String("flow", c.flow),
		zap.String("state", reached.String()),
		zap.String("code", string(err.Code)),
		zap.Strings("fields", fields),
		zap.Error(err),
	}
	switch err.Code {
	case types.ErrOutputValidation, types.ErrSchemaConfiguration:
		c.e.logger.Error("flow invocation failed", logFields...)
	default:
		c.e.logger.Warn("flow invocation failed", logFields...)
	}

	c.e.observer.OnFinish(c.ctx, Outcome{
		Flow:            c.flow,
		Final:           StateFailed,
		Reached:         reached,
		Code:            err.Code,
		Provider:        c.provider,
		Duration:        time.Since(c.start),
		BackendDuration: c.backend,
		Err:             err,
	})
	return nil, err
}

// Invoke runs the named flow on input.
func (e *Executor) Invoke(ctx context.Context, name string, input map[string]any) (*Result, error) {
	c := &call{e: e, flow: name, state: StateIdle, trace: []State{StateIdle}, start: time.Now()}
	c.ctx = e.observer.OnStart(ctx, name)

	ent, ok := e.registry.lookup(name)
	if !ok {
		return c.fail(notFoundError(name))
	}
	def := ent.def

	// ValidatingInput
	c.enter(StateValidatingInput)
	normalized, err := normalizeObject(input)
	if err != nil {
		return c.fail(types.NewError(types.ErrInputValidation, "input is not a JSON object").
			WithFlow(name).
			WithFields(types.FieldError{Constraint: "type", Message: err.Error()}).
			WithCause(err))
	}
	if err := e.validator.ValidateValue(normalized, def.InputSchema); err != nil {
		var ve *schema.ValidationErrors
		if errors.As(err, &ve) {
			return c.fail(inputError(name, ve))
		}
		return c.fail(wrapSchemaError(name, "input schema", err))
	}

	// Rendering
	c.enter(StateRendering)
	req, cfgErr := e.render(ent, normalized)
	if cfgErr != nil {
		return c.fail(cfgErr)
	}

	// AwaitingBackend
	c.enter(StateAwaitingBackend)
	c.provider = e.backend.Name()
	if err := c.ctx.Err(); err != nil {
		return c.fail(backendError(name, c.provider, "invocation canceled before the backend call", err))
	}
	callStart := time.Now()
	resp, err := e.backend.Generate(c.ctx, req)
	c.backend = time.Since(callStart)
	if err != nil {
		if ctxErr := c.ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return c.fail(backendError(name, c.provider, "backend call failed", err))
	}
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		return c.fail(backendError(name, c.provider, "invocation ended while awaiting the backend", ctxErr))
	}
	if resp.Empty() {
		return c.fail(backendError(name, c.provider, "backend returned an empty result", nil).WithRetryable(true))
	}
	if def.RequireMedia && len(resp.Media) == 0 {
		return c.fail(backendError(name, c.provider, "backend returned no media", nil).WithRetryable(true))
	}
	if resp.Provider != "" {
		c.provider = resp.Provider
	}

	// ValidatingOutput
	c.enter(StateValidatingOutput)
	e.logger.Debug("backend result", zap.String("flow", name), zap.String("raw", resp.Text), zap.Int("media", len(resp.Media)))
	output, raw, outErr := e.validateOutput(def, resp)
	if outErr != nil {
		return c.fail(outErr)
	}

	c.enter(StateSucceeded)
	res := &Result{
		Flow:     name,
		Output:   output,
		Raw:      raw,
		Media:    resp.Media,
		Provider: c.provider,
		Model:    resp.Model,
		Usage:    resp.Usage,
		Trace:    c.trace,
		Duration: time.Since(c.start),
	}
	e.observer.OnFinish(c.ctx, Outcome{
		Flow:            name,
		Final:           StateSucceeded,
		Reached:         StateValidatingOutput,
		Provider:        c.provider,
		Model:           resp.Model,
		Usage:           resp.Usage,
		Duration:        res.Duration,
		BackendDuration: c.backend,
	})
	return res, nil
}

// InvokeJSON runs the named flow on a JSON-encoded input object.
func (e *Executor) InvokeJSON(ctx context.Context, name string, input json.RawMessage) (*Result, error) {
	obj, err := DecodeInput(input)
	if err != nil {
		return nil, types.NewError(types.ErrInputValidation, "input is not a JSON object").
			WithFlow(name).
			WithFields(types.FieldError{Constraint: "json", Message: err.Error()}).
			WithCause(err)
	}
	return e.Invoke(ctx, name, obj)
}

// DecodeInput parses exactly one JSON object, keeping numbers as json.Number.
// Empty input decodes to an empty object.
func DecodeInput(data []byte) (map[string]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("input is null")
	}
	if dec.More() {
		return nil, errors.New("input contains more than one JSON value")
	}
	return obj, nil
}

func (e *Executor) render(ent *entry, input map[string]any) (*llm.Request, *types.Error) {
	def := ent.def
	if ent.tmpl != nil {
		prompt, err := ent.tmpl.Render(input)
		if err != nil {
			return nil, wrapSchemaError(def.Name, "render template", err)
		}
		return &llm.Request{
			Prompt:           prompt + ent.instruction,
			GenerationConfig: def.Config.Clone(),
			Model:            def.Model,
		}, nil
	}

	req, err := def.Render(input)
	if err != nil {
		return nil, configError(def.Name, "render function failed").WithCause(err)
	}
	if req == nil {
		return nil, configError(def.Name, "render function returned no request")
	}
	if req.GenerationConfig.IsZero() {
		req.GenerationConfig = def.Config.Clone()
	} else if !req.GenerationConfig.Equal(def.Config) {
		return nil, configError(def.Name, "render function changed the declared generation config")
	}
	if req.Model == "" {
		req.Model = def.Model
	}
	return req, nil
}

func (e *Executor) validateOutput(def Definition, resp *llm.Response) (map[string]any, json.RawMessage, *types.Error) {
	var candidate any
	raw := resp.Text

	if def.OutputFromMedia != nil {
		obj, err := def.OutputFromMedia(resp)
		if err != nil {
			return nil, nil, outputError(def.Name, raw, "could not build output from media", err)
		}
		candidate = obj
	} else {
		body := extractJSON(resp.Text)
		dec := json.NewDecoder(bytes.NewReader([]byte(body)))
		dec.UseNumber()
		if err := dec.Decode(&candidate); err != nil {
			ve := &schema.ValidationErrors{Errors: []schema.ParseError{{Constraint: "json", Message: fmt.Sprintf("output is not valid JSON: %v", err)}}}
			return nil, nil, outputError(def.Name, raw, "backend output is not valid JSON", ve)
		}
	}

	if err := e.validator.ValidateValue(candidate, def.OutputSchema); err != nil {
		var ve *schema.ValidationErrors
		if errors.As(err, &ve) {
			return nil, nil, outputError(def.Name, raw, "backend output does not match the flow output schema", ve)
		}
		return nil, nil, wrapSchemaError(def.Name, "output schema", err)
	}

	data, err := json.Marshal(candidate)
	if err != nil {
		return nil, nil, outputError(def.Name, raw, "output could not be encoded", err)
	}
	var output map[string]any
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, nil, outputError(def.Name, raw, "output is not an object", err)
	}
	return output, data, nil
}

// normalizeObject maps a caller input onto the JSON data model.
func normalizeObject(input map[string]any) (map[string]any, error) {
	if input == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func isRetryableCause(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return llm.IsRetryable(err)
}
