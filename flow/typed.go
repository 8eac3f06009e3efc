package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/BaSui01/genflow/schema"
	"github.com/BaSui01/genflow/types"
)

// Run invokes the named flow with a typed input and decodes the validated output.
func Run[In, Out any](ctx context.Context, inv Invoker, name string, in In) (*Out, error) {
	input, err := toObject(in)
	if err != nil {
		return nil, types.NewError(types.ErrInputValidation, "input is not a JSON object").
			WithFlow(name).
			WithFields(types.FieldError{Constraint: "type", Message: err.Error()}).
			WithCause(err)
	}
	res, err := inv.Invoke(ctx, name, input)
	if err != nil {
		return nil, err
	}
	var out Out
	if err := res.Decode(&out); err != nil {
		return nil, outputError(name, string(res.Raw), "validated output does not decode into the result type", err)
	}
	return &out, nil
}

// Define builds a definition whose schemas are generated from In and Out.
func Define[In, Out any](name, description, template string) (Definition, error) {
	in, err := schema.For[In]()
	if err != nil {
		return Definition{}, configError(name, "invalid input type").WithCause(err)
	}
	out, err := schema.For[Out]()
	if err != nil {
		return Definition{}, configError(name, "invalid output type").WithCause(err)
	}
	return Definition{
		Name:         name,
		Description:  description,
		InputSchema:  in,
		OutputSchema: out,
		Template:     template,
	}, nil
}

// MustDefine is like Define but panics on error.
func MustDefine[In, Out any](name, description, template string) Definition {
	d, err := Define[In, Out](name, description, template)
	if err != nil {
		panic(err)
	}
	return d
}

func toObject(v any) (map[string]any, error) {
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%T does not encode as an object", v)
	}
	return obj, nil
}
