package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/schema"
	"github.com/BaSui01/genflow/types"
)

// ErrSealed is returned by Register after Seal.
var ErrSealed = errors.New("flow registry is sealed")

type entry struct {
	def         Definition
	tmpl        *Template
	instruction string
	descriptor  Descriptor
}

// Registry holds flow definitions by unique name.
// Registration happens at startup; after Seal the registry is read-only and
// lookups take no lock.
type Registry struct {
	mu        sync.RWMutex
	flows     map[string]*entry
	sealed    atomic.Bool
	validator *schema.Validator
}

// NewRegistry creates an empty registry that checks schemas against the built-in formats.
func NewRegistry() *Registry {
	return NewRegistryWithValidator(schema.NewValidator())
}

// NewRegistryWithValidator creates a registry that checks schemas against v's formats.
func NewRegistryWithValidator(v *schema.Validator) *Registry {
	return &Registry{
		flows:     make(map[string]*entry),
		validator: v,
	}
}

// Register validates def and stores a private copy of it.
// Every defect is reported as a SCHEMA_CONFIGURATION error.
func (r *Registry) Register(def Definition) error {
	e, err := r.compile(def.clone())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed.Load() {
		return configError(def.Name, "cannot register flow").WithCause(ErrSealed)
	}
	if _, dup := r.flows[def.Name]; dup {
		return configError(def.Name, "flow %q is already registered", def.Name)
	}
	r.flows[def.Name] = e
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(defs ...Definition) *Registry {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Seal freezes the registry.
func (r *Registry) Seal() *Registry {
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
	return r
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

func (r *Registry) lookup(name string) (*entry, bool) {
	if r.sealed.Load() {
		e, ok := r.flows[name]
		return e, ok
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.flows[name]
	return e, ok
}

// Get returns a copy of the named definition.
func (r *Registry) Get(name string) (Definition, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Definition{}, false
	}
	return e.def.clone(), true
}

// Describe returns the public descriptor of the named flow.
func (r *Registry) Describe(name string) (Descriptor, error) {
	e, ok := r.lookup(name)
	if !ok {
		return Descriptor{}, notFoundError(name)
	}
	return e.descriptor, nil
}

// Names returns the registered flow names in sorted order.
func (r *Registry) Names() []string {
	if !r.sealed.Load() {
		r.mu.RLock()
		defer r.mu.RUnlock()
	}
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every descriptor sorted by name.
func (r *Registry) List() []Descriptor {
	names := r.Names()
	out := make([]Descriptor, 0, len(names))
	for _, n := range names {
		if e, ok := r.lookup(n); ok {
			out = append(out, e.descriptor)
		}
	}
	return out
}

// Len returns the number of registered flows.
func (r *Registry) Len() int { return len(r.Names()) }

func (r *Registry) compile(def Definition) (*entry, error) {
	name := def.Name
	if !flowNameRe.MatchString(name) {
		return nil, configError(name, "invalid flow name %q", name)
	}

	if def.InputSchema == nil || def.OutputSchema == nil {
		return nil, configError(name, "input and output schemas are required")
	}
	if err := r.validator.CheckSchema(def.InputSchema); err != nil {
		return nil, wrapSchemaError(name, "input schema", err)
	}
	if err := r.validator.CheckSchema(def.OutputSchema); err != nil {
		return nil, wrapSchemaError(name, "output schema", err)
	}
	if def.InputSchema.Type != schema.TypeObject {
		return nil, configError(name, "input schema must be an object, got %q", def.InputSchema.Type)
	}
	if def.OutputSchema.Type != schema.TypeObject {
		return nil, configError(name, "output schema must be an object, got %q", def.OutputSchema.Type)
	}

	hasTemplate := def.Template != ""
	if hasTemplate == (def.Render != nil) {
		return nil, configError(name, "exactly one of template and render function must be set")
	}

	if err := checkConfig(def.Config); err != nil {
		return nil, configError(name, "generation config: %v", err)
	}
	if def.RequireMedia && !def.Config.Wants(llm.ModalityImage) {
		return nil, configError(name, "flow requires media but does not request the IMAGE modality")
	}

	e := &entry{def: def}
	if hasTemplate {
		tmpl, err := ParseTemplate(def.Template)
		if err != nil {
			return nil, wrapSchemaError(name, "template", err)
		}
		if err := tmpl.Check(def.InputSchema); err != nil {
			return nil, wrapSchemaError(name, "template", err)
		}
		e.tmpl = tmpl
	}
	if def.structured() {
		instr, err := structuredInstruction(def.OutputSchema)
		if err != nil {
			return nil, configError(name, "invalid output schema").WithCause(err)
		}
		e.instruction = instr
	}

	in, err := json.Marshal(def.InputSchema)
	if err != nil {
		return nil, configError(name, "invalid input schema").WithCause(err)
	}
	out, err := json.Marshal(def.OutputSchema)
	if err != nil {
		return nil, configError(name, "invalid output schema").WithCause(err)
	}
	e.descriptor = Descriptor{
		Name:               name,
		Description:        def.Description,
		InputSchema:        in,
		OutputSchema:       out,
		ResponseModalities: append([]llm.Modality(nil), def.Config.ResponseModalities...),
		RequiresMedia:      def.RequireMedia,
		Templated:          hasTemplate,
	}
	return e, nil
}

func checkConfig(c llm.GenerationConfig) error {
	for _, m := range c.ResponseModalities {
		if m != llm.ModalityText && m != llm.ModalityImage {
			return fmt.Errorf("unknown modality %q", m)
		}
	}
	seen := make(map[llm.HarmCategory]bool)
	for _, s := range c.SafetySettings {
		known := false
		for _, c := range llm.HarmCategories {
			if s.Category == c {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown harm category %q", s.Category)
		}
		if seen[s.Category] {
			return fmt.Errorf("duplicate safety setting for %q", s.Category)
		}
		seen[s.Category] = true
		if s.Threshold.Restrictiveness() < 0 {
			return fmt.Errorf("unknown harm threshold %q", s.Threshold)
		}
	}
	return nil
}

// IsConfigurationError reports whether err is a SCHEMA_CONFIGURATION error.
func IsConfigurationError(err error) bool {
	return KindOf(err) == types.ErrSchemaConfiguration
}
