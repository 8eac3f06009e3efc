package flow

import (
	"context"
	"sync"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/schema"
)

const backlinkTemplate = "Analyze the backlink profile for {{{domain}}}."

func backlinkDefinition() Definition {
	backlink := schema.NewObjectSchema().
		AddRequiredProperty("sourceUrl", schema.NewStringSchema().WithFormat(schema.FormatURL)).
		AddRequiredProperty("anchorText", schema.NewStringSchema()).
		AddRequiredProperty("domainAuthority", schema.NewNumberSchema().WithRange(0, 100))

	return Definition{
		Name:        "checkBacklinks",
		Description: "Backlink profile of a domain",
		InputSchema: schema.NewObjectSchema().
			AddRequiredProperty("domain", schema.NewStringSchema().
				WithMinLength(3).
				WithPattern(`^[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`).
				WithErrorMessage("Please enter a valid domain name.")),
		OutputSchema: schema.NewObjectSchema().
			AddRequiredProperty("domainAuthority", schema.NewNumberSchema().WithRange(0, 100)).
			AddRequiredProperty("totalBacklinks", schema.NewNumberSchema().WithMinimum(0)).
			AddRequiredProperty("referringDomains", schema.NewNumberSchema().WithMinimum(0)).
			AddRequiredProperty("backlinks", schema.NewArraySchema(backlink)),
		Template: backlinkTemplate,
	}
}

func photoDefinition() Definition {
	return Definition{
		Name: "removeBackground",
		InputSchema: schema.NewObjectSchema().
			AddRequiredProperty("photoDataUri", schema.NewStringSchema().WithFormat(schema.FormatDataURI)),
		OutputSchema: schema.NewObjectSchema().
			AddRequiredProperty("processedPhotoDataUri", schema.NewStringSchema().WithFormat(schema.FormatDataURI)),
		Render: func(in map[string]any) (*llm.Request, error) {
			m, err := llm.MediaFromDataURI(in["photoDataUri"].(string))
			if err != nil {
				return nil, err
			}
			return &llm.Request{Prompt: "Keep only the main subject.", Media: []llm.Media{m}}, nil
		},
		Config: llm.GenerationConfig{
			ResponseModalities: []llm.Modality{llm.ModalityText, llm.ModalityImage},
			SafetySettings:     llm.AllowAll(),
		},
		RequireMedia: true,
		OutputFromMedia: func(resp *llm.Response) (map[string]any, error) {
			return map[string]any{"processedPhotoDataUri": resp.Media[0].DataURI()}, nil
		},
	}
}

func testRegistry(defs ...Definition) *Registry {
	return NewRegistry().MustRegister(defs...).Seal()
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions [][2]State
	outcomes    []Outcome
}

func (r *recordingObserver) OnStart(ctx context.Context, _ string) context.Context { return ctx }

func (r *recordingObserver) OnTransition(_ context.Context, _ string, from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, [2]State{from, to})
}

func (r *recordingObserver) OnFinish(_ context.Context, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}
