package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/schema"
	"github.com/BaSui01/genflow/testutil"
	"github.com/BaSui01/genflow/testutil/fixtures"
	"github.com/BaSui01/genflow/testutil/mocks"
	"github.com/BaSui01/genflow/types"
)

func newTestExecutor(backend llm.Backend, defs ...Definition) *Executor {
	if len(defs) == 0 {
		defs = []Definition{backlinkDefinition(), photoDefinition()}
	}
	return NewExecutor(testRegistry(defs...), backend, WithLogger(zap.NewNop()))
}

func TestExecutor_Success(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.Fenced(fixtures.BacklinksJSON))
	obs := &recordingObserver{}
	exec := NewExecutor(testRegistry(backlinkDefinition()), backend, WithObserver(obs))

	res, err := exec.Invoke(testutil.TestContext(t), "checkBacklinks", map[string]any{"domain": "example.com"})
	require.NoError(t, err)

	assert.Equal(t, "checkBacklinks", res.Flow)
	assert.Equal(t, 54.0, res.Output["domainAuthority"])
	assert.Equal(t, "mock", res.Provider)
	assert.Equal(t, []State{
		StateIdle, StateValidatingInput, StateRendering,
		StateAwaitingBackend, StateValidatingOutput, StateSucceeded,
	}, res.Trace)
	testutil.AssertJSONEqual(t, testutil.MustParseJSON[map[string]any](fixtures.BacklinksJSON), res.Output)

	var out struct {
		DomainAuthority float64 `json:"domainAuthority"`
		Backlinks       []struct {
			SourceURL string `json:"sourceUrl"`
		} `json:"backlinks"`
	}
	require.NoError(t, res.Decode(&out))
	assert.Equal(t, 54.0, out.DomainAuthority)
	assert.Equal(t, "https://blog.example.org/post", out.Backlinks[0].SourceURL)

	call := backend.GetLastCall()
	require.NotNil(t, call)
	assert.True(t, strings.HasPrefix(call.Request.Prompt, "Analyze the backlink profile for example.com."))
	assert.Contains(t, call.Request.Prompt, "Respond with ONLY the JSON object.")
	assert.Empty(t, call.Request.Media)

	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, StateSucceeded, obs.outcomes[0].Final)
	assert.Len(t, obs.transitions, 5)
	assert.Equal(t, [2]State{StateIdle, StateValidatingInput}, obs.transitions[0])
}

func TestExecutor_InputValidationSkipsBackend(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON)
	exec := newTestExecutor(backend)

	for name, input := range map[string]map[string]any{
		"too short":  {"domain": "ab"},
		"no tld":     {"domain": "localhost"},
		"missing":    {},
		"wrong type": {"domain": 42},
	} {
		t.Run(name, func(t *testing.T) {
			res, err := exec.Invoke(context.Background(), "checkBacklinks", input)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, types.ErrInputValidation, KindOf(err))
			fields := FieldErrors(err)
			require.NotEmpty(t, fields)
			assert.Equal(t, "domain", fields[0].Path)
		})
	}
	assert.Equal(t, 0, backend.GetCallCount())
}

func TestExecutor_InputErrorMessageIsUserFacing(t *testing.T) {
	exec := newTestExecutor(mocks.NewMockBackend())
	_, err := exec.Invoke(context.Background(), "checkBacklinks", map[string]any{"domain": "not a domain"})
	fields := FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "Please enter a valid domain name.", fields[0].Message)
}

func TestExecutor_OutputMissingField(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksMissingAuthorityJSON)
	exec := newTestExecutor(backend)

	res, err := exec.Invoke(context.Background(), "checkBacklinks", map[string]any{"domain": "example.com"})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, types.ErrOutputValidation, KindOf(err))

	var ve *schema.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Paths(), "domainAuthority")

	raw, ok := RawOutput(err)
	require.True(t, ok)
	assert.Equal(t, fixtures.BacklinksMissingAuthorityJSON, raw)
}

func TestExecutor_OutputIndexedPath(t *testing.T) {
	backend := mocks.NewTextBackend(`{"domainAuthority":10,"totalBacklinks":2,"referringDomains":1,"backlinks":[` +
		`{"sourceUrl":"https://a.example","anchorText":"a","domainAuthority":5},` +
		`{"sourceUrl":"https://b.example","anchorText":"b","domainAuthority":500}]}`)
	exec := newTestExecutor(backend)

	_, err := exec.Invoke(context.Background(), "checkBacklinks", map[string]any{"domain": "example.com"})
	require.Error(t, err)
	paths := make([]string, 0)
	for _, f := range FieldErrors(err) {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"backlinks[1].domainAuthority"}, paths)
}

func TestExecutor_OutputNotJSON(t *testing.T) {
	exec := newTestExecutor(mocks.NewTextBackend("I could not analyze that domain."))
	_, err := exec.Invoke(context.Background(), "checkBacklinks", map[string]any{"domain": "example.com"})
	assert.Equal(t, types.ErrOutputValidation, KindOf(err))
	fields := FieldErrors(err)
	require.Len(t, fields, 1)
	assert.Equal(t, "json", fields[0].Constraint)
}

func TestExecutor_BackendFailures(t *testing.T) {
	tests := []struct {
		name      string
		backend   *mocks.MockBackend
		retryable bool
	}{
		{"upstream error", mocks.NewErrorBackend(&llm.Error{Code: llm.ErrUpstreamError, Message: "boom", Retryable: true}), true},
		{"unauthorized", mocks.NewErrorBackend(&llm.Error{Code: llm.ErrUnauthorized, Message: "bad key"}), false},
		{"empty result", mocks.NewMockBackend().WithResponse(&llm.Response{}), true},
		{"nil result", mocks.NewMockBackend().WithResponse(nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(tt.backend)
			res, err := exec.Invoke(context.Background(), "checkBacklinks", map[string]any{"domain": "example.com"})
			assert.Nil(t, res)
			assert.Equal(t, types.ErrBackendCallFailed, KindOf(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
			te, _ := types.AsError(err)
			assert.Equal(t, "mock", te.Provider)
		})
	}
}

func TestExecutor_Cancellation(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON)
	exec := newTestExecutor(backend)

	_, err := exec.Invoke(testutil.CancelledContext(), "checkBacklinks", map[string]any{"domain": "example.com"})
	assert.Equal(t, types.ErrBackendCallFailed, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, types.IsRetryable(err))
	assert.Equal(t, 0, backend.GetCallCount())
}

func TestExecutor_DeadlineWhileAwaiting(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON).WithDelay(time.Second)
	exec := newTestExecutor(backend)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := exec.Invoke(ctx, "checkBacklinks", map[string]any{"domain": "example.com"})
	assert.Equal(t, types.ErrBackendCallFailed, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, types.IsRetryable(err))
}

func TestExecutor_UnknownFlow(t *testing.T) {
	obs := &recordingObserver{}
	exec := NewExecutor(testRegistry(backlinkDefinition()), mocks.NewMockBackend(), WithObserver(obs))
	_, err := exec.Invoke(context.Background(), "checkDomains", nil)
	assert.Equal(t, types.ErrFlowNotFound, KindOf(err))
	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, StateIdle, obs.outcomes[0].Reached)
}

func TestExecutor_MediaFlow(t *testing.T) {
	backend := mocks.NewMockBackend().WithResponse(fixtures.ImageResponse())
	exec := newTestExecutor(backend)

	res, err := exec.Invoke(context.Background(), "removeBackground", map[string]any{"photoDataUri": fixtures.PNGDataURI()})
	require.NoError(t, err)
	assert.Equal(t, fixtures.PNGDataURI(), res.Output["processedPhotoDataUri"])
	require.Len(t, res.Media, 1)

	req := backend.GetLastCall().Request
	assert.Equal(t, "Keep only the main subject.", req.Prompt)
	require.Len(t, req.Media, 1)
	assert.Equal(t, "image/png", req.Media[0].MIMEType)
	assert.Equal(t, fixtures.PNG(), req.Media[0].Data)
	assert.True(t, req.GenerationConfig.Wants(llm.ModalityImage))
	assert.True(t, req.GenerationConfig.Equal(photoDefinition().Config))
}

func TestExecutor_MediaFlowWithoutMedia(t *testing.T) {
	exec := newTestExecutor(mocks.NewTextBackend("I removed the background for you."))
	_, err := exec.Invoke(context.Background(), "removeBackground", map[string]any{"photoDataUri": fixtures.PNGDataURI()})
	assert.Equal(t, types.ErrBackendCallFailed, KindOf(err))
}

func TestExecutor_RenderMustKeepConfig(t *testing.T) {
	def := photoDefinition()
	def.Render = func(in map[string]any) (*llm.Request, error) {
		return &llm.Request{
			Prompt:           "x",
			GenerationConfig: llm.GenerationConfig{ResponseModalities: []llm.Modality{llm.ModalityImage}},
		}, nil
	}
	backend := mocks.NewMockBackend().WithResponse(fixtures.ImageResponse())
	exec := newTestExecutor(backend, def)

	_, err := exec.Invoke(context.Background(), "removeBackground", map[string]any{"photoDataUri": fixtures.PNGDataURI()})
	assert.True(t, IsConfigurationError(err))
	assert.Equal(t, 0, backend.GetCallCount())
}

func TestExecutor_InvokeJSON(t *testing.T) {
	exec := newTestExecutor(mocks.NewTextBackend(fixtures.BacklinksJSON))

	res, err := exec.InvokeJSON(context.Background(), "checkBacklinks", []byte(`{"domain":"example.com"}`))
	require.NoError(t, err)
	assert.Equal(t, 310.0, res.Output["referringDomains"])

	_, err = exec.InvokeJSON(context.Background(), "checkBacklinks", []byte(`["example.com"]`))
	assert.Equal(t, types.ErrInputValidation, KindOf(err))
}

func TestDecodeInput(t *testing.T) {
	obj, err := DecodeInput([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, obj)

	obj, err = DecodeInput([]byte(`{"n":1}`))
	require.NoError(t, err)
	assert.EqualValues(t, "1", obj["n"])

	for _, bad := range []string{"null", `{"a":1} {"b":2}`, `{"a":`, `"text"`} {
		_, err = DecodeInput([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestRun_Typed(t *testing.T) {
	type in struct {
		Domain string `json:"domain"`
	}
	type out struct {
		DomainAuthority  float64 `json:"domainAuthority"`
		TotalBacklinks   int     `json:"totalBacklinks"`
		ReferringDomains int     `json:"referringDomains"`
	}
	exec := newTestExecutor(mocks.NewTextBackend(fixtures.BacklinksJSON))

	got, err := Run[in, out](context.Background(), exec, "checkBacklinks", in{Domain: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, out{DomainAuthority: 54, TotalBacklinks: 1200, ReferringDomains: 310}, *got)

	_, err = Run[in, out](context.Background(), exec, "checkBacklinks", in{Domain: "x"})
	assert.Equal(t, types.ErrInputValidation, KindOf(err))
}

func TestDefine_FromTypes(t *testing.T) {
	type in struct {
		Topic string `json:"topic" jsonschema:"required,minLength=3"`
	}
	type keyword struct {
		Keyword string `json:"keyword" jsonschema:"required"`
	}
	type out struct {
		Keywords []keyword `json:"keywords" jsonschema:"required"`
	}
	def := MustDefine[in, out]("keywordResearch", "keywords", "Research {{{topic}}}")
	exec := newTestExecutor(mocks.NewTextBackend(`{"keywords":[{"keyword":"bread"}]}`), def)

	got, err := Run[in, out](context.Background(), exec, "keywordResearch", in{Topic: "sourdough"})
	require.NoError(t, err)
	assert.Equal(t, "bread", got.Keywords[0].Keyword)

	_, err = Run[in, out](context.Background(), exec, "keywordResearch", in{Topic: "ab"})
	assert.Equal(t, types.ErrInputValidation, KindOf(err))
}
