package flow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/testutil/fixtures"
	"github.com/BaSui01/genflow/testutil/mocks"
	"github.com/BaSui01/genflow/types"
)

func fastPolicy(retries uint64, codes ...types.ErrorCode) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = retries
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 2 * time.Millisecond
	if len(codes) > 0 {
		p.RetryOn = codes
	}
	return p
}

var transient = &llm.Error{Code: llm.ErrModelOverloaded, Message: "overloaded", Retryable: true}

func TestRetryPolicy_DisabledByDefault(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.False(t, p.Enabled())

	backend := mocks.NewFlakyBackend(1, transient, fixtures.BacklinksJSON)
	exec := newTestExecutor(backend)
	assert.Same(t, exec, p.Wrap(exec))

	_, err := p.Invoke(context.Background(), exec, "checkBacklinks", map[string]any{"domain": "example.com"})
	assert.Equal(t, types.ErrBackendCallFailed, KindOf(err))
	assert.Equal(t, 1, backend.GetCallCount())
}

func TestRetryPolicy_RecoversFromTransientFailures(t *testing.T) {
	backend := mocks.NewFlakyBackend(2, transient, fixtures.BacklinksJSON)
	inv := fastPolicy(3).Wrap(newTestExecutor(backend))

	res, err := inv.Invoke(context.Background(), "checkBacklinks", map[string]any{"domain": "example.com"})
	require.NoError(t, err)
	assert.Equal(t, 54.0, res.Output["domainAuthority"])
	assert.Equal(t, 3, backend.GetCallCount())
}

func TestRetryPolicy_StopsAtBound(t *testing.T) {
	backend := mocks.NewErrorBackend(transient)
	exec := newTestExecutor(backend)

	_, err := fastPolicy(2).Invoke(context.Background(), exec, "checkBacklinks", map[string]any{"domain": "example.com"})
	assert.Equal(t, types.ErrBackendCallFailed, KindOf(err))
	assert.Equal(t, 3, backend.GetCallCount())
}

func TestRetryPolicy_SkipsNonRetryable(t *testing.T) {
	tests := []struct {
		name    string
		backend *mocks.MockBackend
		input   map[string]any
		calls   int
	}{
		{"permanent backend error", mocks.NewErrorBackend(&llm.Error{Code: llm.ErrUnauthorized, Message: "bad key"}), map[string]any{"domain": "example.com"}, 1},
		{"input error", mocks.NewTextBackend(fixtures.BacklinksJSON), map[string]any{"domain": "x"}, 0},
		{"output error not opted in", mocks.NewTextBackend(fixtures.BacklinksMissingAuthorityJSON), map[string]any{"domain": "example.com"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newTestExecutor(tt.backend)
			_, err := fastPolicy(3).Invoke(context.Background(), exec, "checkBacklinks", tt.input)
			require.Error(t, err)
			assert.Equal(t, tt.calls, tt.backend.GetCallCount())
		})
	}
}

func TestRetryPolicy_OutputValidationOptIn(t *testing.T) {
	backend := mocks.NewTextBackend(fixtures.BacklinksJSON).
		WithScript(mocks.Step{Response: &llm.Response{Text: fixtures.BacklinksMissingAuthorityJSON}})
	exec := newTestExecutor(backend)

	p := fastPolicy(1, types.ErrBackendCallFailed, types.ErrOutputValidation)
	res, err := p.Invoke(context.Background(), exec, "checkBacklinks", map[string]any{"domain": "example.com"})
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 2, backend.GetCallCount())
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := fastPolicy(1, types.ErrBackendCallFailed, types.ErrOutputValidation, types.ErrInputValidation)
	assert.True(t, p.ShouldRetry(types.NewError(types.ErrBackendCallFailed, "x").WithRetryable(true)))
	assert.False(t, p.ShouldRetry(types.NewError(types.ErrBackendCallFailed, "x")))
	assert.True(t, p.ShouldRetry(types.NewError(types.ErrOutputValidation, "x")))
	assert.False(t, p.ShouldRetry(types.NewError(types.ErrInputValidation, "x")))
	assert.False(t, p.ShouldRetry(types.NewError(types.ErrSchemaConfiguration, "x")))
	assert.False(t, p.ShouldRetry(context.Canceled))
}

type countingInvoker struct {
	n   atomic.Int32
	err error
}

func (c *countingInvoker) Invoke(context.Context, string, map[string]any) (*Result, error) {
	c.n.Add(1)
	return nil, c.err
}

func TestRetryPolicy_HonorsContext(t *testing.T) {
	inv := &countingInvoker{err: types.NewError(types.ErrBackendCallFailed, "x").WithRetryable(true)}
	p := fastPolicy(1000)
	p.BaseDelay = 50 * time.Millisecond
	p.MaxDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err := p.Invoke(ctx, inv, "checkBacklinks", nil)
	require.Error(t, err)
	assert.Less(t, inv.n.Load(), int32(10))
}
