package flow

import (
	"context"
	"slices"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/BaSui01/genflow/types"
)

// RetryPolicy re-invokes a flow on transient failures. The executor never
// retries on its own; callers opt in by wrapping it.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. Zero disables retrying.
	MaxRetries uint64        `yaml:"max_retries" json:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay" json:"max_delay"`
	// RetryOn lists the codes eligible for a retry. BACKEND_CALL_FAILED is only
	// retried when its cause is retryable.
	RetryOn []types.ErrorCode `yaml:"retry_on" json:"retry_on"`
	Jitter  time.Duration     `yaml:"jitter" json:"jitter"`
}

// DefaultRetryPolicy returns a disabled policy with sensible delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 0,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		RetryOn:    []types.ErrorCode{types.ErrBackendCallFailed},
	}
}

// Enabled reports whether the policy retries at all.
func (p RetryPolicy) Enabled() bool { return p.MaxRetries > 0 }

// ShouldRetry reports whether err is eligible for another attempt.
func (p RetryPolicy) ShouldRetry(err error) bool {
	te, ok := types.AsError(err)
	if !ok {
		return false
	}
	switch te.Code {
	case types.ErrInputValidation, types.ErrSchemaConfiguration, types.ErrFlowNotFound:
		return false
	}
	if !slices.Contains(p.RetryOn, te.Code) {
		return false
	}
	if te.Code == types.ErrBackendCallFailed {
		return te.Retryable
	}
	return true
}

func (p RetryPolicy) backoff() retry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.Jitter > 0 {
		b = retry.WithJitter(p.Jitter, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// Invoke runs the named flow through inv, retrying eligible failures.
func (p RetryPolicy) Invoke(ctx context.Context, inv Invoker, name string, input map[string]any) (*Result, error) {
	if !p.Enabled() {
		return inv.Invoke(ctx, name, input)
	}
	var res *Result
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		r, err := inv.Invoke(ctx, name, input)
		if err != nil {
			if p.ShouldRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Wrap returns an Invoker that applies the policy to every call.
func (p RetryPolicy) Wrap(inv Invoker) Invoker {
	if !p.Enabled() {
		return inv
	}
	return &retryingInvoker{policy: p, next: inv}
}

type retryingInvoker struct {
	policy RetryPolicy
	next   Invoker
}

func (r *retryingInvoker) Invoke(ctx context.Context, name string, input map[string]any) (*Result, error) {
	return r.policy.Invoke(ctx, r.next, name, input)
}
