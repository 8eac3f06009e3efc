package flow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Call is one invocation of a batch.
type Call struct {
	Flow  string         `json:"flow"`
	Input map[string]any `json:"input"`
}

// CallResult pairs a call with its outcome. Exactly one of Result and Err is set.
type CallResult struct {
	Call   Call
	Result *Result
	Err    error
}

// InvokeAll runs independent calls concurrently, at most limit at a time
// (limit <= 0 means unbounded). Results are returned in call order.
// A failing call does not cancel the others.
func InvokeAll(ctx context.Context, inv Invoker, calls []Call, limit int) []CallResult {
	results := make([]CallResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, c := range calls {
		g.Go(func() error {
			res, err := inv.Invoke(gctx, c.Flow, c.Input)
			results[i] = CallResult{Call: c, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed returns the results that carry an error.
func Failed(results []CallResult) []CallResult {
	var out []CallResult
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
