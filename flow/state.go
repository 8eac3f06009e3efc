package flow

import (
	"context"
	"time"

	"github.com/BaSui01/genflow/llm"
	"github.com/BaSui01/genflow/types"
)

// State is a step of the invocation state machine.
type State int

const (
	StateIdle State = iota
	StateValidatingInput
	StateRendering
	StateAwaitingBackend
	StateValidatingOutput
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{
	StateIdle:             "idle",
	StateValidatingInput:  "validating_input",
	StateRendering:        "rendering",
	StateAwaitingBackend:  "awaiting_backend",
	StateValidatingOutput: "validating_output",
	StateSucceeded:        "succeeded",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Outcome summarizes a finished invocation for observers.
// Reached is the last non-terminal state entered; BackendDuration is zero when
// the backend was never called.
type Outcome struct {
	Flow            string
	Final           State
	Reached         State
	Code            types.ErrorCode
	Provider        string
	Model           string
	Usage           llm.Usage
	Duration        time.Duration
	BackendDuration time.Duration
	Err             error
}

// Observer receives state machine events. Implementations must be safe for concurrent use.
type Observer interface {
	// OnStart may return a derived context that is used for the rest of the invocation.
	OnStart(ctx context.Context, flow string) context.Context
	OnTransition(ctx context.Context, flow string, from, to State)
	OnFinish(ctx context.Context, o Outcome)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnStart(ctx context.Context, _ string) context.Context { return ctx }

func (NopObserver) OnTransition(context.Context, string, State, State) {}

func (NopObserver) OnFinish(context.Context, Outcome) {}

// Observers fans events out to several observers in order.
type Observers []Observer

func (obs Observers) OnStart(ctx context.Context, flow string) context.Context {
	for _, o := range obs {
		ctx = o.OnStart(ctx, flow)
	}
	return ctx
}

func (obs Observers) OnTransition(ctx context.Context, flow string, from, to State) {
	for _, o := range obs {
		o.OnTransition(ctx, flow, from, to)
	}
}

func (obs Observers) OnFinish(ctx context.Context, out Outcome) {
	for _, o := range obs {
		o.OnFinish(ctx, out)
	}
}
