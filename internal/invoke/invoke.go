// Package invoke defines the backend invoker capability: something that takes
// a prompt and a role label and produces a scored opinion. Implementations
// wrap external reasoning backends (CLI agents, APIs); the orchestrator treats
// all of them identically through this interface.
package invoke

import (
	"context"
	"errors"
	"time"

	"arbiter/internal/debate"
)

// Failure kinds. The orchestrator handles all three the same way (degraded
// mode) but logs them distinctly.
var (
	ErrTimeout           = errors.New("invoker timeout")
	ErrProcess           = errors.New("invoker process error")
	ErrMalformedResponse = errors.New("invoker malformed response")
)

// DefaultTimeout is the per-call budget, independent of the overall request
// deadline.
const DefaultTimeout = 120 * time.Second

// Invoker produces one backend's opinion on a prompt. The role label ("A" or
// "B") is stamped onto the returned opinion as its source.
type Invoker interface {
	Invoke(ctx context.Context, prompt, role string) (*debate.Opinion, error)
}

// Func adapts a function to the Invoker interface, mostly for tests.
type Func func(ctx context.Context, prompt, role string) (*debate.Opinion, error)

func (f Func) Invoke(ctx context.Context, prompt, role string) (*debate.Opinion, error) {
	return f(ctx, prompt, role)
}
