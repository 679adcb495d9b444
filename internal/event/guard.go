package event

import (
	"context"
	"runtime/debug"
	"time"
)

// guardResult captures the outcome of one guarded handler invocation.
type guardResult struct {
	err        error
	panicked   bool
	panicValue any
	stack      []byte
	duration   time.Duration
}

// failed reports whether the invocation counts as a subscriber failure.
func (r guardResult) failed() bool {
	return r.panicked || r.err != nil
}

// runGuarded executes a handler with panic recovery and timing. A panic
// in one subscriber must never take down the dispatch loop or affect
// sibling subscribers.
func runGuarded(ctx context.Context, env Envelope, h Handler) (result guardResult) {
	start := time.Now()

	defer func() {
		result.duration = time.Since(start)

		if r := recover(); r != nil {
			result.panicked = true
			result.panicValue = r
			result.stack = debug.Stack()
		}
	}()

	result.err = h.Handle(ctx, env)
	return result
}
