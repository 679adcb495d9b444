// Package coach generates objection-handling suggestions through an LLM
// provider and publishes suggestions-ready events.
package coach

import (
	"context"
	"sync"
)

// Provider is a text-completion backend. Implementations must be safe
// for concurrent use.
type Provider interface {
	// Complete sends one system+user prompt pair and returns the model's
	// text response.
	Complete(ctx context.Context, system, user string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// Fake is a scripted provider for tests.
type Fake struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

// NewFakeProvider creates a provider returning the given responses in
// order. After the script is exhausted the last response repeats.
func NewFakeProvider(responses ...string) *Fake {
	return &Fake{responses: responses}
}

// Fail makes every subsequent call return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Calls returns how many completions ran.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Prompts returns the user prompts received so far.
func (f *Fake) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.prompts = append(f.prompts, user)

	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}
