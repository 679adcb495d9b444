package event

import (
	"context"
	"time"
)

// Handler is the interface for event subscribers.
type Handler interface {
	// Handle processes one delivered envelope. Returning an error counts
	// as a subscriber failure; it never affects sibling subscribers.
	Handle(ctx context.Context, env Envelope) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, env Envelope) error {
	return f(ctx, env)
}

// policyKind discriminates delivery policies.
type policyKind int

const (
	policyImmediate policyKind = iota
	policyDebounced
)

// DeliveryPolicy controls how publishes reach a subscription.
//
// Immediate delivers every publish in publish order. Debounced coalesces
// rapid publishes: within a rolling window only the most recent payload
// survives, and it is delivered once when the window closes. The window
// deadline is fixed when the first publish of a burst arrives and is not
// extended by later publishes, so the added latency is capped at the
// window regardless of publish rate.
type DeliveryPolicy struct {
	kind   policyKind
	window time.Duration
}

// Immediate returns the deliver-all policy.
func Immediate() DeliveryPolicy {
	return DeliveryPolicy{kind: policyImmediate}
}

// Debounced returns a coalescing policy with the given window.
func Debounced(window time.Duration) DeliveryPolicy {
	return DeliveryPolicy{kind: policyDebounced, window: window}
}

// IsDebounced reports whether the policy coalesces publishes.
func (p DeliveryPolicy) IsDebounced() bool {
	return p.kind == policyDebounced
}

// Window returns the debounce window. Zero for Immediate.
func (p DeliveryPolicy) Window() time.Duration {
	return p.window
}

// String returns a human-readable policy name.
func (p DeliveryPolicy) String() string {
	if p.kind == policyDebounced {
		return "debounced(" + p.window.String() + ")"
	}
	return "immediate"
}

// validate reports whether the policy is well formed.
func (p DeliveryPolicy) validate() error {
	if p.kind == policyDebounced && p.window <= 0 {
		return ErrInvalidPolicy
	}
	return nil
}

// overflowKind discriminates queue overflow policies.
type overflowKind int

const (
	overflowDropOldest overflowKind = iota
	overflowDropNewest
	overflowBackpressure
)

// OverflowPolicy controls what Publish does when the bounded ingress
// queue is full.
type OverflowPolicy struct {
	kind    overflowKind
	timeout time.Duration
}

// DropOldest discards the oldest queued entry to make room; Publish
// always succeeds. This is the default: the pipeline's producers are
// real-time and a stale entry is worth less than a fresh one.
func DropOldest() OverflowPolicy {
	return OverflowPolicy{kind: overflowDropOldest}
}

// DropNewest discards the entry being published; Publish reports success
// and the drop is counted.
func DropNewest() OverflowPolicy {
	return OverflowPolicy{kind: overflowDropNewest}
}

// defaultBackpressureTimeout bounds how long a real-time producer may be
// held when Backpressure is selected without an explicit timeout.
const defaultBackpressureTimeout = 250 * time.Millisecond

// Backpressure blocks the publisher until space frees up or the timeout
// elapses, in which case Publish fails with ErrQueueFull.
func Backpressure(timeout time.Duration) OverflowPolicy {
	if timeout <= 0 {
		timeout = defaultBackpressureTimeout
	}
	return OverflowPolicy{kind: overflowBackpressure, timeout: timeout}
}

// String returns a human-readable policy name.
func (p OverflowPolicy) String() string {
	switch p.kind {
	case overflowDropOldest:
		return "drop-oldest"
	case overflowDropNewest:
		return "drop-newest"
	case overflowBackpressure:
		return "backpressure(" + p.timeout.String() + ")"
	default:
		return "unknown"
	}
}

// SuspendPolicy governs automatic suspension of repeatedly failing
// subscribers: Threshold consecutive failures within Window suspends the
// subscription and raises an error-raised event.
type SuspendPolicy struct {
	// Threshold is the number of consecutive failures that trips
	// suspension. Zero or negative disables auto-suspension.
	Threshold int

	// Window is the time span the consecutive failures must fall within.
	Window time.Duration
}

// DefaultSuspendPolicy returns the default repeat-offender policy.
func DefaultSuspendPolicy() SuspendPolicy {
	return SuspendPolicy{Threshold: 3, Window: 30 * time.Second}
}
