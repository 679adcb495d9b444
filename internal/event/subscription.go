package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// SubscriptionState represents the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive means the subscription is receiving events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStateSuspended means the subscription was automatically
	// suspended after repeated handler failures. It can be resumed.
	SubscriptionStateSuspended

	// SubscriptionStateCancelled means the subscription has been permanently cancelled.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStateSuspended:
		return "suspended"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription represents an active event subscription.
// It provides methods to control the subscription lifecycle.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() string

	// Topic returns the subscribed topic.
	Topic() topic.Topic

	// Policy returns the subscription's delivery policy.
	Policy() DeliveryPolicy

	// State returns the current subscription state.
	State() SubscriptionState

	// IsActive returns true if the subscription can receive events.
	IsActive() bool

	// IsSuspended returns true if the subscription was auto-suspended.
	IsSuspended() bool

	// Resume reactivates a suspended subscription and resets its failure
	// streak.
	Resume()

	// Cancel permanently cancels the subscription.
	// After cancellation, the subscription cannot be resumed.
	Cancel()
}

// SubscriptionConfig contains configuration for a subscription.
type SubscriptionConfig struct {
	// Policy determines how publishes reach this subscription.
	Policy DeliveryPolicy

	// Name identifies the subscriber in logs and error events.
	Name string

	// Bridge, when set, routes deliveries through a host scheduler instead
	// of running the handler on the dispatch loop.
	Bridge *Bridge
}

// DefaultSubscriptionConfig returns a default subscription configuration.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		Policy: Immediate(),
	}
}

// SubscriptionOption is a function that configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPolicy sets the delivery policy.
func WithPolicy(p DeliveryPolicy) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Policy = p
	}
}

// WithSubscriberName sets the subscriber name used in logs and error
// events.
func WithSubscriberName(name string) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Name = name
	}
}

// WithBridge routes the subscription's deliveries through a host-context
// bridge.
func WithBridge(b *Bridge) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Bridge = b
	}
}

// subscription is the internal implementation of Subscription.
type subscription struct {
	id      string
	topic   topic.Topic
	handler Handler
	config  SubscriptionConfig
	state   atomic.Int32

	// Failure streak tracking. Only the dispatch loop writes these, but
	// Resume can reset them from any goroutine.
	streakMu      sync.Mutex
	streakCount   int
	streakFirstAt time.Time
}

// newSubscription creates a new subscription.
func newSubscription(id string, t topic.Topic, h Handler, opts ...SubscriptionOption) *subscription {
	config := DefaultSubscriptionConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.Name == "" {
		config.Name = id
	}

	s := &subscription{
		id:      id,
		topic:   t,
		handler: h,
		config:  config,
	}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

// ID returns the subscription ID.
func (s *subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic.
func (s *subscription) Topic() topic.Topic {
	return s.topic
}

// Policy returns the subscription's delivery policy.
func (s *subscription) Policy() DeliveryPolicy {
	return s.config.Policy
}

// Name returns the subscriber name.
func (s *subscription) Name() string {
	return s.config.Name
}

// Handler returns the subscription's handler.
func (s *subscription) Handler() Handler {
	return s.handler
}

// Config returns the subscription configuration.
func (s *subscription) Config() SubscriptionConfig {
	return s.config
}

// State returns the current subscription state.
func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

// IsActive returns true if the subscription is active.
func (s *subscription) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

// IsSuspended returns true if the subscription is suspended.
func (s *subscription) IsSuspended() bool {
	return s.State() == SubscriptionStateSuspended
}

// IsCancelled returns true if the subscription is cancelled.
func (s *subscription) IsCancelled() bool {
	return s.State() == SubscriptionStateCancelled
}

// Resume reactivates a suspended subscription.
func (s *subscription) Resume() {
	if s.state.CompareAndSwap(int32(SubscriptionStateSuspended), int32(SubscriptionStateActive)) {
		s.resetStreak()
	}
}

// Cancel permanently cancels the subscription.
func (s *subscription) Cancel() {
	s.state.Store(int32(SubscriptionStateCancelled))
}

// suspend moves an active subscription to the suspended state.
func (s *subscription) suspend() bool {
	return s.state.CompareAndSwap(int32(SubscriptionStateActive), int32(SubscriptionStateSuspended))
}

// recordFailure registers one handler failure and reports whether the
// streak has tripped the suspend policy. Failures older than the policy
// window restart the streak.
func (s *subscription) recordFailure(now time.Time, policy SuspendPolicy) bool {
	if policy.Threshold <= 0 {
		return false
	}

	s.streakMu.Lock()
	defer s.streakMu.Unlock()

	if s.streakCount == 0 || (policy.Window > 0 && now.Sub(s.streakFirstAt) > policy.Window) {
		s.streakCount = 1
		s.streakFirstAt = now
	} else {
		s.streakCount++
	}
	return s.streakCount >= policy.Threshold
}

// recordSuccess resets the failure streak.
func (s *subscription) recordSuccess() {
	s.resetStreak()
}

func (s *subscription) resetStreak() {
	s.streakMu.Lock()
	s.streakCount = 0
	s.streakFirstAt = time.Time{}
	s.streakMu.Unlock()
}
