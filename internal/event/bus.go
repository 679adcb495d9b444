package event

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

const (
	// defaultQueueCapacity is the ingress queue size when none is configured.
	defaultQueueCapacity = 1024

	// DefaultStopTimeout bounds Stop when the caller's context has no
	// deadline of its own.
	DefaultStopTimeout = 5 * time.Second

	// flushSignalCapacity sizes the debounce flush channel. There is at
	// most one outstanding signal per topic, so the fixed catalog size
	// bounds it; headroom covers custom contract registries.
	flushSignalCapacity = 32
)

// Bus is the central event bus interface.
//
// All subscriber handlers for non-bridged subscriptions run on the bus's
// single dispatch goroutine, so for one subscription deliveries never
// overlap and arrive in publish order.
type Bus interface {
	// Publish validates payload against topic's contract and enqueues it.
	// The configured overflow policy decides behavior when the ingress
	// queue is full.
	Publish(ctx context.Context, t topic.Topic, payload any) error

	// Subscribe registers a handler for a topic.
	Subscribe(t topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)

	// SubscribeFunc is a convenience method for subscribing with a function handler.
	SubscribeFunc(t topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(sub Subscription) error

	// Start launches the dispatch loop.
	Start() error

	// Stop shuts the bus down. With drain set, queued events and pending
	// debounce payloads are delivered first; otherwise they are discarded.
	Stop(ctx context.Context, drain bool) error

	// IsRunning returns true if the bus is running.
	IsRunning() bool

	// Metrics returns a snapshot of per-topic counters and latencies.
	Metrics() MetricsSnapshot
}

// bus is the default Bus implementation.
type bus struct {
	contracts *Contracts
	registry  *Registry
	queue     *ingressQueue
	debounce  *debouncer
	metrics   *collector
	config    busConfig
	log       zerolog.Logger

	// flushCh carries debounce window-close signals from timer goroutines
	// to the dispatch loop.
	flushCh chan topic.Topic

	running     atomic.Bool
	drainOnStop atomic.Bool
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New creates a new event bus with the given options.
func New(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &bus{
		contracts: config.contracts,
		registry:  NewRegistry(),
		metrics:   newCollector(),
		config:    config,
		log:       config.logger.With().Str("component", "eventbus").Logger(),
		flushCh:   make(chan topic.Topic, flushSignalCapacity),
	}
	b.queue = newIngressQueue(config.queueCapacity, b.onQueueDrop)
	b.debounce = newDebouncer(b.signalFlush)
	return b
}

// Start launches the dispatch loop.
func (b *bus) Start() error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrBusAlreadyRunning
	}

	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	go b.dispatchLoop()

	b.log.Debug().
		Int("queue_capacity", cap(b.queue.ch)).
		Str("overflow", b.config.overflow.String()).
		Msg("bus started")
	return nil
}

// Stop shuts the bus down and waits for the dispatch loop to exit. When
// the caller's context carries no deadline, DefaultStopTimeout applies.
func (b *bus) Stop(ctx context.Context, drain bool) error {
	if !b.running.CompareAndSwap(true, false) {
		return ErrBusNotRunning
	}

	b.drainOnStop.Store(drain)
	close(b.stopCh)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultStopTimeout)
		defer cancel()
	}

	select {
	case <-b.doneCh:
		b.log.Debug().Bool("drained", drain).Msg("bus stopped")
		return nil
	case <-ctx.Done():
		b.log.Error().Msg("bus stop timed out; dispatch loop abandoned")
		return ErrShutdownTimeout
	}
}

// IsRunning returns true if the bus is running.
func (b *bus) IsRunning() bool {
	return b.running.Load()
}

// Metrics returns a snapshot of per-topic counters and latencies.
func (b *bus) Metrics() MetricsSnapshot {
	return b.metrics.snapshot(b.queue.depth())
}

// Publish validates and enqueues an event. The returned error reflects
// admission only; delivery outcomes are visible through Metrics.
func (b *bus) Publish(ctx context.Context, t topic.Topic, payload any) error {
	if !b.running.Load() {
		return ErrBusNotRunning
	}
	if err := b.contracts.Validate(t, payload); err != nil {
		return err
	}

	now := time.Now()
	env := Envelope{
		Topic:   t,
		Payload: payload,
		Metadata: Metadata{
			ID:        generateID(),
			Timestamp: now,
			Publisher: PublisherFromContext(ctx),
		},
	}

	b.metrics.published(t)
	return b.queue.enqueue(ctx, entry{env: env, enqueuedAt: now}, b.config.overflow)
}

// Subscribe creates a new subscription for the given topic.
// This method is safe to call concurrently.
func (b *bus) Subscribe(t topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !b.contracts.Registered(t) {
		return nil, ErrUnknownTopic
	}

	sub := newSubscription(generateID(), t, handler, opts...)
	if err := sub.Policy().validate(); err != nil {
		return nil, err
	}

	b.registry.Add(sub)
	return sub, nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *bus) SubscribeFunc(t topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	return b.Subscribe(t, fn, opts...)
}

// Unsubscribe removes a subscription.
// This method is safe to call concurrently, including from handlers.
func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}

	sub.Cancel()
	removed := b.registry.Remove(sub.ID())
	if !removed {
		return ErrSubscriptionNotFound
	}

	// Drop the coalescing slot when the last debounced subscription of the
	// topic goes away, so no orphaned timer or payload lingers.
	t := sub.Topic()
	if !b.registry.HasDebounced(t) {
		if b.debounce.cancel(t) {
			b.metrics.dropped(t)
		}
	}
	return nil
}

// signalFlush notifies the dispatch loop that a topic's debounce window
// closed. Runs on a timer goroutine; must never block or touch
// subscriber code. The channel is sized so the send cannot block while a
// slot exists per topic, but the guard keeps a misconfigured registry
// from wedging a timer.
func (b *bus) signalFlush(t topic.Topic) {
	select {
	case b.flushCh <- t:
	default:
		b.log.Warn().Str("topic", t.String()).Msg("flush signal dropped; channel full")
	}
}

// onQueueDrop records an entry discarded by the overflow policy.
func (b *bus) onQueueDrop(e entry) {
	b.metrics.dropped(e.env.Topic)
	b.log.Debug().
		Str("topic", e.env.Topic.String()).
		Str("event_id", e.env.Metadata.ID).
		Msg("event dropped on overflow")
}

// dispatchLoop is the single goroutine that owns fan-out. Every handler
// for non-bridged subscriptions runs here.
func (b *bus) dispatchLoop() {
	defer close(b.doneCh)

	for {
		select {
		case e := <-b.queue.ch:
			b.process(e)
		case t := <-b.flushCh:
			b.processFlush(t)
		case <-b.stopCh:
			if b.drainOnStop.Load() {
				b.drainRemaining()
			} else {
				if n := b.debounce.discard(); n > 0 {
					b.log.Debug().Int("count", n).Msg("discarded pending debounce payloads")
				}
			}
			return
		}
	}
}

// drainRemaining empties the ingress queue, then delivers any payloads
// still held in debounce slots without waiting for their windows.
func (b *bus) drainRemaining() {
	for {
		select {
		case e := <-b.queue.ch:
			b.process(e)
		default:
			for _, env := range b.debounce.drain() {
				b.fanOutDebounced(env)
			}
			return
		}
	}
}

// process fans one queued event out: immediate subscriptions get it now,
// and if the topic has debounced subscriptions the payload is offered to
// the coalescing slot.
func (b *bus) process(e entry) {
	subs := b.registry.ForTopic(e.env.Topic)
	for _, sub := range subs {
		if sub.Policy().IsDebounced() {
			continue
		}
		b.deliverTo(sub, e.env, e.enqueuedAt)
	}

	if window, ok := b.registry.DebouncedWindow(e.env.Topic); ok {
		b.debounce.offer(e.env, window)
	}
}

// processFlush delivers a topic's coalesced payload after its window
// closed.
func (b *bus) processFlush(t topic.Topic) {
	env, ok := b.debounce.take(t)
	if !ok {
		return
	}
	b.fanOutDebounced(env)
}

// fanOutDebounced delivers an envelope to the topic's debounced
// subscriptions only.
func (b *bus) fanOutDebounced(env Envelope) {
	for _, sub := range b.registry.ForTopic(env.Topic) {
		if !sub.Policy().IsDebounced() {
			continue
		}
		b.deliverTo(sub, env, env.Metadata.Timestamp)
	}
}

// deliverTo runs one guarded delivery, either inline on the dispatch
// loop or through the subscription's host-context bridge.
func (b *bus) deliverTo(sub *subscription, env Envelope, start time.Time) {
	if !sub.IsActive() {
		return
	}

	if br := sub.Config().Bridge; br != nil {
		posted := br.dispatch(sub.ID(), func() {
			res := runGuarded(context.Background(), env, sub.Handler())
			b.afterDelivery(sub, env, res, start)
		})
		if !posted {
			b.metrics.dropped(env.Topic)
			b.log.Debug().
				Str("topic", env.Topic.String()).
				Str("subscriber", sub.Name()).
				Msg("delivery dropped; bridge closed")
		}
		return
	}

	res := runGuarded(context.Background(), env, sub.Handler())
	b.afterDelivery(sub, env, res, start)
}

// afterDelivery updates metrics and the subscription's failure streak.
// A tripped streak suspends the subscription and raises an error event.
func (b *bus) afterDelivery(sub *subscription, env Envelope, res guardResult, start time.Time) {
	if !res.failed() {
		sub.recordSuccess()
		b.metrics.delivered(env.Topic, time.Since(start))
		return
	}

	b.metrics.failed(env.Topic)

	if res.panicked {
		b.log.Error().
			Str("topic", env.Topic.String()).
			Str("subscriber", sub.Name()).
			Interface("panic", res.panicValue).
			Bytes("stack", res.stack).
			Msg("subscriber panicked")
	} else {
		b.log.Warn().
			Str("topic", env.Topic.String()).
			Str("subscriber", sub.Name()).
			Err(res.err).
			Msg("subscriber failed")
	}

	if sub.recordFailure(time.Now(), b.config.suspend) && sub.suspend() {
		b.log.Error().
			Str("topic", env.Topic.String()).
			Str("subscriber", sub.Name()).
			Int("threshold", b.config.suspend.Threshold).
			Msg("subscriber suspended after repeated failures")

		// Raising a suspension for an error-raised subscriber onto the
		// same topic would feed the failure back to itself.
		if env.Topic != topic.ErrorRaised {
			b.raiseError("subscriber-suspended", fmt.Sprintf(
				"subscriber %s suspended on topic %s after %d consecutive failures",
				sub.Name(), env.Topic, b.config.suspend.Threshold))
		}
	}
}

// raiseError publishes an internal error-raised event. It bypasses the
// overflow policy so bus-health events cannot be rejected under load.
func (b *bus) raiseError(code, message string) {
	payload := events.Error{
		Scope:   events.ScopeBus,
		Code:    code,
		Message: message,
	}
	if err := b.contracts.Validate(topic.ErrorRaised, payload); err != nil {
		return
	}

	now := time.Now()
	env := Envelope{
		Topic:   topic.ErrorRaised,
		Payload: payload,
		Metadata: Metadata{
			ID:        generateID(),
			Timestamp: now,
			Publisher: "eventbus",
		},
	}
	b.metrics.published(topic.ErrorRaised)
	b.queue.force(entry{env: env, enqueuedAt: now})
}
