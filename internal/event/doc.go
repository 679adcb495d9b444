// Package event provides the inter-module event bus for PitchAI.
//
// The bus is the pipeline's communication backbone: real-time producers
// (audio capture, transcription, sentiment, objection detection,
// coaching, summary) publish typed events to a fixed topic catalog, and
// consumers subscribe without direct dependencies on the producers.
//
// # Architecture
//
// A single dispatch goroutine owns all fan-out. Producers enqueue into a
// bounded ingress queue; the loop pops entries one at a time and runs
// every non-bridged handler inline, so deliveries to one subscription
// never overlap and arrive in publish order.
//
//	producers ──▶ ingress queue ──▶ dispatch loop ──▶ handlers
//	                                     │
//	                                     └──▶ bridge ──▶ host scheduler
//
// # Topic Catalog
//
// Topics are fixed and each is bound to one payload type by the contract
// registry. Publishing an unknown topic or a mistyped payload fails at
// the publish boundary:
//
//	chunk-transcribed   events.TranscriptChunk
//	sentiment-updated   events.SentimentUpdate
//	objection-detected  events.Objection
//	suggestions-ready   events.Suggestions
//	summary-ready       events.Summary
//	status-changed      events.Status
//	error-raised        events.Error
//
// # Delivery Policies
//
// Each subscription chooses how publishes reach it:
//
//   - Immediate: every publish is delivered, in publish order.
//   - Debounced(w): rapid publishes coalesce; only the most recent
//     payload in a window w is delivered. The window deadline is fixed at
//     the first publish of a burst, so added latency never exceeds w.
//
// # Overflow Policies
//
// The ingress queue is bounded. When it is full, the bus-wide overflow
// policy decides what Publish does: DropOldest (default, favors fresh
// data), DropNewest, or Backpressure with a timeout.
//
// # Error Isolation
//
// Handler errors and panics are contained: they are logged and counted,
// and sibling subscribers still receive the event. A subscriber that
// fails repeatedly within a short span is suspended automatically and a
// bus-scoped error-raised event is published.
//
// # Basic Usage
//
//	bus := event.New(event.WithLogger(logger))
//	if err := bus.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer bus.Stop(context.Background(), true)
//
//	sub, err := bus.SubscribeFunc(
//	    topic.SentimentUpdated,
//	    handler,
//	    event.WithPolicy(event.Debounced(100*time.Millisecond)),
//	    event.WithSubscriberName("dashboard"),
//	)
//
//	err = bus.Publish(ctx, topic.SentimentUpdated, events.SentimentUpdate{...})
//
// # Host-Context Bridge
//
// UI frameworks require their callbacks on one thread. A Bridge hands
// deliveries to a HostScheduler while preserving per-subscription order,
// and fails closed during teardown:
//
//	bridge := event.NewBridge()
//	bridge.RegisterHostContext(uiScheduler)
//	bus.Subscribe(topic.ChunkTranscribed, handler, event.WithBridge(bridge))
//
// # Thread Safety
//
// The Bus and all public types are safe for concurrent use.
// Subscriptions can be added and removed while events are being
// published, including from inside handlers.
//
// # Subpackages
//
//   - events: typed event payload definitions
//   - topic: the fixed topic catalog
package event
