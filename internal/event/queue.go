package event

import (
	"context"
	"time"
)

// entry is a unit of work in the ingress queue.
type entry struct {
	env        Envelope
	enqueuedAt time.Time
}

// ingressQueue is the bounded queue between producers and the dispatch
// loop. Overflow behavior is decided per enqueue by the bus's configured
// OverflowPolicy; every discarded entry is reported through onDrop so the
// metrics collector sees it.
type ingressQueue struct {
	ch     chan entry
	onDrop func(entry)
}

// newIngressQueue creates a queue with the given capacity.
func newIngressQueue(capacity int, onDrop func(entry)) *ingressQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &ingressQueue{
		ch:     make(chan entry, capacity),
		onDrop: onDrop,
	}
}

// enqueue adds an entry according to the overflow policy. It returns nil
// when the publish should be reported as successful, which for the drop
// policies includes the case where an entry was discarded.
func (q *ingressQueue) enqueue(ctx context.Context, e entry, policy OverflowPolicy) error {
	// Fast path: room available.
	select {
	case q.ch <- e:
		return nil
	default:
	}

	switch policy.kind {
	case overflowDropNewest:
		q.onDrop(e)
		return nil

	case overflowDropOldest:
		q.force(e)
		return nil

	case overflowBackpressure:
		timer := time.NewTimer(policy.timeout)
		defer timer.Stop()
		select {
		case q.ch <- e:
			return nil
		case <-timer.C:
			return ErrQueueFull
		case <-ctx.Done():
			return ctx.Err()
		}

	default:
		q.onDrop(e)
		return nil
	}
}

// force inserts an entry unconditionally, evicting the oldest queued
// entries as needed. Used for drop-oldest overflow and for internal
// entries (debounce flushes, error-raised events) that must not be lost
// to producer-facing overflow policies.
func (q *ingressQueue) force(e entry) {
	for {
		select {
		case q.ch <- e:
			return
		default:
		}
		// Full: evict one and retry.
		select {
		case old := <-q.ch:
			q.onDrop(old)
		default:
		}
	}
}

// depth returns the current number of queued entries.
func (q *ingressQueue) depth() int {
	return len(q.ch)
}
