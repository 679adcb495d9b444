package event

import (
	"sync"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// debouncer implements the coalescing side of delivery policies. It keeps
// at most one buffered payload per topic. The first publish of a burst
// arms a timer; later publishes replace the buffered payload without
// moving the deadline, so the maximum added latency equals the window no
// matter how fast the topic is published. When the timer fires it only
// enqueues a synthetic flush entry into the ingress queue; subscriber
// code always runs on the dispatch loop, never on the timer goroutine.
type debouncer struct {
	mu    sync.Mutex
	slots map[topic.Topic]*debounceSlot

	// armFlush enqueues the synthetic flush entry for a topic.
	armFlush func(t topic.Topic)
}

// debounceSlot is the single coalescing buffer for one topic.
type debounceSlot struct {
	env      Envelope
	deadline time.Time
	timer    *time.Timer
}

// newDebouncer creates a debouncer that reports window closes via armFlush.
func newDebouncer(armFlush func(t topic.Topic)) *debouncer {
	return &debouncer{
		slots:    make(map[topic.Topic]*debounceSlot),
		armFlush: armFlush,
	}
}

// offer buffers an envelope for a debounced topic. If a slot already
// exists the payload is replaced and the original deadline kept.
func (d *debouncer) offer(env Envelope, window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if slot, ok := d.slots[env.Topic]; ok {
		slot.env = env
		return
	}

	t := env.Topic
	slot := &debounceSlot{
		env:      env,
		deadline: time.Now().Add(window),
	}
	slot.timer = time.AfterFunc(window, func() {
		d.armFlush(t)
	})
	d.slots[t] = slot
}

// take removes and returns the buffered envelope for a topic. The second
// return is false when the slot was already cleared (e.g. cancelled
// between timer fire and flush processing).
func (d *debouncer) take(t topic.Topic) (Envelope, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	slot, ok := d.slots[t]
	if !ok {
		return Envelope{}, false
	}
	delete(d.slots, t)
	slot.timer.Stop()
	return slot.env, true
}

// cancel drops a topic's slot and stops its timer. Called when the last
// debounced subscription of a topic goes away so no orphaned timer fires.
// Returns true if a buffered payload was discarded.
func (d *debouncer) cancel(t topic.Topic) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if slot, ok := d.slots[t]; ok {
		slot.timer.Stop()
		delete(d.slots, t)
		return true
	}
	return false
}

// drain stops all timers and returns the buffered envelopes so a draining
// stop can deliver them instead of losing the tail of each burst.
func (d *debouncer) drain() []Envelope {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Envelope, 0, len(d.slots))
	for t, slot := range d.slots {
		slot.timer.Stop()
		out = append(out, slot.env)
		delete(d.slots, t)
	}
	return out
}

// discard stops all timers and clears all slots without returning them.
func (d *debouncer) discard() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := len(d.slots)
	for t, slot := range d.slots {
		slot.timer.Stop()
		delete(d.slots, t)
	}
	return n
}

// pending reports whether a topic currently has a buffered payload.
func (d *debouncer) pending(t topic.Topic) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.slots[t]
	return ok
}
