package event

import (
	"sync"
	"sync/atomic"
)

// HostScheduler posts work onto a single-threaded host context, such as
// a UI main loop. Schedule must be safe to call from any goroutine and
// must return an error once the host context is shutting down.
type HostScheduler interface {
	Schedule(fn func()) error
}

// HostSchedulerFunc is a function adapter for HostScheduler.
type HostSchedulerFunc func(fn func()) error

// Schedule implements the HostScheduler interface.
func (f HostSchedulerFunc) Schedule(fn func()) error {
	return f(fn)
}

// Bridge hands deliveries from the dispatch loop to a host scheduler
// while preserving per-subscription order. Deliveries for one
// subscription are queued FIFO and drained one at a time on the host
// side, so the host never sees two callbacks for the same subscription
// out of order even if Schedule itself reorders posts.
//
// The bridge fails closed: after Close, or when Schedule returns an
// error, deliveries are dropped and counted rather than run on the
// caller's goroutine.
type Bridge struct {
	mu        sync.Mutex
	scheduler HostScheduler
	closed    bool

	pending   map[string][]func()
	scheduled map[string]bool

	droppedCount atomic.Uint64
}

// NewBridge creates a bridge with no host context registered. Deliveries
// posted before RegisterHostContext are dropped and counted.
func NewBridge() *Bridge {
	return &Bridge{
		pending:   make(map[string][]func()),
		scheduled: make(map[string]bool),
	}
}

// RegisterHostContext attaches the host scheduler. It may be called once;
// a second call returns ErrHostRegistered.
func (b *Bridge) RegisterHostContext(s HostScheduler) error {
	if s == nil {
		return ErrInvalidSubscription
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBridgeClosed
	}
	if b.scheduler != nil {
		return ErrHostRegistered
	}
	b.scheduler = s
	return nil
}

// Close shuts the bridge down. Pending deliveries are discarded and
// counted as dropped; subsequent dispatches are dropped as well.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, fns := range b.pending {
		b.droppedCount.Add(uint64(len(fns)))
		delete(b.pending, id)
	}
	b.scheduled = make(map[string]bool)
	b.scheduler = nil
}

// Dropped returns the number of deliveries discarded by the bridge.
func (b *Bridge) Dropped() uint64 {
	return b.droppedCount.Load()
}

// dispatch queues one delivery for a subscription and ensures a drain is
// scheduled on the host. Returns false when the delivery was dropped.
func (b *Bridge) dispatch(subID string, run func()) bool {
	b.mu.Lock()

	if b.closed || b.scheduler == nil {
		b.mu.Unlock()
		b.droppedCount.Add(1)
		return false
	}

	b.pending[subID] = append(b.pending[subID], run)
	if b.scheduled[subID] {
		b.mu.Unlock()
		return true
	}
	b.scheduled[subID] = true
	scheduler := b.scheduler
	b.mu.Unlock()

	if err := scheduler.Schedule(func() { b.drain(subID) }); err != nil {
		b.dropPending(subID)
		return false
	}
	return true
}

// drain runs queued deliveries for one subscription on the host context.
// It pops one delivery at a time, rechecking closed between pops, and
// empties the queue within this one scheduled call.
func (b *Bridge) drain(subID string) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		fns := b.pending[subID]
		if len(fns) == 0 {
			b.scheduled[subID] = false
			delete(b.pending, subID)
			b.mu.Unlock()
			return
		}
		run := fns[0]
		b.pending[subID] = fns[1:]
		b.mu.Unlock()

		run()
	}
}

// dropPending discards any queued deliveries for a subscription after a
// failed Schedule call.
func (b *Bridge) dropPending(subID string) {
	b.mu.Lock()
	n := len(b.pending[subID])
	delete(b.pending, subID)
	b.scheduled[subID] = false
	b.mu.Unlock()

	b.droppedCount.Add(uint64(n))
}
