package event

import (
	"sync"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// Registry manages subscriptions organized by topic.
// It is thread-safe for concurrent access. Subscriptions are kept in
// registration order, which is also the fan-out order for each event.
type Registry struct {
	mu   sync.RWMutex
	subs map[topic.Topic][]*subscription
	byID map[string]*subscription
}

// NewRegistry creates a new subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[topic.Topic][]*subscription),
		byID: make(map[string]*subscription),
	}
}

// Add adds a subscription. Registration order is preserved.
func (r *Registry) Add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := sub.Topic()
	r.subs[t] = append(r.subs[t], sub)
	r.byID[sub.ID()] = sub
}

// Remove removes a subscription by ID.
func (r *Registry) Remove(subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.byID[subID]
	if !exists {
		return false
	}

	t := sub.Topic()
	subs := r.subs[t]
	for i, s := range subs {
		if s.ID() == subID {
			r.subs[t] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.subs[t]) == 0 {
		delete(r.subs, t)
	}
	delete(r.byID, subID)

	return true
}

// Get returns a subscription by ID.
func (r *Registry) Get(subID string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.byID[subID]
	return sub, exists
}

// ForTopic returns all subscriptions for a topic in registration order.
// Returns a copy to prevent modification during iteration.
func (r *Registry) ForTopic(t topic.Topic) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subs[t]
	if len(subs) == 0 {
		return nil
	}

	result := make([]*subscription, len(subs))
	copy(result, subs)
	return result
}

// HasDebounced reports whether the topic has at least one active
// debounced subscription.
func (r *Registry) HasDebounced(t topic.Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs[t] {
		if sub.IsActive() && sub.Policy().IsDebounced() {
			return true
		}
	}
	return false
}

// DebouncedWindow returns the effective coalescing window for a topic:
// the smallest window among its active debounced subscriptions. The
// second return is false when the topic has no active debounced
// subscription.
func (r *Registry) DebouncedWindow(t topic.Topic) (time.Duration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var min time.Duration
	found := false
	for _, sub := range r.subs[t] {
		if !sub.IsActive() || !sub.Policy().IsDebounced() {
			continue
		}
		w := sub.Policy().Window()
		if !found || w < min {
			min = w
			found = true
		}
	}
	return min, found
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// CountByTopic returns the number of subscriptions for a topic.
func (r *Registry) CountByTopic(t topic.Topic) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[t])
}

// CountActive returns the number of active subscriptions.
func (r *Registry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.byID {
		if sub.IsActive() {
			count++
		}
	}
	return count
}

// All returns all subscriptions.
// Returns a copy to prevent modification during iteration.
func (r *Registry) All() []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.byID) == 0 {
		return nil
	}

	result := make([]*subscription, 0, len(r.byID))
	for _, sub := range r.byID {
		result = append(result, sub)
	}
	return result
}

// Topics returns all topics with subscriptions.
func (r *Registry) Topics() []topic.Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.subs) == 0 {
		return nil
	}

	topics := make([]topic.Topic, 0, len(r.subs))
	for t := range r.subs {
		topics = append(topics, t)
	}
	return topics
}

// Clear removes all subscriptions.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = make(map[topic.Topic][]*subscription)
	r.byID = make(map[string]*subscription)
}

// RemoveCancelled removes all cancelled subscriptions from the registry.
// Returns the number of subscriptions removed.
func (r *Registry) RemoveCancelled() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, sub := range r.byID {
		if !sub.IsCancelled() {
			continue
		}

		t := sub.Topic()
		subs := r.subs[t]
		for i, s := range subs {
			if s.ID() == id {
				r.subs[t] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(r.subs[t]) == 0 {
			delete(r.subs, t)
		}
		delete(r.byID, id)
		removed++
	}

	return removed
}
