package event

import (
	"context"
	"testing"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

func noopHandler() Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) error { return nil })
}

func TestRegistry_AddPreservesOrder(t *testing.T) {
	r := NewRegistry()

	first := newSubscription("a", topic.StatusChanged, noopHandler())
	second := newSubscription("b", topic.StatusChanged, noopHandler())
	third := newSubscription("c", topic.StatusChanged, noopHandler())
	r.Add(first)
	r.Add(second)
	r.Add(third)

	subs := r.ForTopic(topic.StatusChanged)
	if len(subs) != 3 {
		t.Fatalf("expected 3 subscriptions, got %d", len(subs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if subs[i].ID() != want {
			t.Errorf("position %d: want %s, got %s", i, want, subs[i].ID())
		}
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	sub := newSubscription("a", topic.StatusChanged, noopHandler())
	r.Add(sub)

	if !r.Remove("a") {
		t.Error("Remove() should succeed for existing subscription")
	}
	if r.Remove("a") {
		t.Error("Remove() should fail for missing subscription")
	}
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d", r.Count())
	}
	if subs := r.ForTopic(topic.StatusChanged); subs != nil {
		t.Errorf("expected nil for empty topic, got %v", subs)
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	sub := newSubscription("a", topic.StatusChanged, noopHandler())
	r.Add(sub)

	if got, ok := r.Get("a"); !ok || got.ID() != "a" {
		t.Error("Get() failed for existing subscription")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get() should fail for missing subscription")
	}
}

func TestRegistry_DebouncedWindow(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.DebouncedWindow(topic.SentimentUpdated); ok {
		t.Error("expected no window for empty topic")
	}

	r.Add(newSubscription("imm", topic.SentimentUpdated, noopHandler()))
	if _, ok := r.DebouncedWindow(topic.SentimentUpdated); ok {
		t.Error("expected no window with only immediate subscriptions")
	}
	if r.HasDebounced(topic.SentimentUpdated) {
		t.Error("HasDebounced() true with only immediate subscriptions")
	}

	r.Add(newSubscription("slow", topic.SentimentUpdated, noopHandler(),
		WithPolicy(Debounced(200*time.Millisecond))))
	r.Add(newSubscription("fast", topic.SentimentUpdated, noopHandler(),
		WithPolicy(Debounced(50*time.Millisecond))))

	w, ok := r.DebouncedWindow(topic.SentimentUpdated)
	if !ok {
		t.Fatal("expected a debounce window")
	}
	if w != 50*time.Millisecond {
		t.Errorf("expected smallest window 50ms, got %v", w)
	}

	// Suspended and cancelled subscriptions do not count.
	fast, _ := r.Get("fast")
	fast.suspend()
	if w, _ := r.DebouncedWindow(topic.SentimentUpdated); w != 200*time.Millisecond {
		t.Errorf("expected 200ms after fast suspended, got %v", w)
	}

	slow, _ := r.Get("slow")
	slow.Cancel()
	if _, ok := r.DebouncedWindow(topic.SentimentUpdated); ok {
		t.Error("expected no window once all debounced subscriptions inactive")
	}
}

func TestRegistry_Counts(t *testing.T) {
	r := NewRegistry()
	a := newSubscription("a", topic.StatusChanged, noopHandler())
	b := newSubscription("b", topic.SummaryReady, noopHandler())
	r.Add(a)
	r.Add(b)

	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
	if r.CountByTopic(topic.StatusChanged) != 1 {
		t.Errorf("CountByTopic() = %d, want 1", r.CountByTopic(topic.StatusChanged))
	}
	if r.CountActive() != 2 {
		t.Errorf("CountActive() = %d, want 2", r.CountActive())
	}

	a.suspend()
	if r.CountActive() != 1 {
		t.Errorf("CountActive() after suspend = %d, want 1", r.CountActive())
	}

	if got := len(r.Topics()); got != 2 {
		t.Errorf("Topics() returned %d, want 2", got)
	}
}

func TestRegistry_RemoveCancelled(t *testing.T) {
	r := NewRegistry()
	a := newSubscription("a", topic.StatusChanged, noopHandler())
	b := newSubscription("b", topic.StatusChanged, noopHandler())
	r.Add(a)
	r.Add(b)

	a.Cancel()
	if removed := r.RemoveCancelled(); removed != 1 {
		t.Errorf("RemoveCancelled() = %d, want 1", removed)
	}
	if r.Count() != 1 {
		t.Errorf("Count() = %d, want 1", r.Count())
	}
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Add(newSubscription("a", topic.StatusChanged, noopHandler()))
	r.Clear()

	if r.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", r.Count())
	}
	if r.All() != nil {
		t.Error("All() after Clear() should be nil")
	}
}
