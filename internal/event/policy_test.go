package event

import (
	"sync"
	"testing"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

func sentimentEnv(id string) Envelope {
	return Envelope{
		Topic:    topic.SentimentUpdated,
		Metadata: Metadata{ID: id, Timestamp: time.Now()},
	}
}

func TestDebouncer_CoalescesToMostRecent(t *testing.T) {
	var mu sync.Mutex
	var fired []topic.Topic
	d := newDebouncer(func(tp topic.Topic) {
		mu.Lock()
		fired = append(fired, tp)
		mu.Unlock()
	})

	d.offer(sentimentEnv("1"), 30*time.Millisecond)
	d.offer(sentimentEnv("2"), 30*time.Millisecond)
	d.offer(sentimentEnv("3"), 30*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(fired)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("flush never signalled")
		}
		time.Sleep(time.Millisecond)
	}

	env, ok := d.take(topic.SentimentUpdated)
	if !ok {
		t.Fatal("expected a buffered payload")
	}
	if env.Metadata.ID != "3" {
		t.Errorf("expected most recent payload (3), got %s", env.Metadata.ID)
	}

	// One burst, one signal.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Errorf("expected 1 flush signal, got %d", len(fired))
	}
}

func TestDebouncer_DeadlineNotExtended(t *testing.T) {
	signal := make(chan struct{}, 1)
	d := newDebouncer(func(topic.Topic) {
		select {
		case signal <- struct{}{}:
		default:
		}
	})

	start := time.Now()
	d.offer(sentimentEnv("1"), 40*time.Millisecond)

	// Keep offering past the original deadline.
	stop := time.After(120 * time.Millisecond)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-signal:
			elapsed := time.Since(start)
			if elapsed > 100*time.Millisecond {
				t.Errorf("window was extended: flushed after %v", elapsed)
			}
			return
		case <-ticker.C:
			d.offer(sentimentEnv("x"), 40*time.Millisecond)
		case <-stop:
			t.Fatal("no flush despite fixed deadline")
		}
	}
}

func TestDebouncer_TakeEmpty(t *testing.T) {
	d := newDebouncer(func(topic.Topic) {})
	if _, ok := d.take(topic.SentimentUpdated); ok {
		t.Error("expected no payload for untouched topic")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	fired := make(chan topic.Topic, 1)
	d := newDebouncer(func(tp topic.Topic) { fired <- tp })

	d.offer(sentimentEnv("1"), 20*time.Millisecond)
	if !d.cancel(topic.SentimentUpdated) {
		t.Fatal("expected cancel to report a discarded payload")
	}
	if d.cancel(topic.SentimentUpdated) {
		t.Error("second cancel should find nothing")
	}
	if d.pending(topic.SentimentUpdated) {
		t.Error("slot still pending after cancel")
	}

	select {
	case <-fired:
		t.Error("timer fired after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncer_Drain(t *testing.T) {
	d := newDebouncer(func(topic.Topic) {})

	d.offer(sentimentEnv("1"), time.Hour)
	d.offer(Envelope{Topic: topic.ChunkTranscribed, Metadata: Metadata{ID: "2"}}, time.Hour)

	out := d.drain()
	if len(out) != 2 {
		t.Fatalf("expected 2 drained payloads, got %d", len(out))
	}
	if d.pending(topic.SentimentUpdated) || d.pending(topic.ChunkTranscribed) {
		t.Error("slots remain after drain")
	}
}

func TestDebouncer_Discard(t *testing.T) {
	d := newDebouncer(func(topic.Topic) {})

	d.offer(sentimentEnv("1"), time.Hour)
	if n := d.discard(); n != 1 {
		t.Errorf("expected 1 discarded, got %d", n)
	}
	if n := d.discard(); n != 0 {
		t.Errorf("expected 0 discarded on empty debouncer, got %d", n)
	}
}

func TestDeliveryPolicy(t *testing.T) {
	if Immediate().IsDebounced() {
		t.Error("Immediate() should not be debounced")
	}
	p := Debounced(150 * time.Millisecond)
	if !p.IsDebounced() {
		t.Error("Debounced() should be debounced")
	}
	if p.Window() != 150*time.Millisecond {
		t.Errorf("unexpected window %v", p.Window())
	}
	if p.String() != "debounced(150ms)" {
		t.Errorf("unexpected String(): %s", p.String())
	}
	if Immediate().String() != "immediate" {
		t.Errorf("unexpected String(): %s", Immediate().String())
	}

	if err := Debounced(0).validate(); err != ErrInvalidPolicy {
		t.Errorf("expected ErrInvalidPolicy for zero window, got %v", err)
	}
	if err := Debounced(-time.Second).validate(); err != ErrInvalidPolicy {
		t.Errorf("expected ErrInvalidPolicy for negative window, got %v", err)
	}
	if err := Immediate().validate(); err != nil {
		t.Errorf("Immediate().validate() = %v", err)
	}
}

func TestOverflowPolicy_String(t *testing.T) {
	if DropOldest().String() != "drop-oldest" {
		t.Errorf("unexpected String(): %s", DropOldest().String())
	}
	if DropNewest().String() != "drop-newest" {
		t.Errorf("unexpected String(): %s", DropNewest().String())
	}
	if Backpressure(time.Second).String() != "backpressure(1s)" {
		t.Errorf("unexpected String(): %s", Backpressure(time.Second).String())
	}
}

func TestBackpressure_DefaultTimeout(t *testing.T) {
	p := Backpressure(0)
	if p.timeout != defaultBackpressureTimeout {
		t.Errorf("expected default timeout %v, got %v", defaultBackpressureTimeout, p.timeout)
	}
}
