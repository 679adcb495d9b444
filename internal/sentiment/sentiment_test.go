package sentiment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

func TestAnalyzer_Valence(t *testing.T) {
	a := NewAnalyzer(Lexicon{})

	tests := []struct {
		name string
		text string
		sign int
	}{
		{"positive", "this is great, I love it, perfect", 1},
		{"negative", "that is terrible and way too expensive", -1},
		{"neutral", "we met on tuesday", 0},
		{"empty", "   ", 0},
		{"mixed leaning positive", "the price is a problem but overall it works great and we are happy", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.text)
			switch {
			case tt.sign > 0 && got.Valence <= 0:
				t.Errorf("Valence = %v, want > 0", got.Valence)
			case tt.sign < 0 && got.Valence >= 0:
				t.Errorf("Valence = %v, want < 0", got.Valence)
			case tt.sign == 0 && got.Valence != 0:
				t.Errorf("Valence = %v, want 0", got.Valence)
			}
			if got.Valence < -1 || got.Valence > 1 {
				t.Errorf("Valence %v out of range", got.Valence)
			}
			if got.Engagement < 0 || got.Engagement > 1 {
				t.Errorf("Engagement %v out of range", got.Engagement)
			}
		})
	}
}

func TestAnalyzer_Engagement(t *testing.T) {
	a := NewAnalyzer(Lexicon{})

	flat := a.Analyze("ok")
	engaged := a.Analyze("how does the pricing work? what about the contract terms and a demo?")
	if engaged.Engagement <= flat.Engagement {
		t.Errorf("expected questions to raise engagement: %v <= %v", engaged.Engagement, flat.Engagement)
	}
	if engaged.Engagement > 1 {
		t.Errorf("Engagement %v exceeds 1", engaged.Engagement)
	}
}

func TestService_PublishesRollingWindow(t *testing.T) {
	bus := event.New()
	if err := bus.Start(); err != nil {
		t.Fatalf("bus start: %v", err)
	}
	defer bus.Stop(context.Background(), false)

	svc := NewService(bus, nil, zerolog.Nop())
	if err := svc.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}

	var mu sync.Mutex
	var got []events.SentimentUpdate
	bus.SubscribeFunc(topic.SentimentUpdated, func(ctx context.Context, env event.Envelope) error {
		u, _ := event.As[events.SentimentUpdate](env)
		mu.Lock()
		got = append(got, u)
		mu.Unlock()
		return nil
	})

	chunk := events.TranscriptChunk{
		CallID: "call-1", Source: events.SourceMic,
		StartMS: 0, EndMS: 3000,
		Text: "this looks great, I love the demo",
	}
	if err := bus.Publish(context.Background(), topic.ChunkTranscribed, chunk); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no sentiment update published")
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	u := got[0]
	if u.CallID != "call-1" {
		t.Errorf("CallID = %s", u.CallID)
	}
	if u.WindowStartMS != 0 || u.WindowEndMS != 3000 {
		t.Errorf("window = [%d,%d]", u.WindowStartMS, u.WindowEndMS)
	}
	if u.Valence <= 0 {
		t.Errorf("expected positive valence, got %v", u.Valence)
	}
	if u.Sources.Text <= 0 {
		t.Errorf("expected positive text source score, got %v", u.Sources.Text)
	}
}

func TestService_WindowEvictsOldChunks(t *testing.T) {
	bus := event.New()
	if err := bus.Start(); err != nil {
		t.Fatalf("bus start: %v", err)
	}
	defer bus.Stop(context.Background(), false)

	svc := NewService(bus, nil, zerolog.Nop())
	svc.Attach()

	var mu sync.Mutex
	var got []events.SentimentUpdate
	bus.SubscribeFunc(topic.SentimentUpdated, func(ctx context.Context, env event.Envelope) error {
		u, _ := event.As[events.SentimentUpdate](env)
		mu.Lock()
		got = append(got, u)
		mu.Unlock()
		return nil
	})

	old := events.TranscriptChunk{CallID: "c", StartMS: 0, EndMS: 1000, Text: "terrible awful bad"}
	fresh := events.TranscriptChunk{CallID: "c", StartMS: 20000, EndMS: 23000, Text: "great perfect love it"}
	bus.Publish(context.Background(), topic.ChunkTranscribed, old)
	bus.Publish(context.Background(), topic.ChunkTranscribed, fresh)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("missing sentiment updates")
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	second := got[1]
	// The old negative chunk fell out of the 5s window, so the second
	// update reflects only the fresh positive text.
	if second.WindowStartMS != 20000 {
		t.Errorf("WindowStartMS = %d, want 20000", second.WindowStartMS)
	}
	if second.Valence <= 0 {
		t.Errorf("expected positive valence after eviction, got %v", second.Valence)
	}
}

func TestService_Reset(t *testing.T) {
	svc := NewService(event.New(), nil, zerolog.Nop())
	svc.chunks = []events.TranscriptChunk{{CallID: "c"}}
	svc.Reset()
	if len(svc.chunks) != 0 {
		t.Error("Reset() left chunks behind")
	}
}
