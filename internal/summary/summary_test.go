package summary

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/EduardoFdeM/PitchAI/internal/coach"
	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

func startBus(t *testing.T) event.Bus {
	t.Helper()
	bus := event.New()
	if err := bus.Start(); err != nil {
		t.Fatalf("bus start: %v", err)
	}
	t.Cleanup(func() { bus.Stop(context.Background(), false) })
	return bus
}

func publishAndWait(t *testing.T, bus event.Bus, svc *Service, callID string, chunks int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		svc.mu.Lock()
		n := len(svc.chunks[callID])
		svc.mu.Unlock()
		if n >= chunks {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("accumulated %d chunks, want %d", n, chunks)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestService_GeneratePublishesDocument(t *testing.T) {
	bus := startBus(t)
	provider := coach.NewFakeProvider(`{"overview":"Prospect is price sensitive but engaged.","next_steps":["Send ROI sheet","Schedule follow-up"]}`)
	svc := NewService(bus, provider, zerolog.Nop())
	if err := svc.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer svc.Detach()

	var mu sync.Mutex
	var got []events.Summary
	bus.SubscribeFunc(topic.SummaryReady, func(ctx context.Context, env event.Envelope) error {
		s, _ := event.As[events.Summary](env)
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		return nil
	})

	bus.Publish(context.Background(), topic.ChunkTranscribed, events.TranscriptChunk{
		CallID: "call-1", Source: events.SourceMic, StartMS: 0, EndMS: 3000,
		Text: "thanks for joining, let me walk you through the product",
	})
	bus.Publish(context.Background(), topic.ChunkTranscribed, events.TranscriptChunk{
		CallID: "call-1", Source: events.SourceLoopback, StartMS: 3000, EndMS: 6000,
		Text: "this looks too expensive for our team",
	})
	bus.Publish(context.Background(), topic.ObjectionDetected, events.Objection{
		CallID: "call-1", ObjectionID: "obj-1", TimestampMS: 6000,
		Category: events.ObjectionPrice, Confidence: 0.7, Snippet: "too expensive for our team",
	})
	publishAndWait(t, bus, svc, "call-1", 2)

	if err := svc.Generate(context.Background(), "call-1"); err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("summary event not delivered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	doc := got[0].Document
	if got[0].CallID != "call-1" {
		t.Errorf("wrong call id: %s", got[0].CallID)
	}
	if !gjson.Valid(doc) {
		t.Fatalf("document is not valid JSON: %s", doc)
	}
	if ov := gjson.Get(doc, "overview").String(); !strings.Contains(ov, "price sensitive") {
		t.Errorf("unexpected overview: %q", ov)
	}
	if n := len(gjson.Get(doc, "next_steps").Array()); n != 2 {
		t.Errorf("expected 2 next steps, got %d", n)
	}
	if cat := gjson.Get(doc, "objections.0.category").String(); cat != "price" {
		t.Errorf("objection category not recorded: %q", cat)
	}
	if dur := gjson.Get(doc, "duration_ms").Int(); dur != 6000 {
		t.Errorf("duration_ms = %d, want 6000", dur)
	}

	prompts := provider.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "walk you through") {
		t.Errorf("prompt missing transcript: %v", prompts)
	}

	// Generating again finds no state and publishes nothing.
	if err := svc.Generate(context.Background(), "call-1"); err != nil {
		t.Fatalf("second Generate() failed: %v", err)
	}
	if provider.Calls() != 1 {
		t.Errorf("provider called again after state cleared: %d", provider.Calls())
	}
}

func TestService_GenerateWithoutTranscript(t *testing.T) {
	bus := startBus(t)
	provider := coach.NewFakeProvider(`{}`)
	svc := NewService(bus, provider, zerolog.Nop())

	if err := svc.Generate(context.Background(), "call-1"); err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if provider.Calls() != 0 {
		t.Errorf("provider called with empty transcript")
	}
}

func TestService_ProviderFailureRaisesError(t *testing.T) {
	bus := startBus(t)
	provider := coach.NewFakeProvider()
	provider.Fail(errors.New("backend down"))

	svc := NewService(bus, provider, zerolog.Nop())
	if err := svc.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer svc.Detach()

	var mu sync.Mutex
	var errs []events.Error
	bus.SubscribeFunc(topic.ErrorRaised, func(ctx context.Context, env event.Envelope) error {
		e, _ := event.As[events.Error](env)
		mu.Lock()
		errs = append(errs, e)
		mu.Unlock()
		return nil
	})

	bus.Publish(context.Background(), topic.ChunkTranscribed, events.TranscriptChunk{
		CallID: "call-1", EndMS: 3000, Text: "hello",
	})
	publishAndWait(t, bus, svc, "call-1", 1)

	if err := svc.Generate(context.Background(), "call-1"); err == nil {
		t.Fatal("expected error from Generate()")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(errs)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("error event not delivered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if errs[0].Scope != events.ScopeSummary || errs[0].Code != "summary-failed" {
		t.Errorf("unexpected error event: %+v", errs[0])
	}
}

func TestParseModelResponse(t *testing.T) {
	ov, steps := parseModelResponse("```json\n{\"overview\":\"good call\",\"next_steps\":[\"follow up\"]}\n```")
	if ov != "good call" || len(steps) != 1 {
		t.Errorf("fenced response not parsed: %q %v", ov, steps)
	}

	ov, steps = parseModelResponse("The call went well overall.")
	if ov != "The call went well overall." || steps != nil {
		t.Errorf("prose fallback broken: %q %v", ov, steps)
	}
}

func TestService_KeepsCallsSeparate(t *testing.T) {
	bus := startBus(t)
	provider := coach.NewFakeProvider(`{"overview":"a","next_steps":[]}`)
	svc := NewService(bus, provider, zerolog.Nop())
	if err := svc.Attach(); err != nil {
		t.Fatalf("attach: %v", err)
	}
	defer svc.Detach()

	bus.Publish(context.Background(), topic.ChunkTranscribed, events.TranscriptChunk{CallID: "a", EndMS: 1000, Text: "x"})
	bus.Publish(context.Background(), topic.ChunkTranscribed, events.TranscriptChunk{CallID: "b", EndMS: 2000, Text: "y"})
	publishAndWait(t, bus, svc, "a", 1)
	publishAndWait(t, bus, svc, "b", 1)

	if err := svc.Generate(context.Background(), "a"); err != nil {
		t.Fatalf("Generate(a) failed: %v", err)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.chunks["b"]) != 1 {
		t.Error("generating call a disturbed call b state")
	}
}
