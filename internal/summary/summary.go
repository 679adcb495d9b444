// Package summary accumulates call transcripts and objections and
// produces an end-of-call summary document.
package summary

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/EduardoFdeM/PitchAI/internal/coach"
	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

const summaryPrompt = `You are a sales call analyst. Given a call transcript ` +
	`and the objections raised, respond with a JSON object ` +
	`{"overview": string, "next_steps": [string]}. Respond with JSON only.`

// Service collects transcript chunks and objections per call and builds
// the summary document when the call ends.
type Service struct {
	bus      event.Bus
	provider coach.Provider
	log      zerolog.Logger

	mu         sync.Mutex
	chunks     map[string][]events.TranscriptChunk
	objections map[string][]events.Objection

	subs []event.Subscription
}

// NewService creates the summary service.
func NewService(bus event.Bus, provider coach.Provider, log zerolog.Logger) *Service {
	return &Service{
		bus:        bus,
		provider:   provider,
		log:        log.With().Str("component", "summary").Logger(),
		chunks:     make(map[string][]events.TranscriptChunk),
		objections: make(map[string][]events.Objection),
	}
}

// Attach subscribes the service to the transcript and objection streams.
func (s *Service) Attach() error {
	for _, spec := range []struct {
		t topic.Topic
		h event.HandlerFunc
	}{
		{topic.ChunkTranscribed, s.onChunk},
		{topic.ObjectionDetected, s.onObjection},
	} {
		sub, err := s.bus.SubscribeFunc(spec.t, spec.h,
			event.WithSubscriberName("summary"))
		if err != nil {
			s.Detach()
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Detach removes all subscriptions.
func (s *Service) Detach() {
	for _, sub := range s.subs {
		_ = s.bus.Unsubscribe(sub)
	}
	s.subs = nil
}

func (s *Service) onChunk(ctx context.Context, env event.Envelope) error {
	chunk, ok := event.As[events.TranscriptChunk](env)
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.chunks[chunk.CallID] = append(s.chunks[chunk.CallID], chunk)
	s.mu.Unlock()
	return nil
}

func (s *Service) onObjection(ctx context.Context, env event.Envelope) error {
	obj, ok := event.As[events.Objection](env)
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.objections[obj.CallID] = append(s.objections[obj.CallID], obj)
	s.mu.Unlock()
	return nil
}

// Generate builds the summary document for callID, publishes
// summary-ready and clears the accumulated state for that call. It is
// called by the application once after the call stops, so blocking on
// the provider here is fine.
func (s *Service) Generate(ctx context.Context, callID string) error {
	s.mu.Lock()
	chunks := s.chunks[callID]
	objections := s.objections[callID]
	delete(s.chunks, callID)
	delete(s.objections, callID)
	s.mu.Unlock()

	if len(chunks) == 0 {
		s.log.Debug().Str("call_id", callID).Msg("no transcript, skipping summary")
		return nil
	}

	doc, err := s.buildDocument(ctx, chunks, objections)
	if err != nil {
		s.log.Warn().Err(err).Str("call_id", callID).Msg("summary generation failed")
		s.publishError(ctx, err)
		return err
	}

	payload := events.Summary{CallID: callID, Document: doc}
	if err := s.bus.Publish(ctx, topic.SummaryReady, payload); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	s.log.Info().Str("call_id", callID).Int("chunks", len(chunks)).
		Int("objections", len(objections)).Msg("summary published")
	return nil
}

// buildDocument asks the provider for an overview and next steps, then
// assembles the final document around them.
func (s *Service) buildDocument(ctx context.Context, chunks []events.TranscriptChunk, objections []events.Objection) (string, error) {
	user := formatPrompt(chunks, objections)

	resp, err := s.provider.Complete(ctx, summaryPrompt, user)
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}

	overview, nextSteps := parseModelResponse(resp)

	doc := "{}"
	doc, _ = sjson.Set(doc, "overview", overview)
	doc, _ = sjson.Set(doc, "duration_ms", callDuration(chunks))
	if len(nextSteps) > 0 {
		doc, _ = sjson.Set(doc, "next_steps", nextSteps)
	} else {
		doc, _ = sjson.SetRaw(doc, "next_steps", "[]")
	}

	doc, _ = sjson.SetRaw(doc, "objections", "[]")
	for i, obj := range objections {
		base := fmt.Sprintf("objections.%d", i)
		doc, _ = sjson.Set(doc, base+".category", string(obj.Category))
		doc, _ = sjson.Set(doc, base+".timestamp_ms", obj.TimestampMS)
		doc, _ = sjson.Set(doc, base+".snippet", obj.Snippet)
	}
	return doc, nil
}

func formatPrompt(chunks []events.TranscriptChunk, objections []events.Objection) string {
	var sb strings.Builder
	sb.WriteString("Transcript:\n")
	for _, c := range chunks {
		fmt.Fprintf(&sb, "[%s %d-%ds] %s\n", c.Source, c.StartMS/1000, c.EndMS/1000, c.Text)
	}
	if len(objections) > 0 {
		sb.WriteString("\nObjections raised:\n")
		for _, o := range objections {
			fmt.Fprintf(&sb, "- %s: %q\n", o.Category, o.Snippet)
		}
	}
	return sb.String()
}

// parseModelResponse extracts the overview and next steps from the
// model reply. A non-JSON reply is used verbatim as the overview.
func parseModelResponse(resp string) (string, []string) {
	cleaned := strings.TrimSpace(resp)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	parsed := gjson.Parse(cleaned)
	if !parsed.IsObject() {
		return cleaned, nil
	}

	overview := parsed.Get("overview").String()
	var steps []string
	for _, el := range parsed.Get("next_steps").Array() {
		if s := strings.TrimSpace(el.String()); s != "" {
			steps = append(steps, s)
		}
	}
	return overview, steps
}

func callDuration(chunks []events.TranscriptChunk) int64 {
	var max int64
	for _, c := range chunks {
		if c.EndMS > max {
			max = c.EndMS
		}
	}
	return max
}

func (s *Service) publishError(ctx context.Context, cause error) {
	payload := events.Error{
		Scope:   events.ScopeSummary,
		Code:    "summary-failed",
		Message: cause.Error(),
	}
	if err := s.bus.Publish(ctx, topic.ErrorRaised, payload); err != nil {
		s.log.Debug().Err(err).Msg("publish error event failed")
	}
}
