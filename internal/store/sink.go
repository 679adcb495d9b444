package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// Sink subscribes to the durable topics and writes every event to the
// store. All subscriptions deliver immediately so nothing is lost to
// coalescing.
type Sink struct {
	bus   event.Bus
	store *Store
	log   zerolog.Logger

	subs []event.Subscription
}

// NewSink creates a sink writing to store.
func NewSink(bus event.Bus, store *Store, log zerolog.Logger) *Sink {
	return &Sink{
		bus:   bus,
		store: store,
		log:   log.With().Str("component", "store").Logger(),
	}
}

// Attach subscribes the sink to all persisted topics.
func (s *Sink) Attach() error {
	for _, spec := range []struct {
		t topic.Topic
		h event.HandlerFunc
	}{
		{topic.ChunkTranscribed, s.onChunk},
		{topic.ObjectionDetected, s.onObjection},
		{topic.SummaryReady, s.onSummary},
		{topic.StatusChanged, s.onStatus},
	} {
		sub, err := s.bus.SubscribeFunc(spec.t, spec.h,
			event.WithSubscriberName("store"))
		if err != nil {
			s.Detach()
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

// Detach removes all subscriptions.
func (s *Sink) Detach() {
	for _, sub := range s.subs {
		_ = s.bus.Unsubscribe(sub)
	}
	s.subs = nil
}

func (s *Sink) onChunk(ctx context.Context, env event.Envelope) error {
	chunk, ok := event.As[events.TranscriptChunk](env)
	if !ok {
		return nil
	}
	return s.store.SaveChunk(ctx, chunk.CallID, string(chunk.Source),
		chunk.StartMS, chunk.EndMS, chunk.Text, chunk.Confidence)
}

func (s *Sink) onObjection(ctx context.Context, env event.Envelope) error {
	obj, ok := event.As[events.Objection](env)
	if !ok {
		return nil
	}
	return s.store.SaveObjection(ctx, obj.ObjectionID, obj.CallID,
		obj.TimestampMS, string(obj.Category), obj.Confidence, obj.Snippet)
}

func (s *Sink) onSummary(ctx context.Context, env event.Envelope) error {
	sum, ok := event.As[events.Summary](env)
	if !ok {
		return nil
	}
	return s.store.SaveSummary(ctx, sum.CallID, sum.Document)
}

func (s *Sink) onStatus(ctx context.Context, env event.Envelope) error {
	st, ok := event.As[events.Status](env)
	if !ok {
		return nil
	}
	now := env.Metadata.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	switch st.State {
	case events.CallStarted:
		return s.store.StartCall(ctx, st.CallID, now)
	case events.CallStopped:
		return s.store.StopCall(ctx, st.CallID, now)
	}
	s.log.Debug().Str("state", string(st.State)).Msg("unhandled call state")
	return nil
}
