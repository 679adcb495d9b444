package objection

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// Service subscribes to chunk-transcribed, runs the keyword detector and
// optional Lua rules, and publishes objection-detected events.
type Service struct {
	bus      event.Bus
	detector *Detector
	rules    *LuaRules
	log      zerolog.Logger

	sub event.Subscription
}

// NewService creates the objection service. rules may be nil.
func NewService(bus event.Bus, detector *Detector, rules *LuaRules, log zerolog.Logger) *Service {
	if detector == nil {
		detector = NewDetector()
	}
	return &Service{
		bus:      bus,
		detector: detector,
		rules:    rules,
		log:      log.With().Str("component", "objection").Logger(),
	}
}

// Attach subscribes the service to the bus.
func (s *Service) Attach() error {
	sub, err := s.bus.SubscribeFunc(topic.ChunkTranscribed, s.onChunk,
		event.WithSubscriberName("objection"))
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Detach removes the subscription.
func (s *Service) Detach() {
	if s.sub != nil {
		_ = s.bus.Unsubscribe(s.sub)
		s.sub = nil
	}
}

func (s *Service) onChunk(ctx context.Context, env event.Envelope) error {
	chunk, ok := event.As[events.TranscriptChunk](env)
	if !ok {
		return nil
	}

	matches := s.detector.Detect(chunk.Text)

	if s.rules != nil {
		extra, err := s.rules.Detect(chunk.Text)
		if err != nil {
			s.log.Warn().Err(err).Str("call_id", chunk.CallID).Msg("lua rules failed")
		} else {
			matches = append(matches, extra...)
		}
	}

	pubCtx := event.WithPublisher(context.Background(), "objection")
	for _, m := range matches {
		snip := m.Snippet
		if snip == "" {
			snip = chunk.Text
		}
		obj := events.Objection{
			CallID:      chunk.CallID,
			ObjectionID: uuid.NewString(),
			TimestampMS: chunk.EndMS,
			Category:    m.Category,
			Confidence:  m.Confidence,
			Snippet:     snip,
		}
		if err := s.bus.Publish(pubCtx, topic.ObjectionDetected, obj); err != nil {
			s.log.Warn().Err(err).Str("call_id", chunk.CallID).Msg("publish objection failed")
		}
	}
	return nil
}
