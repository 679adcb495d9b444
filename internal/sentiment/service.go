package sentiment

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// rollingWindowMS is how far back transcript chunks contribute to one
// sentiment update.
const rollingWindowMS = 5000

// Fusion weights for the text and voice signals. Voice prosody is not
// analyzed yet, so its score is carried as zero and the weight keeps the
// published valence comparable once it lands.
const (
	textWeight  = 0.6
	voiceWeight = 0.4
)

// Service subscribes to chunk-transcribed and publishes sentiment-updated
// for a rolling window over the most recent transcript.
type Service struct {
	bus      event.Bus
	analyzer *Analyzer
	log      zerolog.Logger

	mu     sync.Mutex
	chunks []events.TranscriptChunk

	sub event.Subscription
}

// NewService creates the sentiment service.
func NewService(bus event.Bus, analyzer *Analyzer, log zerolog.Logger) *Service {
	if analyzer == nil {
		analyzer = NewAnalyzer(Lexicon{})
	}
	return &Service{
		bus:      bus,
		analyzer: analyzer,
		log:      log.With().Str("component", "sentiment").Logger(),
	}
}

// Attach subscribes the service to the bus.
func (s *Service) Attach() error {
	sub, err := s.bus.SubscribeFunc(topic.ChunkTranscribed, s.onChunk,
		event.WithSubscriberName("sentiment"))
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

// Reset clears the rolling window, e.g. at call start.
func (s *Service) Reset() {
	s.mu.Lock()
	s.chunks = nil
	s.mu.Unlock()
}

func (s *Service) onChunk(ctx context.Context, env event.Envelope) error {
	chunk, ok := event.As[events.TranscriptChunk](env)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, chunk)
	// Evict chunks older than the rolling window.
	cutoff := chunk.EndMS - rollingWindowMS
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.EndMS > cutoff {
			kept = append(kept, c)
		}
	}
	s.chunks = kept

	windowStart := s.chunks[0].StartMS
	var text string
	for _, c := range s.chunks {
		text += c.Text + " "
	}
	s.mu.Unlock()

	score := s.analyzer.Analyze(text)
	update := events.SentimentUpdate{
		CallID:        chunk.CallID,
		WindowStartMS: windowStart,
		WindowEndMS:   chunk.EndMS,
		Valence:       textWeight*score.Valence + voiceWeight*0,
		Engagement:    score.Engagement,
		Sources: events.SourceScores{
			Text:  score.Valence,
			Voice: 0,
		},
	}

	pubCtx := event.WithPublisher(context.Background(), "sentiment")
	if err := s.bus.Publish(pubCtx, topic.SentimentUpdated, update); err != nil {
		s.log.Warn().Err(err).Str("call_id", chunk.CallID).Msg("publish sentiment failed")
	}
	return nil
}
