package coach

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

const maxSuggestions = 3

const systemPrompt = `You are a sales coaching assistant. A customer raised an ` +
	`objection during a live call. Respond with a JSON array of at most 3 ` +
	`suggestions, each {"text": string, "score": number between 0 and 1}. ` +
	`Respond with JSON only, no prose.`

// Service subscribes to objection-detected, asks the provider for
// handling suggestions and publishes suggestions-ready.
type Service struct {
	bus      event.Bus
	provider Provider
	log      zerolog.Logger

	sub event.Subscription
	wg  sync.WaitGroup
}

// NewService creates the coaching service.
func NewService(bus event.Bus, provider Provider, log zerolog.Logger) *Service {
	return &Service{
		bus:      bus,
		provider: provider,
		log:      log.With().Str("component", "coach").Logger(),
	}
}

// Attach subscribes the service to the bus.
func (s *Service) Attach() error {
	sub, err := s.bus.SubscribeFunc(topic.ObjectionDetected, s.onObjection,
		event.WithSubscriberName("coach"))
	if err != nil {
		return err
	}
	s.sub = sub
	return nil
}

// Detach removes the subscription and waits for in-flight completions.
func (s *Service) Detach() {
	if s.sub != nil {
		_ = s.bus.Unsubscribe(s.sub)
		s.sub = nil
	}
	s.wg.Wait()
}

func (s *Service) onObjection(ctx context.Context, env event.Envelope) error {
	obj, ok := event.As[events.Objection](env)
	if !ok {
		return nil
	}

	// The completion runs off the dispatch loop so a slow model never
	// stalls other subscribers.
	s.wg.Add(1)
	go s.suggest(obj)
	return nil
}

func (s *Service) suggest(obj events.Objection) {
	defer s.wg.Done()

	user := fmt.Sprintf("Objection category: %s\nCustomer said: %q", obj.Category, obj.Snippet)

	ctx := event.WithPublisher(context.Background(), "coach")
	resp, err := s.provider.Complete(ctx, systemPrompt, user)
	if err != nil {
		s.log.Warn().Err(err).
			Str("call_id", obj.CallID).
			Str("provider", s.provider.Name()).
			Msg("suggestion completion failed")
		s.publishError(ctx, err)
		return
	}

	items := parseSuggestions(resp)
	if len(items) == 0 {
		s.log.Debug().Str("call_id", obj.CallID).Msg("no suggestions parsed")
		return
	}

	payload := events.Suggestions{
		CallID:      obj.CallID,
		ObjectionID: obj.ObjectionID,
		Items:       items,
	}
	if err := s.bus.Publish(ctx, topic.SuggestionsReady, payload); err != nil {
		s.log.Warn().Err(err).Str("call_id", obj.CallID).Msg("publish suggestions failed")
	}
}

// parseSuggestions extracts suggestions from the model response. The
// expected shape is a JSON array of {text, score}; a bare non-JSON reply
// becomes a single low-confidence suggestion.
func parseSuggestions(resp string) []events.Suggestion {
	cleaned := stripFences(resp)

	parsed := gjson.Parse(cleaned)
	if !parsed.IsArray() {
		text := strings.TrimSpace(cleaned)
		if text == "" {
			return nil
		}
		return []events.Suggestion{{Text: text, Score: 0.5}}
	}

	var items []events.Suggestion
	for _, el := range parsed.Array() {
		text := strings.TrimSpace(el.Get("text").String())
		if text == "" {
			continue
		}
		score := el.Get("score").Float()
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		items = append(items, events.Suggestion{Text: text, Score: score})
		if len(items) == maxSuggestions {
			break
		}
	}
	return items
}

// stripFences removes a surrounding markdown code fence if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (s *Service) publishError(ctx context.Context, cause error) {
	payload := events.Error{
		Scope:   events.ScopeCoach,
		Code:    "suggestion-failed",
		Message: cause.Error(),
	}
	if err := s.bus.Publish(ctx, topic.ErrorRaised, payload); err != nil {
		s.log.Debug().Err(err).Msg("publish error event failed")
	}
}
