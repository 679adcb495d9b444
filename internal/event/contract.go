package event

import (
	"reflect"
	"sync"

	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// Contracts is the registry binding each topic to its immutable payload
// schema. Topics are registered once during construction; the binding is
// fixed for the lifetime of the bus. Publishing to an unregistered topic
// or with a payload of the wrong type is rejected at the boundary and
// never reaches the dispatch loop.
type Contracts struct {
	mu      sync.RWMutex
	schemas map[topic.Topic]reflect.Type
}

// NewContracts creates an empty contract registry.
func NewContracts() *Contracts {
	return &Contracts{
		schemas: make(map[topic.Topic]reflect.Type),
	}
}

// DefaultContracts returns a registry with the full canonical catalog
// bound to its payload types.
func DefaultContracts() *Contracts {
	c := NewContracts()
	// Registration of the fixed catalog cannot collide.
	_ = c.Register(topic.ChunkTranscribed, events.TranscriptChunk{})
	_ = c.Register(topic.SentimentUpdated, events.SentimentUpdate{})
	_ = c.Register(topic.ObjectionDetected, events.Objection{})
	_ = c.Register(topic.SuggestionsReady, events.Suggestions{})
	_ = c.Register(topic.SummaryReady, events.Summary{})
	_ = c.Register(topic.StatusChanged, events.Status{})
	_ = c.Register(topic.ErrorRaised, events.Error{})
	return c
}

// Register binds a topic to the concrete type of prototype.
// Returns ErrTopicRegistered if the topic already has a contract.
func (c *Contracts) Register(t topic.Topic, prototype any) error {
	if prototype == nil {
		return ErrNilPayload
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.schemas[t]; exists {
		return ErrTopicRegistered
	}
	c.schemas[t] = reflect.TypeOf(prototype)
	return nil
}

// Validate checks a payload against the topic's contract.
// Returns ErrUnknownTopic for unregistered topics, ErrNilPayload for nil
// payloads, or a *SchemaError on type mismatch.
func (c *Contracts) Validate(t topic.Topic, payload any) error {
	if payload == nil {
		return ErrNilPayload
	}

	c.mu.RLock()
	want, ok := c.schemas[t]
	c.mu.RUnlock()

	if !ok {
		return ErrUnknownTopic
	}

	got := reflect.TypeOf(payload)
	if got != want {
		return &SchemaError{Topic: t, Want: want, Got: got}
	}
	return nil
}

// Registered reports whether the topic has a contract.
func (c *Contracts) Registered(t topic.Topic) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.schemas[t]
	return ok
}

// Type returns the registered payload type for a topic.
func (c *Contracts) Type(t topic.Topic) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	typ, ok := c.schemas[t]
	return typ, ok
}

// Topics returns all registered topics.
func (c *Contracts) Topics() []topic.Topic {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]topic.Topic, 0, len(c.schemas))
	for t := range c.schemas {
		out = append(out, t)
	}
	return out
}
