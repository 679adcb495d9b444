package event

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// Metadata contains standard information attached to every envelope.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is when the event was published.
	Timestamp time.Time

	// Publisher identifies the component that published the event.
	Publisher string
}

// Envelope is the unit of delivery: a topic, an immutable payload
// conforming to the topic's contract, and metadata. Envelopes are values;
// once published they are never mutated.
type Envelope struct {
	// Topic names the message class.
	Topic topic.Topic

	// Payload is the typed message body. Its concrete type is validated
	// against the contract registry at publish time, so subscribers can
	// type-assert without re-checking shape.
	Payload any

	// Metadata is the standard event metadata.
	Metadata Metadata
}

// As extracts a typed payload from an envelope.
func As[T any](env Envelope) (T, bool) {
	p, ok := env.Payload.(T)
	return p, ok
}

// HandlerFor adapts a typed callback into a Handler. Envelopes whose
// payload is not T are skipped silently; the contract registry makes that
// impossible for a correctly-subscribed topic.
func HandlerFor[T any](fn func(ctx context.Context, env Envelope, payload T) error) Handler {
	return HandlerFunc(func(ctx context.Context, env Envelope) error {
		if p, ok := env.Payload.(T); ok {
			return fn(ctx, env, p)
		}
		return nil
	})
}

// generateID generates a unique event ID.
func generateID() string {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}

type publisherKey struct{}

// WithPublisher returns a context that carries the publishing component's
// identity. Publish stamps it into the envelope metadata.
func WithPublisher(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, publisherKey{}, name)
}

// PublisherFromContext returns the publisher identity stored in ctx, or ""
// if none is set.
func PublisherFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(publisherKey{}).(string); ok {
		return v
	}
	return ""
}
