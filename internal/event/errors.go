package event

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// Sentinel errors for the event bus.
var (
	// ErrBusNotRunning is returned when operations are attempted on a stopped bus.
	ErrBusNotRunning = errors.New("event bus is not running")

	// ErrBusAlreadyRunning is returned when Start is called on a running bus.
	ErrBusAlreadyRunning = errors.New("event bus is already running")

	// ErrQueueFull is returned by Publish under the Backpressure overflow
	// policy when the ingress queue stays full past the configured timeout.
	ErrQueueFull = errors.New("event queue is full")

	// ErrUnknownTopic is returned when a topic has no registered contract.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrTopicRegistered is returned when a contract is registered twice
	// for the same topic.
	ErrTopicRegistered = errors.New("topic contract already registered")

	// ErrNilPayload is returned when a nil payload or prototype is provided.
	ErrNilPayload = errors.New("payload cannot be nil")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrInvalidPolicy is returned when a delivery policy is malformed,
	// e.g. a debounce window that is not positive.
	ErrInvalidPolicy = errors.New("invalid delivery policy")

	// ErrInvalidSubscription is returned when a subscription is invalid.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrSubscriptionNotFound is returned when trying to unsubscribe a
	// subscription the bus does not know about.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrHandlerPanic is returned when a handler panics.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrShutdownTimeout is returned when the dispatch goroutine does not
	// exit within the stop grace period. Termination is forced: the bus is
	// marked stopped even though the goroutine may still be finishing a
	// handler call.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")

	// ErrHostRegistered is returned when a bridge already has a host context.
	ErrHostRegistered = errors.New("bridge host context already registered")

	// ErrBridgeClosed is returned when scheduling onto a closed bridge or
	// host context.
	ErrBridgeClosed = errors.New("bridge host context is closed")
)

// SchemaError reports a payload that does not match the topic's registered
// contract. It is returned synchronously from Publish and never enters the
// bus internals.
type SchemaError struct {
	// Topic is the topic the publish targeted.
	Topic topic.Topic

	// Want is the registered payload type for the topic.
	Want reflect.Type

	// Got is the type of the rejected payload.
	Got reflect.Type
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation on topic %q: want %v, got %v", e.Topic, e.Want, e.Got)
}

// HandlerError wraps an error returned by a subscriber with the identity
// needed to attribute it.
type HandlerError struct {
	// Subscriber is the failing subscription's identity.
	Subscriber string

	// Topic is the topic the handler was subscribed to.
	Topic topic.Topic

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "handler error for subscriber " + e.Subscriber + " on topic " + string(e.Topic) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a recovered handler panic as an error.
type PanicError struct {
	// Subscriber is the panicking subscription's identity.
	Subscriber string

	// Topic is the topic the handler was subscribed to.
	Topic topic.Topic

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace captured at recovery.
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for subscriber %s on topic %s: %v", e.Subscriber, e.Topic, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
