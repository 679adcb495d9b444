// Package topic defines the fixed catalog of event topics used by the
// PitchAI pipeline.
//
// Topic names are part of the external contract between producers and
// consumers and must not be renamed without a migration. Unlike a generic
// pub/sub system there is no pattern matching: a publish targets exactly
// one known topic, and publishing to an unknown topic is rejected at the
// bus boundary.
package topic

// Topic is a stable string identifier naming a message class.
type Topic string

// The canonical topic catalog.
const (
	// ChunkTranscribed carries a finalized transcription chunk from the
	// ASR service.
	ChunkTranscribed Topic = "chunk-transcribed"

	// SentimentUpdated carries a rolling-window sentiment score.
	SentimentUpdated Topic = "sentiment-updated"

	// ObjectionDetected signals a sales objection found in the transcript.
	ObjectionDetected Topic = "objection-detected"

	// SuggestionsReady carries coaching suggestions for a detected
	// objection.
	SuggestionsReady Topic = "suggestions-ready"

	// SummaryReady carries the end-of-call summary document.
	SummaryReady Topic = "summary-ready"

	// StatusChanged signals call lifecycle and component status changes.
	StatusChanged Topic = "status-changed"

	// ErrorRaised carries recovered internal failures so the rest of the
	// system can observe them.
	ErrorRaised Topic = "error-raised"
)

// String returns the topic name.
func (t Topic) String() string {
	return string(t)
}

// Known returns the full topic catalog in a stable order.
func Known() []Topic {
	return []Topic{
		ChunkTranscribed,
		SentimentUpdated,
		ObjectionDetected,
		SuggestionsReady,
		SummaryReady,
		StatusChanged,
		ErrorRaised,
	}
}

// IsKnown reports whether t is part of the catalog.
func IsKnown(t Topic) bool {
	switch t {
	case ChunkTranscribed, SentimentUpdated, ObjectionDetected,
		SuggestionsReady, SummaryReady, StatusChanged, ErrorRaised:
		return true
	default:
		return false
	}
}
