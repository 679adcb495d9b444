// Package events defines the typed payloads for the fixed topic catalog.
//
// Payloads are immutable value types: once constructed they are never
// mutated, so they can be shared across goroutines without copying or
// locking. Fields that would naturally be maps in a dynamic system are
// flattened into structs so the contract registry can validate shape once
// at the publish boundary instead of on every read.
package events

// AudioSource identifies where captured audio came from.
type AudioSource string

const (
	// SourceMic is the local microphone.
	SourceMic AudioSource = "mic"
	// SourceLoopback is system playback capture (the remote party).
	SourceLoopback AudioSource = "loopback"
)

// TranscriptChunk is the payload for topic.ChunkTranscribed.
type TranscriptChunk struct {
	CallID     string
	Source     AudioSource
	StartMS    int64
	EndMS      int64
	Text       string
	Confidence float64
}

// SourceScores breaks a sentiment score down by signal source.
type SourceScores struct {
	Text  float64
	Voice float64
}

// SentimentUpdate is the payload for topic.SentimentUpdated.
// Valence is in [-1, +1], Engagement in [0, 1].
type SentimentUpdate struct {
	CallID        string
	WindowStartMS int64
	WindowEndMS   int64
	Valence       float64
	Engagement    float64
	Sources       SourceScores
}

// ObjectionCategory classifies a detected objection.
type ObjectionCategory string

const (
	// ObjectionPrice is pushback on cost or budget.
	ObjectionPrice ObjectionCategory = "price"
	// ObjectionTiming is pushback on schedule ("not now", "next quarter").
	ObjectionTiming ObjectionCategory = "timing"
	// ObjectionAuthority is deferral to another decision maker.
	ObjectionAuthority ObjectionCategory = "authority"
	// ObjectionNeed is doubt that the product is needed at all.
	ObjectionNeed ObjectionCategory = "need"
)

// Objection is the payload for topic.ObjectionDetected.
type Objection struct {
	CallID      string
	ObjectionID string
	TimestampMS int64
	Category    ObjectionCategory
	Confidence  float64
	Snippet     string
}

// Suggestion is a single coaching suggestion.
type Suggestion struct {
	Text  string
	Score float64
}

// Suggestions is the payload for topic.SuggestionsReady.
// The slice is created once by the coach and never modified afterwards.
type Suggestions struct {
	CallID      string
	ObjectionID string
	Items       []Suggestion
}

// Summary is the payload for topic.SummaryReady. Document is a JSON
// object with the call overview, objection list and next steps.
type Summary struct {
	CallID   string
	Document string
}

// CallState is the lifecycle state carried by status events.
type CallState string

const (
	// CallStarted means a call session began and producers are running.
	CallStarted CallState = "started"
	// CallStopped means the session ended and producers have drained.
	CallStopped CallState = "stopped"
)

// Status is the payload for topic.StatusChanged.
type Status struct {
	CallID string
	State  CallState
	Detail string
}

// ErrorScope identifies which component an error event came from.
type ErrorScope string

const (
	// ScopeASR covers transcription failures.
	ScopeASR ErrorScope = "asr"
	// ScopeSentiment covers sentiment analysis failures.
	ScopeSentiment ErrorScope = "sentiment"
	// ScopeCoach covers suggestion generation failures.
	ScopeCoach ErrorScope = "coach"
	// ScopeSummary covers summary generation failures.
	ScopeSummary ErrorScope = "summary"
	// ScopeStore covers persistence failures.
	ScopeStore ErrorScope = "store"
	// ScopeBus covers failures recovered inside the bus itself,
	// including subscriber suspensions.
	ScopeBus ErrorScope = "bus"
)

// Error is the payload for topic.ErrorRaised.
type Error struct {
	Scope   ErrorScope
	Code    string
	Message string
}
