package api

import "time"

// Well-known bus topics. Publishers must register for a topic before the
// first publish; these constants keep topic strings in one place.
const (
	TopicConversationTurn = "conversation.turn"
	TopicSessionEnded     = "session.ended"
	TopicSystemStart      = "system.start"
	TopicSystemShutdown   = "system.shutdown"
)

// Event is an immutable record delivered over the bus. ID and CreatedAt are
// stamped by the bus at publish time; an event must never be mutated after
// Publish returns.
type Event struct {
	ID            string         `json:"id"`
	Topic         string         `json:"topic"`
	Payload       map[string]any `json:"payload"`
	CreatedAt     time.Time      `json:"created_at"`
	Source        string         `json:"source"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Validate checks the fields a caller must supply before publishing.
// The bus fills ID and CreatedAt itself.
func (e *Event) Validate() *Error {
	if e.Topic == "" {
		return NewInvalidEventError("topic must not be empty")
	}
	if e.Source == "" {
		return NewInvalidEventError("source must not be empty")
	}
	if e.Payload == nil {
		return NewInvalidEventError("payload must not be nil")
	}
	return nil
}

// Correlate returns a copy of the event carrying the same correlation ID
// but a new topic, payload, and source. Used to link a turn's sub-events.
func (e Event) Correlate(topic string, payload map[string]any, source string) Event {
	return Event{
		Topic:         topic,
		Payload:       payload,
		Source:        source,
		CorrelationID: e.CorrelationID,
	}
}

// Intent is a detected user intention with a confidence in [0, 1] and any
// entities extracted from the matched text.
type Intent struct {
	Name       string            `json:"name"`
	Confidence float64           `json:"confidence"`
	Entities   map[string]string `json:"entities,omitempty"`
}

// FallbackIntentName is the distinguished intent returned when no pattern
// matches above the detector's confidence threshold.
const FallbackIntentName = "fallback"

// FallbackIntent returns the zero-confidence "no match" intent.
func FallbackIntent() Intent {
	return Intent{Name: FallbackIntentName, Confidence: 0.0, Entities: map[string]string{}}
}

// IsFallback reports whether the intent is the no-match fallback.
func (i Intent) IsFallback() bool {
	return i.Name == FallbackIntentName
}

// ConversationTurn is one completed request/response exchange. Turns are
// created once by the orchestrator after generation succeeds and are
// immutable afterwards; the durable store owns them once persisted.
type ConversationTurn struct {
	SessionID            string         `json:"session_id"`
	SequenceNumber       int64          `json:"sequence_number"`
	UserInput            string         `json:"user_input"`
	DetectedIntent       *Intent        `json:"detected_intent,omitempty"`
	AssistantResponse    string         `json:"assistant_response"`
	CreatedAt            time.Time      `json:"created_at"`
	ProcessingDurationMs int64          `json:"processing_duration_ms"`
	Metadata             map[string]any `json:"metadata,omitempty"`
}

// PolicyResult is the aggregate outcome of evaluating the full validator
// chain. Violations maps rule name to a human-readable detail; the chain
// never short-circuits, so callers always see the complete set.
type PolicyResult struct {
	Passed     bool              `json:"passed"`
	Violations map[string]string `json:"violations,omitempty"`
}

// TurnStatus is the terminal classification of a processed turn.
type TurnStatus string

const (
	// TurnStatusComplete means the turn ran the full pipeline and the
	// generated response passed output validation unchanged.
	TurnStatusComplete TurnStatus = "COMPLETE"

	// TurnStatusDegraded means the turn completed but the response was
	// substituted with a safe fallback (output policy violation or
	// generation failure).
	TurnStatusDegraded TurnStatus = "DEGRADED"

	// TurnStatusFailed means no normal response was produced; the caller
	// receives a denial or apology plus a typed error.
	TurnStatusFailed TurnStatus = "FAILED"
)

// TurnOutcome is the caller-facing result of SubmitTurn. ResponseText is
// populated for every status, including FAILED (denial/apology text).
type TurnOutcome struct {
	Status       TurnStatus        `json:"status"`
	ResponseText string            `json:"response_text"`
	Intent       *Intent           `json:"intent,omitempty"`
	Violations   map[string]string `json:"violations,omitempty"`
}
