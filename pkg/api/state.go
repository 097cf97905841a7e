package api

import "fmt"

// TurnState identifies a stage in the turn-processing state machine.
type TurnState string

const (
	StateReceived          TurnState = "RECEIVED"
	StateInputValidated    TurnState = "INPUT_VALIDATED"
	StateIntentDetected    TurnState = "INTENT_DETECTED"
	StateContextUpdated    TurnState = "CONTEXT_UPDATED"
	StateResponseGenerated TurnState = "RESPONSE_GENERATED"
	StateOutputValidated   TurnState = "OUTPUT_VALIDATED"
	StatePublished         TurnState = "PUBLISHED"
	StateComplete          TurnState = "COMPLETE"
	StateDegraded          TurnState = "DEGRADED"
	StateFailed            TurnState = "FAILED"
)

// stateRank orders states along the pipeline so callers can compare
// progress (e.g. "has the context mutation become observable yet").
// Terminal states share the highest rank.
var stateRank = map[TurnState]int{
	StateReceived:          0,
	StateInputValidated:    1,
	StateIntentDetected:    2,
	StateContextUpdated:    3,
	StateResponseGenerated: 4,
	StateOutputValidated:   5,
	StatePublished:         6,
	StateComplete:          7,
	StateDegraded:          7,
	StateFailed:            7,
}

// validTurnTransitions encodes the pipeline's transition table. FAILED is
// reachable from every non-terminal state; DEGRADED only once a response
// exists to substitute.
var validTurnTransitions = map[TurnState][]TurnState{
	StateReceived:          {StateInputValidated, StateFailed},
	StateInputValidated:    {StateIntentDetected, StateFailed},
	StateIntentDetected:    {StateContextUpdated, StateFailed},
	StateContextUpdated:    {StateResponseGenerated, StateDegraded, StateFailed},
	StateResponseGenerated: {StateOutputValidated, StateDegraded, StateFailed},
	StateOutputValidated:   {StatePublished, StateDegraded, StateFailed},
	StatePublished:         {StateComplete, StateFailed},
	StateComplete:          {}, // terminal
	StateDegraded:          {}, // terminal
	StateFailed:            {}, // terminal
}

// IsTerminal reports whether the state ends the pipeline.
func (s TurnState) IsTerminal() bool {
	return s == StateComplete || s == StateDegraded || s == StateFailed
}

// AtOrPast reports whether the state has reached the given stage. Used by
// the cancellation path to decide whether the context mutation is already
// observable.
func (s TurnState) AtOrPast(other TurnState) bool {
	return stateRank[s] >= stateRank[other]
}

// ValidateTurnTransition checks whether a turn state transition is legal.
// Terminal states allow no outgoing transitions.
func ValidateTurnTransition(from, to TurnState) *Error {
	allowed, exists := validTurnTransitions[from]
	if !exists {
		return NewSystemError(fmt.Sprintf("unknown turn state %q", from))
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return NewSystemError(fmt.Sprintf("invalid turn transition from %s to %s", from, to))
}
