package engine

import (
	"context"
	"sync"

	"github.com/parley-dev/parley/pkg/api"
)

// turnHandle tracks one in-flight turn: its cancel function and how far
// through the pipeline it has progressed. The state gates cancellation:
// once the session context update is observable the turn must run to a
// terminal state.
type turnHandle struct {
	cancel context.CancelFunc

	mu    sync.Mutex
	state api.TurnState
}

func (h *turnHandle) setState(s api.TurnState) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *turnHandle) currentState() api.TurnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// advanceIfLive moves the turn to the given state unless its context has
// already been cancelled. Holding the same lock as cancel makes the
// decision atomic: a cancellation either lands before the advance and
// wins, or arrives after and is judged against the new state.
func (h *turnHandle) advanceIfLive(ctx context.Context, s api.TurnState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	h.state = s
	return nil
}

// inFlightRegistry tracks in-flight turns by session for explicit
// cancellation. All methods are safe for concurrent access.
type inFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]*turnHandle
}

func newInFlightRegistry() *inFlightRegistry {
	return &inFlightRegistry{
		entries: make(map[string]*turnHandle),
	}
}

// register adds an in-flight turn for the session and returns its handle.
func (r *inFlightRegistry) register(sessionID string, cancel context.CancelFunc) *turnHandle {
	h := &turnHandle{cancel: cancel, state: api.StateReceived}
	r.mu.Lock()
	r.entries[sessionID] = h
	r.mu.Unlock()
	return h
}

// remove drops the session's in-flight entry without cancelling it.
// Called when the turn reaches a terminal state.
func (r *inFlightRegistry) remove(sessionID string) {
	r.mu.Lock()
	delete(r.entries, sessionID)
	r.mu.Unlock()
}

// cancel requests cancellation of the session's in-flight turn.
//
// Returns nil when the cancellation was honored. Returns a
// cancellation_rejected error when the turn has already reached
// CONTEXT_UPDATED, and ErrNoTurnInFlight when the session has no turn in
// flight.
func (r *inFlightRegistry) cancel(sessionID string) error {
	r.mu.Lock()
	h, ok := r.entries[sessionID]
	r.mu.Unlock()
	if !ok {
		return ErrNoTurnInFlight
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.AtOrPast(api.StateContextUpdated) {
		return api.NewCancellationRejectedError(
			"turn has already updated the session context and must run to completion")
	}
	h.cancel()
	return nil
}
