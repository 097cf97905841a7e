package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/bus"
	"github.com/parley-dev/parley/pkg/intent"
	"github.com/parley-dev/parley/pkg/policy"
	"github.com/parley-dev/parley/pkg/respond"
	"github.com/parley-dev/parley/pkg/session"
)

// publisherName is the engine's identity on the event bus.
const publisherName = "engine"

// ErrNoTurnInFlight is returned by Cancel when the session has no turn
// being processed.
var ErrNoTurnInFlight = errors.New("engine: no turn in flight for session")

// Fixed response texts for turns that cannot return generated output.
const (
	deniedInputText   = "I'm sorry, but I can't process that request."
	apologyText       = "I'm sorry, I'm having trouble responding right now. Please try again."
	blockedOutputText = "I'm sorry, I can't provide that response."
)

// Config holds the engine's orchestration settings.
type Config struct {
	// TurnTimeout bounds one turn end to end. Zero means 10 seconds.
	TurnTimeout time.Duration
}

func (c *Config) defaults() {
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 10 * time.Second
	}
}

// Engine drives turns through the processing pipeline. All methods are
// safe for concurrent use; turns for the same session serialize on a
// per-session lock.
type Engine struct {
	bus       *bus.Bus
	policies  *policy.Engine
	detector  *intent.Detector
	sessions  *session.Store
	responder *respond.Responder
	cfg       Config

	inflight *inFlightRegistry

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock serializes turns for one session. Entries are reference
// counted so the lock map shrinks back as sessions go quiet instead of
// accumulating a mutex per session ever seen.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an engine and registers it as the publisher for the
// conversation and session lifecycle topics.
func New(b *bus.Bus, policies *policy.Engine, detector *intent.Detector, sessions *session.Store, responder *respond.Responder, cfg Config) (*Engine, error) {
	if b == nil || policies == nil || detector == nil || sessions == nil || responder == nil {
		return nil, fmt.Errorf("engine: all collaborators must be non-nil")
	}
	cfg.defaults()

	if err := b.RegisterPublisher(publisherName, []string{
		api.TopicConversationTurn,
		api.TopicSessionEnded,
	}); err != nil {
		return nil, fmt.Errorf("engine: registering publisher: %w", err)
	}

	return &Engine{
		bus:       b,
		policies:  policies,
		detector:  detector,
		sessions:  sessions,
		responder: responder,
		cfg:       cfg,
		inflight:  newInFlightRegistry(),
		locks:     make(map[string]*sessionLock),
	}, nil
}

// Cancel requests cancellation of the session's in-flight turn. It
// succeeds only while the turn has not yet updated the session context;
// afterwards a cancellation_rejected error is returned and the turn runs
// to its terminal state.
func (e *Engine) Cancel(sessionID string) error {
	return e.inflight.cancel(sessionID)
}

// EndSession discards the session's context and announces the end on the
// bus. Ending an unknown session is a no-op.
func (e *Engine) EndSession(sessionID string) error {
	if !e.sessions.EndSession(sessionID) {
		return nil
	}

	_, err := e.bus.Publish(api.Event{
		Topic:   api.TopicSessionEnded,
		Payload: map[string]any{"session_id": sessionID},
		Source:  publisherName,
	})
	if err != nil {
		return fmt.Errorf("engine: publishing session end: %w", err)
	}
	return nil
}

// lockSession blocks until the caller holds the session's turn lock.
// The entry's reference count covers waiters, so the map entry stays put
// while any turn for the session is running or queued.
func (e *Engine) lockSession(sessionID string) *sessionLock {
	e.mu.Lock()
	lock, ok := e.locks[sessionID]
	if !ok {
		lock = &sessionLock{}
		e.locks[sessionID] = lock
	}
	lock.refs++
	e.mu.Unlock()

	lock.mu.Lock()
	return lock
}

// unlockSession releases the turn lock and drops the map entry once the
// last holder or waiter is gone.
func (e *Engine) unlockSession(sessionID string, lock *sessionLock) {
	lock.mu.Unlock()

	e.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(e.locks, sessionID)
	}
	e.mu.Unlock()
}
