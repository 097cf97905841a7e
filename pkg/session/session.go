// Package session implements the in-memory per-session conversation
// context: a bounded turn history, free-form slots for response
// generation, and the per-session sequence counter.
//
// The store guards its map with a mutex, but serialization of turns
// within one session is the orchestrator's responsibility; the store
// never blocks one session on another.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/observability"
)

// Context is a read-only snapshot of one session's conversation state as
// handed to the response generator. Mutation goes through Store methods
// only.
type Context struct {
	SessionID string
	// Turns holds the most recent turns, oldest first, capped at the
	// store's history size.
	Turns []api.ConversationTurn
	// Slots carries free-form key/value state (e.g. last-mentioned
	// entity) used by response strategies.
	Slots map[string]string
	// LastVariant maps intent name to the index of the response variant
	// last used for that intent in this session.
	LastVariant map[string]int
	// TurnCount is the number of committed turns, including evicted ones.
	TurnCount int64
	// LastActivity is the time of the last committed turn.
	LastActivity time.Time
}

// LastIntent returns the name of the most recent turn's detected intent,
// or "" when there is none.
func (c Context) LastIntent() string {
	if len(c.Turns) == 0 {
		return ""
	}
	if in := c.Turns[len(c.Turns)-1].DetectedIntent; in != nil {
		return in.Name
	}
	return ""
}

// state is the mutable per-session record behind the store.
type state struct {
	turns        []api.ConversationTurn
	slots        map[string]string
	lastVariant  map[string]int
	nextSequence int64
	turnCount    int64
	lastActivity time.Time
}

// Store holds all live session contexts.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*state
	// retired maps ended or evicted session IDs to the sequence their
	// next turn must carry. Durable turns are keyed (session, sequence),
	// so a session resumed under the same ID must never restart at 1: the
	// write would collide with an already-persisted turn and be dropped
	// as a duplicate.
	retired    map[string]int64
	historyCap int
}

// NewStore creates a store whose sessions keep at most historyCap turns
// in memory. historyCap must be positive.
func NewStore(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = 1
	}
	return &Store{
		sessions:   make(map[string]*state),
		retired:    make(map[string]int64),
		historyCap: historyCap,
	}
}

// Get returns a snapshot of the session's context, creating an empty
// context on first access.
func (s *Store) Get(sessionID string) Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(sessionID, s.ensure(sessionID))
}

// NextSequence returns the sequence number the session's next committed
// turn will carry. Sequences start at 1 and are gap-free because they are
// only consumed by AppendTurn.
func (s *Store) NextSequence(sessionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(sessionID).nextSequence
}

// AppendTurn commits a completed turn to the session: it assigns the next
// sequence number, stamps the turn, and evicts the oldest history entry
// once the cap is exceeded. The stamped turn is returned.
func (s *Store) AppendTurn(sessionID string, turn api.ConversationTurn) api.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ensure(sessionID)
	turn.SessionID = sessionID
	turn.SequenceNumber = st.nextSequence
	st.nextSequence++
	st.turnCount++
	st.lastActivity = turn.CreatedAt

	st.turns = append(st.turns, turn)
	if len(st.turns) > s.historyCap {
		st.turns = st.turns[len(st.turns)-s.historyCap:]
	}
	return turn
}

// SetSlot records a key/value slot on the session.
func (s *Store) SetSlot(sessionID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(sessionID).slots[key] = value
}

// SetLastVariant records the response variant index used for an intent,
// so the next generation for the same intent can avoid repeating it.
func (s *Store) SetLastVariant(sessionID, intentName string, variant int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(sessionID).lastVariant[intentName] = variant
}

// EndSession evicts the session's context, retiring its sequence counter
// so a later session under the same ID continues the numbering. Reports
// whether a session existed.
func (s *Store) EndSession(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	s.retired[sessionID] = st.nextSequence
	delete(s.sessions, sessionID)
	observability.SessionsActive.Dec()
	slog.Debug("session ended", "session_id", sessionID)
	return true
}

// EvictIdle removes sessions whose last activity is older than the given
// cutoff and returns their IDs. Idle-timeout policy belongs to the
// caller; the store only executes it.
func (s *Store) EvictIdle(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, st := range s.sessions {
		if !st.lastActivity.IsZero() && st.lastActivity.Before(cutoff) {
			s.retired[id] = st.nextSequence
			delete(s.sessions, id)
			observability.SessionsActive.Dec()
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ensure returns the session state, creating it on first access. A
// session resumed after EndSession or idle eviction picks its sequence
// up where the retired context left off.
// Must be called with s.mu held.
func (s *Store) ensure(sessionID string) *state {
	st, ok := s.sessions[sessionID]
	if !ok {
		next := int64(1)
		if seq, retired := s.retired[sessionID]; retired {
			next = seq
			delete(s.retired, sessionID)
		}
		st = &state{
			slots:        make(map[string]string),
			lastVariant:  make(map[string]int),
			nextSequence: next,
		}
		s.sessions[sessionID] = st
		observability.SessionsActive.Inc()
	}
	return st
}

// snapshot copies the state into an immutable Context.
// Must be called with s.mu held.
func (s *Store) snapshot(sessionID string, st *state) Context {
	c := Context{
		SessionID:    sessionID,
		Turns:        make([]api.ConversationTurn, len(st.turns)),
		Slots:        make(map[string]string, len(st.slots)),
		LastVariant:  make(map[string]int, len(st.lastVariant)),
		TurnCount:    st.turnCount,
		LastActivity: st.lastActivity,
	}
	copy(c.Turns, st.turns)
	for k, v := range st.slots {
		c.Slots[k] = v
	}
	for k, v := range st.lastVariant {
		c.LastVariant[k] = v
	}
	return c
}
