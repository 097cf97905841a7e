// Package memory provides an in-memory implementation of
// storage.TurnStore for testing and single-process deployments. Records
// are lost when the process restarts. Optional bounded capacity evicts
// the oldest turns first.
package memory

import (
	"context"
	"container/list"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/storage"
)

// turnEntry holds a stored turn and its position in the eviction list.
type turnEntry struct {
	turn    api.ConversationTurn
	ageElem *list.Element
}

// Store is an in-memory TurnStore with optional capacity-based eviction.
type Store struct {
	mu       sync.RWMutex
	turns    map[string]*turnEntry // key: sessionID "/" sequence
	events   map[string]api.Event  // key: event ID
	ageList  *list.List            // front = newest insert, back = oldest
	maxTurns int                   // 0 = unlimited
}

// Ensure Store implements storage.TurnStore at compile time.
var _ storage.TurnStore = (*Store)(nil)

// New creates an in-memory store. If maxTurns is 0 the store grows
// without limit; otherwise the oldest stored turn is evicted once the
// limit is reached.
func New(maxTurns int) *Store {
	return &Store{
		turns:    make(map[string]*turnEntry),
		events:   make(map[string]api.Event),
		ageList:  list.New(),
		maxTurns: maxTurns,
	}
}

func turnKey(sessionID string, seq int64) string {
	return fmt.Sprintf("%s/%d", sessionID, seq)
}

// SaveTurn persists a turn, rejecting duplicate (session, sequence) keys.
func (s *Store) SaveTurn(_ context.Context, turn api.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := turnKey(turn.SessionID, turn.SequenceNumber)
	if _, exists := s.turns[key]; exists {
		return storage.ErrConflict
	}

	if s.maxTurns > 0 && len(s.turns) >= s.maxTurns {
		s.evictOldest()
	}

	elem := s.ageList.PushFront(key)
	s.turns[key] = &turnEntry{turn: turn, ageElem: elem}
	return nil
}

// ListTurns returns the session's turns, most recent first.
func (s *Store) ListTurns(_ context.Context, sessionID string, limit int) ([]api.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []api.ConversationTurn
	for _, e := range s.turns {
		if e.turn.SessionID == sessionID {
			matches = append(matches, e.turn)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].SequenceNumber > matches[j].SequenceNumber
	})

	if limit <= 0 {
		limit = 50
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// SaveEvent persists a bus event, rejecting duplicate IDs.
func (s *Store) SaveEvent(_ context.Context, event api.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		return storage.ErrConflict
	}
	s.events[event.ID] = event
	return nil
}

// PurgeOlderThan removes turns and events created before the cutoff.
func (s *Store) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, e := range s.turns {
		if e.turn.CreatedAt.Before(cutoff) {
			s.ageList.Remove(e.ageElem)
			delete(s.turns, key)
			removed++
		}
	}
	for id, ev := range s.events {
		if ev.CreatedAt.Before(cutoff) {
			delete(s.events, id)
			removed++
		}
	}
	return removed, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// evictOldest removes the oldest inserted turn.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.ageList.Back()
	if back == nil {
		return
	}
	key := back.Value.(string)
	s.ageList.Remove(back)
	delete(s.turns, key)
}
