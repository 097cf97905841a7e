package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/storage"
)

func makeTurn(sessionID string, seq int64) api.ConversationTurn {
	return api.ConversationTurn{
		SessionID:         sessionID,
		SequenceNumber:    seq,
		UserInput:         "hello",
		AssistantResponse: "hi",
		CreatedAt:         time.Now(),
	}
}

func TestSaveAndList(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	for seq := int64(1); seq <= 3; seq++ {
		if err := s.SaveTurn(ctx, makeTurn("sess_a", seq)); err != nil {
			t.Fatalf("SaveTurn(%d) failed: %v", seq, err)
		}
	}

	turns, err := s.ListTurns(ctx, "sess_a", 10)
	if err != nil {
		t.Fatalf("ListTurns failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	// Most recent first.
	for i, want := range []int64{3, 2, 1} {
		if turns[i].SequenceNumber != want {
			t.Errorf("turns[%d].SequenceNumber = %d, want %d", i, turns[i].SequenceNumber, want)
		}
	}
}

func TestDuplicateTurnConflicts(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.SaveTurn(ctx, makeTurn("sess_a", 1)); err != nil {
		t.Fatalf("first SaveTurn failed: %v", err)
	}

	// Same key with a different payload still conflicts.
	dup := makeTurn("sess_a", 1)
	dup.UserInput = "something else"
	if err := s.SaveTurn(ctx, dup); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	// The original record is untouched.
	turns, _ := s.ListTurns(ctx, "sess_a", 10)
	if len(turns) != 1 || turns[0].UserInput != "hello" {
		t.Errorf("stored record changed: %+v", turns)
	}
}

func TestSameSequenceDifferentSessions(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.SaveTurn(ctx, makeTurn("sess_a", 1)); err != nil {
		t.Fatalf("SaveTurn sess_a failed: %v", err)
	}
	if err := s.SaveTurn(ctx, makeTurn("sess_b", 1)); err != nil {
		t.Errorf("sequence 1 in another session must not conflict: %v", err)
	}
}

func TestListLimit(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	for seq := int64(1); seq <= 10; seq++ {
		s.SaveTurn(ctx, makeTurn("sess_a", seq))
	}

	turns, _ := s.ListTurns(ctx, "sess_a", 4)
	if len(turns) != 4 {
		t.Fatalf("got %d turns, want 4", len(turns))
	}
	if turns[0].SequenceNumber != 10 {
		t.Errorf("first = %d, want 10", turns[0].SequenceNumber)
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := New(3)
	ctx := context.Background()

	for seq := int64(1); seq <= 5; seq++ {
		s.SaveTurn(ctx, makeTurn("sess_a", seq))
	}

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
	turns, _ := s.ListTurns(ctx, "sess_a", 10)
	if turns[len(turns)-1].SequenceNumber != 3 {
		t.Errorf("oldest surviving = %d, want 3", turns[len(turns)-1].SequenceNumber)
	}
}

func TestSaveEventIdempotence(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	event := api.Event{ID: "evt_1", Topic: api.TopicSystemStart, CreatedAt: time.Now()}
	if err := s.SaveEvent(ctx, event); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}
	if err := s.SaveEvent(ctx, event); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate event, got %v", err)
	}
}

func TestPurgeOlderThan(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	old := makeTurn("sess_a", 1)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	s.SaveTurn(ctx, old)
	s.SaveTurn(ctx, makeTurn("sess_a", 2))

	oldEvent := api.Event{ID: "evt_old", Topic: api.TopicSystemStart, CreatedAt: time.Now().Add(-48 * time.Hour)}
	s.SaveEvent(ctx, oldEvent)

	removed, err := s.PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeOlderThan failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	turns, _ := s.ListTurns(ctx, "sess_a", 10)
	if len(turns) != 1 || turns[0].SequenceNumber != 2 {
		t.Errorf("surviving turns = %+v, want only sequence 2", turns)
	}
}

func TestHealthCheck(t *testing.T) {
	s := New(0)
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
