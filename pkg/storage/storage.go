package storage

import (
	"context"
	"time"

	"github.com/parley-dev/parley/pkg/api"
)

// TurnStore is the durable store for completed turns and system events.
//
// SaveTurn is keyed by (session ID, sequence number): writing the same
// key twice returns ErrConflict regardless of payload, which lets
// at-least-once delivery converge on exactly-once persistence.
type TurnStore interface {
	// SaveTurn persists a completed turn. Returns ErrConflict when the
	// (session ID, sequence number) pair is already stored.
	SaveTurn(ctx context.Context, turn api.ConversationTurn) error

	// ListTurns returns up to limit turns for the session, most recent
	// first. A limit <= 0 selects the adapter default.
	ListTurns(ctx context.Context, sessionID string, limit int) ([]api.ConversationTurn, error)

	// SaveEvent persists a bus event for audit. Returns ErrConflict
	// when the event ID is already stored.
	SaveEvent(ctx context.Context, event api.Event) error

	// PurgeOlderThan deletes turns and events created before the cutoff
	// and reports how many records were removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the adapter's resources.
	Close() error
}
