// Package postgres provides a PostgreSQL implementation of
// storage.TurnStore. It uses pgx/v5 for connection pooling and JSONB for
// intent entities, metadata, and event payloads.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/storage"
)

// Store is a PostgreSQL-backed TurnStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.TurnStore at compile time.
var _ storage.TurnStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveTurn persists a completed turn. The primary key on
// (session_id, sequence_number) makes duplicate writes from redelivered
// events surface as ErrConflict.
func (s *Store) SaveTurn(ctx context.Context, turn api.ConversationTurn) error {
	var intentName *string
	var intentConfidence *float64
	var entitiesJSON []byte
	if turn.DetectedIntent != nil {
		intentName = &turn.DetectedIntent.Name
		intentConfidence = &turn.DetectedIntent.Confidence
		if len(turn.DetectedIntent.Entities) > 0 {
			var err error
			entitiesJSON, err = json.Marshal(turn.DetectedIntent.Entities)
			if err != nil {
				return fmt.Errorf("marshaling entities: %w", err)
			}
		}
	}

	var metadataJSON []byte
	if len(turn.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO turns (
			session_id, sequence_number, user_input, assistant_response,
			intent_name, intent_confidence, intent_entities,
			processing_duration_ms, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		turn.SessionID, turn.SequenceNumber, turn.UserInput, turn.AssistantResponse,
		intentName, intentConfidence, nullJSON(entitiesJSON),
		turn.ProcessingDurationMs, nullJSON(metadataJSON), turn.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting turn: %w", err)
	}
	return nil
}

// ListTurns returns up to limit turns for the session, most recent first.
func (s *Store) ListTurns(ctx context.Context, sessionID string, limit int) ([]api.ConversationTurn, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT session_id, sequence_number, user_input, assistant_response,
		       intent_name, intent_confidence, intent_entities,
		       processing_duration_ms, metadata, created_at
		FROM turns
		WHERE session_id = $1
		ORDER BY sequence_number DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []api.ConversationTurn
	for rows.Next() {
		var turn api.ConversationTurn
		var intentName *string
		var intentConfidence *float64
		var entitiesJSON, metadataJSON []byte

		if err := rows.Scan(
			&turn.SessionID, &turn.SequenceNumber, &turn.UserInput, &turn.AssistantResponse,
			&intentName, &intentConfidence, &entitiesJSON,
			&turn.ProcessingDurationMs, &metadataJSON, &turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}

		if intentName != nil {
			intent := api.Intent{Name: *intentName, Entities: map[string]string{}}
			if intentConfidence != nil {
				intent.Confidence = *intentConfidence
			}
			if entitiesJSON != nil {
				if err := json.Unmarshal(entitiesJSON, &intent.Entities); err != nil {
					return nil, fmt.Errorf("unmarshaling entities: %w", err)
				}
			}
			turn.DetectedIntent = &intent
		}
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &turn.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

// SaveEvent persists a bus event for audit, keyed by event ID.
func (s *Store) SaveEvent(ctx context.Context, event api.Event) error {
	var payloadJSON []byte
	if len(event.Payload) > 0 {
		var err error
		payloadJSON, err = json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshaling payload: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (id, topic, payload, source, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		event.ID, event.Topic, nullJSON(payloadJSON),
		nullString(event.Source), nullString(event.CorrelationID), event.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// PurgeOlderThan deletes turns and events created before the cutoff.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	turnsResult, err := s.pool.Exec(ctx, "DELETE FROM turns WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging turns: %w", err)
	}
	eventsResult, err := s.pool.Exec(ctx, "DELETE FROM events WHERE created_at < $1", cutoff)
	if err != nil {
		return turnsResult.RowsAffected(), fmt.Errorf("purging events: %w", err)
	}
	return turnsResult.RowsAffected() + eventsResult.RowsAffected(), nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
