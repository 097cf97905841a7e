package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/observability"
)

// SubscriberName is the recorder's identity on the event bus.
const SubscriberName = "recorder"

// Recorder consumes bus events and writes them to a TurnStore. Failed
// writes are retried with exponential backoff inside the handler; a
// duplicate key means a redelivered event whose write already landed, so
// it counts as success.
type Recorder struct {
	store       TurnStore
	maxAttempts int
	baseDelay   time.Duration

	// sleep is swappable so tests run without real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRecorder creates a recorder with the given retry budget.
// maxAttempts <= 0 means 3; baseDelay <= 0 means 50ms.
func NewRecorder(store TurnStore, maxAttempts int, baseDelay time.Duration) *Recorder {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 50 * time.Millisecond
	}
	return &Recorder{
		store:       store,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepCtx,
	}
}

// HandleTurnEvent persists the turn carried by a conversation.turn event.
// Wire it as the bus handler for that topic.
func (r *Recorder) HandleTurnEvent(ctx context.Context, event api.Event) error {
	turn, err := api.DecodeTurnPayload(event.Payload)
	if err != nil {
		// Malformed payloads never become valid on redelivery; drop
		// with an error so the bus counts the failure.
		return fmt.Errorf("decoding turn event %s: %w", event.ID, err)
	}

	return r.withRetry(ctx, "save_turn", func(ctx context.Context) error {
		return r.store.SaveTurn(ctx, turn)
	})
}

// HandleSystemEvent persists lifecycle events (system.start,
// system.shutdown, session.ended) for audit.
func (r *Recorder) HandleSystemEvent(ctx context.Context, event api.Event) error {
	return r.withRetry(ctx, "save_event", func(ctx context.Context) error {
		return r.store.SaveEvent(ctx, event)
	})
}

// withRetry runs op up to the attempt budget. ErrConflict short-circuits
// as success; context expiry aborts between attempts.
func (r *Recorder) withRetry(ctx context.Context, operation string, op func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) {
			slog.Debug("duplicate record, treating as persisted", "operation", operation)
			return nil
		}
		lastErr = err

		if attempt == r.maxAttempts {
			break
		}
		observability.StoreRetriesTotal.WithLabelValues(operation).Inc()
		slog.Warn("store operation failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"error", err)

		delay := r.baseDelay << (attempt - 1)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operation, r.maxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
