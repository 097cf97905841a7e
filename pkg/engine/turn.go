package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-dev/parley/pkg/api"
	"github.com/parley-dev/parley/pkg/observability"
	"github.com/parley-dev/parley/pkg/policy"
	"github.com/parley-dev/parley/pkg/respond"
)

// SubmitTurn processes one user input for a session and blocks until the
// turn reaches a terminal status. The outcome always carries response
// text; the error is non-nil only when the turn FAILED.
//
// Turns for the same session run one at a time: a second SubmitTurn for
// a session blocks until the first finishes. Turns for different
// sessions run concurrently.
func (e *Engine) SubmitTurn(ctx context.Context, sessionID, userInput string) (api.TurnOutcome, error) {
	if sessionID == "" {
		return api.TurnOutcome{}, fmt.Errorf("engine: session ID must not be empty")
	}

	lock := e.lockSession(sessionID)
	defer e.unlockSession(sessionID, lock)

	start := time.Now()
	turnCtx, cancel := context.WithTimeout(ctx, e.cfg.TurnTimeout)
	defer cancel()

	handle := e.inflight.register(sessionID, cancel)
	defer e.inflight.remove(sessionID)

	outcome, err := e.runTurn(turnCtx, handle, sessionID, userInput, start)

	observability.TurnsTotal.WithLabelValues(string(outcome.Status)).Inc()
	observability.TurnDuration.Observe(time.Since(start).Seconds())
	return outcome, err
}

// runTurn walks the turn through the state machine.
func (e *Engine) runTurn(ctx context.Context, handle *turnHandle, sessionID, userInput string, start time.Time) (api.TurnOutcome, error) {
	// Input validation.
	inputResult := e.policies.Evaluate(userInput, policy.DirectionInput)
	if !inputResult.Passed {
		apiErr := api.NewPolicyViolationError("input", inputResult.Violations)
		return e.failTurn(handle, sessionID, deniedInputText, inputResult.Violations, apiErr)
	}
	if err := e.advance(handle, api.StateInputValidated); err != nil {
		return e.failTurn(handle, sessionID, apologyText, nil, err)
	}
	if apiErr := classifyInterrupt(ctx); apiErr != nil {
		return e.failTurn(handle, sessionID, apologyText, nil, apiErr)
	}

	// Intent detection.
	best := e.detector.Best(userInput)
	observability.IntentDetectionsTotal.WithLabelValues(best.Name).Inc()
	if err := e.advance(handle, api.StateIntentDetected); err != nil {
		return e.failTurn(handle, sessionID, apologyText, nil, err)
	}

	// Context update. From here on cancellation is rejected, so the
	// advance and the cancellation decision must be atomic.
	sctx := e.sessions.Get(sessionID)
	if err := handle.advanceIfLive(ctx, api.StateContextUpdated); err != nil {
		return e.failTurn(handle, sessionID, apologyText, nil, classifyCtxErr(err))
	}

	// Response generation. The raw input rides along as an entity so
	// backend strategies can use it as the prompt.
	result, genErr := e.responder.Generate(ctx, withInputEntity(best, userInput), sctx)
	if genErr != nil {
		if apiErr := classifyInterrupt(ctx); apiErr != nil {
			return e.failTurn(handle, sessionID, apologyText, nil, apiErr)
		}
		// The turn still answers: substitute an apology and degrade.
		slog.Warn("response generation failed",
			"session_id", sessionID,
			"intent", best.Name,
			"error", genErr)
		return e.degradeTurn(ctx, handle, sessionID, userInput, best, apologyText, start)
	}
	if err := e.advance(handle, api.StateResponseGenerated); err != nil {
		return e.failTurn(handle, sessionID, apologyText, nil, err)
	}

	// Output validation.
	outputResult := e.policies.Evaluate(result.Text, policy.DirectionOutput)
	if !outputResult.Passed {
		slog.Warn("generated response rejected by policy",
			"session_id", sessionID,
			"violations", outputResult.Violations)
		outcome, err := e.degradeTurn(ctx, handle, sessionID, userInput, best, blockedOutputText, start)
		outcome.Violations = outputResult.Violations
		return outcome, err
	}
	if err := e.advance(handle, api.StateOutputValidated); err != nil {
		return e.failTurn(handle, sessionID, apologyText, nil, err)
	}

	// Commit the turn to the session, then publish it.
	turn := e.commitTurn(sessionID, userInput, best, result, start)

	if _, pubErr := e.publishTurn(turn, api.TurnStatusComplete); pubErr != nil {
		apiErr := api.NewSystemError(fmt.Sprintf("publishing turn: %s", pubErr))
		return e.failTurn(handle, sessionID, result.Text, nil, apiErr)
	}
	if err := e.advance(handle, api.StatePublished); err != nil {
		return e.failTurn(handle, sessionID, result.Text, nil, err)
	}
	if err := e.advance(handle, api.StateComplete); err != nil {
		return e.failTurn(handle, sessionID, result.Text, nil, err)
	}

	slog.Info("turn complete",
		"session_id", sessionID,
		"sequence", turn.SequenceNumber,
		"intent", best.Name,
		"duration_ms", turn.ProcessingDurationMs)

	return api.TurnOutcome{
		Status:       api.TurnStatusComplete,
		ResponseText: result.Text,
		Intent:       &best,
	}, nil
}

// degradeTurn commits a turn whose response was substituted with safe
// text and terminates it as DEGRADED. Degraded turns never pass through
// PUBLISHED; their record is still announced on the bus best-effort.
func (e *Engine) degradeTurn(ctx context.Context, handle *turnHandle, sessionID, userInput string, best api.Intent, text string, start time.Time) (api.TurnOutcome, error) {
	result := respond.Result{Text: text, Intent: best.Name, Variant: -1}
	turn := e.commitTurn(sessionID, userInput, best, result, start)

	if err := e.advance(handle, api.StateDegraded); err != nil {
		return e.failTurn(handle, sessionID, text, nil, err)
	}
	if _, pubErr := e.publishTurn(turn, api.TurnStatusDegraded); pubErr != nil {
		slog.Error("publishing degraded turn failed",
			"session_id", sessionID,
			"sequence", turn.SequenceNumber,
			"error", pubErr)
	}

	return api.TurnOutcome{
		Status:       api.TurnStatusDegraded,
		ResponseText: text,
		Intent:       &best,
	}, nil
}

// commitTurn appends the completed exchange to the session and updates
// the generation bookkeeping (variant anti-repetition, slots).
func (e *Engine) commitTurn(sessionID, userInput string, best api.Intent, result respond.Result, start time.Time) api.ConversationTurn {
	turn := e.sessions.AppendTurn(sessionID, api.ConversationTurn{
		UserInput:            userInput,
		DetectedIntent:       &best,
		AssistantResponse:    result.Text,
		CreatedAt:            time.Now(),
		ProcessingDurationMs: time.Since(start).Milliseconds(),
	})

	if result.Variant >= 0 {
		e.sessions.SetLastVariant(sessionID, result.Intent, result.Variant)
	}
	e.sessions.SetSlot(sessionID, "last_input", userInput)
	for k, v := range best.Entities {
		e.sessions.SetSlot(sessionID, k, v)
	}
	return turn
}

// publishTurn announces a committed turn on the conversation topic.
func (e *Engine) publishTurn(turn api.ConversationTurn, status api.TurnStatus) (api.Event, error) {
	return e.bus.Publish(api.Event{
		Topic:         api.TopicConversationTurn,
		Payload:       api.EncodeTurnPayload(turn, status),
		Source:        publisherName,
		CorrelationID: api.NewCorrelationID(),
	})
}

// advance validates and applies a state transition.
func (e *Engine) advance(handle *turnHandle, to api.TurnState) *api.Error {
	from := handle.currentState()
	if err := api.ValidateTurnTransition(from, to); err != nil {
		return err
	}
	handle.setState(to)
	return nil
}

// failTurn terminates the turn as FAILED. The outcome still carries
// response text for the caller.
func (e *Engine) failTurn(handle *turnHandle, sessionID, text string, violations map[string]string, apiErr *api.Error) (api.TurnOutcome, error) {
	handle.setState(api.StateFailed)
	slog.Warn("turn failed",
		"session_id", sessionID,
		"error_type", apiErr.Type,
		"error", apiErr.Message)
	return api.TurnOutcome{
		Status:       api.TurnStatusFailed,
		ResponseText: text,
		Violations:   violations,
	}, apiErr
}

// withInputEntity returns a copy of the intent carrying the raw user
// input as an entity, leaving the detector's result untouched.
func withInputEntity(in api.Intent, userInput string) api.Intent {
	entities := make(map[string]string, len(in.Entities)+1)
	for k, v := range in.Entities {
		entities[k] = v
	}
	entities["input"] = userInput
	in.Entities = entities
	return in
}

// classifyInterrupt maps a done context to the turn's typed error, or
// nil when the context is still live.
func classifyInterrupt(ctx context.Context) *api.Error {
	if err := ctx.Err(); err != nil {
		return classifyCtxErr(err)
	}
	return nil
}

func classifyCtxErr(err error) *api.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewTimeoutError("turn processing exceeded its deadline")
	}
	return api.NewSystemError("turn cancelled")
}
