package api

import (
	"fmt"
	"time"
)

// Payload keys used on conversation.turn events. Both the publishing
// orchestrator and the consuming recorder go through the codecs below so
// the schema lives in one place.
const (
	payloadSessionID      = "session_id"
	payloadSequenceNumber = "sequence_number"
	payloadUserInput      = "user_input"
	payloadResponse       = "assistant_response"
	payloadIntentName     = "intent_name"
	payloadIntentConf     = "intent_confidence"
	payloadIntentEntities = "intent_entities"
	payloadStatus         = "status"
	payloadDurationMs     = "processing_duration_ms"
	payloadTurnCreatedAt  = "created_at"
)

// EncodeTurnPayload flattens a completed turn into an event payload.
func EncodeTurnPayload(turn ConversationTurn, status TurnStatus) map[string]any {
	p := map[string]any{
		payloadSessionID:      turn.SessionID,
		payloadSequenceNumber: turn.SequenceNumber,
		payloadUserInput:      turn.UserInput,
		payloadResponse:       turn.AssistantResponse,
		payloadStatus:         string(status),
		payloadDurationMs:     turn.ProcessingDurationMs,
		payloadTurnCreatedAt:  turn.CreatedAt.Format(time.RFC3339Nano),
	}
	if turn.DetectedIntent != nil {
		p[payloadIntentName] = turn.DetectedIntent.Name
		p[payloadIntentConf] = turn.DetectedIntent.Confidence
		if len(turn.DetectedIntent.Entities) > 0 {
			entities := make(map[string]any, len(turn.DetectedIntent.Entities))
			for k, v := range turn.DetectedIntent.Entities {
				entities[k] = v
			}
			p[payloadIntentEntities] = entities
		}
	}
	return p
}

// DecodeTurnPayload reconstructs a turn from a conversation.turn event
// payload. The session ID and a positive sequence number are mandatory.
func DecodeTurnPayload(payload map[string]any) (ConversationTurn, error) {
	var turn ConversationTurn

	sessionID, ok := payload[payloadSessionID].(string)
	if !ok || sessionID == "" {
		return turn, fmt.Errorf("turn payload missing session_id")
	}
	seq, ok := toInt64(payload[payloadSequenceNumber])
	if !ok || seq <= 0 {
		return turn, fmt.Errorf("turn payload missing sequence_number")
	}

	turn.SessionID = sessionID
	turn.SequenceNumber = seq
	turn.UserInput, _ = payload[payloadUserInput].(string)
	turn.AssistantResponse, _ = payload[payloadResponse].(string)
	if ms, ok := toInt64(payload[payloadDurationMs]); ok {
		turn.ProcessingDurationMs = ms
	}

	if raw, ok := payload[payloadTurnCreatedAt].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			turn.CreatedAt = ts
		}
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}

	if name, ok := payload[payloadIntentName].(string); ok && name != "" {
		intent := Intent{Name: name, Entities: map[string]string{}}
		if conf, ok := payload[payloadIntentConf].(float64); ok {
			intent.Confidence = conf
		}
		if entities, ok := payload[payloadIntentEntities].(map[string]any); ok {
			for k, v := range entities {
				if s, ok := v.(string); ok {
					intent.Entities[k] = s
				}
			}
		}
		turn.DetectedIntent = &intent
	}

	if status, ok := payload[payloadStatus].(string); ok {
		if turn.Metadata == nil {
			turn.Metadata = map[string]any{}
		}
		turn.Metadata["status"] = status
	}

	return turn, nil
}

// toInt64 accepts the numeric types a payload may carry after round-trips
// through JSON.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
