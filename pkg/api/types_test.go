package api

import "testing"

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name     string
		event    Event
		wantType ErrorType
	}{
		{
			name:  "valid",
			event: Event{Topic: TopicConversationTurn, Source: "engine", Payload: map[string]any{"k": "v"}},
		},
		{
			name:     "missing topic",
			event:    Event{Source: "engine", Payload: map[string]any{}},
			wantType: ErrorTypeInvalidEvent,
		},
		{
			name:     "missing source",
			event:    Event{Topic: TopicConversationTurn, Payload: map[string]any{}},
			wantType: ErrorTypeInvalidEvent,
		},
		{
			name:     "nil payload",
			event:    Event{Topic: TopicConversationTurn, Source: "engine"},
			wantType: ErrorTypeInvalidEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantType == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if err.Type != tt.wantType {
				t.Errorf("error type = %s, want %s", err.Type, tt.wantType)
			}
		})
	}
}

func TestEventCorrelate(t *testing.T) {
	orig := Event{
		Topic:         TopicConversationTurn,
		Source:        "engine",
		Payload:       map[string]any{"session_id": "sess_x"},
		CorrelationID: NewCorrelationID(),
	}

	derived := orig.Correlate(TopicSessionEnded, map[string]any{"session_id": "sess_x"}, "session-store")

	if derived.CorrelationID != orig.CorrelationID {
		t.Errorf("correlation ID = %q, want %q", derived.CorrelationID, orig.CorrelationID)
	}
	if derived.Topic != TopicSessionEnded {
		t.Errorf("topic = %q, want %q", derived.Topic, TopicSessionEnded)
	}
	if derived.Source != "session-store" {
		t.Errorf("source = %q, want %q", derived.Source, "session-store")
	}
	if derived.ID != "" {
		t.Errorf("derived event must not carry an ID before publish, got %q", derived.ID)
	}
}

func TestFallbackIntent(t *testing.T) {
	fb := FallbackIntent()
	if fb.Name != FallbackIntentName {
		t.Errorf("name = %q, want %q", fb.Name, FallbackIntentName)
	}
	if fb.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", fb.Confidence)
	}
	if len(fb.Entities) != 0 {
		t.Errorf("entities = %v, want empty", fb.Entities)
	}
	if !fb.IsFallback() {
		t.Error("IsFallback() = false, want true")
	}
	if (Intent{Name: "greeting", Confidence: 1.0}).IsFallback() {
		t.Error("greeting intent reported as fallback")
	}
}
