package api

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorInterface(t *testing.T) {
	var err error = NewSystemError("store unavailable")

	var coreErr *Error
	if !errors.As(err, &coreErr) {
		t.Fatal("errors.As failed for *api.Error")
	}
	if coreErr.Type != ErrorTypeSystemError {
		t.Errorf("type = %s, want %s", coreErr.Type, ErrorTypeSystemError)
	}
	if !strings.Contains(err.Error(), "store unavailable") {
		t.Errorf("Error() = %q, missing message", err.Error())
	}
}

func TestPolicyViolationErrorCarriesViolations(t *testing.T) {
	violations := map[string]string{"sql_injection": "SQL injection attempt detected"}
	err := NewPolicyViolationError("input", violations)

	if err.Type != ErrorTypePolicyViolation {
		t.Errorf("type = %s, want %s", err.Type, ErrorTypePolicyViolation)
	}
	if err.Violations["sql_injection"] == "" {
		t.Error("violations not carried on error")
	}
	if err.IsSystem() {
		t.Error("policy violation must not count as system error")
	}
}

func TestTimeoutIsSystem(t *testing.T) {
	if !NewTimeoutError("generation timed out").IsSystem() {
		t.Error("timeout must count as system error")
	}
	if !NewSystemError("boom").IsSystem() {
		t.Error("system error must count as system error")
	}
	if NewCancellationRejectedError("too late").IsSystem() {
		t.Error("cancellation rejection must not count as system error")
	}
}

func TestUnregisteredTopicError(t *testing.T) {
	err := NewUnregisteredTopicError("conversation.turn")
	if err.Type != ErrorTypeUnregisteredTopic {
		t.Errorf("type = %s, want %s", err.Type, ErrorTypeUnregisteredTopic)
	}
	if !strings.Contains(err.Message, "conversation.turn") {
		t.Errorf("message %q should name the topic", err.Message)
	}
}
