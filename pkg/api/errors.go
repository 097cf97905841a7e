package api

import "fmt"

// ErrorType represents the category of a core error.
type ErrorType string

const (
	// ErrorTypePolicyViolation marks input or output rejected by the
	// validator chain. Recoverable; the session continues.
	ErrorTypePolicyViolation ErrorType = "policy_violation"

	// ErrorTypeSystemError marks an unexpected internal failure: store
	// unavailable, generator panic, bus rejection.
	ErrorTypeSystemError ErrorType = "system_error"

	// ErrorTypeTimeout marks a bounded wait that expired. Treated as a
	// SystemError subtype by the orchestrator.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeCancellationRejected marks a cancellation request that
	// arrived after the session context mutation became observable.
	ErrorTypeCancellationRejected ErrorType = "cancellation_rejected"

	// ErrorTypeUnregisteredTopic marks a publish on a topic with no
	// registered publisher.
	ErrorTypeUnregisteredTopic ErrorType = "unregistered_topic"

	// ErrorTypeInvalidEvent marks an event that failed validation before
	// publish.
	ErrorTypeInvalidEvent ErrorType = "invalid_event"

	// ErrorTypeBackendUnavailable marks a generation backend that could
	// not be reached or returned an error.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
)

// Error is the structured error used across the core. Violations is set for
// policy errors so callers can surface the full violation set.
type Error struct {
	Type       ErrorType         `json:"type"`
	Message    string            `json:"message"`
	Violations map[string]string `json:"violations,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// IsSystem reports whether the error counts as a system failure
// (system_error or its timeout subtype).
func (e *Error) IsSystem() bool {
	return e.Type == ErrorTypeSystemError || e.Type == ErrorTypeTimeout
}

// NewPolicyViolationError creates an Error carrying the violation set from
// a failed policy evaluation.
func NewPolicyViolationError(direction string, violations map[string]string) *Error {
	return &Error{
		Type:       ErrorTypePolicyViolation,
		Message:    fmt.Sprintf("%s rejected by policy", direction),
		Violations: violations,
	}
}

// NewSystemError creates an Error for an unexpected internal failure.
func NewSystemError(message string) *Error {
	return &Error{Type: ErrorTypeSystemError, Message: message}
}

// NewTimeoutError creates an Error for an expired bounded wait.
func NewTimeoutError(message string) *Error {
	return &Error{Type: ErrorTypeTimeout, Message: message}
}

// NewCancellationRejectedError creates an Error for a cancellation that
// arrived too late to honor.
func NewCancellationRejectedError(message string) *Error {
	return &Error{Type: ErrorTypeCancellationRejected, Message: message}
}

// NewUnregisteredTopicError creates an Error for a publish on a topic
// without a registered publisher.
func NewUnregisteredTopicError(topic string) *Error {
	return &Error{
		Type:    ErrorTypeUnregisteredTopic,
		Message: fmt.Sprintf("no publisher registered for topic %q", topic),
	}
}

// NewInvalidEventError creates an Error for an event that failed
// pre-publish validation.
func NewInvalidEventError(message string) *Error {
	return &Error{Type: ErrorTypeInvalidEvent, Message: message}
}

// NewBackendUnavailableError creates an Error for an unreachable or
// failing generation backend.
func NewBackendUnavailableError(message string) *Error {
	return &Error{Type: ErrorTypeBackendUnavailable, Message: message}
}
