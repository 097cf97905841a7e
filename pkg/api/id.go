package api

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	eventIDPrefix   = "evt_"
	sessionIDPrefix = "sess_"
)

var (
	eventIDPattern   = regexp.MustCompile(`^evt_[a-zA-Z0-9]{24}$`)
	sessionIDPattern = regexp.MustCompile(`^sess_[a-zA-Z0-9]{24}$`)
)

// NewEventID generates a new event ID with the "evt_" prefix followed by
// 24 cryptographically random alphanumeric characters.
func NewEventID() string {
	return eventIDPrefix + randomAlphanumeric(idLength)
}

// NewSessionID generates a new session ID with the "sess_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewSessionID() string {
	return sessionIDPrefix + randomAlphanumeric(idLength)
}

// NewCorrelationID generates a correlation ID linking a turn's sub-events.
func NewCorrelationID() string {
	return uuid.NewString()
}

// ValidateEventID checks whether the given string is a valid event ID.
func ValidateEventID(id string) bool {
	return eventIDPattern.MatchString(id)
}

// ValidateSessionID checks whether the given string is a valid session ID.
func ValidateSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
