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

	sessionIDPrefix = "sess_"
	messageIDPrefix = "msg_"
)

var (
	sessionIDPattern = regexp.MustCompile(`^sess_[a-zA-Z0-9]{24}$`)
	messageIDPattern = regexp.MustCompile(`^msg_[a-zA-Z0-9]{24}$`)
)

// NewRequestID generates a random (version 4) UUID identifying one query.
func NewRequestID() string {
	return uuid.NewString()
}

// NewSessionID generates a new session ID with the "sess_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewSessionID() string {
	return sessionIDPrefix + randomAlphanumeric(idLength)
}

// NewMessageID generates a new message ID with the "msg_" prefix
// followed by 24 cryptographically random alphanumeric characters.
func NewMessageID() string {
	return messageIDPrefix + randomAlphanumeric(idLength)
}

// ValidateSessionID checks whether the given string is a valid session ID.
func ValidateSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// ValidateMessageID checks whether the given string is a valid message ID.
func ValidateMessageID(id string) bool {
	return messageIDPattern.MatchString(id)
}

// ValidateRequestID checks whether the given string parses as a UUID.
func ValidateRequestID(id string) bool {
	return uuid.Validate(id) == nil
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
