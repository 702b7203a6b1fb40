package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const (
	SessionIDLength = 7
	sessionAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	sessionIDRegex = regexp.MustCompile(`^[a-z0-9]{4,32}$`)
)

// NewSessionID returns a short random base36 token used as a session id.
func NewSessionID() (string, error) {
	max := big.NewInt(int64(len(sessionAlphabet)))
	id := make([]byte, SessionIDLength)
	for i := range id {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate session id: %w", err)
		}
		id[i] = sessionAlphabet[n.Int64()]
	}
	return string(id), nil
}

func IsValidSessionID(id string) bool {
	return sessionIDRegex.MatchString(id)
}

func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}
