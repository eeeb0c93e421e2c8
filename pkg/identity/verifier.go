// Package identity verifies the bearer credential a chat caller presents to
// the relay.
package identity

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrMissingCredential is returned when no bearer token was presented.
	ErrMissingCredential = errors.New("missing bearer credential")

	// ErrInvalidCredential is returned when the token was rejected.
	ErrInvalidCredential = errors.New("invalid bearer credential")
)

// Identity is the verified caller.
type Identity struct {
	// Subject is a stable identifier for the caller.
	Subject string `json:"id"`

	Email string `json:"email,omitempty"`
}

// Verifier validates a bearer token. Implementations return an error wrapping
// ErrInvalidCredential for rejected tokens; any other error is an
// infrastructure failure.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingCredential
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}
