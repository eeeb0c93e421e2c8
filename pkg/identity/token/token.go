// Package token issues and verifies HMAC signed session tokens. It backs
// local and development deployments that have no hosted identity service.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/identity"
)

// DefaultTTL is used when Issue is called with a zero ttl.
const DefaultTTL = 24 * time.Hour

// ErrEmptySecret is returned by New for an empty signing secret.
var ErrEmptySecret = errors.New("token secret is empty")

// Manager signs and validates tokens of the form
// base64(subject|expiry).base64(hmac).
type Manager struct {
	secret []byte
	now    func() time.Time
}

// New creates a Manager signing with secret.
func New(secret string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// Issue returns a signed token for subject that expires after ttl.
func (m *Manager) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("subject required")
	}
	if strings.Contains(subject, "|") {
		return "", errors.New("subject must not contain '|'")
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}

	expires := m.now().Add(ttl).Unix()
	payload := fmt.Sprintf("%s|%d", subject, expires)
	sig := m.sign([]byte(payload))
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify implements identity.Verifier.
func (m *Manager) Verify(_ context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, identity.ErrMissingCredential
	}

	subject, err := m.validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidCredential, err)
	}
	return &identity.Identity{Subject: subject}, nil
}

func (m *Manager) validate(token string) (string, error) {
	encPayload, encSig, ok := strings.Cut(token, ".")
	if !ok {
		return "", errors.New("invalid token format")
	}
	payloadBytes, err := base64.RawURLEncoding.DecodeString(encPayload)
	if err != nil {
		return "", errors.New("invalid token payload")
	}
	sigBytes, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return "", errors.New("invalid token signature")
	}
	if !hmac.Equal(sigBytes, m.sign(payloadBytes)) {
		return "", errors.New("signature mismatch")
	}

	payload := string(payloadBytes)
	sep := strings.LastIndex(payload, "|")
	if sep == -1 {
		return "", errors.New("invalid payload")
	}
	expiry, err := strconv.ParseInt(payload[sep+1:], 10, 64)
	if err != nil {
		return "", errors.New("invalid expiry")
	}
	if m.now().Unix() > expiry {
		return "", errors.New("token expired")
	}
	return payload[:sep], nil
}

func (m *Manager) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, m.secret)
	h.Write(payload)
	return h.Sum(nil)
}
