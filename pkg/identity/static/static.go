// Package static accepts a fixed set of bearer tokens. Intended for
// development and tests only.
package static

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/papercomputeco/chatrelay/pkg/identity"
)

// Verifier maps accepted tokens to subjects.
type Verifier struct {
	tokens map[string]string
}

// New creates a Verifier accepting each token in tokens, keyed by token with
// the subject as value.
func New(tokens map[string]string) *Verifier {
	copied := make(map[string]string, len(tokens))
	for tok, subject := range tokens {
		copied[tok] = subject
	}
	return &Verifier{tokens: copied}
}

// Verify implements identity.Verifier.
func (v *Verifier) Verify(_ context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, identity.ErrMissingCredential
	}

	for accepted, subject := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(accepted), []byte(token)) == 1 {
			return &identity.Identity{Subject: subject}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown token", identity.ErrInvalidCredential)
}
