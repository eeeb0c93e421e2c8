// Package remote verifies bearer tokens against a hosted identity service.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/identity"
)

// UserPath is the identity service route returning the caller for a token.
const UserPath = "/auth/v1/user"

// Config is the remote verifier configuration.
type Config struct {
	// URL is the identity service base URL.
	URL string

	// ServiceKey is sent as the "apikey" header.
	ServiceKey string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Verifier asks the identity service who a token belongs to.
type Verifier struct {
	url        string
	serviceKey string
	httpClient *http.Client
}

// New creates a remote Verifier.
func New(config Config) *Verifier {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Verifier{
		url:        strings.TrimRight(config.URL, "/") + UserPath,
		serviceKey: config.ServiceKey,
		httpClient: httpClient,
	}
}

// Verify implements identity.Verifier.
func (v *Verifier) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, identity.ErrMissingCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.serviceKey != "" {
		req.Header.Set("apikey", v.serviceKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling identity service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: identity service returned %d", identity.ErrInvalidCredential, resp.StatusCode)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var id identity.Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decoding identity response: %w", err)
	}
	if id.Subject == "" {
		return nil, fmt.Errorf("%w: identity response has no id", identity.ErrInvalidCredential)
	}
	return &id, nil
}
