// Package credentials stores the secrets chatrelay needs outside of
// config.toml: the relay's upstream API key, the chat client's access token
// and the session signing secret used by token identity.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/chatrelay/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// Known credential names.
const (
	// UpstreamAPIKey authenticates the relay against the upstream gateway.
	UpstreamAPIKey = "upstream_api_key"

	// AccessToken is the bearer token the chat client presents to the relay.
	AccessToken = "access_token"

	// SessionSecret signs tokens issued for token identity.
	SessionSecret = "session_secret"
)

// envVars maps credential names to the environment variable consulted when
// nothing is stored.
var envVars = map[string]string{
	UpstreamAPIKey: "CHATRELAY_UPSTREAM_API_KEY",
	AccessToken:    "CHATRELAY_ACCESS_TOKEN",
	SessionSecret:  "CHATRELAY_SESSION_SECRET",
}

// Manager manages reading and writing credentials.toml in the .chatrelay/ directory.
type Manager struct {
	ddm        *dotdir.Manager
	targetPath string
}

// NewManager creates a new credentials Manager. If override is non-empty it is
// used as the .chatrelay/ directory; otherwise the standard dotdir resolution
// applies.
func NewManager(override string) (*Manager, error) {
	mgr := &Manager{}
	mgr.ddm = dotdir.NewManager()

	target, err := mgr.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	mgr.targetPath = filepath.Join(target, credentialsFile)

	return mgr, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Secrets: make(map[string]Credential),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Secrets == nil {
		creds.Secrets = make(map[string]Credential)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// Set stores a secret under name.
func (m *Manager) Set(name, value string) error {
	if !IsKnown(name) {
		return fmt.Errorf("unknown credential %q (available: %v)", name, Names())
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Secrets[name] = Credential{Value: value}

	return m.Save(creds)
}

// Get returns the stored secret for name.
// Returns an empty string if nothing is stored.
func (m *Manager) Get(name string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Secrets[name].Value, nil
}

// Resolve returns the stored secret for name, falling back to its
// environment variable.
func (m *Manager) Resolve(name string) (string, error) {
	value, err := m.Get(name)
	if err != nil {
		return "", err
	}
	if value != "" {
		return value, nil
	}

	if env := EnvVar(name); env != "" {
		return os.Getenv(env), nil
	}
	return "", nil
}

// Remove deletes the stored secret for name.
func (m *Manager) Remove(name string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Secrets, name)

	return m.Save(creds)
}

// List returns the names of stored secrets.
func (m *Manager) List() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds.Secrets))
	for name := range creds.Secrets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// EnvVar returns the environment variable name for a credential.
// Returns an empty string for unknown names.
func EnvVar(name string) string {
	return envVars[name]
}

// Names returns every known credential name.
func Names() []string {
	return []string{UpstreamAPIKey, AccessToken, SessionSecret}
}

// IsKnown returns true if name is a known credential.
func IsKnown(name string) bool {
	return slices.Contains(Names(), name)
}
