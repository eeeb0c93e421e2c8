package credentials

// Credentials represents the stored secrets in credentials.toml.
type Credentials struct {
	Version int                   `toml:"version"`
	Secrets map[string]Credential `toml:"secrets"`
}

// Credential holds a single stored secret.
type Credential struct {
	Value string `toml:"value"`
}
