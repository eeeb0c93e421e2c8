// Package api provides an HTTP API server for inspecting the turns recorded by
// the chat relay.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// MaxListLimit caps the limit query parameter on /turns. Defaults to 500.
	MaxListLimit int
}

const defaultMaxListLimit = 500
