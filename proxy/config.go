package proxy

import (
	"time"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

const (
	// DefaultPath is the route the chat client posts to.
	DefaultPath = "/functions/v1/chat"

	// AliasPath is always routed to the same handler as Path.
	AliasPath = "/v1/chat"

	// DefaultModel is the upstream model used when none is configured.
	DefaultModel = "google/gemini-2.5-flash"

	// DefaultAllowOrigins is the CORS origin list used when none is configured.
	DefaultAllowOrigins = "*"

	// upstreamCompletionsPath is appended to the upstream base URL.
	upstreamCompletionsPath = "/v1/chat/completions"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the base URL of the OpenAI-compatible gateway
	// (e.g., "https://ai.gateway.example").
	UpstreamURL string

	// UpstreamAPIKey is the server-held credential sent to the upstream.
	// It is never returned to callers.
	UpstreamAPIKey string

	// Model is the upstream model name. Defaults to DefaultModel.
	Model string

	// SystemPrompt, when set, is prepended to every relayed conversation.
	SystemPrompt string

	// Path is the chat route. Defaults to DefaultPath.
	Path string

	// AllowOrigins is the comma separated CORS origin list.
	AllowOrigins string

	// UpstreamTimeout bounds one upstream exchange including its stream.
	UpstreamTimeout time.Duration

	// Publisher is an optional event stream publisher for relayed turns.
	// If nil, turns are only stored.
	Publisher eventstream.Publisher

	// Workers is the number of storage workers. Zero uses the pool default.
	Workers uint
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.AllowOrigins == "" {
		c.AllowOrigins = DefaultAllowOrigins
	}
	if c.UpstreamTimeout <= 0 {
		// LLM requests can be slow, especially with thinking blocks
		c.UpstreamTimeout = 5 * time.Minute
	}
}
