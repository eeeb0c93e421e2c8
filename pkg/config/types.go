package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent chatrelay configuration stored as
// config.toml in the .chatrelay/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Relay       RelayConfig       `toml:"relay"`
	Identity    IdentityConfig    `toml:"identity"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// RelayConfig holds relay-specific settings.
type RelayConfig struct {
	Listen       string `toml:"listen,omitempty"`
	Upstream     string `toml:"upstream,omitempty"`
	Model        string `toml:"model,omitempty"`
	SystemPrompt string `toml:"system_prompt,omitempty"`
	Path         string `toml:"path,omitempty"`
	AllowOrigins string `toml:"allow_origins,omitempty"`
	Workers      uint   `toml:"workers,omitempty"`
}

// IdentityConfig selects how the relay verifies callers.
type IdentityConfig struct {
	// Provider is one of "remote", "token" or "static".
	Provider   string `toml:"provider,omitempty"`
	URL        string `toml:"url,omitempty"`
	ServiceKey string `toml:"service_key,omitempty"`

	// StaticTokens is a comma separated token=subject list for "static".
	StaticTokens string `toml:"static_tokens,omitempty"`
}

// StorageConfig holds shared storage settings used by both relay and API.
// An empty config selects in-memory storage.
type StorageConfig struct {
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds history API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// relay and API servers (e.g. chatrelay chat). Targets are full URLs
// (scheme + host + port).
type ClientConfig struct {
	RelayTarget    string `toml:"relay_target,omitempty"`
	APITarget      string `toml:"api_target,omitempty"`
	PublishableKey string `toml:"publishable_key,omitempty"`
}

// EventStreamConfig selects the publisher for relayed turn events.
type EventStreamConfig struct {
	Provider     string `toml:"provider,omitempty"`
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
	RedisURL     string `toml:"redis_url,omitempty"`
	RedisChannel string `toml:"redis_channel,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"relay.listen":        stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.upstream":      stringKey(func(c *Config) *string { return &c.Relay.Upstream }),
	"relay.model":         stringKey(func(c *Config) *string { return &c.Relay.Model }),
	"relay.system_prompt": stringKey(func(c *Config) *string { return &c.Relay.SystemPrompt }),
	"relay.path":          stringKey(func(c *Config) *string { return &c.Relay.Path }),
	"relay.allow_origins": stringKey(func(c *Config) *string { return &c.Relay.AllowOrigins }),
	"relay.workers": {
		get: func(c *Config) string {
			if c.Relay.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Relay.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for relay.workers: %w", err)
			}
			c.Relay.Workers = uint(n)
			return nil
		},
	},

	"identity.provider":      stringKey(func(c *Config) *string { return &c.Identity.Provider }),
	"identity.url":           stringKey(func(c *Config) *string { return &c.Identity.URL }),
	"identity.service_key":   stringKey(func(c *Config) *string { return &c.Identity.ServiceKey }),
	"identity.static_tokens": stringKey(func(c *Config) *string { return &c.Identity.StaticTokens }),

	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"client.relay_target":    stringKey(func(c *Config) *string { return &c.Client.RelayTarget }),
	"client.api_target":      stringKey(func(c *Config) *string { return &c.Client.APITarget }),
	"client.publishable_key": stringKey(func(c *Config) *string { return &c.Client.PublishableKey }),

	"eventstream.provider":      stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.kafka_brokers": stringKey(func(c *Config) *string { return &c.EventStream.KafkaBrokers }),
	"eventstream.kafka_topic":   stringKey(func(c *Config) *string { return &c.EventStream.KafkaTopic }),
	"eventstream.redis_url":     stringKey(func(c *Config) *string { return &c.EventStream.RedisURL }),
	"eventstream.redis_channel": stringKey(func(c *Config) *string { return &c.EventStream.RedisChannel }),
}

// orderedKeys lists configKeys in the TOML section layout order.
var orderedKeys = []string{
	"relay.listen",
	"relay.upstream",
	"relay.model",
	"relay.system_prompt",
	"relay.path",
	"relay.allow_origins",
	"relay.workers",
	"identity.provider",
	"identity.url",
	"identity.service_key",
	"identity.static_tokens",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"api.listen",
	"client.relay_target",
	"client.api_target",
	"client.publishable_key",
	"eventstream.provider",
	"eventstream.kafka_brokers",
	"eventstream.kafka_topic",
	"eventstream.redis_url",
	"eventstream.redis_channel",
}
