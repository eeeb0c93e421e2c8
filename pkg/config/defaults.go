package config

const (
	defaultRelayListen  = ":8080"
	defaultUpstream     = "http://localhost:11434"
	defaultModel        = "google/gemini-2.5-flash"
	defaultRelayPath    = "/functions/v1/chat"
	defaultAllowOrigins = "*"
	defaultAPIListen    = ":8081"

	defaultIdentityProvider = "remote"
	defaultIdentityURL      = "http://localhost:54321"

	defaultClientRelayTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultEventStreamProvider = "none"
	defaultKafkaTopic          = "chatrelay.turns"
	defaultRedisChannel        = "chatrelay:turn_relayed"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:       defaultRelayListen,
			Upstream:     defaultUpstream,
			Model:        defaultModel,
			Path:         defaultRelayPath,
			AllowOrigins: defaultAllowOrigins,
		},
		Identity: IdentityConfig{
			Provider: defaultIdentityProvider,
			URL:      defaultIdentityURL,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			APITarget:   defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider:     defaultEventStreamProvider,
			KafkaTopic:   defaultKafkaTopic,
			RedisChannel: defaultRedisChannel,
		},
	}
}
