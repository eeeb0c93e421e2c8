package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --upstream
// on both "chatrelay serve" and "chatrelay serve relay").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "relay.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagRelayListen     = "relay-listen"
	FlagAPIListen       = "api-listen"
	FlagUpstream        = "upstream"
	FlagModel           = "model"
	FlagSystemPrompt    = "system-prompt"
	FlagRelayPath       = "path"
	FlagWorkers         = "workers"
	FlagIdentity        = "identity"
	FlagIdentityURL     = "identity-url"
	FlagSQLite          = "sqlite"
	FlagPostgres        = "postgres"
	FlagEventStream     = "eventstream"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
	FlagRedisURL        = "redis-url"
	FlagRedisChannel    = "redis-channel"
	FlagRelayTarget     = "relay-target"
	FlagAPITarget       = "api-target"
	FlagPublishableKey  = "publishable-key"
	FlagAllowedOrigins  = "allow-origins"
	FlagIdentityService = "identity-service-key"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagRelayListenStandalone = "relay-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// Flags is the registry shared by every chatrelay command.
var Flags = FlagSet{
	FlagRelayListen:           {Name: "relay-listen", Shorthand: "p", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagAPIListen:             {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the history API to listen on"},
	FlagRelayListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagAPIListenStandalone:   {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the history API to listen on"},
	FlagUpstream:              {Name: "upstream", Shorthand: "u", ViperKey: "relay.upstream", Description: "Upstream OpenAI-compatible gateway URL"},
	FlagModel:                 {Name: "model", Shorthand: "m", ViperKey: "relay.model", Description: "Upstream model name"},
	FlagSystemPrompt:          {Name: "system-prompt", ViperKey: "relay.system_prompt", Description: "System prompt prepended to every conversation"},
	FlagRelayPath:             {Name: "path", ViperKey: "relay.path", Description: "Route the relay serves chat on"},
	FlagAllowedOrigins:        {Name: "allow-origins", ViperKey: "relay.allow_origins", Description: "Comma separated CORS origins"},
	FlagWorkers:               {Name: "workers", ViperKey: "relay.workers", Description: "Number of storage workers"},
	FlagIdentity:              {Name: "identity", ViperKey: "identity.provider", Description: "Caller verification: remote, token or static"},
	FlagIdentityURL:           {Name: "identity-url", ViperKey: "identity.url", Description: "Identity service base URL"},
	FlagIdentityService:       {Name: "identity-service-key", ViperKey: "identity.service_key", Description: "Identity service key"},
	FlagSQLite:                {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database (default: in-memory)"},
	FlagPostgres:              {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagEventStream:           {Name: "eventstream", ViperKey: "eventstream.provider", Description: "Turn event publisher: none, kafka or redis"},
	FlagKafkaBrokers:          {Name: "kafka-brokers", ViperKey: "eventstream.kafka_brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:            {Name: "kafka-topic", ViperKey: "eventstream.kafka_topic", Description: "Kafka topic for turn events"},
	FlagRedisURL:              {Name: "redis-url", ViperKey: "eventstream.redis_url", Description: "Redis URL for turn events"},
	FlagRedisChannel:          {Name: "redis-channel", ViperKey: "eventstream.redis_channel", Description: "Redis channel for turn events"},
	FlagRelayTarget:           {Name: "relay-target", Shorthand: "r", ViperKey: "client.relay_target", Description: "Relay base URL"},
	FlagAPITarget:             {Name: "api-target", ViperKey: "client.api_target", Description: "History API base URL"},
	FlagPublishableKey:        {Name: "publishable-key", ViperKey: "client.publishable_key", Description: "Publishable key sent as the apikey header"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
