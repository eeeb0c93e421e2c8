// Package relaycmder provides the chat relay server command.
package relaycmder

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/backend"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/proxy"
)

type relayCommander struct {
	cfg       *config.Config
	configDir string
	debug     bool

	logger *zap.Logger
}

const relayLongDesc string = `Run the chat relay server.

The relay authenticates each caller, forwards the conversation to the
configured OpenAI-compatible upstream with the server-held API key and streams
the upstream event stream back unchanged. Every relayed turn is stored and,
when an event stream is configured, published.

The upstream API key is read from credentials.toml ("chatrelay auth
upstream_api_key") or CHATRELAY_UPSTREAM_API_KEY.`

const relayShortDesc string = "Run the chat relay server"

// RelayFlags lists the flag registry keys the relay binds to viper.
var RelayFlags = []string{
	config.FlagUpstream,
	config.FlagModel,
	config.FlagSystemPrompt,
	config.FlagRelayPath,
	config.FlagAllowedOrigins,
	config.FlagWorkers,
	config.FlagIdentity,
	config.FlagIdentityURL,
	config.FlagIdentityService,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagRedisURL,
	config.FlagRedisChannel,
}

func NewRelayCmd() *cobra.Command {
	cmder := &relayCommander{}

	cmd := &cobra.Command{
		Use:   "relay",
		Short: relayShortDesc,
		Long:  relayLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, append(slices.Clone(RelayFlags), config.FlagRelayListenStandalone))

			cmder.cfg, err = config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListenStandalone, new(string))
	AddRelayFlags(cmd)

	return cmd
}

// AddRelayFlags registers the relay flags shared by "serve" and "serve relay".
// Flag values are read back through viper once bound.
func AddRelayFlags(cmd *cobra.Command) {
	for _, key := range RelayFlags {
		if key == config.FlagWorkers {
			config.AddUintFlag(cmd, config.Flags, key, new(uint))
			continue
		}
		config.AddStringFlag(cmd, config.Flags, key, new(string))
	}
}

func (c *relayCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	driver, err := backend.NewStorageDriver(ctx, c.cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	p, closeRelay, err := NewRelay(c.cfg, c.configDir, driver, c.logger)
	if err != nil {
		return err
	}
	defer closeRelay()

	return p.Run()
}

// NewRelay builds the relay server with its verifier and publisher. The
// returned func closes the relay and then the publisher.
func NewRelay(cfg *config.Config, configDir string, driver storage.Driver, log *zap.Logger) (*proxy.Proxy, func(), error) {
	creds, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading credentials: %w", err)
	}

	upstreamKey, err := creds.Resolve(credentials.UpstreamAPIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("loading upstream API key: %w", err)
	}
	if upstreamKey == "" {
		log.Warn("no upstream API key configured; upstream requests will be unauthenticated",
			zap.String("env", credentials.EnvVar(credentials.UpstreamAPIKey)),
		)
	}

	verifier, err := backend.NewVerifier(cfg.Identity, creds, log)
	if err != nil {
		return nil, nil, err
	}

	publisher, err := backend.NewPublisher(cfg.EventStream, log)
	if err != nil {
		return nil, nil, err
	}

	p, err := proxy.New(backend.RelayConfig(cfg.Relay, upstreamKey, publisher), driver, verifier, log)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, fmt.Errorf("creating relay: %w", err)
	}

	return p, func() {
		if err := p.Close(); err != nil {
			log.Warn("closing relay", zap.Error(err))
		}
		if err := publisher.Close(); err != nil {
			log.Warn("closing publisher", zap.Error(err))
		}
	}, nil
}
