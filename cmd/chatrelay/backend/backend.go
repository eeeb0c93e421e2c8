// Package backend builds the storage, identity and event stream components
// shared by the serve commands from resolved configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/nop"
	"github.com/papercomputeco/chatrelay/pkg/eventstream/redis"
	"github.com/papercomputeco/chatrelay/pkg/identity"
	"github.com/papercomputeco/chatrelay/pkg/identity/remote"
	"github.com/papercomputeco/chatrelay/pkg/identity/static"
	"github.com/papercomputeco/chatrelay/pkg/identity/token"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/inmemory"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
	"github.com/papercomputeco/chatrelay/pkg/storage/sqlite"
	"github.com/papercomputeco/chatrelay/proxy"
)

// Identity providers.
const (
	IdentityRemote = "remote"
	IdentityToken  = "token"
	IdentityStatic = "static"
)

// Event stream providers.
const (
	EventStreamNone  = "none"
	EventStreamKafka = "kafka"
	EventStreamRedis = "redis"
)

// SecretSource resolves named secrets. *credentials.Manager satisfies it.
type SecretSource interface {
	Resolve(name string) (string, error)
}

// NewStorageDriver opens PostgreSQL when a DSN is configured, then SQLite,
// and falls back to the in-memory driver.
func NewStorageDriver(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Driver, error) {
	switch {
	case cfg.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storer: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	case cfg.SQLitePath != "":
		driver, err := sqlite.NewDriver(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		logger.Info("using SQLite storage", zap.String("path", cfg.SQLitePath))
		return driver, nil
	}

	logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}

// NewVerifier builds the caller verifier for cfg.Provider.
func NewVerifier(cfg config.IdentityConfig, secrets SecretSource, logger *zap.Logger) (identity.Verifier, error) {
	switch cfg.Provider {
	case "", IdentityRemote:
		if cfg.URL == "" {
			return nil, errors.New("remote identity requires identity.url")
		}
		logger.Info("using remote identity", zap.String("url", cfg.URL))
		return remote.New(remote.Config{
			URL:        cfg.URL,
			ServiceKey: cfg.ServiceKey,
		}), nil

	case IdentityToken:
		secret, err := secrets.Resolve(credentials.SessionSecret)
		if err != nil {
			return nil, fmt.Errorf("resolving session secret: %w", err)
		}
		mgr, err := token.New(secret)
		if err != nil {
			return nil, fmt.Errorf("token identity: %w", err)
		}
		logger.Info("using token identity")
		return mgr, nil

	case IdentityStatic:
		tokens, err := config.ParseStaticTokens(cfg.StaticTokens)
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			return nil, errors.New("static identity requires identity.static_tokens")
		}
		logger.Warn("using static identity tokens; do not use in production",
			zap.Int("tokens", len(tokens)),
		)
		return static.New(tokens), nil
	}

	return nil, fmt.Errorf("unknown identity provider %q (want remote, token or static)", cfg.Provider)
}

// NewPublisher builds the turn event publisher for cfg.Provider.
func NewPublisher(cfg config.EventStreamConfig, logger *zap.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", EventStreamNone:
		return nop.NewPublisher(), nil

	case EventStreamKafka:
		brokers := config.SplitList(cfg.KafkaBrokers)
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   cfg.KafkaTopic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		logger.Info("publishing turn events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.KafkaTopic),
		)
		return publisher, nil

	case EventStreamRedis:
		publisher, err := redis.NewPublisher(redis.Config{
			URL:     cfg.RedisURL,
			Channel: cfg.RedisChannel,
		})
		if err != nil {
			return nil, fmt.Errorf("creating redis publisher: %w", err)
		}
		logger.Info("publishing turn events to redis",
			zap.String("channel", cfg.RedisChannel),
		)
		return publisher, nil
	}

	return nil, fmt.Errorf("unknown event stream provider %q (want none, kafka or redis)", cfg.Provider)
}

// RelayConfig maps resolved configuration onto the relay server config.
func RelayConfig(cfg config.RelayConfig, upstreamAPIKey string, publisher eventstream.Publisher) proxy.Config {
	return proxy.Config{
		ListenAddr:     cfg.Listen,
		UpstreamURL:    cfg.Upstream,
		UpstreamAPIKey: upstreamAPIKey,
		Model:          cfg.Model,
		SystemPrompt:   cfg.SystemPrompt,
		Path:           cfg.Path,
		AllowOrigins:   cfg.AllowOrigins,
		Publisher:      publisher,
		Workers:        cfg.Workers,
	}
}
