package eventstream

import "context"

// Publisher publishes turn events to an event stream backend.
type Publisher interface {
	PublishTurn(ctx context.Context, event *TurnRelayedEvent) error
	Close() error
}

// Supported provider names for the [eventstream] config section.
const (
	ProviderNone  = "none"
	ProviderKafka = "kafka"
	ProviderRedis = "redis"
)
