// Package nop provides a publisher that discards turn events. It backs
// eventstream.provider = "none".
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
)

type Publisher struct {
	discarded atomic.Int64
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishTurn rejects nil events and drops everything else.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnRelayedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	p.discarded.Add(1)
	return nil
}

// Discarded reports how many events were dropped.
func (p *Publisher) Discarded() int64 {
	return p.discarded.Load()
}

func (p *Publisher) Close() error {
	return nil
}
