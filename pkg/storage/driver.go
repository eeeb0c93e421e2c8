// Package storage persists the turns relayed through the chat relay.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// DefaultListLimit is used when ListOptions.Limit is not positive.
const DefaultListLimit = 50

// Turn is one completed pass through the relay: the messages the caller sent
// and the assistant text reconstructed from the forwarded stream.
type Turn struct {
	ID        string        `json:"id"`
	Subject   string        `json:"subject,omitempty"`
	Model     string        `json:"model"`
	Messages  []llm.Message `json:"messages"`
	Response  string        `json:"response"`
	Status    int           `json:"status"`
	Frames    int           `json:"frames"`
	Complete  bool          `json:"complete"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// ListOptions filters List.
type ListOptions struct {
	// Subject restricts results to one caller when set.
	Subject string

	// Limit caps the number of turns returned. Defaults to DefaultListLimit.
	Limit int
}

// Stats aggregates every stored turn.
type Stats struct {
	Turns      int        `json:"turns"`
	Complete   int        `json:"complete"`
	Failed     int        `json:"failed"`
	Subjects   int        `json:"subjects"`
	LastTurnAt *time.Time `json:"last_turn_at,omitempty"`
}

// Driver defines the interface for persisting and retrieving relayed turns in
// a storage backend.
type Driver interface {
	// Put stores a turn. Storing a turn with an existing ID replaces it.
	Put(ctx context.Context, turn *Turn) error

	// Get retrieves a turn by its ID. Returns NotFoundError when missing.
	Get(ctx context.Context, id string) (*Turn, error)

	// List returns turns newest first.
	List(ctx context.Context, opts ListOptions) ([]*Turn, error)

	// Stats aggregates the stored turns.
	Stats(ctx context.Context) (Stats, error)

	// Close closes the store and releases any resources.
	Close() error
}

// EffectiveLimit returns the limit List applies for o.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}
