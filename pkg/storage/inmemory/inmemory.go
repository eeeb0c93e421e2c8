// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of turns
	mu sync.RWMutex

	// turns is the in memory map of turns keyed by turn ID
	turns map[string]*storage.Turn
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string]*storage.Turn),
	}
}

// Put stores a copy of turn.
func (s *Driver) Put(_ context.Context, turn *storage.Turn) error {
	if turn == nil {
		return errors.New("cannot store nil turn")
	}
	if turn.ID == "" {
		return errors.New("cannot store turn without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[turn.ID] = clone(turn)
	return nil
}

// Get retrieves a turn by its ID.
func (s *Driver) Get(_ context.Context, id string) (*storage.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turn, ok := s.turns[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	return clone(turn), nil
}

// List returns turns newest first.
func (s *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Turn, 0, len(s.turns))
	for _, turn := range s.turns {
		if opts.Subject != "" && turn.Subject != opts.Subject {
			continue
		}
		result = append(result, clone(turn))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit := opts.EffectiveLimit(); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Stats aggregates the stored turns.
func (s *Driver) Stats(_ context.Context) (storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats storage.Stats
	subjects := make(map[string]struct{})
	for _, turn := range s.turns {
		stats.Turns++
		if turn.Complete {
			stats.Complete++
		}
		if turn.Status != 200 {
			stats.Failed++
		}
		if turn.Subject != "" {
			subjects[turn.Subject] = struct{}{}
		}
		if stats.LastTurnAt == nil || turn.CreatedAt.After(*stats.LastTurnAt) {
			at := turn.CreatedAt
			stats.LastTurnAt = &at
		}
	}
	stats.Subjects = len(subjects)
	return stats, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func clone(turn *storage.Turn) *storage.Turn {
	c := *turn
	c.Messages = llm.CloneMessages(turn.Messages)
	return &c
}
