// Package sqlstore implements storage.Driver over database/sql. The sqlite
// and postgres drivers share it and differ only in their Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// Schema is executed once on open. It must be idempotent.
	Schema string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// Upsert is the INSERT statement replacing an existing row with the same
	// id, using Placeholder for its ten parameters.
	Upsert string
}

// Store implements storage.Driver backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New applies the dialect schema to db and returns a Store.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
		return nil, fmt.Errorf("apply %s schema: %w", dialect.Name, err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Put stores a turn, replacing any turn with the same ID.
func (s *Store) Put(ctx context.Context, turn *storage.Turn) error {
	if turn == nil {
		return errors.New("cannot store nil turn")
	}
	if turn.ID == "" {
		return errors.New("cannot store turn without id")
	}

	messages, err := json.Marshal(turn.Messages)
	if err != nil {
		return fmt.Errorf("marshaling messages: %w", err)
	}

	created := turn.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err = s.db.ExecContext(ctx, s.dialect.Upsert,
		turn.ID,
		turn.Subject,
		turn.Model,
		string(messages),
		turn.Response,
		turn.Status,
		turn.Frames,
		turn.Complete,
		created.UTC(),
		turn.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("storing turn %s: %w", turn.ID, err)
	}
	return nil
}

// Get retrieves a turn by its ID.
func (s *Store) Get(ctx context.Context, id string) (*storage.Turn, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM turns WHERE id = `+s.dialect.Placeholder(1), id)

	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("loading turn %s: %w", id, err)
	}
	return turn, nil
}

// List returns turns newest first.
func (s *Store) List(ctx context.Context, opts storage.ListOptions) ([]*storage.Turn, error) {
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(selectColumns + ` FROM turns`)
	if opts.Subject != "" {
		args = append(args, opts.Subject)
		query.WriteString(` WHERE subject = ` + s.dialect.Placeholder(len(args)))
	}
	args = append(args, opts.EffectiveLimit())
	query.WriteString(` ORDER BY created_at DESC, id DESC LIMIT ` + s.dialect.Placeholder(len(args)))

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	defer rows.Close()

	var turns []*storage.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Stats aggregates the stored turns.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN complete THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status <> 200 THEN 1 ELSE 0 END), 0),
	COUNT(DISTINCT NULLIF(subject, ''))
FROM turns`)

	var stats storage.Stats
	if err := row.Scan(&stats.Turns, &stats.Complete, &stats.Failed, &stats.Subjects); err != nil {
		return storage.Stats{}, fmt.Errorf("aggregating turns: %w", err)
	}

	if stats.Turns > 0 {
		var last time.Time
		err := s.db.QueryRowContext(ctx, `SELECT created_at FROM turns ORDER BY created_at DESC LIMIT 1`).Scan(&last)
		if err != nil {
			return storage.Stats{}, fmt.Errorf("loading last turn time: %w", err)
		}
		stats.LastTurnAt = &last
	}
	return stats, nil
}

// Close releases underlying database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, subject, model, messages, response, status, frames, complete, created_at, duration_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(row scanner) (*storage.Turn, error) {
	var (
		turn       storage.Turn
		messages   string
		durationMs int64
	)
	err := row.Scan(
		&turn.ID,
		&turn.Subject,
		&turn.Model,
		&messages,
		&turn.Response,
		&turn.Status,
		&turn.Frames,
		&turn.Complete,
		&turn.CreatedAt,
		&durationMs,
	)
	if err != nil {
		return nil, err
	}

	if messages != "" {
		var msgs []llm.Message
		if err := json.Unmarshal([]byte(messages), &msgs); err != nil {
			return nil, fmt.Errorf("decoding messages: %w", err)
		}
		turn.Messages = msgs
	}
	turn.Duration = time.Duration(durationMs) * time.Millisecond
	return &turn, nil
}
