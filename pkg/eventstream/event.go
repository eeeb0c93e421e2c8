package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRelayed is emitted after a relayed turn is persisted.
	EventTypeTurnRelayed = "chatrelay.turn.relayed"
)

// TurnRelayedEvent is a transport-neutral event payload for a relayed turn.
type TurnRelayedEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	RequestMeta   TurnRequestMeta `json:"request_meta"`
	Turn          storage.Turn    `json:"turn"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	Path        string    `json:"path,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`
}

// NewTurnRelayedEvent builds the event for turn, relayed on path.
func NewTurnRelayedEvent(turn *storage.Turn, path string) *TurnRelayedEvent {
	completed := turn.CreatedAt.Add(turn.Duration)
	return &TurnRelayedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnRelayed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		RequestMeta: TurnRequestMeta{
			Path:        path,
			StartedAt:   turn.CreatedAt,
			CompletedAt: completed,
			DurationMs:  turn.Duration.Milliseconds(),
			HTTPStatus:  turn.Status,
		},
		Turn: *turn,
	}
}
