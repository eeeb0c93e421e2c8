package testutils

import (
	"net/http"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// NewTestTurn creates a completed turn for testing
func NewTestTurn(id, subject, prompt, response string, createdAt time.Time) *storage.Turn {
	return &storage.Turn{
		ID:      id,
		Subject: subject,
		Model:   "test-model",
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, prompt),
		},
		Response:  response,
		Status:    http.StatusOK,
		Frames:    3,
		Complete:  true,
		CreatedAt: createdAt,
		Duration:  150 * time.Millisecond,
	}
}

// NewFailedTestTurn creates a turn that the relay answered with status.
func NewFailedTestTurn(id, subject string, status int, createdAt time.Time) *storage.Turn {
	return &storage.Turn{
		ID:      id,
		Subject: subject,
		Model:   "test-model",
		Messages: []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "hello"),
		},
		Status:    status,
		CreatedAt: createdAt,
	}
}
