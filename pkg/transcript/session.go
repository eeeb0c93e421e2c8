package transcript

import "github.com/papercomputeco/chatrelay/pkg/llm"

// State is the controller state.
type State int

const (
	Idle State = iota
	Sending
	StreamingAssistant
	Error
)

func (s State) String() string {
	switch s {
	case Sending:
		return "sending"
	case StreamingAssistant:
		return "streaming"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Session is the transient per-chat state. It is never persisted.
type Session struct {
	Messages  []llm.Message
	Pending   bool
	LastError *ErrorKind
}

// Snapshot is a consistent copy of the controller handed to observers.
type Snapshot struct {
	Session

	State State

	// Streaming is true while the tail assistant message is open.
	Streaming bool

	// Notice is the last user facing status line, if any.
	Notice string
}
