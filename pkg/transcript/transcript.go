// Package transcript owns the client side conversation state and the
// controller driving one submit/receive cycle at a time.
package transcript

import "github.com/papercomputeco/chatrelay/pkg/llm"

// Transcript is an ordered, append-only list of messages. At most one
// assistant message is open (streaming) at a time, and it is always the tail.
//
// A Transcript is not safe for concurrent use; the Controller serializes
// access to the one it owns.
type Transcript struct {
	msgs []llm.Message
	open bool
}

// New creates a Transcript seeded with msgs.
func New(msgs ...llm.Message) *Transcript {
	return &Transcript{msgs: llm.CloneMessages(msgs)}
}

// Messages returns a copy of every message, including an open one.
func (t *Transcript) Messages() []llm.Message {
	return llm.CloneMessages(t.msgs)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// IsOpen reports whether the tail is an open assistant message.
func (t *Transcript) IsOpen() bool {
	return t.open
}

// AppendUser seals any open message and appends a user message.
func (t *Transcript) AppendUser(text string) {
	t.Close()
	t.msgs = append(t.msgs, llm.NewTextMessage(llm.RoleUser, text))
}

// Open appends an empty assistant message unless one is already open.
func (t *Transcript) Open() {
	if t.open {
		return
	}
	t.msgs = append(t.msgs, llm.NewTextMessage(llm.RoleAssistant, ""))
	t.open = true
}

// Append grows the open assistant message, opening one if needed.
func (t *Transcript) Append(text string) {
	t.Open()
	t.msgs[len(t.msgs)-1].Content += text
}

// Tail returns the open assistant message content, or "" when none is open.
func (t *Transcript) Tail() string {
	if !t.open {
		return ""
	}
	return t.msgs[len(t.msgs)-1].Content
}

// Close seals the open assistant message. Its content is immutable afterwards.
func (t *Transcript) Close() {
	t.open = false
}

// Rollback removes the open assistant message entirely. It reports whether a
// message was removed.
func (t *Transcript) Rollback() bool {
	if !t.open {
		return false
	}
	t.msgs = t.msgs[:len(t.msgs)-1]
	t.open = false
	return true
}

// Reset removes every message.
func (t *Transcript) Reset() {
	t.msgs = nil
	t.open = false
}
