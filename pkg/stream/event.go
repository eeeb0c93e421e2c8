// Package stream turns decoded frames of a chat completion stream into
// assistant text.
//
// The Assembler owns the recovery rule for data payloads that arrive split by a
// newline in the middle of a JSON object: the truncated payload is held as a
// pending fragment and the following line is joined onto it until the
// combined text decodes, so no fragment is ever dropped or duplicated.
package stream

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// EventKind tags a decoded Event.
type EventKind int

const (
	// EventIgnored is a well-formed payload carrying no content, e.g.
	// {"choices":[]} or a role-only delta.
	EventIgnored EventKind = iota

	// EventDelta carries a non-empty content fragment.
	EventDelta

	// EventDone is the "[DONE]" sentinel. Nothing after it is processed.
	EventDone

	// EventNeedMoreBytes is a payload that is a truncated prefix of JSON.
	EventNeedMoreBytes

	// EventMalformed is a payload that can never become valid JSON.
	EventMalformed
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventDone:
		return "done"
	case EventNeedMoreBytes:
		return "need-more-bytes"
	case EventMalformed:
		return "malformed"
	default:
		return "ignored"
	}
}

// Event is one decoded payload.
type Event struct {
	Kind EventKind

	// Text is set for EventDelta only.
	Text string
}

// Decode classifies a single data payload.
func Decode(payload string) Event {
	payload = strings.TrimSpace(payload)
	if payload == llm.DoneSentinel {
		return Event{Kind: EventDone}
	}
	if payload == "" {
		return Event{Kind: EventIgnored}
	}

	var chunk llm.StreamChunk
	dec := json.NewDecoder(strings.NewReader(payload))
	err := dec.Decode(&chunk)

	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		return Event{Kind: EventNeedMoreBytes}
	case errors.As(err, &typeErr):
		// Valid JSON of an unexpected shape. The decoder keeps filling the
		// fields it can, so a content string elsewhere still counts.
	default:
		return Event{Kind: EventMalformed}
	}

	if strings.TrimSpace(payload[dec.InputOffset():]) != "" {
		return Event{Kind: EventMalformed}
	}

	text := chunk.DeltaContent()
	if text == "" {
		return Event{Kind: EventIgnored}
	}
	return Event{Kind: EventDelta, Text: text}
}
