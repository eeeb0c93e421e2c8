package stream

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// MaxPendingBytes bounds a held split fragment.
const MaxPendingBytes = 1 << 20

var (
	// ErrTruncatedFrame is returned by Finish when the stream ended while a
	// split fragment was still waiting for its continuation.
	ErrTruncatedFrame = errors.New("stream ended inside a split frame")

	// ErrFragmentTooLarge is returned when a split fragment outgrows
	// MaxPendingBytes.
	ErrFragmentTooLarge = errors.New("split frame exceeds pending limit")
)

// Target receives assembled deltas. transcript.Transcript satisfies it.
type Target interface {
	// Open starts the assistant message if it is not already open.
	Open()

	// Append grows the open assistant message.
	Append(text string)
}

// Assembler decodes a chunked byte stream into assistant text and applies it
// to a Target. It is not safe for concurrent use; one stream is consumed by
// exactly one goroutine, chunk by chunk, in arrival order.
type Assembler struct {
	dec    *sse.Decoder
	target Target
	logger *zap.Logger

	pending string
	done    bool
	opened  bool

	text   strings.Builder
	deltas int
	frames int
}

// NewAssembler creates an Assembler writing to target. A nil target only
// accumulates Text, which is how the relay reconstructs what it forwarded.
func NewAssembler(target Target, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		dec:    sse.NewDecoder(),
		target: target,
		logger: logger,
	}
}

// Feed decodes every complete line of chunk in order and applies the
// resulting deltas. After Done it is a no-op.
func (a *Assembler) Feed(chunk []byte) ([]Event, error) {
	if a.done {
		return nil, nil
	}
	_, _ = a.dec.Write(chunk)

	var events []Event
	for !a.done {
		f, ok := a.dec.Next()
		if !ok {
			break
		}

		ev, ok, err := a.line(f)
		if err != nil {
			return events, err
		}
		if ok {
			events = append(events, ev)
		}
	}

	if a.done {
		a.dec.Reset()
	}
	return events, nil
}

// FeedFrame applies one already decoded line. The relay uses it with frames
// produced by sse.TeeReader. ok is false when the line produced no event.
func (a *Assembler) FeedFrame(f sse.Frame) (ev Event, ok bool, err error) {
	if a.done {
		return Event{}, false, nil
	}
	return a.line(f)
}

// Finish treats the newline-less remainder as a final line. It returns
// ErrTruncatedFrame when a split fragment is still pending afterwards.
func (a *Assembler) Finish() error {
	if a.done {
		return nil
	}

	if f, ok := a.dec.Flush(); ok {
		if _, _, err := a.line(f); err != nil {
			return err
		}
	}

	if a.done || a.pending == "" {
		return nil
	}

	a.logger.Debug("stream ended with pending fragment",
		zap.Int("pending_bytes", len(a.pending)),
	)
	return ErrTruncatedFrame
}

// Done reports whether the "[DONE]" sentinel was seen.
func (a *Assembler) Done() bool {
	return a.done
}

// Text returns every delta applied so far, concatenated.
func (a *Assembler) Text() string {
	return a.text.String()
}

// Deltas returns the number of delta events applied.
func (a *Assembler) Deltas() int {
	return a.deltas
}

// Frames returns the number of data frames seen.
func (a *Assembler) Frames() int {
	return a.frames
}

// Pending reports whether a split fragment is waiting for more bytes.
func (a *Assembler) Pending() bool {
	return a.pending != ""
}

// line processes one decoded line. ok is false when the line produced no event.
func (a *Assembler) line(f sse.Frame) (Event, bool, error) {
	if f.Kind == sse.FrameData {
		a.frames++
	}

	if a.pending == "" {
		if f.Kind != sse.FrameData {
			return Event{}, false, nil
		}
		return a.decodeFresh(f)
	}

	switch f.Kind {
	case sse.FrameBlank:
		return Event{}, false, nil

	case sse.FrameData:
		// A fresh frame that stands on its own means the held fragment will
		// never be completed.
		ev := Decode(f.Payload)
		if ev.Kind != EventMalformed {
			a.logger.Warn("dropping stale split fragment",
				zap.Int("pending_bytes", len(a.pending)),
				zap.String("next", ev.Kind.String()),
			)
			a.pending = ""
			return a.decodeFresh(f)
		}
	}

	joined := a.pending + f.Line
	ev := Decode(joined)
	switch ev.Kind {
	case EventNeedMoreBytes:
		if err := a.hold(joined); err != nil {
			return ev, true, err
		}
	case EventMalformed:
		if f.Kind != sse.FrameData {
			// A keep-alive between the halves; the fragment waits on.
			return Event{}, false, nil
		}
		a.logger.Debug("split fragment did not reassemble",
			zap.Int("pending_bytes", len(joined)),
		)
		a.pending = ""
	default:
		a.pending = ""
		a.apply(ev)
	}
	return ev, true, nil
}

func (a *Assembler) decodeFresh(f sse.Frame) (Event, bool, error) {
	ev := Decode(f.Payload)
	if ev.Kind == EventNeedMoreBytes {
		if err := a.hold(f.Data); err != nil {
			return ev, true, err
		}
		return ev, true, nil
	}
	a.apply(ev)
	return ev, true, nil
}

func (a *Assembler) hold(fragment string) error {
	if len(fragment) > MaxPendingBytes {
		a.pending = ""
		return fmt.Errorf("%w: %d bytes", ErrFragmentTooLarge, len(fragment))
	}
	a.pending = fragment
	return nil
}

func (a *Assembler) apply(ev Event) {
	switch ev.Kind {
	case EventDone:
		a.done = true
	case EventDelta:
		a.deltas++
		a.text.WriteString(ev.Text)
		if a.target == nil {
			return
		}
		if !a.opened {
			a.target.Open()
			a.opened = true
		}
		a.target.Append(ev.Text)
	}
}
