// Package sse decodes the line-delimited event stream produced by
// OpenAI-compatible chat completion endpoints.
//
// The Decoder is fed raw network chunks of arbitrary size and yields complete
// lines, classified as frames. The TeeReader is used by the relay to forward
// the upstream bytes verbatim to a downstream writer while decoding the same
// frames for its own bookkeeping.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities, nor the full multi-field event model: only "data: " lines
// carry meaning for chat completion streams.
package sse

import "strings"

// FrameKind classifies a single decoded line.
type FrameKind int

const (
	// FrameUnknown is any line with an unrecognized prefix. Dropped silently.
	FrameUnknown FrameKind = iota

	// FrameBlank is an empty line.
	FrameBlank

	// FrameComment is a line starting with ':' (keep-alive).
	FrameComment

	// FrameData is a line starting with "data: ".
	FrameData
)

// DataPrefix marks a data line.
const DataPrefix = "data: "

// String implements fmt.Stringer.
func (k FrameKind) String() string {
	switch k {
	case FrameBlank:
		return "blank"
	case FrameComment:
		return "comment"
	case FrameData:
		return "data"
	default:
		return "unknown"
	}
}

// Frame is one complete line taken from the stream.
type Frame struct {
	Kind FrameKind

	// Line is the raw line text with the newline and one trailing '\r' removed.
	Line string

	// Payload is the text after DataPrefix, trimmed of surrounding whitespace.
	// Empty for every kind other than FrameData.
	Payload string

	// Data is the text after DataPrefix as received. A payload split inside a
	// JSON string keeps its trailing spaces here.
	Data string
}

// ParseLine classifies a single line. The line must not contain the
// terminating newline; one trailing '\r' is stripped.
func ParseLine(line string) Frame {
	line = strings.TrimSuffix(line, "\r")

	switch {
	case line == "":
		return Frame{Kind: FrameBlank}
	case strings.HasPrefix(line, ":"):
		return Frame{Kind: FrameComment, Line: line}
	case strings.HasPrefix(line, DataPrefix):
		data := line[len(DataPrefix):]
		return Frame{
			Kind:    FrameData,
			Line:    line,
			Payload: strings.TrimSpace(data),
			Data:    data,
		}
	default:
		return Frame{Kind: FrameUnknown, Line: line}
	}
}
