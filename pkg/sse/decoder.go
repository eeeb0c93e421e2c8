package sse

import (
	"bytes"
	"strings"
)

// Decoder turns a sequence of arbitrary byte chunks into complete lines.
//
// Lines are split in the byte domain. A UTF-8 encoded code point never
// contains the byte 0x0A, so a code point split across two chunks simply stays
// in the pending buffer until the line holding it is complete. Invalid byte
// sequences are replaced with U+FFFD once a line is converted to text.
//
// A Decoder is not safe for concurrent use. The zero value is ready to use.
type Decoder struct {
	buf []byte
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write appends chunk to the pending buffer. It never fails; the signature
// satisfies io.Writer so a Decoder can sit behind an io.MultiWriter.
func (d *Decoder) Write(chunk []byte) (int, error) {
	d.buf = append(d.buf, chunk...)
	return len(chunk), nil
}

// Next pops the next complete line from the buffer. It reports false when no
// newline-terminated line is buffered; the remainder is kept for later chunks.
func (d *Decoder) Next() (Frame, bool) {
	i := bytes.IndexByte(d.buf, '\n')
	if i < 0 {
		return Frame{}, false
	}

	line := toText(d.buf[:i])
	d.consume(i + 1)
	return ParseLine(line), true
}

// Flush yields the newline-less remainder as a final line at end of stream and
// empties the buffer. It reports false when nothing is buffered.
func (d *Decoder) Flush() (Frame, bool) {
	if len(d.buf) == 0 {
		return Frame{}, false
	}

	line := toText(d.buf)
	d.buf = d.buf[:0]
	return ParseLine(line), true
}

// Frames drains every complete line and returns the data payloads in order.
// Comment, blank and unknown lines are dropped.
func (d *Decoder) Frames() []string {
	var payloads []string
	for {
		f, ok := d.Next()
		if !ok {
			return payloads
		}
		if f.Kind == FrameData {
			payloads = append(payloads, f.Payload)
		}
	}
}

// Buffered returns the number of bytes waiting for a terminating newline.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards any buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

func (d *Decoder) consume(n int) {
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
}

func toText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
