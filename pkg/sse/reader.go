package sse

import (
	"errors"
	"io"
)

const defaultChunkSize = 32 * 1024

// TeeReader reads chunks from a source io.Reader while simultaneously
// writing every chunk verbatim to a destination io.Writer.
// This effectively enables "tee" shaped reading where TeeReader.Next
// returns the decoded Frame for consumption while writing to a separate
// destination.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Frame       │
// └──────────────────┘
//
// Chunks are forwarded as read, before they are decoded, so the downstream
// client sees the upstream byte stream unchanged and without added latency,
// including the "[DONE]" sentinel and any trailing bytes.
type TeeReader struct {
	src  io.Reader
	dest io.Writer
	dec  *Decoder
	buf  []byte

	eof     bool
	flushed bool
}

// NewTeeReader returns a TeeReader that decodes frames from src and writes all
// raw bytes through to dest.
// The dest writer typically backs an io.Pipe connected to the downstream HTTP
// response.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	return &TeeReader{
		src:  src,
		dest: dest,
		dec:  NewDecoder(),
		buf:  make([]byte, defaultChunkSize),
	}
}

// Next returns the next decoded frame. It blocks reading the source until a
// complete line is available. At end of source the newline-less remainder, if
// any, is returned as a final frame; after that Next returns nil, nil.
func (r *TeeReader) Next() (*Frame, error) {
	for {
		if f, ok := r.dec.Next(); ok {
			return &f, nil
		}

		if r.eof {
			if r.flushed {
				return nil, nil
			}
			r.flushed = true
			if f, ok := r.dec.Flush(); ok {
				return &f, nil
			}
			return nil, nil
		}

		if err := r.fill(); err != nil {
			return nil, err
		}
	}
}

// fill reads one chunk from the source, tees it and buffers it for decoding.
func (r *TeeReader) fill() error {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
			return werr
		}
		_, _ = r.dec.Write(r.buf[:n])
	}

	if errors.Is(err, io.EOF) {
		r.eof = true
		return nil
	}
	return err
}
