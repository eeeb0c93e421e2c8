package transcript

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/stream"
)

const (
	defaultChunkSize   = 4 * 1024
	defaultChunkBuffer = 16
)

// Streamer opens a streamed reply for a transcript. relayclient.Client
// satisfies it.
type Streamer interface {
	Stream(ctx context.Context, credential string, messages []llm.Message) (io.ReadCloser, error)
}

// Config is the Controller configuration.
type Config struct {
	// Credential is the caller's bearer token, forwarded on every submit.
	Credential string

	// OnUpdate is called after every mutation with a fresh Snapshot. It runs
	// on the submitting goroutine and must not call back into Submit.
	OnUpdate func(Snapshot)

	// ChunkBuffer is the capacity of the reader to consumer channel.
	ChunkBuffer int

	// History seeds the transcript.
	History []llm.Message
}

// Controller runs the submit/receive lifecycle of one chat session. It allows
// at most one request in flight; extra submits are rejected, never queued.
type Controller struct {
	client Streamer
	config Config
	logger *zap.Logger

	mu         sync.Mutex
	transcript *Transcript
	state      State
	pending    bool
	lastErr    *ErrorKind
	notice     string
	cancel     context.CancelFunc
	canceled   bool
}

// NewController creates a Controller sending through client.
func NewController(client Streamer, config Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ChunkBuffer <= 0 {
		config.ChunkBuffer = defaultChunkBuffer
	}

	return &Controller{
		client:     client,
		config:     config,
		logger:     logger,
		transcript: New(config.History...),
	}
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Submit appends input as a user message and streams the assistant reply into
// the transcript, returning once the reply completes, fails or is canceled.
//
// It returns ErrBusy or ErrEmptyInput without touching the transcript when a
// request is already pending or the trimmed input is empty. A failed reply
// returns a *Failure; a canceled one returns nil.
func (c *Controller) Submit(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	if text == "" {
		c.mu.Unlock()
		return ErrEmptyInput
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.transcript.AppendUser(text)
	c.pending = true
	c.state = Sending
	c.lastErr = nil
	c.notice = ""
	c.cancel = cancel
	c.canceled = false
	msgs := c.transcript.Messages()
	c.mu.Unlock()
	c.notify()

	c.logger.Debug("submitting",
		zap.Int("message_count", len(msgs)),
	)

	body, err := c.client.Stream(ctx, c.config.Credential, msgs)
	if err != nil {
		if ctx.Err() != nil {
			c.finishCanceled()
			return nil
		}
		return c.fail(err)
	}
	defer body.Close()

	c.mu.Lock()
	c.state = StreamingAssistant
	c.transcript.Open()
	c.mu.Unlock()
	c.notify()

	return c.consume(ctx, body)
}

// Cancel aborts the in-flight reply. Content streamed so far is kept. It
// reports whether there was anything to cancel.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pending || c.cancel == nil {
		return false
	}
	c.canceled = true
	c.cancel()
	return true
}

// Reset clears the transcript. It returns ErrBusy while a reply is pending.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return ErrBusy
	}
	c.transcript.Reset()
	c.state = Idle
	c.lastErr = nil
	c.notice = ""
	c.mu.Unlock()
	c.notify()
	return nil
}

type chunk struct {
	data []byte
	err  error
}

// consume is the single consumer of one reply. A reader goroutine pushes
// chunks in arrival order; each is fed to the assembler fully before the next
// is taken.
func (c *Controller) consume(ctx context.Context, body io.Reader) error {
	chunks := make(chan chunk, c.config.ChunkBuffer)
	go readChunks(ctx, body, chunks)

	asm := stream.NewAssembler(&lockedTarget{c: c}, c.logger)

	for {
		var (
			next chunk
			ok   bool
		)
		select {
		case <-ctx.Done():
			c.finishCanceled()
			return nil
		case next, ok = <-chunks:
		}

		if !ok || errors.Is(next.err, io.EOF) {
			if err := asm.Finish(); err != nil {
				return c.fail(err)
			}
			c.finishDone(asm)
			return nil
		}

		if next.err != nil {
			if ctx.Err() != nil {
				c.finishCanceled()
				return nil
			}
			return c.fail(next.err)
		}

		if _, err := asm.Feed(next.data); err != nil {
			return c.fail(err)
		}
		if asm.Done() {
			c.finishDone(asm)
			return nil
		}
	}
}

func readChunks(ctx context.Context, r io.Reader, out chan<- chunk) {
	defer close(out)

	for {
		buf := make([]byte, defaultChunkSize)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case out <- chunk{data: buf[:n]}:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case out <- chunk{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

func (c *Controller) finishDone(asm *stream.Assembler) {
	c.mu.Lock()
	c.transcript.Close()
	c.state = Idle
	c.pending = false
	c.cancel = nil
	c.mu.Unlock()

	c.logger.Debug("reply complete",
		zap.Int("deltas", asm.Deltas()),
		zap.Int("frames", asm.Frames()),
		zap.Bool("sentinel", asm.Done()),
	)
	c.notify()
}

// finishCanceled ends a reply whose context is done. Only a Cancel call sets
// NoticeCanceled; a parent context torn down on shutdown leaves no notice.
func (c *Controller) finishCanceled() {
	c.mu.Lock()
	if c.transcript.IsOpen() && c.transcript.Tail() == "" {
		c.transcript.Rollback()
	}
	c.transcript.Close()
	c.state = Idle
	c.pending = false
	c.cancel = nil
	byCaller := c.canceled
	c.canceled = false
	if byCaller {
		c.notice = NoticeCanceled
	}
	c.mu.Unlock()

	c.logger.Debug("reply canceled",
		zap.Bool("by_caller", byCaller),
	)
	c.notify()
}

func (c *Controller) fail(err error) error {
	kind := Classify(err)

	c.mu.Lock()
	rolledBack := false
	if kind.RollsBack() {
		rolledBack = c.transcript.Rollback()
	} else {
		c.transcript.Close()
	}
	c.state = Error
	c.pending = false
	c.cancel = nil
	c.lastErr = &kind
	c.notice = kind.Notice()
	c.mu.Unlock()

	c.logger.Debug("reply failed",
		zap.String("kind", kind.String()),
		zap.Bool("rolled_back", rolledBack),
		zap.Error(err),
	)
	c.notify()
	return &Failure{Kind: kind, Err: err}
}

func (c *Controller) notify() {
	if c.config.OnUpdate == nil {
		return
	}
	c.config.OnUpdate(c.Snapshot())
}

func (c *Controller) snapshotLocked() Snapshot {
	var lastErr *ErrorKind
	if c.lastErr != nil {
		k := *c.lastErr
		lastErr = &k
	}

	return Snapshot{
		Session: Session{
			Messages:  c.transcript.Messages(),
			Pending:   c.pending,
			LastError: lastErr,
		},
		State:     c.state,
		Streaming: c.transcript.IsOpen(),
		Notice:    c.notice,
	}
}

// lockedTarget applies assembler deltas to the controller's transcript under
// its lock and notifies observers after each mutation.
type lockedTarget struct {
	c *Controller
}

func (t *lockedTarget) Open() {
	t.c.mu.Lock()
	t.c.transcript.Open()
	t.c.mu.Unlock()
}

func (t *lockedTarget) Append(text string) {
	t.c.mu.Lock()
	t.c.transcript.Append(text)
	t.c.mu.Unlock()
	t.c.notify()
}
