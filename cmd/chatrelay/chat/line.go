package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/transcript"
)

// lineChat is the plain stdin/stdout front end. Piped input is a script run
// one reply at a time on the calling goroutine. Interactive input is read on
// the calling goroutine while a single submitter goroutine drives the
// controller, so /cancel stays usable during a reply.
type lineChat struct {
	ctrl *transcript.Controller

	in          io.Reader
	out         io.Writer
	interactive bool
	markdown    bool
	store       *sessionStore

	// inFlight is set when a line is handed to the submitter and cleared
	// once its Submit returns.
	inFlight atomic.Bool

	mu        sync.Mutex
	streaming bool
	printed   int
}

func newLineChat(in io.Reader, out io.Writer, interactive, markdown bool, store *sessionStore) *lineChat {
	return &lineChat{
		in:          in,
		out:         out,
		interactive: interactive,
		markdown:    markdown,
		store:       store,
	}
}

// run reads input until EOF or /exit. At EOF an in-flight reply is allowed to
// finish; /exit cancels it.
func (l *lineChat) run(ctx context.Context) error {
	submissions := make(chan string, 1)
	done := make(chan struct{})
	go l.submitLoop(ctx, submissions, done)
	defer func() {
		close(submissions)
		<-done
	}()

	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	l.prompt()
	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())

		switch parseCommand(input) {
		case cmdExit:
			l.ctrl.Cancel()
			return nil

		case cmdCancel:
			if !l.ctrl.Cancel() {
				l.notice(noticeNothingToCancel)
			}
			continue

		case cmdReset:
			if err := l.ctrl.Reset(); err != nil {
				l.notice(err.Error())
				continue
			}
			if err := l.store.clear(); err != nil {
				l.notice(err.Error())
			} else {
				l.notice(noticeCleared)
			}
			l.prompt()
			continue

		case cmdUnknown:
			l.notice(noticeUnknownCommand)
			continue
		}

		if input == "" {
			l.prompt()
			continue
		}

		if !l.interactive {
			l.report(l.ctrl.Submit(ctx, input))
			continue
		}

		if !l.inFlight.CompareAndSwap(false, true) {
			l.notice(transcript.ErrBusy.Error() + "; /cancel to stop it")
			continue
		}
		submissions <- input
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func (l *lineChat) submitLoop(ctx context.Context, submissions <-chan string, done chan<- struct{}) {
	defer close(done)

	for input := range submissions {
		err := l.ctrl.Submit(ctx, input)
		l.inFlight.Store(false)
		l.report(err)
	}
}

// report prints the outcome of one submit and persists the transcript.
func (l *lineChat) report(err error) {
	snap := l.ctrl.Snapshot()

	var failure *transcript.Failure
	switch {
	case errors.As(err, &failure):
		l.notice(failure.Kind.Notice())
	case err != nil:
		l.notice(err.Error())
	case snap.Notice != "":
		l.notice(snap.Notice)
	}

	l.store.save(snap)
	l.prompt()
}

// onUpdate streams the tail of the open assistant message as it grows.
func (l *lineChat) onUpdate(snap transcript.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := lastAssistant(snap.Messages)

	if snap.Streaming && ok {
		if !l.streaming {
			l.streaming = true
			l.printed = 0
			if !l.markdown {
				fmt.Fprintf(l.out, "%s> ", cliui.AssistantLabel)
			}
		}
		if !l.markdown && len(last.Content) > l.printed {
			fmt.Fprint(l.out, last.Content[l.printed:])
		}
		l.printed = len(last.Content)
		return
	}

	if !l.streaming {
		return
	}
	l.streaming = false
	l.printed = 0

	if !l.markdown {
		fmt.Fprint(l.out, "\n")
		return
	}
	if !ok || snap.LastError != nil {
		return
	}

	rendered, err := cliui.RenderMarkdown(last.Content)
	if err != nil {
		rendered = last.Content + "\n"
	}
	fmt.Fprintf(l.out, "%s>\n%s", cliui.AssistantLabel, rendered)
}

func (l *lineChat) notice(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "  %s\n", cliui.Notice(msg))
}

func (l *lineChat) prompt() {
	if !l.interactive {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, cliui.PromptStyle.Render("you> "))
}

func lastAssistant(msgs []llm.Message) (llm.Message, bool) {
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != llm.RoleAssistant {
		return llm.Message{}, false
	}
	return msgs[len(msgs)-1], true
}
