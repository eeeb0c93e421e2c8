// Package chatcmder provides the chat command for talking to the assistant
// through the chat relay.
package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/relayclient"
	"github.com/papercomputeco/chatrelay/pkg/transcript"
)

type chatCommander struct {
	relayTarget    string
	publishableKey string
	path           string
	configDir      string

	tui      bool
	resume   bool
	markdown bool
	debug    bool

	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive chat session with the assistant through the relay.

Replies stream in as they are generated. The access token stored with
"chatrelay auth" (or CHATRELAY_ACCESS_TOKEN) is sent as the bearer credential.

Each run starts a new conversation. With --resume the conversation is saved
to .chatrelay/session.json after every reply and picked up again by the next
"chatrelay chat --resume".

Commands:
  /cancel   Stop the reply that is streaming
  /reset    Clear the conversation
  /exit     Quit (Ctrl+D also quits)

Examples:
  chatrelay chat
  chatrelay chat --tui
  chatrelay chat --resume
  chatrelay chat --relay-target https://relay.example.com`

const chatShortDesc string = "Chat with the assistant through the relay"

var configFlags = []string{
	config.FlagRelayTarget,
	config.FlagPublishableKey,
	config.FlagRelayPath,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, configFlags)

			cfg, err := config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cmder.relayTarget = cfg.Client.RelayTarget
			cmder.publishableKey = cfg.Client.PublishableKey
			cmder.path = cfg.Relay.Path
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublishableKey, &cmder.publishableKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagRelayPath, &cmder.path)
	cmd.Flags().BoolVar(&cmder.tui, "tui", false, "Use the full screen terminal UI")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Resume the saved conversation and keep saving it")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render completed replies as markdown instead of streaming raw text")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	stdinTTY := term.IsTerminal(int(os.Stdin.Fd()))
	stdoutTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if c.tui && (!stdinTTY || !stdoutTTY) {
		return errors.New("--tui requires an interactive terminal")
	}

	if c.tui {
		// The TUI owns the screen; log lines would corrupt it.
		c.logger = logger.Nop()
	} else {
		c.logger = logger.NewLoggerWithWriters(c.debug, os.Stderr)
	}
	defer func() { _ = c.logger.Sync() }()

	credential, err := c.accessToken()
	if err != nil {
		return err
	}

	store := &sessionStore{ddm: dotdir.NewManager(), dir: c.configDir, enabled: c.resume, logger: c.logger}
	history, err := c.history(store)
	if err != nil {
		return err
	}

	client := relayclient.New(relayclient.Config{
		Target:         c.relayTarget,
		Path:           c.path,
		PublishableKey: c.publishableKey,
	})
	c.logger.Debug("relay client ready", zap.String("url", client.URL()))

	cfg := transcript.Config{
		Credential: credential,
		History:    history,
	}

	if c.tui {
		width, height, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			width, height = defaultWidth, defaultHeight
		}
		return runTUI(ctx, client, cfg, store, width, height, c.logger)
	}

	if credential == "" {
		fmt.Fprintf(os.Stderr, "  %s\n", cliui.Notice("no access token stored; run \"chatrelay auth\" first"))
	}

	fmt.Printf("\n  %s %s\n", cliui.KeyStyle.Render("Relay:"), cliui.NameStyle.Render(client.URL()))
	if len(history) > 0 {
		fmt.Printf("  %s Resuming conversation %s\n",
			cliui.SuccessMark,
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(history))),
		)
	} else {
		fmt.Printf("  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /cancel, /reset, /exit or Ctrl+D."))

	lc := newLineChat(os.Stdin, os.Stdout, stdinTTY, c.markdown, store)
	cfg.OnUpdate = lc.onUpdate
	lc.ctrl = transcript.NewController(client, cfg, c.logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if lc.ctrl.Cancel() {
				continue
			}
			// A blocked stdin read cannot be interrupted; the session is
			// already saved after every reply.
			fmt.Println()
			os.Exit(0)
		}
	}()

	return lc.run(ctx)
}

func (c *chatCommander) accessToken() (string, error) {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	token, err := mgr.Resolve(credentials.AccessToken)
	if err != nil {
		return "", fmt.Errorf("loading access token: %w", err)
	}
	return token, nil
}

func (c *chatCommander) history(store *sessionStore) ([]llm.Message, error) {
	if !store.enabled {
		return nil, nil
	}

	state, err := store.ddm.LoadSession(store.dir)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if state == nil {
		return nil, nil
	}
	return state.Messages, nil
}

// sessionStore persists the transcript between chat runs. A disabled store
// keeps nothing.
type sessionStore struct {
	ddm     *dotdir.Manager
	dir     string
	enabled bool
	logger  *zap.Logger
}

func (s *sessionStore) save(snap transcript.Snapshot) {
	if !s.enabled || snap.Pending || snap.Streaming {
		return
	}

	err := s.ddm.SaveSession(&dotdir.SessionState{Messages: snap.Messages}, s.dir)
	if err != nil {
		s.logger.Warn("failed to save session", zap.Error(err))
	}
}

func (s *sessionStore) clear() error {
	if !s.enabled {
		return nil
	}
	if err := s.ddm.ClearSession(s.dir); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
