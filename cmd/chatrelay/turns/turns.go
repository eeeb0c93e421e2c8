// Package turnscmder provides the turns command for browsing relayed turns
// through the history API.
package turnscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

type turnsCommander struct {
	apiTarget string
	subject   string
	limit     int
	stats     bool
	debug     bool

	out    io.Writer
	client *http.Client
	logger *zap.Logger
}

const turnsLongDesc string = `Browse turns recorded by the relay.

Reads from the history API ("chatrelay serve" or "chatrelay serve api").
Without an argument the newest turns are listed; with a turn ID the full
turn is shown.

Examples:
  chatrelay turns
  chatrelay turns --subject alice --limit 5
  chatrelay turns --stats
  chatrelay turns 6f1c2a9e-...`

const turnsShortDesc string = "Browse relayed turns"

const requestTimeout = 10 * time.Second

func NewTurnsCmd() *cobra.Command {
	cmder := &turnsCommander{}

	cmd := &cobra.Command{
		Use:   "turns [id]",
		Short: turnsShortDesc,
		Long:  turnsLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

			cfg, err := config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.apiTarget = cfg.Client.APITarget
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.out = cmd.OutOrStdout()
			cmder.client = &http.Client{Timeout: requestTimeout}
			cmder.logger = logger.NewLogger(cmder.debug)
			defer func() { _ = cmder.logger.Sync() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			switch {
			case cmder.stats:
				return cmder.showStats(ctx)
			case len(args) == 1:
				return cmder.showTurn(ctx, args[0])
			default:
				return cmder.listTurns(ctx)
			}
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().StringVar(&cmder.subject, "subject", "", "Only show turns for this caller")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of turns to list")
	cmd.Flags().BoolVar(&cmder.stats, "stats", false, "Show aggregate counts instead of turns")

	return cmd
}

func (c *turnsCommander) listTurns(ctx context.Context) error {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.limit))
	if c.subject != "" {
		query.Set("subject", c.subject)
	}

	var resp api.TurnsResponse
	if err := c.get(ctx, "/turns?"+query.Encode(), &resp); err != nil {
		return err
	}

	if resp.Count == 0 {
		fmt.Fprintf(c.out, "\n  %s No turns recorded yet.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(c.out, "\n  %s %s\n\n",
		cliui.HeaderStyle.Render("Turns"),
		cliui.DimStyle.Render(fmt.Sprintf("(%d)", resp.Count)),
	)
	for _, turn := range resp.Turns {
		mark := cliui.SuccessMark
		switch {
		case turn.Status != http.StatusOK:
			mark = cliui.FailMark
		case !turn.Complete:
			mark = cliui.WarnStyle.Render("!")
		}
		fmt.Fprintf(c.out, "  %s %s  %s  %s  %s\n",
			mark,
			cliui.NameStyle.Render(utils.Truncate(turn.ID, 8)),
			cliui.DimStyle.Render(turn.CreatedAt.Local().Format(time.DateTime)),
			cliui.KeyStyle.Render(subjectOrAnon(turn.Subject)),
			oneLine(lastUserPrompt(turn), 60),
		)
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *turnsCommander) showTurn(ctx context.Context, id string) error {
	var turn storage.Turn
	if err := c.get(ctx, "/turns/"+url.PathEscape(id), &turn); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s %s\n", cliui.KeyStyle.Render("Turn:"), cliui.NameStyle.Render(turn.ID))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Subject:"), cliui.ValueStyle.Render(subjectOrAnon(turn.Subject)))
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.ValueStyle.Render(turn.Model))
	fmt.Fprintf(c.out, "  %s %d  %s %d  %s %s\n\n",
		cliui.KeyStyle.Render("Status:"), turn.Status,
		cliui.KeyStyle.Render("Frames:"), turn.Frames,
		cliui.KeyStyle.Render("Took:"), cliui.FormatDuration(turn.Duration),
	)

	for _, msg := range turn.Messages {
		label := cliui.UserLabel
		if msg.Role == llm.RoleAssistant {
			label = cliui.AssistantLabel
		}
		fmt.Fprintf(c.out, "  %s> %s\n", label, msg.Content)
	}
	if turn.Response != "" {
		fmt.Fprintf(c.out, "  %s> %s\n", cliui.AssistantLabel, turn.Response)
	}
	if !turn.Complete {
		fmt.Fprintf(c.out, "  %s\n", cliui.Notice("reply did not complete"))
	}
	fmt.Fprintln(c.out)

	return nil
}

func (c *turnsCommander) showStats(ctx context.Context) error {
	var stats storage.Stats
	if err := c.get(ctx, "/stats", &stats); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\n  %s\n\n", cliui.HeaderStyle.Render("Relay stats"))
	fmt.Fprintf(c.out, "  %s %d\n", cliui.KeyStyle.Render("Turns:   "), stats.Turns)
	fmt.Fprintf(c.out, "  %s %d\n", cliui.KeyStyle.Render("Complete:"), stats.Complete)
	fmt.Fprintf(c.out, "  %s %d\n", cliui.KeyStyle.Render("Failed:  "), stats.Failed)
	fmt.Fprintf(c.out, "  %s %d\n", cliui.KeyStyle.Render("Subjects:"), stats.Subjects)
	if stats.LastTurnAt != nil {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Last:    "), stats.LastTurnAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(c.out)

	return nil
}

// get fetches path from the history API behind a progress step and decodes
// the JSON body into v.
func (c *turnsCommander) get(ctx context.Context, path string, v any) error {
	target := strings.TrimRight(c.apiTarget, "/") + path
	return cliui.Step(c.out, "Querying "+c.apiTarget, func() error {
		return c.fetch(ctx, target, v)
	})
}

func (c *turnsCommander) fetch(ctx context.Context, target string, v any) error {
	c.logger.Debug("requesting history API", zap.String("url", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting history API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr llm.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing API response: %w", err)
	}
	return nil
}

func lastUserPrompt(turn *storage.Turn) string {
	for i := len(turn.Messages) - 1; i >= 0; i-- {
		if turn.Messages[i].Role == llm.RoleUser {
			return turn.Messages[i].Content
		}
	}
	return ""
}

func subjectOrAnon(subject string) string {
	if subject == "" {
		return "anonymous"
	}
	return subject
}

func oneLine(s string, maxLen int) string {
	return utils.Truncate(strings.Join(strings.Fields(s), " "), maxLen)
}
