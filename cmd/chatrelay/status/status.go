// Package statuscmder provides the status command for displaying the saved
// chat session.
package statuscmder

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/dotdir"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const statusLongDesc string = `Show the saved chat session.

Reads session.json from the .chatrelay/ directory and lists the messages
"chatrelay chat --resume" will pick up.

Examples:
  chatrelay status`

const statusShortDesc string = "Show the saved chat session"

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runStatus(cmd.OutOrStdout(), configDir)
		},
	}
}

func runStatus(out io.Writer, configDir string) error {
	state, err := dotdir.NewManager().LoadSession(configDir)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}

	if state == nil || len(state.Messages) == 0 {
		fmt.Fprintf(out, "  %s No saved session. Use 'chatrelay chat --resume' to keep one.\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(out, "\n  %s  %s\n", cliui.KeyStyle.Render("Messages:"), cliui.NameStyle.Render(strconv.Itoa(len(state.Messages))))
	if !state.SavedAt.IsZero() {
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Saved:   "), cliui.DimStyle.Render(state.SavedAt.Local().Format(time.DateTime)))
	}
	fmt.Fprintln(out)

	for i, msg := range state.Messages {
		label := cliui.UserLabel
		if msg.Role == llm.RoleAssistant {
			label = cliui.AssistantLabel
		}
		fmt.Fprintf(out, "  %s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
			label,
			cliui.ValueStyle.Render(utils.Truncate(msg.Content, 72)),
		)
	}

	fmt.Fprintln(out)
	return nil
}
