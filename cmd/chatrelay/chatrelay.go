// Package chatrelaycmder is the root chatrelay command.
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/auth"
	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	statuscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/status"
	turnscmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/turns"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/version"
)

const chatrelayLongDesc string = `chatrelay streams assistant replies from an OpenAI-compatible gateway to
authenticated chat clients.

Run services using:
  chatrelay serve          Run the relay and the history API together
  chatrelay serve relay    Run just the relay
  chatrelay serve api      Run just the history API

Talk to a running relay:
  chatrelay auth           Store the access token
  chatrelay chat           Start a chat session
  chatrelay status         Show the saved chat session
  chatrelay turns          Browse relayed turns`

const chatrelayShortDesc string = "chatrelay - streaming chat relay"

func NewChatrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrelay",
		Short:        chatrelayShortDesc,
		Long:         chatrelayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .chatrelay/ config directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(turnscmder.NewTurnsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
