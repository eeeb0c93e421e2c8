// Package configcmder provides the config command for managing persistent
// chatrelay configuration stored in the .chatrelay/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const configLongDesc string = `Manage persistent chatrelay configuration.

Configuration is stored as config.toml in the .chatrelay/ directory and
provides default values for command flags. Precedence, highest first:
command flags, CHATRELAY_* environment variables (also read from .env),
config.toml, built-in defaults.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.upstream, relay.model, relay.system_prompt,
  relay.path, relay.allow_origins, relay.workers,
  identity.provider, identity.url, identity.service_key, identity.static_tokens,
  storage.sqlite_path, storage.postgres_dsn, api.listen,
  client.relay_target, client.api_target, client.publishable_key,
  eventstream.provider, eventstream.kafka_brokers, eventstream.kafka_topic,
  eventstream.redis_url, eventstream.redis_channel

Secrets such as the upstream API key are not config values; store them
with "chatrelay auth".

Examples:
  chatrelay config set relay.upstream https://gateway.example.com/v1
  chatrelay config set identity.provider token
  chatrelay config get relay.model
  chatrelay config list`

const configShortDesc string = "Manage persistent chatrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if config.IsValidConfigKey(key) {
		return nil
	}
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func printTarget(out io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
