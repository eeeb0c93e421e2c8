// Package authcmder provides the auth command for storing chatrelay secrets.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/credentials"
	"github.com/papercomputeco/chatrelay/pkg/identity/token"
)

const authLongDesc string = `Store the secrets chatrelay needs.

Secrets are stored in credentials.toml in the .chatrelay/ directory. When a
secret is not stored, its environment variable is used instead.

  access_token      Bearer token the chat client presents to the relay
                    (CHATRELAY_ACCESS_TOKEN). The default.
  upstream_api_key  Key the relay sends to the upstream gateway
                    (CHATRELAY_UPSTREAM_API_KEY). Never sent to callers.
  session_secret    Signing secret for token identity
                    (CHATRELAY_SESSION_SECRET).

Examples:
  chatrelay auth                          Prompt for the access token
  chatrelay auth upstream_api_key         Prompt for the upstream key
  echo $KEY | chatrelay auth upstream_api_key
  chatrelay auth --list                   List stored secrets
  chatrelay auth --remove access_token    Remove a stored secret
  chatrelay auth issue --subject dev      Mint an access token (token identity)`

const authShortDesc string = "Store chatrelay secrets"

func NewAuthCmd() *cobra.Command {
	var listFlag bool
	var removeFlag string

	cmd := &cobra.Command{
		Use:   "auth [name]",
		Short: authShortDesc,
		Long:  authLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			out := cmd.OutOrStdout()

			switch {
			case listFlag:
				return runList(out, configDir)
			case removeFlag != "":
				return runRemove(out, removeFlag, configDir)
			default:
				name := credentials.AccessToken
				if len(args) == 1 {
					name = args[0]
				}
				return runAuth(cmd.InOrStdin(), out, name, configDir)
			}
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return credentials.Names(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	cmd.Flags().BoolVar(&listFlag, "list", false, "List stored secrets")
	cmd.Flags().StringVar(&removeFlag, "remove", "", "Remove a stored secret")

	cmd.AddCommand(newIssueCmd())

	return cmd
}

func runAuth(in io.Reader, out io.Writer, name, configDir string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	if !credentials.IsKnown(name) {
		return fmt.Errorf("unknown secret: %q\n\nKnown secrets: %s",
			name, strings.Join(credentials.Names(), ", "))
	}

	value, err := readSecret(in, out, name)
	if err != nil {
		return err
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("secret cannot be empty")
	}

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Set(name, value); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Stored %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(name),
		cliui.DimStyle.Render("(overrides "+credentials.EnvVar(name)+")"),
	)
	return nil
}

func runList(out io.Writer, configDir string) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	names, err := mgr.List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Fprintf(out, "\n  %s No stored secrets.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(out, "  Use 'chatrelay auth <name>' to store one.\n")
		fmt.Fprintf(out, "  Known secrets: %s\n\n", strings.Join(credentials.Names(), ", "))
		return nil
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Stored secrets"))
	for _, name := range names {
		fmt.Fprintf(out, "  %s  %s  %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(name),
			cliui.DimStyle.Render("overrides "+credentials.EnvVar(name)),
		)
	}
	fmt.Fprintln(out)

	return nil
}

func runRemove(out io.Writer, name, configDir string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	if err := mgr.Remove(name); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Removed %s.\n\n", cliui.SuccessMark, cliui.NameStyle.Render(name))

	return nil
}

// readSecret reads a secret from in. Piped input yields its first line; a
// terminal is prompted with hidden input.
func readSecret(in io.Reader, out io.Writer, name string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "Enter %s (%s): ", name, credentials.EnvVar(name))

		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out) // newline after hidden input
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", name, err)
		}
		return string(secret), nil
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no input received on stdin")
}

const issueLongDesc string = `Mint an access token signed with the session secret.

Relays started with identity.provider = "token" accept these tokens. The
session secret is read from credentials.toml or CHATRELAY_SESSION_SECRET.

Examples:
  chatrelay auth issue --subject alice
  chatrelay auth issue --subject alice --ttl 1h --store`

func newIssueCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		store   bool
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint an access token for token identity",
		Long:  issueLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runIssue(cmd.OutOrStdout(), configDir, subject, ttl, store)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Caller the token identifies (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", token.DefaultTTL, "Token lifetime")
	cmd.Flags().BoolVar(&store, "store", false, "Store the token as access_token")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func runIssue(out io.Writer, configDir, subject string, ttl time.Duration, store bool) error {
	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	secret, err := mgr.Resolve(credentials.SessionSecret)
	if err != nil {
		return err
	}

	issuer, err := token.New(secret)
	if err != nil {
		return fmt.Errorf("%w: run 'chatrelay auth session_secret' first", err)
	}

	tok, err := issuer.Issue(subject, ttl)
	if err != nil {
		return err
	}

	if !store {
		fmt.Fprintln(out, tok)
		return nil
	}

	if err := mgr.Set(credentials.AccessToken, tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n  %s Stored %s for %s %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(credentials.AccessToken),
		cliui.NameStyle.Render(subject),
		cliui.DimStyle.Render("(expires in "+ttl.String()+")"),
	)
	return nil
}
