package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/jiramigrate/internal/github"
	"github.com/jmaddaus/jiramigrate/internal/ui"
)

func newAuthCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the GitHub token (status, store, remove)",
		RunE:  unknownSubcommand,
	}
	cmd.AddCommand(newAuthStatusCmd(opts), newAuthStoreCmd(opts), newAuthRemoveCmd())
	return cmd
}

func newAuthStoreCmd(opts *rootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Validate a pre-acquired token and save it to ~/.jiramigrate/token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			// If no --token flag, read from stdin.
			if token == "" {
				if f, ok := cmd.InOrStdin().(*os.File); ok {
					if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
						fmt.Fprint(out, "Enter GitHub token: ")
					}
				}
				if token, err = readToken(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if token == "" {
				return fmt.Errorf("no token provided; use --token or pipe via stdin")
			}

			username, err := github.ValidateToken(cmd.Context(), token, cfg.GitHub.BaseURL)
			if err != nil {
				return fmt.Errorf("token validation failed: %w", err)
			}
			if err := github.SaveToken(token); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			fmt.Fprintln(out, ui.Pass(fmt.Sprintf("Authenticated as @%s. Token saved.", username)))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "GitHub personal access token")
	return cmd
}

func readToken(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return "", nil
}

func newAuthRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Delete the stored token file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := github.RemoveToken(); err != nil {
				return fmt.Errorf("remove: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Token removed.")
			return nil
		},
	}
}

func newAuthStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which token sources are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			methods, err := github.ResolveTokenWithMethod(cfg.GitHub.Token)
			if err != nil {
				fmt.Fprintln(out, ui.Warn("No GitHub token found via any method."))
				fmt.Fprintln(out)
				fmt.Fprintln(out, "To authenticate, use one of:")
				fmt.Fprintln(out, "  jiramigrate auth store              Enter a token interactively")
				fmt.Fprintln(out, "  jiramigrate auth store --token TOK  Provide a token directly")
				fmt.Fprintln(out, "  gh auth login                       Use GitHub CLI")
				fmt.Fprintln(out, "  export GITHUB_TOKEN=..              Set environment variable")
				return nil
			}

			fmt.Fprintf(out, "Found %d auth method(s):\n", len(methods))
			for i, m := range methods {
				prefix := "  "
				if i == 0 {
					prefix = "* " // active method
				}
				fmt.Fprintf(out, "%s%-25s %s\n", prefix, m.Name, maskToken(m.Token))
			}

			// Validate the active (first) token.
			fmt.Fprintln(out)
			username, err := github.ValidateToken(cmd.Context(), methods[0].Token, cfg.GitHub.BaseURL)
			if err != nil {
				fmt.Fprintln(out, ui.Fail(fmt.Sprintf("Active token validation failed: %v", err)))
			} else {
				fmt.Fprintln(out, ui.Pass(fmt.Sprintf("Authenticated as @%s (via %s)", username, methods[0].Name)))
			}
			return nil
		},
	}
}

// maskToken shows the first 4 and last 4 characters of a token.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
