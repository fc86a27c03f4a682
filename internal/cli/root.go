// Package cli implements the jiramigrate command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/jiramigrate/internal/config"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "jiramigrate",
		Short: "Migrate a Jira XML export into GitHub issues",
		Long: `jiramigrate reads one or more Jira XML exports, creates the milestones and
labels they use in a GitHub repository and imports every issue with its
comments through the asynchronous issue import API.

Every imported issue is recorded in a ledger file so an interrupted run can
be resumed.

Examples:
  jiramigrate analyze                 # Show the milestone and label histograms
  jiramigrate migrate                 # Create milestones and labels, import issues
  jiramigrate migrate --resume        # Continue after the last recorded issue
  jiramigrate offset                  # Print the resume offset from the ledger`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.jiramigrate/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newMigrateCmd(opts))
	root.AddCommand(newOffsetCmd(opts))
	root.AddCommand(newRunsCmd(opts))
	root.AddCommand(newAuthCmd(opts))
	root.AddCommand(newDBCmd())
	root.AddCommand(newVersionCmd(version))
	return root
}

// loadConfig reads the configuration once per invocation.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	o.cfg = cfg
	return cfg, nil
}

func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "jiramigrate version %s\n", version)
		},
	}
}

// Run executes the command line in args. An interrupt cancels the running
// command; import jobs already accepted by GitHub still complete there.
func Run(args []string, version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(version)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
