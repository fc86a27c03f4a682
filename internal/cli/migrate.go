package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/jiramigrate/internal/config"
	"github.com/jmaddaus/jiramigrate/internal/github"
	"github.com/jmaddaus/jiramigrate/internal/importer"
	"github.com/jmaddaus/jiramigrate/internal/ledger"
	"github.com/jmaddaus/jiramigrate/internal/model"
	"github.com/jmaddaus/jiramigrate/internal/normalize"
	"github.com/jmaddaus/jiramigrate/internal/store"
	"github.com/jmaddaus/jiramigrate/internal/sync"
	"github.com/jmaddaus/jiramigrate/internal/ui"
)

type migrateOptions struct {
	startFrom int
	resume    bool
	pageDelay time.Duration
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	mo := migrateOptions{pageDelay: github.DefaultPageDelay}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create milestones and labels, then import every issue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if mo.resume && cmd.Flags().Changed("start-from") {
				return fmt.Errorf("--resume and --start-from are mutually exclusive")
			}
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), cfg, mo)
		},
	}
	cmd.Flags().IntVar(&mo.startFrom, "start-from", 0, "Skip this many issues before importing")
	cmd.Flags().BoolVar(&mo.resume, "resume", false, "Skip the issues already recorded in the ledger")
	return cmd
}

func runMigrate(ctx context.Context, out io.Writer, cfg *config.Config, mo migrateOptions) error {
	if err := cfg.ValidateTarget(); err != nil {
		return err
	}
	repository := cfg.GitHub.Owner + "/" + cfg.GitHub.Repo

	media, err := normalize.NewMediaCache(cfg.Jira.MediaCache, true, nil)
	if err != nil {
		return err
	}
	agg, tables, err := loadProject(ctx, cfg, media)
	if err != nil {
		return err
	}
	if err := agg.Prettify(out); err != nil {
		return err
	}

	startFrom := mo.startFrom
	if mo.resume {
		entries, err := ledger.ReadFile(cfg.Import.LedgerPath)
		if err != nil {
			return err
		}
		startFrom = ledger.ResumeOffset(agg.Keys(), entries)
		slog.Info("resuming from ledger", "ledger", cfg.Import.LedgerPath, "start_from", startFrom)
	}

	token, err := github.ResolveToken(cfg.GitHub.Token)
	if err != nil {
		return err
	}
	client, err := github.NewClient(github.Options{
		Token:     token,
		BaseURL:   cfg.GitHub.BaseURL,
		Timeout:   cfg.GitHub.Timeout,
		PageDelay: mo.pageDelay,
	})
	if err != nil {
		return err
	}

	if err := config.EnsureDataDir(cfg); err != nil {
		return err
	}
	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger database: %w", err)
	}
	defer st.Close()
	warnCompleted(ctx, st, repository, agg.Keys(), startFrom)

	synced, err := sync.Run(ctx, client, agg, sync.Options{
		Owner:           cfg.GitHub.Owner,
		Repo:            cfg.GitHub.Repo,
		Tables:          tables,
		ComponentLabels: cfg.Import.IncludeComponentInLabels,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Milestones: %d  Labels: %d created, %d existing, %d filtered, %d failed\n",
		len(synced.Milestones), synced.Labels.Created, synced.Labels.Existing, synced.Labels.Filtered, synced.Labels.Failed)

	fl, err := ledger.OpenFile(cfg.Import.LedgerPath)
	if err != nil {
		return err
	}
	sw := ledger.NewStoreWriter(ctx, st, &model.Run{
		Project:     agg.Name,
		Repository:  repository,
		StartOffset: startFrom,
	})
	w := ledger.Tee(fl, ledger.Mirror(sw))
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("close ledger", "error", err)
		}
	}()

	poller := importer.NewPoller(client)
	poller.InitialWait = cfg.Import.PollInitialWait
	poller.Interval = cfg.Import.PollInterval
	poller.MaxPolls = cfg.Import.MaxPolls

	pipeline := importer.New(client, w, importer.Options{
		Owner:      cfg.GitHub.Owner,
		Repo:       cfg.GitHub.Repo,
		BatchSize:  cfg.Import.BatchSize,
		Milestones: synced.Milestones,
		Poller:     poller,
	})
	sum, err := pipeline.Run(ctx, agg.Issues, startFrom)
	printSummary(out, sum)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}

// warnCompleted logs issues past startFrom that an earlier run already
// imported into the same repository.
func warnCompleted(ctx context.Context, st store.Store, repository string, keys []string, startFrom int) {
	done, err := st.CompletedKeys(ctx, repository)
	if err != nil {
		slog.Warn("could not read completed keys", "error", err)
		return
	}
	if startFrom > len(keys) {
		return
	}
	dup := 0
	for _, k := range keys[startFrom:] {
		if _, ok := done[k]; ok {
			dup++
		}
	}
	if dup > 0 {
		slog.Warn("issues already imported by an earlier run will be imported again", "count", dup, "repository", repository)
	}
}

func printSummary(out io.Writer, sum importer.Summary) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.HeaderStyle.Render("Import summary:"))
	fmt.Fprintf(out, "  submitted: %d\n", sum.Submitted)
	fmt.Fprintf(out, "  %s\n", ui.Pass(fmt.Sprintf("imported: %d", sum.Imported)))
	if sum.Failed > 0 {
		fmt.Fprintf(out, "  %s\n", ui.Fail(fmt.Sprintf("failed: %d", sum.Failed)))
	}
	if sum.Skipped > 0 {
		fmt.Fprintf(out, "  %s\n", ui.MutedStyle.Render(fmt.Sprintf("skipped: %d", sum.Skipped)))
	}
}
