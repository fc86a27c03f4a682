package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/jiramigrate/internal/config"
	"github.com/jmaddaus/jiramigrate/internal/store"
)

func newRunsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recorded migration runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
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

			ctx := cmd.Context()
			runs, err := st.ListRuns(ctx)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPROJECT\tREPOSITORY\tSTART\tSTARTED\tFINISHED\tIMPORTED\tFAILED")
			for _, r := range runs {
				entries, err := st.ListEntries(ctx, r.ID)
				if err != nil {
					return err
				}
				imported := 0
				for _, e := range entries {
					if e.Imported() {
						imported++
					}
				}
				finished := "-"
				if r.FinishedAt != nil {
					finished = r.FinishedAt.Local().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%d\t%d\n",
					r.ID, r.Project, r.Repository, r.StartOffset,
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), finished,
					imported, len(entries)-imported)
			}
			return w.Flush()
		},
	}
}
