package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/jiramigrate/internal/ledger"
)

func newOffsetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "offset",
		Short: "Print how many leading issues the ledger already records",
		Long: `Compares the issue order of the export with the ledger file and prints the
number of leading issues that already have an outcome. Pass it to
'migrate --start-from' or use 'migrate --resume'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			agg, _, err := loadProject(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			entries, err := ledger.ReadFile(cfg.Import.LedgerPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ledger.ResumeOffset(agg.Keys(), entries))
			return nil
		},
	}
}
