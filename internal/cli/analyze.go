package cli

import (
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Show the milestones, types, components and labels of the export",
		Long: `Reads the configured exports and prints a histogram of every milestone,
issue type, component and label together with the number of issues that
would be imported. Nothing is sent to GitHub.`,
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
			return agg.Prettify(cmd.OutOrStdout())
		},
	}
}
