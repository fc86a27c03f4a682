package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jmaddaus/jiramigrate/internal/store"
	"github.com/jmaddaus/jiramigrate/internal/ui"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Ledger database migration tools (version, check, downgrade)",
		Example: `  jiramigrate db version ~/.jiramigrate/jiramigrate.db
  jiramigrate db downgrade ~/.jiramigrate/jiramigrate.db 1
  jiramigrate db check ~/.jiramigrate/jiramigrate.db`,
		RunE: unknownSubcommand,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version <db-path>",
		Short: "Show current DB schema version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBVersion(cmd.OutOrStdout(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "check <db-path>",
		Short: "Check if DB is compatible with this binary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBCheck(cmd.OutOrStdout(), args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "downgrade <db-path> <version>",
		Short: "Downgrade DB to target version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid version number: %s", args[1])
			}
			return runDBDowngrade(cmd.OutOrStdout(), args[0], target)
		},
	})
	return cmd
}

// unknownSubcommand backs command groups so a mistyped subcommand is an
// error instead of a help screen.
func unknownSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	return fmt.Errorf("unknown %s subcommand: %s\nRun '%s --help' for usage", cmd.Name(), args[0], cmd.CommandPath())
}

func runDBVersion(out io.Writer, dbPath string) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	version, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", dbPath)
	fmt.Fprintf(out, "schema version: %d\n", version)
	fmt.Fprintf(out, "binary supports: %d\n", store.DBSchemaVersion)
	return nil
}

func runDBCheck(out io.Writer, dbPath string) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	version, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", dbPath)
	fmt.Fprintf(out, "schema version: %d\n", version)
	fmt.Fprintf(out, "binary supports: %d\n", store.DBSchemaVersion)

	if version > store.DBSchemaVersion {
		return fmt.Errorf("INCOMPATIBLE: database is newer than this binary.\nRun: jiramigrate db downgrade %s %d", dbPath, store.DBSchemaVersion)
	}

	fmt.Fprintf(out, "\n%s\n", ui.Pass("OK: database is compatible."))
	return nil
}

func runDBDowngrade(out io.Writer, dbPath string, target int) error {
	db, err := store.OpenRawDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	current, err := store.ReadDBVersion(db)
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	fmt.Fprintf(out, "database: %s\n", dbPath)
	fmt.Fprintf(out, "current version: %d\n", current)
	fmt.Fprintf(out, "target version: %d\n", target)

	if target >= current {
		return fmt.Errorf("target version %d must be less than current version %d", target, current)
	}

	if err := store.DowngradeDB(db, current, target); err != nil {
		return fmt.Errorf("downgrade: %w", err)
	}

	fmt.Fprintf(out, "downgraded: %d -> %d\n", current, target)
	return nil
}
