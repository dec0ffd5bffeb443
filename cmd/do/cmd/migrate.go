package cmd

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/templui/drive/internal/config"
	"github.com/templui/drive/internal/db"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations (uses DB_DRIVER and DB_CONNECTION)",
	}

	cmd.AddCommand(
		migrateSubCmd("up", "Apply all pending migrations", func(cmd *cobra.Command, m *db.Migrator) error {
			return m.Up(cmd.Context())
		}),
		migrateSubCmd("down", "Roll back the latest migration", func(cmd *cobra.Command, m *db.Migrator) error {
			return m.Down(cmd.Context())
		}),
		migrateSubCmd("status", "Print the status of every migration", printStatus),
	)
	return cmd
}

func migrateSubCmd(use, short string, run func(*cobra.Command, *db.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			driver, connection := config.LoadDatabase()

			database, err := db.Init(driver, connection)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() {
				closeErr := db.Close(database)
				if closeErr != nil {
					slog.Error("failed to close database", "error", closeErr)
				}
			}()

			m, err := db.NewMigrator(database.DB, driver)
			if err != nil {
				return err
			}
			return run(cmd, m)
		},
	}
}

func printStatus(cmd *cobra.Command, m *db.Migrator) error {
	states, err := m.Status(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tFILE")
	for _, s := range states {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, state, s.File)
	}
	return w.Flush()
}
