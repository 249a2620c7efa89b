package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaripeHS/BlayStorm-sub001/config"
	"github.com/KaripeHS/BlayStorm-sub001/internal/app"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	withMigrator := func(run func(cmd *cobra.Command, conn *postgres.Connection, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.App.Store != config.StorePostgres {
				return fmt.Errorf("migrations need the postgres store, configured store is %q", cfg.App.Store)
			}
			conn, err := app.OpenPostgres(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer conn.Close()
			return run(cmd, conn, postgres.NewMigrator(conn))
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, _ *postgres.Connection, m *postgres.Migrator) error {
				n, err := m.Migrate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, _ *postgres.Connection, m *postgres.Migrator) error {
				v, err := m.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				if v == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reverted migration %03d\n", v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(func(cmd *cobra.Command, conn *postgres.Connection, m *postgres.Migrator) error {
				health, err := conn.Health(cmd.Context())
				if err != nil {
					return err
				}
				printHealth(cmd, health)

				migs, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				printMigrations(cmd, migs)
				return nil
			}),
		},
	)
	return cmd
}

func printMigrations(cmd *cobra.Command, migs []postgres.Migration) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, m := range migs {
		applied := "pending"
		if m.IsApplied {
			applied = m.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%03d\t%s\t%s\n", m.Version, m.Name, applied)
	}
	_ = w.Flush()
}

func printHealth(cmd *cobra.Command, h *postgres.HealthStatus) {
	if !h.Healthy {
		fmt.Fprintf(cmd.OutOrStdout(), "database: unhealthy: %s\n", h.Error)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "database: ok ping=%s conns=%d/%d idle=%d\n",
		h.PingLatency.Round(time.Microsecond), h.AcquiredConns, h.MaxConns, h.IdleConns)
}
