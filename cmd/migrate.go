package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/curaious/fabricqr/internal/config"
	"github.com/curaious/fabricqr/internal/db"
	"github.com/curaious/fabricqr/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run Postgres migrations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(cmd.Help())
	},
}

func newMigrator(ctx context.Context) (*migrations.Migrator, error) {
	conf := config.ReadConfig()
	if !conf.HasPostgres() {
		return nil, errors.New("migrations need DB_HOST and DB_NAME; MongoDB indexes are created by `serve`")
	}

	conn, err := db.NewConn(ctx, conf)
	if err != nil {
		return nil, err
	}
	return migrations.NewMigrator(ctx, conn)
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to initialize migrator: %w", err)
		}

		migrator.MigrationStatus()
		return nil
	},
}

var migrateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new empty migration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := cmd.Flags().GetString("name")
		if err != nil {
			return err
		}
		if name == "" {
			return errors.New("--name is required")
		}

		dir, err := cmd.Flags().GetString("dir")
		if err != nil {
			return err
		}

		_, err = migrations.CreateMigration(dir, name, time.Now())
		return err
	},
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run up migrations",
	Long:  "Run all 'up' migrations by default.\nIf step is provided, it will run `N` 'up' migrations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to initialize migrator: %w", err)
		}

		step, err := cmd.Flags().GetInt("step")
		if err != nil {
			return err
		}

		if err := migrator.Up(cmd.Context(), step); err != nil {
			return fmt.Errorf("unable to run `up` migrations: %w", err)
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Run down migrations",
	Long:  "Run all 'down' migrations by default.\nIf step is provided, it will run `N` 'down' migrations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, err := newMigrator(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to initialize migrator: %w", err)
		}

		step, err := cmd.Flags().GetInt("step")
		if err != nil {
			return err
		}

		if err := migrator.Down(cmd.Context(), step); err != nil {
			return fmt.Errorf("unable to run `down` migrations: %w", err)
		}
		return nil
	},
}

// Register the "migrate" command
func init() {
	migrateCreateCmd.Flags().StringP("name", "n", "", "Name for the migration")
	migrateCreateCmd.Flags().String("dir", "./internal/migrations", "Directory to write the migration into")
	migrateCmd.AddCommand(migrateCreateCmd)

	migrateUpCmd.Flags().IntP("step", "s", 0, "Number of migrations to execute")
	migrateCmd.AddCommand(migrateUpCmd)

	migrateDownCmd.Flags().IntP("step", "s", 0, "Number of migrations to execute")
	migrateCmd.AddCommand(migrateDownCmd)

	migrateCmd.AddCommand(migrateStatusCmd)

	rootCmd.AddCommand(migrateCmd)
}
