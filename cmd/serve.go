package cmd

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/curaious/fabricqr/internal/api"
	"github.com/curaious/fabricqr/internal/api/authenticator"
	"github.com/curaious/fabricqr/internal/metrics"
	"github.com/curaious/fabricqr/internal/migrations"
	"github.com/curaious/fabricqr/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		m := metrics.NewMetrics(prometheus.NewRegistry())
		conf, svc, err := loadServices(ctx, m)
		if err != nil {
			return err
		}
		defer svc.Close(ctx)

		if conf.InsecureSecret() {
			slog.Warn("JWT_SECRET is not set; tokens are signed with the built-in default secret and can be forged")
		}

		shutdownTelemetry, err := telemetry.NewProvider(ctx, conf)
		if err != nil {
			return err
		}
		defer shutdownTelemetry()

		migrate, err := cmd.Flags().GetBool("migrate")
		if err != nil {
			return err
		}
		if migrate && svc.Postgres != nil {
			migrator, err := migrations.NewMigrator(ctx, svc.Postgres)
			if err != nil {
				return err
			}
			if err := migrator.Up(ctx, 0); err != nil {
				return err
			}
		}

		stopWatch, err := svc.WatchMaterials(conf)
		if err != nil {
			slog.Warn("Material change feed not started; material cache disabled", slog.Any("error", err))
		}
		defer stopWatch()

		google, err := authenticator.NewGoogleAuthenticator(ctx, conf)
		if err != nil {
			return err
		}
		if google.Enabled() {
			slog.Info("Google login enabled", slog.Bool("require_id_token", google.RequireIDToken()))
		}

		return api.New(conf, svc, m, authenticator.NewTokenIssuer(conf), google).Start()
	},
}

// Register the "serve" command
func init() {
	serveCmd.Flags().Bool("migrate", true, "Apply pending Postgres migrations before serving")
	rootCmd.AddCommand(serveCmd)
}
