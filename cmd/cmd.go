package cmd

import (
	"context"
	"log"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/curaious/fabricqr/internal/config"
	"github.com/curaious/fabricqr/internal/metrics"
	"github.com/curaious/fabricqr/internal/services"
)

var rootCmd = &cobra.Command{
	Use:          "fabricqr",
	Short:        "Fabric material QR lookup and auth API",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := godotenv.Overload()
		if err != nil {
			log.Println("Error loading .env file, skipping")
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err.Error())
	}
}

// loadServices reads the config and connects to the configured store.
func loadServices(ctx context.Context, m *metrics.Metrics) (*config.Config, *services.Services, error) {
	conf := config.ReadConfig()
	slog.Info("Loaded configuration", slog.String("config", conf.String()))

	svc, err := services.NewServices(ctx, conf, m)
	if err != nil {
		return nil, nil, err
	}
	return conf, svc, nil
}
