package cmd

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/curaious/fabricqr/internal/services/material"
)

var materialCmd = &cobra.Command{
	Use:   "material",
	Short: "Manage fabric materials",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(cmd.Help())
	},
}

var materialImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Upsert materials from a JSON array, keyed by qrCodeId",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var materials []material.Material
		if err := sonic.Unmarshal(raw, &materials); err != nil {
			return fmt.Errorf("unable to parse %s: %w", args[0], err)
		}

		_, svc, err := loadServices(ctx, nil)
		if err != nil {
			return err
		}
		defer svc.Close(ctx)

		n, err := svc.Material.Import(ctx, materials)
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d materials\n", n, len(materials))
		return err
	},
}

// Register the "material" command
func init() {
	materialCmd.AddCommand(materialImportCmd)
	rootCmd.AddCommand(materialCmd)
}
