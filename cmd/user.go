package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(cmd.Help())
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a password account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		username, _ := flags.GetString("username")
		email, _ := flags.GetString("email")
		password, _ := flags.GetString("password")
		isAdmin, _ := flags.GetBool("admin")
		canScan, _ := flags.GetBool("can-scan")

		_, svc, err := loadServices(ctx, nil)
		if err != nil {
			return err
		}
		defer svc.Close(ctx)

		u, err := svc.User.CreatePasswordUser(ctx, username, email, password, isAdmin, canScan)
		if err != nil {
			return fmt.Errorf("unable to create user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.Username, u.ID)
		return nil
	},
}

var userGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Change the admin and scan flags of a user",
	Long:  "Only the flags that are passed are changed. Tokens already issued keep their old claims until they expire.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		flags := cmd.Flags()

		username, _ := flags.GetString("username")

		var isAdmin, canScan *bool
		if flags.Changed("admin") {
			v, _ := flags.GetBool("admin")
			isAdmin = &v
		}
		if flags.Changed("can-scan") {
			v, _ := flags.GetBool("can-scan")
			canScan = &v
		}
		if isAdmin == nil && canScan == nil {
			return fmt.Errorf("nothing to change: pass --admin and/or --can-scan")
		}

		_, svc, err := loadServices(ctx, nil)
		if err != nil {
			return err
		}
		defer svc.Close(ctx)

		u, err := svc.User.Grant(ctx, username, isAdmin, canScan)
		if err != nil {
			return fmt.Errorf("unable to update user: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "user %s: isAdmin=%t canScanQr=%t\n", u.Username, u.IsAdmin, u.CanScanQr)
		return nil
	},
}

// Register the "user" command
func init() {
	userCreateCmd.Flags().String("username", "", "Username")
	userCreateCmd.Flags().String("email", "", "Email address")
	userCreateCmd.Flags().String("password", "", "Password")
	userCreateCmd.Flags().Bool("admin", false, "Grant administrator privilege")
	userCreateCmd.Flags().Bool("can-scan", false, "Allow QR scanning")
	for _, name := range []string{"username", "email", "password"} {
		_ = userCreateCmd.MarkFlagRequired(name)
	}
	userCmd.AddCommand(userCreateCmd)

	userGrantCmd.Flags().String("username", "", "Username")
	userGrantCmd.Flags().Bool("admin", false, "Administrator privilege")
	userGrantCmd.Flags().Bool("can-scan", false, "QR scanning")
	_ = userGrantCmd.MarkFlagRequired("username")
	userCmd.AddCommand(userGrantCmd)

	rootCmd.AddCommand(userCmd)
}
