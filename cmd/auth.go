package cmd

import (
	"fmt"

	"tradestation/pkg/logging"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var authQuiet bool

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication with the brokerage API",
	Long: `Manage the OAuth session used by every other command.

Examples:
  tradestation auth login              # Login through the browser
  tradestation auth status             # Show the stored token
  tradestation auth refresh            # Force a token refresh
  tradestation auth logout             # Forget the stored token`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored token",
	Long: `Remove the stored OAuth token. The next command that needs the API
will ask you to login again.`,
	RunE: runAuthLogout,
}

// authRefreshCmd represents the auth refresh command
var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Force a token refresh",
	Long: `Exchange the stored refresh token for a new access token now,
regardless of how long the current one is still valid.`,
	RunE: runAuthRefresh,
}

// authPrint prints output only if the --quiet flag is not set.
func authPrint(cmd *cobra.Command, format string, args ...interface{}) {
	if !authQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authRefreshCmd)

	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	if err := client.Logout(); err != nil {
		return fmt.Errorf("failed to remove stored token: %w", err)
	}
	logging.Audit("CLI", "logout")
	authPrint(cmd, "%s\n", text.FgGreen.Sprint("Logged out"))
	return nil
}

func runAuthRefresh(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	tok, err := client.Manager().Refresh(cmd.Context())
	if err != nil {
		return err
	}
	authPrint(cmd, "%s, new token expires %s\n", text.FgGreen.Sprint("Token refreshed"), formatExpiryWithDirection(tok.ExpiresAt))
	return nil
}
