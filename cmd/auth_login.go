package cmd

import (
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login through the browser",
	Long: `Start the OAuth authorization code flow.

A browser window opens on the TradeStation sign-in page. After you approve
access the browser is redirected to a local listener (PORT, default 8080)
and the code is exchanged for a token, which is stored for later commands.`,
	RunE: runAuthLogin,
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	onURL := func(url string) {
		authPrint(cmd, "Opening your browser to sign in. If it does not open, visit:\n\n  %s\n\n", url)
		if authQuiet {
			return
		}
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Writer = cmd.ErrOrStderr()
		s.Suffix = " Waiting for the browser login to complete..."
		s.Start()
	}

	tok, err := client.LoginWithBrowser(cmd.Context(), onURL)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	authPrint(cmd, "%s, token expires %s\n", text.FgGreen.Sprint("Logged in"), formatExpiryWithDirection(tok.ExpiresAt))
	return nil
}
