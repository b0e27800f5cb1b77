package cmd

import (
	"fmt"
	"io"
	"time"

	"tradestation/internal/formatting"
	"tradestation/pkg/oauth"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the stored token: whether it is still valid, when it expires,
whether a refresh token is available and who it was issued to.

Nothing is sent to the API; the identity is read from the ID token.`,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	tok := client.Manager().Store().Get()
	cfg := client.Config()
	renderAuthStatus(cmd.OutOrStdout(), string(cfg.Environment), client.Manager().Store().Path(), tok, time.Now())
	return nil
}

// renderAuthStatus writes the status table for tok, which may be nil.
func renderAuthStatus(w io.Writer, env, path string, tok *oauth.Token, now time.Time) {
	t := formatting.NewTable(w, "KEY", "VALUE")

	t.AppendRow(table.Row{"Environment", env})
	if path != "" {
		t.AppendRow(table.Row{"Token file", path})
	}

	if tok == nil || tok.AccessToken == "" {
		t.AppendRow(table.Row{"Status", text.FgYellow.Sprint("Not logged in")})
		t.AppendRow(table.Row{"", "Run: tradestation auth login"})
		t.Render()
		return
	}

	switch {
	case tok.ExpiresWithin(now, 0):
		if tok.RefreshToken != "" {
			t.AppendRow(table.Row{"Status", text.FgYellow.Sprint("Expired (will refresh on next use)")})
		} else {
			t.AppendRow(table.Row{"Status", text.FgRed.Sprint("Expired")})
		}
	default:
		t.AppendRow(table.Row{"Status", text.FgGreen.Sprint("Authenticated")})
	}

	if !tok.ExpiresAt.IsZero() {
		t.AppendRow(table.Row{"Expires", formatExpiryWithDirectionAt(tok.ExpiresAt, now)})
	}
	if tok.RefreshToken != "" {
		t.AppendRow(table.Row{"Refresh", text.FgGreen.Sprint("Available")})
	} else {
		t.AppendRow(table.Row{"Refresh", text.FgYellow.Sprint("Not available (re-auth required on expiry)")})
	}
	if scopes := tok.Scopes(); len(scopes) > 0 {
		t.AppendRow(table.Row{"Scopes", fmt.Sprint(scopes)})
	}

	if claims, err := oauth.ParseClaims(tok.IDToken); err == nil {
		if claims.Subject != "" {
			t.AppendRow(table.Row{"Subject", claims.Subject})
		}
		if claims.Email != "" {
			t.AppendRow(table.Row{"Email", claims.Email})
		}
		if claims.Issuer != "" {
			t.AppendRow(table.Row{"Issuer", claims.Issuer})
		}
	}
	t.Render()
}

// formatExpiryWithDirection describes t relative to now, e.g. "in 19m" or "3m ago".
func formatExpiryWithDirection(t time.Time) string {
	return formatExpiryWithDirectionAt(t, time.Now())
}

func formatExpiryWithDirectionAt(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := t.Sub(now)
	if d >= 0 {
		return fmt.Sprintf("in %s (%s)", formatDuration(d), t.Local().Format(time.RFC1123))
	}
	return fmt.Sprintf("%s ago (%s)", formatDuration(-d), t.Local().Format(time.RFC1123))
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
