package auth

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// OpenBrowser starts the user's browser on the authorization URL. $BROWSER,
// when set, takes precedence over the platform opener. The launcher is not
// waited for; login completes through the callback server.
func OpenBrowser(authURL string) error {
	name, args, err := browserCommand(runtime.GOOS, os.Getenv("BROWSER"), authURL)
	if err != nil {
		return err
	}

	// #nosec G204 -- the URL is built by oauth.Client.AuthCodeURL
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// browserCommand picks the program that opens authURL. The authorization URL
// carries several query parameters, so on Windows it goes through rundll32
// rather than "cmd /c start", which would split it at each '&'.
func browserCommand(goos, browserEnv, authURL string) (string, []string, error) {
	if fields := strings.Fields(browserEnv); len(fields) > 0 {
		return fields[0], append(fields[1:], authURL), nil
	}

	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "xdg-open", []string{authURL}, nil
	case "darwin":
		return "open", []string{authURL}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", authURL}, nil
	default:
		return "", nil, fmt.Errorf("no browser opener for %s; open the login URL manually", goos)
	}
}
