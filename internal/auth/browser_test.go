package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserCommand(t *testing.T) {
	const authURL = "https://signin.tradestation.com/authorize?response_type=code&client_id=abc&state=xyz"

	tests := []struct {
		name     string
		goos     string
		env      string
		wantName string
		wantArgs []string
	}{
		{"linux", "linux", "", "xdg-open", []string{authURL}},
		{"freebsd", "freebsd", "", "xdg-open", []string{authURL}},
		{"darwin", "darwin", "", "open", []string{authURL}},
		{"windows keeps the query intact", "windows", "", "rundll32", []string{"url.dll,FileProtocolHandler", authURL}},
		{"BROWSER wins", "linux", "firefox", "firefox", []string{authURL}},
		{"BROWSER with arguments", "darwin", "  chromium --new-window ", "chromium", []string{"--new-window", authURL}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, err := browserCommand(tt.goos, tt.env, authURL)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBrowserCommand_UnknownPlatform(t *testing.T) {
	_, _, err := browserCommand("plan9", "", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open the login URL manually")
}
