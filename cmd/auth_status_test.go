package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"tradestation/pkg/oauth"
)

func TestRenderAuthStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		tok  *oauth.Token
		want []string
	}{
		{
			name: "not logged in",
			tok:  nil,
			want: []string{"Not logged in", "tradestation auth login"},
		},
		{
			name: "valid with refresh token",
			tok:  &oauth.Token{AccessToken: "secret-access-value", RefreshToken: "r", ExpiresAt: now.Add(19 * time.Minute), Scope: "openid MarketData"},
			want: []string{"Authenticated", "in 19m", "Available", "MarketData"},
		},
		{
			name: "expired with refresh token",
			tok:  &oauth.Token{AccessToken: "secret-access-value", RefreshToken: "r", ExpiresAt: now.Add(-3 * time.Minute)},
			want: []string{"will refresh on next use", "3m ago"},
		},
		{
			name: "expired without refresh token",
			tok:  &oauth.Token{AccessToken: "secret-access-value", ExpiresAt: now.Add(-time.Hour)},
			want: []string{"Expired", "Not available"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			renderAuthStatus(&buf, "demo", "/tmp/token.json", tt.tok, now)
			out := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output should contain %q, got:\n%s", want, out)
				}
			}
			if tt.tok != nil && strings.Contains(out, "secret-access-value") {
				t.Errorf("output must not contain token values:\n%s", out)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{19 * time.Minute, "19m"},
		{2*time.Hour + 5*time.Minute, "2h5m"},
		{72 * time.Hour, "3d"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatExpiryWithDirectionAt(t *testing.T) {
	now := time.Now()
	if got := formatExpiryWithDirectionAt(time.Time{}, now); got != "never" {
		t.Errorf("zero time = %q, want never", got)
	}
	if got := formatExpiryWithDirectionAt(now.Add(-90*time.Second), now); !strings.HasPrefix(got, "1m ago") {
		t.Errorf("past expiry = %q", got)
	}
}
