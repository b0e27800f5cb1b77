package config

import (
	"time"

	"tradestation/pkg/oauth"
)

// GetDefaultConfig returns the configuration used when no file or environment
// override is present.
func GetDefaultConfig() Config {
	return Config{
		Environment:  EnvironmentLive,
		AuthURL:      defaultAuthURL,
		TokenURL:     defaultTokenURL,
		Port:         defaultPort,
		Audience:     oauth.DefaultAudience,
		Scopes:       append([]string(nil), oauth.DefaultScopes...),
		ExpiryMargin: oauth.DefaultExpiryMargin,
		Stream: StreamConfig{
			HeartbeatTimeout: 30 * time.Second,
			MaxRetries:       5,
			InitialBackoff:   500 * time.Millisecond,
			MaxBackoff:       30 * time.Second,
			MaxFragmentSize:  1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
