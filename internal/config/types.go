package config

import (
	"time"

	"tradestation/pkg/oauth"
)

// Environment selects which API deployment requests go to.
type Environment string

const (
	EnvironmentLive Environment = "live"
	EnvironmentDemo Environment = "demo"
)

const (
	liveAPIURL = "https://api.tradestation.com/v3"
	demoAPIURL = "https://sim-api.tradestation.com/v3"

	defaultAuthURL  = "https://signin.tradestation.com/authorize"
	defaultTokenURL = "https://signin.tradestation.com/oauth/token"
	defaultPort     = 8080
)

// Config is the complete client configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	ClientID     string `yaml:"clientId"`
	ClientSecret string `yaml:"clientSecret"`

	AuthURL  string `yaml:"authUrl"`
	TokenURL string `yaml:"tokenUrl"`
	// APIURL overrides the base URL derived from Environment.
	APIURL string `yaml:"apiUrl,omitempty"`

	// Port is the local port of the login callback listener.
	Port     int      `yaml:"port"`
	Audience string   `yaml:"audience"`
	Scopes   []string `yaml:"scopes"`

	// TokenFile persists the token between runs. Empty keeps tokens in memory only.
	TokenFile    string        `yaml:"tokenFile"`
	ExpiryMargin time.Duration `yaml:"expiryMargin"`

	Stream  StreamConfig  `yaml:"stream"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StreamConfig controls liveness detection and reconnection of stream sessions.
type StreamConfig struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeatTimeout"`
	MaxRetries       int           `yaml:"maxRetries"`
	InitialBackoff   time.Duration `yaml:"initialBackoff"`
	MaxBackoff       time.Duration `yaml:"maxBackoff"`
	MaxFragmentSize  int           `yaml:"maxFragmentSize"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Addr, when set, serves /metrics on that address while streaming.
	Addr string `yaml:"addr"`
}

// Credential returns the OAuth client credential.
func (c Config) Credential() oauth.Credential {
	return oauth.Credential{ClientID: c.ClientID, ClientSecret: c.ClientSecret}
}

// Endpoint returns the authorization server endpoints.
func (c Config) Endpoint() oauth.Endpoint {
	return oauth.Endpoint{AuthURL: c.AuthURL, TokenURL: c.TokenURL}
}

// BaseURL returns the REST and streaming base URL for the configured environment.
func (c Config) BaseURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	if c.Environment == EnvironmentDemo {
		return demoAPIURL
	}
	return liveAPIURL
}
