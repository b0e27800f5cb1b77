package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	cfg := GetDefaultConfig()
	cfg.ClientID = "id"
	cfg.ClientSecret = "secret"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.ClientSecret = "" }, "client credentials are required"},
		{"bad environment", func(c *Config) { c.Environment = "paper" }, "must be live or demo"},
		{"relative token url", func(c *Config) { c.TokenURL = "/oauth/token" }, "tokenUrl"},
		{"port out of range", func(c *Config) { c.Port = 70000 }, "port"},
		{"zero heartbeat", func(c *Config) { c.Stream.HeartbeatTimeout = 0 }, "heartbeatTimeout"},
		{"negative retries", func(c *Config) { c.Stream.MaxRetries = -1 }, "maxRetries"},
		{"backoff inverted", func(c *Config) { c.Stream.MaxBackoff = time.Millisecond }, "initialBackoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
