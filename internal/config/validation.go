package config

import (
	"net/url"
)

// Validate checks that the configuration can be used to authenticate and connect.
func (c Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return &ConfigurationError{
			Field:     "clientId/clientSecret",
			ErrorType: "validation",
			Message:   "client credentials are required",
			Suggestions: []string{
				"set CLIENT_ID and CLIENT_SECRET in the environment or a .env file",
				"or set clientId and clientSecret in config.yaml",
			},
		}
	}

	switch c.Environment {
	case EnvironmentLive, EnvironmentDemo:
	default:
		return &ConfigurationError{
			Field:       "environment",
			ErrorType:   "validation",
			Message:     "must be live or demo, got " + string(c.Environment),
			Suggestions: []string{"use --env demo for the simulated trading environment"},
		}
	}

	for field, raw := range map[string]string{"authUrl": c.AuthURL, "tokenUrl": c.TokenURL, "apiUrl": c.BaseURL()} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigurationError{Field: field, ErrorType: "validation", Message: "must be an absolute URL, got " + raw}
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigurationError{Field: "port", ErrorType: "validation", Message: "must be between 1 and 65535"}
	}
	if c.ExpiryMargin < 0 {
		return &ConfigurationError{Field: "expiryMargin", ErrorType: "validation", Message: "must not be negative"}
	}

	s := c.Stream
	if s.HeartbeatTimeout <= 0 {
		return &ConfigurationError{Field: "stream.heartbeatTimeout", ErrorType: "validation", Message: "must be positive"}
	}
	if s.MaxRetries < 0 {
		return &ConfigurationError{Field: "stream.maxRetries", ErrorType: "validation", Message: "must not be negative"}
	}
	if s.InitialBackoff <= 0 || s.MaxBackoff < s.InitialBackoff {
		return &ConfigurationError{Field: "stream.initialBackoff", ErrorType: "validation", Message: "must be positive and not exceed stream.maxBackoff"}
	}
	return nil
}
