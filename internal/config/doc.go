// Package config loads client configuration from defaults, an optional YAML
// file, .env files and the process environment, in that order of precedence.
//
// Recognised environment variables are CLIENT_ID, CLIENT_SECRET, AUTH_URL,
// TOKEN_URL, API_URL, PORT, TOKEN_FILE, TRADESTATION_ENV and LOG_LEVEL.
package config
