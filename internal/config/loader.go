package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"tradestation/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/tradestation"
	configFileName = "config.yaml"
	tokenFileName  = "token.json"
)

// DefaultConfigDir returns ~/.config/tradestation.
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (or the default location when path is empty), then .env files, then
// process environment. The result is validated.
func Load(path string, dotenvFiles ...string) (Config, error) {
	if path == "" {
		dir, err := DefaultConfigDir()
		if err == nil {
			path = filepath.Join(dir, configFileName)
		}
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return Config{}, err
	}

	if err := LoadDotEnv(dotenvFiles...); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg, os.LookupEnv)

	if cfg.TokenFile == "" {
		if dir, err := DefaultConfigDir(); err == nil {
			cfg.TokenFile = filepath.Join(dir, tokenFileName)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an error.
func LoadConfig(configFilePath string) (Config, error) {
	config := GetDefaultConfig()
	if configFilePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debug("ConfigLoader", "No config file found at %s, using defaults", configFilePath)
			return config, nil
		}
		return Config{}, &ConfigurationError{FilePath: configFilePath, ErrorType: "io", Message: err.Error()}
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, &ConfigurationError{
			FilePath:    configFilePath,
			ErrorType:   "parse",
			Message:     err.Error(),
			Suggestions: []string{"durations are written like 30s or 500ms"},
		}
	}
	logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	return config, nil
}

// LoadDotEnv loads .env files into the process environment without overriding
// variables that are already set. With no arguments it tries ./.env.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return &ConfigurationError{FilePath: f, ErrorType: "parse", Message: err.Error()}
		}
		logging.Debug("ConfigLoader", "Loaded environment from %s", f)
	}
	return nil
}

// applyEnvOverrides overrides fields from well-known environment variables.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("CLIENT_ID", &cfg.ClientID)
	set("CLIENT_SECRET", &cfg.ClientSecret)
	set("AUTH_URL", &cfg.AuthURL)
	set("TOKEN_URL", &cfg.TokenURL)
	set("API_URL", &cfg.APIURL)
	set("TOKEN_FILE", &cfg.TokenFile)
	set("LOG_LEVEL", &cfg.Logging.Level)

	if v, ok := lookup("TRADESTATION_ENV"); ok && v != "" {
		cfg.Environment = Environment(v)
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		} else {
			logging.Warn("ConfigLoader", "Ignoring PORT=%q: not a number", v)
		}
	}
}
