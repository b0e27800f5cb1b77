package cmd

import (
	"errors"
	"fmt"
	"os"

	"tradestation/internal/config"
	"tradestation/internal/transport"
	"tradestation/pkg/logging"
	"tradestation/pkg/oauth"
	"tradestation/pkg/tradestation"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates a new login is needed.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the client credentials were rejected.
	ExitCodeAuthFailed = 3
)

// Persistent flags shared by every command.
var (
	configPath  string
	envName     string
	logLevel    string
	dotenvFiles []string
)

// rootCmd represents the base command for the tradestation application.
var rootCmd = &cobra.Command{
	Use:   "tradestation",
	Short: "Command line client for the TradeStation brokerage API",
	Long: `tradestation logs in to the TradeStation brokerage API with OAuth,
keeps the access token fresh, and lets you query accounts and market data
or follow live bar streams from the terminal.

Credentials are read from CLIENT_ID and CLIENT_SECRET (the environment or a
.env file) or from ~/.config/tradestation/config.yaml.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:      true,
	PersistentPreRunE: initLogging,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tradestation version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case oauth.IsInvalidCredentials(err):
		return ExitCodeAuthFailed
	case oauth.IsReauthorizationRequired(err):
		return ExitCodeAuthRequired
	case transport.IsKind(err, transport.AuthExpiredRetried):
		return ExitCodeAuthRequired
	}
	return ExitCodeError
}

func initLogging(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logging.InitForCLI(level, cmd.ErrOrStderr())
	return nil
}

// loadConfig resolves the effective configuration from the persistent flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath, dotenvFiles...)
	if err != nil {
		var cerr *config.ConfigurationError
		if errors.As(err, &cerr) {
			return config.Config{}, errors.New(cerr.DetailedError())
		}
		return config.Config{}, err
	}

	if envName != "" {
		cfg.Environment = config.Environment(envName)
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}

	// The configured level applies when --log-level was not given.
	if logLevel == "" && cfg.Logging.Level != "" {
		level, err := logging.ParseLevel(cfg.Logging.Level)
		if err != nil {
			return config.Config{}, fmt.Errorf("logging.level: %w", err)
		}
		logging.Init(level, logging.Format(cfg.Logging.Format), os.Stderr)
	}
	return cfg, nil
}

// newClient builds a client from the effective configuration.
func newClient() (*tradestation.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return tradestation.New(cfg, tradestation.WithUserAgent(userAgent()))
}

// init registers the subcommands and persistent flags.
func init() {
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/tradestation/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "API environment: live or demo (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringSliceVar(&dotenvFiles, "env-file", nil, "additional .env files to load (default ./.env)")
}
