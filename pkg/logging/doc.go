// Package logging provides subsystem-tagged structured logging on top of log/slog.
//
// Every entry carries a subsystem attribute so output from the token manager,
// transport and stream sessions can be filtered independently:
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//	logging.Info("auth", "token refreshed, expires at %s", exp)
//	logging.Error("stream", err, "reconnect attempt %d failed", n)
//
// Security relevant events (token stored, token cleared) go through Audit,
// which never receives secret material.
package logging
