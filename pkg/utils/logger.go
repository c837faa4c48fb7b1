package utils

import "go.uber.org/zap"

// NewLogger returns the zap logger every component shares. When debug is
// true, uses development config (human-readable, debug level); otherwise
// production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
