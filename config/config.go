// Package config loads the example applications' runtime settings from the
// environment (optionally via a .env file), keeping environment-specific
// wiring out of the ant package itself.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything an example app needs to open a stick and log its
// session.
type Config struct {
	// Device is the serial device path the stick is attached to.
	Device string
	// Baud overrides the transport's default baud rate; 0 means "use the
	// transport's own default".
	Baud int
	// NetworkKey is the network key to register on slot 0, hex-encoded as
	// 16 characters (8 bytes).
	NetworkKey string
	// LogLevel sets ant's package-level logger verbosity.
	LogLevel string
	// LogFile, if non-empty, is where a session event log is written.
	LogFile string
}

// FromEnv loads a .env file if present (missing is not an error) and builds
// a Config from environment variables:
//
//	ANT_DEVICE      serial device path (required)
//	ANT_BAUD        baud rate override (optional)
//	ANT_NETWORK_KEY hex-encoded 8-byte network key (optional)
//	ANT_LOG_LEVEL   ant package logger level (optional, default "info")
//	ANT_LOG_FILE    event log output path (optional)
func FromEnv() (*Config, error) {
	_ = godotenv.Load()

	device := os.Getenv("ANT_DEVICE")
	if device == "" {
		return nil, fmt.Errorf("config: ANT_DEVICE is required")
	}

	cfg := &Config{
		Device:     device,
		NetworkKey: os.Getenv("ANT_NETWORK_KEY"),
		LogLevel:   envOr("ANT_LOG_LEVEL", "info"),
		LogFile:    os.Getenv("ANT_LOG_FILE"),
	}

	if raw := os.Getenv("ANT_BAUD"); raw != "" {
		baud, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: invalid ANT_BAUD %q: %w", raw, err)
		}
		cfg.Baud = baud
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
