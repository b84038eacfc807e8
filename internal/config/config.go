package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the gopm2 tooling (CLI and API
// server). The core library takes its binary path and timeouts directly;
// this struct only feeds the outer surfaces.
type Config struct {
	// Binary is the pm2 executable to invoke ("pm2" resolves via PATH).
	Binary string

	// Port is the API server listen port.
	Port int

	// APIKey guards the API server when non-empty. An empty key leaves the
	// server open, which is only sane on localhost.
	APIKey string

	// DataDir holds the operation-history SQLite database.
	DataDir string

	// CommandTimeoutSec bounds each pm2 invocation.
	CommandTimeoutSec int

	// LogTimeoutSec bounds log retrieval, which may move far more output.
	LogTimeoutSec int

	// MetricsIntervalSec is the process-metrics poll interval for the API
	// server. 0 disables the poller.
	MetricsIntervalSec int
}

// Load reads configuration from environment variables with sensible
// defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Binary:             envOrDefault("GOPM2_BINARY", "pm2"),
		Port:               8080,
		APIKey:             os.Getenv("GOPM2_API_KEY"),
		DataDir:            envOrDefault("GOPM2_DATA_DIR", defaultDataDir()),
		CommandTimeoutSec:  30,
		LogTimeoutSec:      60,
		MetricsIntervalSec: 15,
	}

	var err error
	if cfg.Port, err = envOrDefaultInt("GOPM2_PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.CommandTimeoutSec, err = envOrDefaultInt("GOPM2_COMMAND_TIMEOUT", cfg.CommandTimeoutSec); err != nil {
		return nil, err
	}
	if cfg.LogTimeoutSec, err = envOrDefaultInt("GOPM2_LOG_TIMEOUT", cfg.LogTimeoutSec); err != nil {
		return nil, err
	}
	if cfg.MetricsIntervalSec, err = envOrDefaultInt("GOPM2_METRICS_INTERVAL", cfg.MetricsIntervalSec); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gopm2"
	}
	return home + "/.gopm2"
}

func envOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func envOrDefaultInt(key string, defaultValue int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, val, err)
	}
	return n, nil
}
