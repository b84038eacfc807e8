package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("GOPM2_BINARY")
	os.Unsetenv("GOPM2_PORT")
	os.Unsetenv("GOPM2_API_KEY")
	os.Unsetenv("GOPM2_COMMAND_TIMEOUT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Binary != "pm2" {
		t.Errorf("expected binary pm2, got %s", cfg.Binary)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.CommandTimeoutSec != 30 {
		t.Errorf("expected command timeout 30, got %d", cfg.CommandTimeoutSec)
	}
	if cfg.LogTimeoutSec != 60 {
		t.Errorf("expected log timeout 60, got %d", cfg.LogTimeoutSec)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("GOPM2_BINARY", "/opt/node/bin/pm2")
	os.Setenv("GOPM2_PORT", "9999")
	os.Setenv("GOPM2_API_KEY", "test-key")
	defer func() {
		os.Unsetenv("GOPM2_BINARY")
		os.Unsetenv("GOPM2_PORT")
		os.Unsetenv("GOPM2_API_KEY")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Binary != "/opt/node/bin/pm2" {
		t.Errorf("expected binary /opt/node/bin/pm2, got %s", cfg.Binary)
	}
	if cfg.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Port)
	}
	if cfg.APIKey != "test-key" {
		t.Errorf("expected API key test-key, got %s", cfg.APIKey)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	os.Setenv("GOPM2_PORT", "not-a-number")
	defer os.Unsetenv("GOPM2_PORT")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid port, got nil")
	}
}
