package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
discord_token: from-file
command_prefix: "?"
database:
  driver: postgres
  dsn: postgres://bot@localhost/modwarden
settings_cache:
  size: 64
  ttl_seconds: 30
`)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DISCORD_TOKEN", "from-env")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("SCHEDULER_FIRE_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "from-env" {
		t.Fatalf("env should override file, got %q", cfg.DiscordToken)
	}
	if cfg.CommandPrefix != "?" || cfg.Database.Driver != "postgres" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected normalised log level, got %q", cfg.LogLevel)
	}
	if cfg.SettingsCache.TTL() != 30*time.Second || cfg.Scheduler.FireTimeout() != 5*time.Second {
		t.Fatalf("unexpected durations: %v %v", cfg.SettingsCache.TTL(), cfg.Scheduler.FireTimeout())
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
discord_token: token
database:
  driver: mysql
`)
	t.Setenv("CONFIG_PATH", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for driver")
	}

	path = writeConfig(t, `
discord_token: token
command_prefix: "   "
`)
	t.Setenv("CONFIG_PATH", path)
	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error for blank prefix")
	}
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiscordToken = "token"
	if err := validate.Struct(cfg); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestBuildLogger(t *testing.T) {
	logger, err := BuildLogger("warn")
	if err != nil {
		t.Fatalf("build logger: %v", err)
	}
	if logger.Core().Enabled(-1) {
		t.Fatalf("debug should be disabled at warn level")
	}
}
