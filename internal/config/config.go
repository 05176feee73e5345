package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken  string          `yaml:"discord_token" validate:"required"`
	CommandPrefix string          `yaml:"command_prefix" validate:"notblank,max=8"`
	LogLevel      string          `yaml:"log_level" validate:"oneof=debug info warn error"`
	Database      DatabaseConfig  `yaml:"database"`
	Health        HealthConfig    `yaml:"health"`
	SettingsCache CacheConfig     `yaml:"settings_cache"`
	Scheduler     SchedulerConfig `yaml:"scheduler"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true"`
}

type CacheConfig struct {
	Size       int    `yaml:"size" validate:"min=1"`
	TTLSeconds int    `yaml:"ttl_seconds" validate:"min=1"`
	RedisURL   string `yaml:"redis_url" validate:"omitempty,url"`
}

type SchedulerConfig struct {
	FireTimeoutSeconds int `yaml:"fire_timeout_seconds" validate:"min=1"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c SchedulerConfig) FireTimeout() time.Duration {
	return time.Duration(c.FireTimeoutSeconds) * time.Second
}

func DefaultConfig() Config {
	return Config{
		CommandPrefix: "!",
		LogLevel:      "info",
		Database:      DatabaseConfig{Driver: "sqlite", DSN: "/data/modwarden.db"},
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		SettingsCache: CacheConfig{Size: 1024, TTLSeconds: 600},
		Scheduler:     SchedulerConfig{FireTimeoutSeconds: 30},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Load reads .env (if present), the YAML file at CONFIG_PATH and then
// environment overrides, in that order.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)

	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.CommandPrefix = envString("COMMAND_PREFIX", cfg.CommandPrefix)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DATABASE_DSN", cfg.Database.DSN)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.SettingsCache.Size = envInt("SETTINGS_CACHE_SIZE", cfg.SettingsCache.Size)
	cfg.SettingsCache.TTLSeconds = envInt("SETTINGS_CACHE_TTL_SECONDS", cfg.SettingsCache.TTLSeconds)
	cfg.SettingsCache.RedisURL = envString("REDIS_URL", cfg.SettingsCache.RedisURL)
	cfg.Scheduler.FireTimeoutSeconds = envInt("SCHEDULER_FIRE_TIMEOUT_SECONDS", cfg.Scheduler.FireTimeoutSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(strings.ToLower(level)))
	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
