package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken      string         `yaml:"discord_token"`
	DataDir           string         `yaml:"data_dir"`
	DatabasePath      string         `yaml:"database_path"`
	LogLevel          string         `yaml:"log_level"`
	DefaultLogChannel string         `yaml:"default_log_channel"`
	Health            HealthConfig   `yaml:"health"`
	Giveaway          GiveawayConfig `yaml:"giveaway"`
	Embeds            EmbedConfig    `yaml:"embeds"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type GiveawayConfig struct {
	MaxWinners        int    `yaml:"max_winners"`
	DefaultJoinSignal string `yaml:"default_join_signal"`
	DefaultColor      int    `yaml:"default_color"`
}

type EmbedConfig struct {
	Primary int    `yaml:"primary"`
	Warning int    `yaml:"warning"`
	Error   int    `yaml:"error"`
	Footer  string `yaml:"footer"`
}

func DefaultConfig() Config {
	return Config{
		DataDir:           "/data/state",
		DatabasePath:      "/data/mickey.db",
		LogLevel:          "info",
		DefaultLogChannel: "",
		Health:            HealthConfig{Enabled: false, Addr: ":8080"},
		Giveaway: GiveawayConfig{
			MaxWinners:        50,
			DefaultJoinSignal: "\U0001F389",
			DefaultColor:      0x00D9FF,
		},
		Embeds: EmbedConfig{
			Primary: 0x00D9FF,
			Warning: 0xFFD700,
			Error:   0xFF0000,
			Footer:  "Mickey Mouse Trap House",
		},
	}
}

func Load() (Config, error) {
	_ = godotenv.Load()

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
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Giveaway.MaxWinners <= 0 || cfg.Giveaway.MaxWinners > 50 {
		cfg.Giveaway.MaxWinners = 50
	}
	if cfg.Giveaway.DefaultJoinSignal == "" {
		cfg.Giveaway.DefaultJoinSignal = "\U0001F389"
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DataDir = envString("DATA_DIR", cfg.DataDir)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultLogChannel = envString("DEFAULT_LOG_CHANNEL", cfg.DefaultLogChannel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Giveaway.MaxWinners = envInt("GIVEAWAY_MAX_WINNERS", cfg.Giveaway.MaxWinners)
	cfg.Giveaway.DefaultJoinSignal = envString("GIVEAWAY_JOIN_SIGNAL", cfg.Giveaway.DefaultJoinSignal)
	cfg.Giveaway.DefaultColor = envInt("GIVEAWAY_COLOR", cfg.Giveaway.DefaultColor)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

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
