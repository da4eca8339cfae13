package conf

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config represents application configuration
type Config struct {
	// Discord configuration
	Discord DiscordConfig

	// Redis queue configuration
	Redis RedisConfig

	// Database configuration
	Database DatabaseConfig

	// Lookup provider configuration
	Providers ProviderConfig

	// Recovery configuration
	Recovery RecoveryConfig

	// Debug mode
	Debug bool
}

// DiscordConfig contains Discord configuration
type DiscordConfig struct {
	Token   string
	BaseURL string // empty selects the production API
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig contains database configuration
type DatabaseConfig struct {
	Path string
}

// ProviderConfig contains lookup provider endpoints, overridable for
// self-hosted instances
type ProviderConfig struct {
	FxBaseURL string
	VxBaseURL string
}

// RecoveryConfig contains the recovery sweep schedule
type RecoveryConfig struct {
	Schedule string // cron expression
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".guildwatch", "guildwatch.db")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisDB := 0
	if val := os.Getenv("REDIS_DB"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			redisDB = parsed
		}
	}

	schedule := os.Getenv("RECOVERY_SCHEDULE")
	if schedule == "" {
		// every 5 minutes
		schedule = "*/5 * * * *"
	}

	return &Config{
		Discord: DiscordConfig{
			Token:   os.Getenv("DISCORD_TOKEN"),
			BaseURL: os.Getenv("DISCORD_API_BASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Providers: ProviderConfig{
			FxBaseURL: os.Getenv("FX_API_BASE_URL"),
			VxBaseURL: os.Getenv("VX_API_BASE_URL"),
		},
		Recovery: RecoveryConfig{
			Schedule: schedule,
		},
		Debug: os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Discord.Token == "" {
		return &ConfigError{Field: "DISCORD_TOKEN", Message: "required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
