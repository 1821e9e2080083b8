package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	IGDB     IGDBConfig     `yaml:"igdb"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Server   ServerConfig   `yaml:"server"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// IGDBConfig holds IGDB/Twitch API configuration
type IGDBConfig struct {
	ClientID       string `yaml:"client_id" env:"IGDB_CLIENT_ID"`
	ClientSecret   string `yaml:"client_secret" env:"IGDB_CLIENT_SECRET"`
	BaseURL        string `yaml:"base_url,omitempty"`
	TokenURL       string `yaml:"token_url,omitempty"`
	PageSize       int    `yaml:"page_size,omitempty"`
	MaxRetries     int    `yaml:"max_retries,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds,omitempty"`
	RateLimitMs    int    `yaml:"rate_limit_ms,omitempty"`
	PopularityType int    `yaml:"popularity_type,omitempty"`
}

// CacheConfig holds the key/value cache configuration
type CacheConfig struct {
	Dir              string `yaml:"dir" env:"CACHE_DIR"`
	SnapshotTTLHours int    `yaml:"snapshot_ttl_hours,omitempty"`
}

// DatabaseConfig holds the optional relational fallback configuration
type DatabaseConfig struct {
	URL            string `yaml:"url" env:"DATABASE_URL"`
	MigrationsPath string `yaml:"migrations_path,omitempty" env:"MIGRATIONS_PATH"`
}

// SyncConfig controls the daily refresh schedule
type SyncConfig struct {
	Hour    int  `yaml:"hour"`
	Enabled bool `yaml:"enabled"`
}

// ServerConfig holds the HTTP control surface configuration
type ServerConfig struct {
	Addr       string `yaml:"addr" env:"SERVER_ADDR"`
	AdminToken string `yaml:"admin_token" env:"ADMIN_TOKEN"`
}

// NotifyConfig holds optional Discord alerting configuration
type NotifyConfig struct {
	DiscordToken string `yaml:"discord_token" env:"DISCORD_TOKEN"`
	ChannelID    string `yaml:"channel_id" env:"DISCORD_CHANNEL_ID"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Start with minimal defaults (let YAML override)
	config := &Config{
		IGDB: IGDBConfig{
			BaseURL:        "https://api.igdb.com/v4",
			TokenURL:       "https://id.twitch.tv/oauth2/token",
			PageSize:       500,
			MaxRetries:     10,
			TimeoutSeconds: 30,
			RateLimitMs:    250,
			PopularityType: 1,
		},
		Cache: CacheConfig{
			Dir:              "data/cache",
			SnapshotTTLHours: 24,
		},
		Sync: SyncConfig{
			Hour:    2,
			Enabled: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	// Load from YAML file if it exists
	if configPath != "" {
		if err := loadYAMLFile(configPath, config); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	// Override with environment variables
	loadEnvironmentVariables(config)

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// loadYAMLFile loads configuration from a YAML file
func loadYAMLFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// validateConfig ensures required configuration is present
func validateConfig(config *Config) error {
	if config.IGDB.ClientID == "" {
		return fmt.Errorf("IGDB client ID is required (set IGDB_CLIENT_ID environment variable)")
	}
	if config.IGDB.ClientSecret == "" {
		return fmt.Errorf("IGDB client secret is required (set IGDB_CLIENT_SECRET environment variable)")
	}
	if config.Cache.Dir == "" {
		return fmt.Errorf("cache directory must be configured")
	}
	if config.Sync.Hour < 0 || config.Sync.Hour > 23 {
		return fmt.Errorf("sync hour must be between 0 and 23, got %d", config.Sync.Hour)
	}
	return nil
}

// GetPageSize returns the crawl batch size with bounds checking
func (c *IGDBConfig) GetPageSize() int {
	if c.PageSize < 1 {
		return 1
	}
	if c.PageSize > 500 {
		return 500 // IGDB caps limit at 500
	}
	return c.PageSize
}

// GetMaxRetries returns the per-request retry budget with bounds checking
func (c *IGDBConfig) GetMaxRetries() int {
	if c.MaxRetries < 1 {
		return 1
	}
	return c.MaxRetries
}

// GetRequestTimeout returns the per-request timeout as a duration
func (c *IGDBConfig) GetRequestTimeout() time.Duration {
	if c.TimeoutSeconds < 1 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRateLimitDelay returns the minimum delay between API calls
func (c *IGDBConfig) GetRateLimitDelay() time.Duration {
	if c.RateLimitMs < 100 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

// GetSnapshotTTL returns the snapshot expiry as a duration
func (c *CacheConfig) GetSnapshotTTL() time.Duration {
	if c.SnapshotTTLHours < 1 {
		return 24 * time.Hour
	}
	return time.Duration(c.SnapshotTTLHours) * time.Hour
}

// GetMigrationsPath returns the migrations directory, defaulting to "migrations"
func (c *DatabaseConfig) GetMigrationsPath() string {
	if c.MigrationsPath == "" {
		return "migrations"
	}
	return c.MigrationsPath
}

// NotifyEnabled reports whether Discord alerting is configured
func (c *NotifyConfig) NotifyEnabled() bool {
	return c.DiscordToken != "" && c.ChannelID != ""
}
