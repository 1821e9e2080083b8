package config

import "os"

// loadEnvironmentVariables overrides config with environment variables
func loadEnvironmentVariables(config *Config) {
	if clientID := os.Getenv("IGDB_CLIENT_ID"); clientID != "" {
		config.IGDB.ClientID = clientID
	}
	if clientSecret := os.Getenv("IGDB_CLIENT_SECRET"); clientSecret != "" {
		config.IGDB.ClientSecret = clientSecret
	}
	if dir := os.Getenv("CACHE_DIR"); dir != "" {
		config.Cache.Dir = dir
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		config.Database.URL = url
	}
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		config.Database.MigrationsPath = path
	}
	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if token := os.Getenv("ADMIN_TOKEN"); token != "" {
		config.Server.AdminToken = token
	}
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		config.Notify.DiscordToken = token
	}
	if channelID := os.Getenv("DISCORD_CHANNEL_ID"); channelID != "" {
		config.Notify.ChannelID = channelID
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
}
