package config

import (
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	ServerPort    string `mapstructure:"SERVER_PORT"`
	IndexURL      string `mapstructure:"INDEX_URL"`
	DetailBaseURL string `mapstructure:"DETAIL_BASE_URL"`
	ScrapeWorkers int    `mapstructure:"SCRAPE_WORKERS"`
	IndexTimeout  int    `mapstructure:"INDEX_TIMEOUT"`
	DetailTimeout int    `mapstructure:"DETAIL_TIMEOUT"`
	MaxPhotos     int    `mapstructure:"MAX_PHOTOS"`
	SeenTTLHours  int    `mapstructure:"SEEN_TTL_HOURS"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present
	// This allows configuration purely through environment variables in production
	_ = viper.ReadInConfig()

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("INDEX_URL", "https://www.prevost-stuff.com/forsale/public_list_ads.php")
	viper.SetDefault("DETAIL_BASE_URL", "https://www.prevost-stuff.com/forsale/")
	viper.SetDefault("SCRAPE_WORKERS", 8)
	viper.SetDefault("INDEX_TIMEOUT", 20)  // in seconds
	viper.SetDefault("DETAIL_TIMEOUT", 15) // in seconds
	viper.SetDefault("MAX_PHOTOS", 5)
	viper.SetDefault("SEEN_TTL_HOURS", 24)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
