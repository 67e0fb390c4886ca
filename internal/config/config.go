// This file defines the configuration structure for the application.
package config

import (
	// use Viper for loading the config.yml file.
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port     int `mapstructure:"port"`
	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`
	Site struct {
		BaseURL   string `mapstructure:"base_url"`
		UserAgent string `mapstructure:"user_agent"`
	} `mapstructure:"site"`
	HTTP struct {
		TimeoutSeconds int `mapstructure:"timeout_seconds"`
	} `mapstructure:"http"`
	Browser struct {
		Headless          bool `mapstructure:"headless"`
		NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
	} `mapstructure:"browser"`
	Warming struct {
		ToplistIntervalHours   int      `mapstructure:"toplist_interval_hours"`
		FollowsIntervalMinutes int      `mapstructure:"follows_interval_minutes"`
		StartupDelaySeconds    int      `mapstructure:"startup_delay_seconds"`
		Toplists               []string `mapstructure:"toplists"`
	} `mapstructure:"warming"`
	Cover struct {
		MaxWidth int `mapstructure:"max_width"`
	} `mapstructure:"cover"`
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct.
func Load() (*Config, error) {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or "yaml"
	viper.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// This tells Viper to look for environment variables with an "INKROAD_"
	// prefix. e.g., INKROAD_DATABASE_PATH overrides the `database.path` key.
	viper.SetEnvPrefix("INKROAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("port", 8080)
	viper.SetDefault("database.path", "./inkroad.db")
	viper.SetDefault("site.base_url", "https://www.royalroad.com")
	viper.SetDefault("site.user_agent", "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0")
	viper.SetDefault("http.timeout_seconds", 15)
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.nav_timeout_seconds", 60)
	viper.SetDefault("warming.toplist_interval_hours", 6)
	viper.SetDefault("warming.follows_interval_minutes", 20)
	viper.SetDefault("warming.startup_delay_seconds", 30)
	viper.SetDefault("warming.toplists", []string{"rising-stars", "trending", "best-rated"})
	viper.SetDefault("cover.max_width", 600)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
