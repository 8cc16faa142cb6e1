// Package config loads application configuration from file, environment
// and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Scan    ScanConfig    `mapstructure:"scan"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	AI      AIConfig      `mapstructure:"ai"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ScanConfig holds crawl pacing settings.
type ScanConfig struct {
	ChunkSize  int           `mapstructure:"chunk_size"`
	FetchDelay time.Duration `mapstructure:"fetch_delay"`
	ChunkPause time.Duration `mapstructure:"chunk_pause"`
	MaxPages   int           `mapstructure:"max_pages"`
}

// FetcherConfig holds page retrieval settings.
type FetcherConfig struct {
	UserAgent        string        `mapstructure:"user_agent"`
	Timeout          time.Duration `mapstructure:"timeout"`
	EnableJavaScript bool          `mapstructure:"enable_javascript"`
	ChromiumPath     string        `mapstructure:"chromium_path"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Type string `mapstructure:"type"` // "file" or "sqlite"
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// AIConfig holds the rewrite-suggestion API settings.
type AIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Endpoint    string  `mapstructure:"endpoint"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// Enabled reports whether suggestion requests can be made.
func (a AIConfig) Enabled() bool { return a.APIKey != "" }

// Load reads configuration from configPath (or the default search
// paths when empty), layering environment variables over file values
// over defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.seo-checker")
	}

	setDefaults(v)

	v.SetEnvPrefix("SEOCHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("ai.api_key", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("scan.chunk_size", 10)
	v.SetDefault("scan.fetch_delay", "1s")
	v.SetDefault("scan.chunk_pause", "2s")
	v.SetDefault("scan.max_pages", 100)

	v.SetDefault("fetcher.user_agent", "SEOChecker/1.0")
	v.SetDefault("fetcher.timeout", "30s")
	v.SetDefault("fetcher.enable_javascript", false)

	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", "./data")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("ai.max_tokens", 300)
	v.SetDefault("ai.temperature", 0.7)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Scan.ChunkSize <= 0 {
		return fmt.Errorf("scan.chunk_size must be positive")
	}
	if c.Scan.MaxPages <= 0 {
		return fmt.Errorf("scan.max_pages must be positive")
	}
	switch c.Storage.Type {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.type must be %q or %q, got %q", "file", "sqlite", c.Storage.Type)
	}
	return nil
}
