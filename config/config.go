package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env variable binding.
type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	// StoreBackend selects the AuthCodeRepository implementation:
	// mongo, redis, or memory.
	StoreBackend string `mapstructure:"STORE_BACKEND"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisKeyPrefix string `mapstructure:"REDIS_KEY_PREFIX"`

	// CodeHashSecret keys the digest stored in place of plaintext codes.
	// Must be identical across every instance sharing a store.
	CodeHashSecret string `mapstructure:"CODE_HASH_SECRET"`

	SweepIntervalMin   int `mapstructure:"SWEEP_INTERVAL_MIN"`
	RetentionMarginMin int `mapstructure:"RETENTION_MARGIN_MIN"`

	// AppBaseURL plus the redirect paths form the action URLs embedded in
	// delivered codes.
	AppBaseURL               string `mapstructure:"APP_BASE_URL"`
	ConfirmationRedirectPath string `mapstructure:"CONFIRMATION_REDIRECT_PATH"`
	ResetRedirectPath        string `mapstructure:"RESET_REDIRECT_PATH"`

	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/keeper-auth/")
	v.AddConfigPath("$HOME/.keeper-auth")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("STORE_BACKEND", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/keeper_auth_dev")
	v.SetDefault("MONGO_DB_NAME", "keeper_auth_dev")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_KEY_PREFIX", "keeper-auth")
	v.SetDefault("CODE_HASH_SECRET", "a_very_secret_code_hash_key_change_me") // CHANGE IN PRODUCTION
	v.SetDefault("SWEEP_INTERVAL_MIN", 5)
	v.SetDefault("RETENTION_MARGIN_MIN", 60)
	v.SetDefault("APP_BASE_URL", "https://app.keeperfind.dev")
	v.SetDefault("CONFIRMATION_REDIRECT_PATH", "/auth/confirm")
	v.SetDefault("RESET_REDIRECT_PATH", "/auth/reset")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "keeper-auth")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we run on defaults and env vars.
		// Anything else (malformed file, permissions) is a real error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if cfg.CodeHashSecret == "" {
		return nil, fmt.Errorf("CODE_HASH_SECRET cannot be empty")
	}

	return &cfg, nil
}

// SweepInterval returns how often the background sweeper runs.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMin) * time.Minute
}

// RetentionMargin returns how long records are kept past expiry before the
// sweeper removes them.
func (c *Config) RetentionMargin() time.Duration {
	return time.Duration(c.RetentionMarginMin) * time.Minute
}

// ConfirmationURLBase is the redirect URL codes for email confirmation are
// appended to.
func (c *Config) ConfirmationURLBase() string {
	return strings.TrimRight(c.AppBaseURL, "/") + c.ConfirmationRedirectPath
}

// ResetURLBase is the redirect URL codes for password reset are appended to.
func (c *Config) ResetURLBase() string {
	return strings.TrimRight(c.AppBaseURL, "/") + c.ResetRedirectPath
}
