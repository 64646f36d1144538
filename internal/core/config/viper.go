// internal/core/config/viper.go
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*APIConfig, error) {
	v := viper.New()

	// Defaults matching DefaultAPIConfig
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.request_timeout", "30s")
	v.SetDefault("api.cursor_ttl", "24h")
	v.SetDefault("api.random_scan_limit", 10000)
	v.SetDefault("api.database_url", "sqlite://./feedmill.db")

	// Bind environment variables with FM_ prefix
	v.SetEnvPrefix("FM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only; config files get committed.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &APIConfig{
		Host:            v.GetString("api.host"),
		Port:            v.GetInt("api.port"),
		RequestTimeout:  v.GetDuration("api.request_timeout"),
		CursorTTL:       v.GetDuration("api.cursor_ttl"),
		RandomScanLimit: v.GetInt("api.random_scan_limit"),
		DatabaseURL:     v.GetString("api.database_url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig checks port range and positive durations and limits.
func validateConfig(cfg *APIConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.CursorTTL <= 0 {
		return fmt.Errorf("cursor_ttl must be positive, got %v", cfg.CursorTTL)
	}
	if cfg.RandomScanLimit <= 0 {
		return fmt.Errorf("random_scan_limit must be positive, got %d", cfg.RandomScanLimit)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database_url must not be empty")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.IsSet("hmac_secret") || v.IsSet("api.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use FM_HMAC_SECRET environment variable)")
	}
	if v.IsSet("cursor_secret") || v.IsSet("api.cursor_secret") {
		return fmt.Errorf("cursor secrets not allowed in config files (use FM_CURSOR_SECRET environment variable)")
	}
	return nil
}
