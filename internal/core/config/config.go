// internal/core/config/config.go

// Package config provides configuration management for feedmill services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// APIConfig holds configuration for the HTTP feed API service.
type APIConfig struct {
	Host            string
	Port            int
	RequestTimeout  time.Duration
	CursorTTL       time.Duration
	RandomScanLimit int
	DatabaseURL     string
}

// DefaultAPIConfig returns configuration with default values.
func DefaultAPIConfig() *APIConfig {
	return &APIConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		RequestTimeout:  30 * time.Second,
		CursorTTL:       24 * time.Hour,
		RandomScanLimit: 10000,
		DatabaseURL:     "sqlite://./feedmill.db",
	}
}

// HMACSecrets extracts API-key HMAC secrets from environment variables.
// Supports FM_HMAC_SECRET (single) and FM_HMAC_SECRET_N (rotation).
// Returns a map of secret_id to decoded secret bytes. Secret IDs are
// UUIDs without hyphens (32 hex chars), matching the API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("FM_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("FM_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Numbered secrets enable rotation: old and new keys verify during
	// the migration window.
	for i := 1; ; i++ {
		key := fmt.Sprintf("FM_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check FM_HMAC_SECRET and FM_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// CursorSecret reads the cursor-signing secret from FM_CURSOR_SECRET
// (base64, at least 32 decoded bytes). Distinct from the API-key secrets:
// rotating one must not invalidate the other.
func CursorSecret() ([]byte, error) {
	val := os.Getenv("FM_CURSOR_SECRET")
	if val == "" {
		return nil, fmt.Errorf("FM_CURSOR_SECRET environment variable is required")
	}
	secret, err := ParseHMACSecret(val)
	if err != nil {
		return nil, fmt.Errorf("FM_CURSOR_SECRET: %w", err)
	}
	return secret, nil
}

// ParseHMACSecret decodes a base64-encoded secret value.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses the <secret_id>:<base64_secret> format.
// The secret_id must be 32 hex chars (a UUID without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUID without hyphens)")
	}
	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}
	return secretID, secret, nil
}
