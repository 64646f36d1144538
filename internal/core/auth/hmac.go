// internal/core/auth/hmac.go
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strings"
)

// ParseAPIKey extracts secret_id and random_data from an API key.
// Format: fm-v1-<secret_id>-<random_data>, where secret_id is 32 hex chars
// (a UUID without hyphens) and random_data is 64 hex chars (256 bits).
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 {
		return "", "", ErrInvalidKeyFormat
	}
	if parts[0] != "fm" || parts[1] != "v1" {
		return "", "", ErrInvalidKeyFormat
	}

	secretID = parts[2]
	randomData = parts[3]
	if len(secretID) != 32 || len(randomData) != 64 {
		return "", "", ErrInvalidKeyFormat
	}
	for _, c := range secretID + randomData {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", "", ErrInvalidKeyFormat
		}
	}
	return secretID, randomData, nil
}

// ComputeHMAC computes the HMAC-SHA256 signature of an API key. The
// database stores this signature, never the key itself.
func ComputeHMAC(secret []byte, apiKey string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return h.Sum(nil)
}

// VerifyHMAC compares signatures in constant time.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}

// FormatAPIKey constructs an API key from its components. Used by key
// generation tooling and tests.
func FormatAPIKey(secretID, randomData string) string {
	return fmt.Sprintf("fm-v1-%s-%s", secretID, randomData)
}
