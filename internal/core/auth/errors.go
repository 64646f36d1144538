// internal/core/auth/errors.go
package auth

import "errors"

// Authentication failure modes. Missing, malformed, unknown-secret and
// invalid keys all map to 401 without confirming whether the key exists;
// revoked maps to 403 because the caller has proven they once held it.
var (
	ErrMissingKey       = errors.New("API key required in X-API-Key header")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
)
