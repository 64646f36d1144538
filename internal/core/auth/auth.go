// internal/core/auth/auth.go

// Package auth provides HMAC-based API key authentication for the HTTP API.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/averko/feedmill/internal/types"
)

/*
 * API keys follow fm-v1-<secret_id>-<random_data>. The secret_id selects
 * one of the configured HMAC secrets (O(1) map lookup, supports rotation:
 * mint new keys under a new secret while old ones keep verifying), and the
 * database stores only the HMAC-SHA256 of the full key. A leaked database
 * therefore cannot be replayed as credentials.
 */

// userIDKey is the gin context key for the authenticated user.
const userIDKey = "feedmill.user_id"

// Queries is the database surface authentication needs. Implemented by
// *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys against stored key hashes.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
}

// NewAuthenticator creates an authenticator over the configured HMAC
// secrets, keyed by secret_id.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{secrets: secrets, queries: queries}
}

// Authenticate validates an API key and returns the owning user on
// success. Each failure mode has its own sentinel so the middleware can
// map status codes without string matching.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (types.UserID, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}
	computedHash := ComputeHMAC(secret, apiKey)

	var result struct {
		APIKeyID   string       `db:"api_key_id"`
		UserID     string       `db:"user_id"`
		RevokedAt  sql.NullTime `db:"revoked_at"`
		LastUsedAt sql.NullTime `db:"last_used_at"`
	}
	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// last_used_at updates are throttled to once a minute per key to keep
	// hot clients from turning every read into a write.
	if shouldUpdateLastUsed(result.LastUsedAt) {
		_, _ = a.queries.Exec(ctx, "update-api-key-last-used", time.Now().UTC(), result.APIKeyID)
	}

	return types.UserID(result.UserID), nil
}

func shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return time.Since(lastUsed.Time) > time.Minute
}

// Middleware returns the gin handler that authenticates every request via
// the X-API-Key header and stores the user id in the request context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingKey.Error()})
			return
		}

		userID, err := a.Authenticate(c.Request.Context(), apiKey)
		if err != nil {
			switch {
			case errors.Is(err, ErrKeyRevoked):
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
			case errors.Is(err, ErrInvalidKeyFormat), errors.Is(err, ErrUnknownKey), errors.Is(err, ErrInvalidKey):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			default:
				// Database trouble is the server's fault, not the caller's.
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication unavailable"})
			}
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserIDFromContext extracts the authenticated user from a gin context.
// Empty when the request did not pass the middleware.
func UserIDFromContext(c *gin.Context) types.UserID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(types.UserID); ok {
			return id
		}
	}
	return ""
}
