// internal/engine/cursor.go
package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/averko/feedmill/internal/types"
)

/*
 * Cursor codec.
 *
 * A cursor is an opaque, single-use pagination token: the order-key value
 * and post-id tie-break of the last item on the previous page, the
 * fingerprint of the plan that produced it, the session's random seed and
 * window anchor when applicable, and an issue timestamp.
 *
 * Tokens are HMAC-SHA256 signed: base64url(payload) "." base64url(mac).
 * Signing keeps key values and seeds tamper-proof without a server-side
 * session table; the engine stays stateless.
 *
 * Decode failures are distinct by cause so callers can react precisely:
 *   - doesn't parse or signature mismatch -> ErrCursorMalformed
 *   - older than the TTL                  -> ErrCursorExpired
 *   - plan fingerprint mismatch           -> ErrStaleCursor (paginator's
 *     check, after seed re-application; see paginate.go)
 * None are retried: the same bad cursor fails the same way again. The
 * caller restarts from page one.
 */

// Cursor is the decoded token payload.
type Cursor struct {
	Fingerprint string       `json:"fp"`
	Key         int64        `json:"k"`
	ID          types.PostID `json:"id"`
	Seed        *uint64      `json:"seed,omitempty"`
	Anchor      *int64       `json:"at,omitempty"` // unix micro
	IssuedAt    int64        `json:"iat"`          // unix seconds
}

// CursorCodec encodes and decodes signed pagination tokens.
type CursorCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCursorCodec creates a codec with the given signing secret and TTL.
// A zero ttl falls back to types.DefaultCursorTTL.
func NewCursorCodec(secret []byte, ttl time.Duration) *CursorCodec {
	if ttl <= 0 {
		ttl = types.DefaultCursorTTL
	}
	return &CursorCodec{secret: secret, ttl: ttl, now: time.Now}
}

// Encode serializes and signs a cursor into an opaque token.
func (c *CursorCodec) Encode(cur Cursor) (string, error) {
	payload, err := json.Marshal(cur)
	if err != nil {
		return "", err
	}
	mac := c.sign(payload)
	return base64.RawURLEncoding.EncodeToString(payload) + "." +
		base64.RawURLEncoding.EncodeToString(mac), nil
}

// Decode verifies and parses a token. Returns ErrCursorMalformed for
// anything that doesn't parse or verify, ErrCursorExpired past the TTL.
// Fingerprint staleness is the paginator's check, not the codec's: the
// codec has no plan to compare against.
func (c *CursorCodec) Decode(token string) (Cursor, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Cursor{}, types.ErrCursorMalformed
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Cursor{}, types.ErrCursorMalformed
	}
	mac, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Cursor{}, types.ErrCursorMalformed
	}

	// Constant-time comparison prevents signature forgery via timing.
	if !hmac.Equal(mac, c.sign(payload)) {
		return Cursor{}, types.ErrCursorMalformed
	}

	var cur Cursor
	if err := json.Unmarshal(payload, &cur); err != nil {
		return Cursor{}, types.ErrCursorMalformed
	}
	if cur.Fingerprint == "" || cur.ID == "" {
		return Cursor{}, types.ErrCursorMalformed
	}

	issued := time.Unix(cur.IssuedAt, 0)
	if c.now().Sub(issued) > c.ttl {
		return Cursor{}, types.ErrCursorExpired
	}

	return cur, nil
}

// sign computes the HMAC-SHA256 tag over a payload.
func (c *CursorCodec) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write(payload)
	return h.Sum(nil)
}
