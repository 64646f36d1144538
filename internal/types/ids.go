package types

import (
	"time"

	"github.com/google/uuid"
)

// NewPostID generates a UUIDv7 post identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewPostID() PostID {
	return PostID(uuid.Must(uuid.NewV7()).String())
}

// NewFeedID generates a UUIDv7 feed definition identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewFeedID() FeedID {
	return FeedID(uuid.Must(uuid.NewV7()).String())
}

// NewUserID generates a UUIDv7 user identifier.
func NewUserID() UserID {
	return UserID(uuid.Must(uuid.NewV7()).String())
}

// ParseFeedID validates and converts a string to FeedID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseFeedID(s string) (FeedID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return FeedID(s), nil
}

// ParsePostID validates and converts a string to PostID.
func ParsePostID(s string) (PostID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return PostID(s), nil
}

// PostIDTime extracts the timestamp embedded in a UUIDv7 post ID.
// Enables time-based queries without database lookup.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func PostIDTime(id PostID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
