// Package types provides domain models shared across feedmill components.
//
// Zero-dependency design: types.go, blocks.go and errors.go use only the
// standard library. ID utilities in ids.go import uuid but are isolated so
// callers that only need the model don't pull it in.
package types

import "time"

// PostID identifies a post. UUIDv7 time-ordering ensures sequential IDs
// cluster in B-tree indexes, which also makes it a well-behaved pagination
// tie-break: ascending ID order is roughly insertion order.
type PostID string

// UserID identifies a user account.
type UserID string

// FeedID identifies a persisted feed definition.
type FeedID string

// PostType classifies the content of a post.
type PostType string

const (
	PostTypeText  PostType = "text"
	PostTypeImage PostType = "image"
	PostTypeVideo PostType = "video"
	PostTypeLink  PostType = "link"
)

// KnownPostType reports whether t is one of the supported post types.
func KnownPostType(t PostType) bool {
	switch t {
	case PostTypeText, PostTypeImage, PostTypeVideo, PostTypeLink:
		return true
	}
	return false
}

// Visibility controls who may see a post.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityFollowers Visibility = "followers"
)

// PostStatus is the moderation/lifecycle state of a post. Only published
// posts are ever eligible for feed results; pending posts are excluded at
// the visibility stage together with soft-deleted ones.
type PostStatus string

const (
	PostStatusPublished PostStatus = "published"
	PostStatusPending   PostStatus = "pending"
)

// Post is a single post row as returned by an executor. Counter fields are
// denormalized aggregates maintained by the write path; windowed popularity
// is derived from the engagement event table instead.
type Post struct {
	ID             PostID     `db:"post_id" json:"id"`
	AuthorID       UserID     `db:"author_id" json:"authorId"`
	AuthorUsername string     `db:"author_username" json:"authorUsername"`
	Type           PostType   `db:"post_type" json:"type"`
	Body           string     `db:"body" json:"body"`
	Visibility     Visibility `db:"visibility" json:"visibility"`
	Status         PostStatus `db:"status" json:"status"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
	LikeCount      int64      `db:"like_count" json:"likeCount"`
	CommentCount   int64      `db:"comment_count" json:"commentCount"`
	ShareCount     int64      `db:"share_count" json:"shareCount"`
}

// FeedDefinition is a named, persisted, ordered block pipeline owned by a
// user. Blocks are stored as the tagged-union JSON array and re-validated
// with the same rules on every write. JSON (de)serialization of the block
// list goes through EncodeBlocks/DecodeBlocks, not struct tags.
type FeedDefinition struct {
	ID        FeedID    `db:"feed_id"`
	OwnerID   UserID    `db:"owner_id"`
	Name      string    `db:"name"`
	Blocks    []Block   `db:"-"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Resource limits enforced by the pipeline validator and paginator.
const (
	// MaxPipelineBlocks bounds compile time and definition storage size.
	// 32 blocks is far beyond any useful pipeline a visual editor produces.
	MaxPipelineBlocks = 32

	// MaxFilterValues bounds the value set of a single filter block.
	// 100 usernames/hashtags keeps generated WHERE clauses and in-memory
	// membership checks cheap.
	MaxFilterValues = 100

	// MaxPageSize is the hard cap on a single result page regardless of
	// pipeline limit blocks or the requested page size.
	MaxPageSize = 200

	// DefaultPageSize applies when the caller doesn't request a page size.
	DefaultPageSize = 20

	// DefaultCursorTTL invalidates pagination tokens after a browsing
	// session has plausibly ended. Expired cursors restart from page one.
	DefaultCursorTTL = 24 * time.Hour
)
