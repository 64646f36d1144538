// internal/core/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/averko/feedmill/internal/engine"
	"github.com/averko/feedmill/internal/types"
)

/*
 * In-memory plan executor.
 *
 * Holds posts, tag sets, follow edges and engagement events in maps and
 * evaluates plans with engine.MatchPost. Used as the test double for
 * pagination scenarios and as the reference the SQL generation is checked
 * against: both executors must produce identical pages for identical
 * fixtures.
 */

// Engagement is one recorded like/comment/share event. Windowed popularity
// counts these; the all-time counters live on the post row.
type Engagement struct {
	PostID    types.PostID
	Kind      string // like, comment, share
	CreatedAt time.Time
}

// MemoryStore is a fixture-backed executor.
type MemoryStore struct {
	mu          sync.RWMutex
	posts       map[types.PostID]types.Post
	hashtags    map[types.PostID][]string
	follows     map[types.UserID]map[types.UserID]bool // follower -> followee set
	engagements []Engagement
	now         func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:    make(map[types.PostID]types.Post),
		hashtags: make(map[types.PostID][]string),
		follows:  make(map[types.UserID]map[types.UserID]bool),
		now:      time.Now,
	}
}

// AddPost inserts or replaces a post and its tag set.
func (m *MemoryStore) AddPost(post types.Post, tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[post.ID] = post
	m.hashtags[post.ID] = append([]string(nil), tags...)
}

// RemovePost deletes a post outright (distinct from soft deletion, which is
// a field on the post row).
func (m *MemoryStore) RemovePost(id types.PostID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	delete(m.hashtags, id)
}

// AddFollow records follower -> followee.
func (m *MemoryStore) AddFollow(follower, followee types.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.follows[follower]
	if set == nil {
		set = make(map[types.UserID]bool)
		m.follows[follower] = set
	}
	set[followee] = true
}

// AddEngagement records one engagement event.
func (m *MemoryStore) AddEngagement(e Engagement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engagements = append(m.engagements, e)
}

// SetNow overrides the clock anchoring popularity windows.
func (m *MemoryStore) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// FindPage implements engine.Executor with the same total order and
// strictly-after bound semantics as the SQL executor.
func (m *MemoryStore) FindPage(_ context.Context, plan *engine.QueryPlan, after *engine.KeyBound, limit int) ([]engine.Item, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []engine.Item
	for _, post := range m.posts {
		pctx := engine.PostContext{
			Hashtags:            m.hashtags[post.ID],
			ViewerFollowsAuthor: m.follows[plan.Viewer][post.AuthorID],
		}
		if !engine.MatchPost(plan.Predicate, post, pctx) {
			continue
		}
		matched = append(matched, engine.Item{Post: post, Key: m.orderKey(plan.Order, post)})
	}

	desc := plan.Order.Direction == types.Descending
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Key != matched[j].Key {
			if desc {
				return matched[i].Key > matched[j].Key
			}
			return matched[i].Key < matched[j].Key
		}
		return matched[i].Post.ID < matched[j].Post.ID
	})

	if after != nil {
		idx := sort.Search(len(matched), func(i int) bool {
			if matched[i].Key != after.Key {
				if desc {
					return matched[i].Key < after.Key
				}
				return matched[i].Key > after.Key
			}
			return matched[i].Post.ID > after.ID
		})
		matched = matched[idx:]
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// orderKey computes a post's int64 order-key value under the plan's order.
func (m *MemoryStore) orderKey(key engine.OrderKey, post types.Post) int64 {
	switch key.Kind {
	case engine.OrderPopular:
		if key.Window == 0 {
			switch key.Metric {
			case types.MetricLikes:
				return post.LikeCount
			case types.MetricComments:
				return post.CommentCount
			case types.MetricShares:
				return post.ShareCount
			default:
				return post.LikeCount + post.CommentCount + post.ShareCount
			}
		}
		// Anchored plans pin the window to the session's reference instant;
		// the store clock only serves plans executed outside a pagination
		// session (direct fixture queries).
		anchor := m.now()
		if key.Anchor != nil {
			anchor = time.UnixMicro(*key.Anchor)
		}
		return m.windowedCount(post.ID, key.Metric, key.Window, anchor)

	case engine.OrderRandom:
		var seed uint64
		if key.Seed != nil {
			seed = *key.Seed
		}
		return engine.RandomRank(seed, post.ID)

	default:
		return post.CreatedAt.UnixMicro()
	}
}

// windowedCount counts engagement events of the metric's kind inside the
// trailing window ending at anchor.
func (m *MemoryStore) windowedCount(id types.PostID, metric types.Metric, window time.Duration, anchor time.Time) int64 {
	start := anchor.Add(-window)
	kind := metricKind(metric)
	var n int64
	for _, e := range m.engagements {
		if e.PostID != id || e.CreatedAt.Before(start) {
			continue
		}
		if kind != "" && e.Kind != kind {
			continue
		}
		n++
	}
	return n
}
