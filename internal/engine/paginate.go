// internal/engine/paginate.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/averko/feedmill/internal/types"
)

/*
 * Pagination orchestration.
 *
 * A pagination session walks a total order (order key, then post-id
 * ascending) with strictly-after semantics delegated to the executor.
 * Keyset pagination makes concurrent inserts benign: posts inserted before
 * the cursor position never perturb already-issued pages, and posts after
 * it are included or excluded purely by their key. That is the specified
 * behavior, not a defect to mask.
 *
 * Session state machine:
 *
 *   Initial -> (no cursor, compile) -> PageFetched(C1)
 *           -> (decode C1, same fingerprint) -> PageFetched(C2) -> ...
 *           -> Exhausted (lookahead row absent)
 *
 * HasMore comes from a one-row lookahead: the executor is asked for one
 * item past the page, so an exact-fit final page reports HasMore=false
 * with no cursor rather than a dangling cursor to an empty page. A cursor
 * issued before the data shrank still resolves: the resumed request
 * deterministically returns an empty page, not an error.
 *
 * Unseeded sort-random plans get their seed here, on the first page, and
 * the seed rides inside every cursor of the session. Windowed sort-popular
 * plans are anchored the same way: the first page pins the window's
 * reference instant and every cursor carries it, so trailing-window keys
 * do not shift between requests of one session. On resume the carried seed
 * and anchor are re-applied to the freshly compiled plan before the
 * fingerprint comparison, so auto-seeded and auto-anchored sessions stay
 * stable while an edited pipeline or a changed user seed still trips
 * ErrStaleCursor.
 */

// Item is one result row together with its computed order-key value.
// Executors return the key because for windowed popularity it is not
// derivable from the post row alone.
type Item struct {
	Post types.Post
	Key  int64
}

// KeyBound is the "last seen" position of a cursor: executors return items
// strictly after it in the plan's total order.
type KeyBound struct {
	Key int64
	ID  types.PostID
}

// Page is one paginated result.
type Page struct {
	Items      []Item
	NextCursor string // empty when HasMore is false
	HasMore    bool
}

// Executor is the post-store capability the engine compiles plans for.
// Implementations must honor the plan's predicate, order, and the
// strictly-after bound, and return at most limit items.
type Executor interface {
	FindPage(ctx context.Context, plan *QueryPlan, after *KeyBound, limit int) ([]Item, error)
}

// Paginator runs pagination sessions against an executor.
type Paginator struct {
	exec  Executor
	codec *CursorCodec
	seed  func() uint64
}

// NewPaginator creates a paginator. The codec signs and checks cursors;
// seeds for unseeded random plans come from NewSeed.
func NewPaginator(exec Executor, codec *CursorCodec) *Paginator {
	return &Paginator{exec: exec, codec: codec, seed: NewSeed}
}

// Paginate fetches one page for the plan. cursorToken is empty for the
// first page. pageSize <= 0 selects the default.
func (p *Paginator) Paginate(ctx context.Context, plan *QueryPlan, cursorToken string, pageSize int) (Page, error) {
	limit := effectiveCap(plan.ResultCap, pageSize)

	var bound *KeyBound
	if cursorToken != "" {
		cur, err := p.codec.Decode(cursorToken)
		if err != nil {
			return Page{}, err
		}
		if plan.NeedsSeed() && cur.Seed != nil {
			plan = plan.WithSeed(*cur.Seed)
		}
		if plan.NeedsAnchor() && cur.Anchor != nil {
			plan = plan.WithAnchor(*cur.Anchor)
		}
		if plan.Fingerprint() != cur.Fingerprint {
			return Page{}, types.ErrStaleCursor
		}
		bound = &KeyBound{Key: cur.Key, ID: cur.ID}
	} else {
		if plan.NeedsSeed() {
			plan = plan.WithSeed(p.seed())
		}
		if plan.NeedsAnchor() {
			plan = plan.WithAnchor(time.Now().UnixMicro())
		}
	}

	// One-row lookahead: an exact-fit final page must report HasMore=false,
	// so HasMore is the presence of an item past the page, not page fullness.
	items, err := p.exec.FindPage(ctx, plan, bound, limit+1)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", types.ErrExecution, err)
	}

	var page Page
	if len(items) > limit {
		items = items[:limit]
		page.HasMore = true
	}
	page.Items = items
	if page.HasMore {
		last := items[len(items)-1]
		next, err := p.codec.Encode(Cursor{
			Fingerprint: plan.Fingerprint(),
			Key:         last.Key,
			ID:          last.Post.ID,
			Seed:        plan.Order.Seed,
			Anchor:      plan.Order.Anchor,
			IssuedAt:    time.Now().Unix(),
		})
		if err != nil {
			return Page{}, fmt.Errorf("encoding cursor: %w", err)
		}
		page.NextCursor = next
	}
	return page, nil
}

// effectiveCap resolves the per-page item cap:
// min(pipeline limit or unbounded, requested size or default, hard max).
func effectiveCap(planCap uint32, pageSize int) int {
	n := types.DefaultPageSize
	if pageSize > 0 {
		n = pageSize
	}
	if n > types.MaxPageSize {
		n = types.MaxPageSize
	}
	if planCap > 0 && int(planCap) < n {
		n = int(planCap)
	}
	return n
}
