// internal/engine/paginate_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/averko/feedmill/internal/types"
)

// fakeExecutor serves pages from an in-memory post list with the same
// total-order and strictly-after semantics the storage layer implements.
type fakeExecutor struct {
	posts []types.Post
	err   error
}

func (f *fakeExecutor) FindPage(_ context.Context, plan *QueryPlan, after *KeyBound, limit int) ([]Item, error) {
	if f.err != nil {
		return nil, f.err
	}

	items := make([]Item, 0, len(f.posts))
	for _, p := range f.posts {
		if !MatchPost(plan.Predicate, p, PostContext{}) {
			continue
		}
		var key int64
		switch plan.Order.Kind {
		case OrderRandom:
			key = RandomRank(*plan.Order.Seed, p.ID)
		case OrderPopular:
			key = p.LikeCount
		default:
			key = p.CreatedAt.UnixMicro()
		}
		items = append(items, Item{Post: p, Key: key})
	}

	desc := plan.Order.Direction == types.Descending
	sort.Slice(items, func(i, j int) bool {
		if items[i].Key != items[j].Key {
			if desc {
				return items[i].Key > items[j].Key
			}
			return items[i].Key < items[j].Key
		}
		return items[i].Post.ID < items[j].Post.ID
	})

	if after != nil {
		idx := sort.Search(len(items), func(i int) bool {
			if items[i].Key != after.Key {
				if desc {
					return items[i].Key < after.Key
				}
				return items[i].Key > after.Key
			}
			return items[i].Post.ID > after.ID
		})
		items = items[idx:]
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func fixturePosts(n int) []types.Post {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]types.Post, n)
	for i := range posts {
		posts[i] = types.Post{
			ID:         types.PostID(fmt.Sprintf("p%03d", i)),
			AuthorID:   "alice",
			Type:       types.PostTypeText,
			Visibility: types.VisibilityPublic,
			Status:     types.PostStatusPublished,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
	}
	return posts
}

func testPaginator(exec Executor) *Paginator {
	return NewPaginator(exec, testCodec())
}

func TestPaginate_WalksAllPages(t *testing.T) {
	exec := &fakeExecutor{posts: fixturePosts(5)}
	p := testPaginator(exec)
	plan := mustCompile(t, nil, "viewer-1")

	ctx := context.Background()
	var seen []types.PostID
	cursor := ""
	pages := 0
	for {
		page, err := p.Paginate(ctx, plan, cursor, 2)
		if err != nil {
			t.Fatalf("Paginate() error = %v", err)
		}
		pages++
		for _, item := range page.Items {
			seen = append(seen, item.Post.ID)
		}
		if !page.HasMore {
			if page.NextCursor != "" {
				t.Error("NextCursor set on final page")
			}
			break
		}
		if page.NextCursor == "" {
			t.Fatal("HasMore without NextCursor")
		}
		cursor = page.NextCursor
	}

	if pages != 3 {
		t.Errorf("walked %d pages, want 3", pages)
	}
	if len(seen) != 5 {
		t.Fatalf("saw %d items, want 5", len(seen))
	}
	// Default order is recent desc: newest id first, no gaps or repeats.
	for i := 1; i < len(seen); i++ {
		if seen[i] >= seen[i-1] {
			t.Errorf("items out of order: %s before %s", seen[i-1], seen[i])
		}
	}
}

func TestPaginate_PlanCapBoundsPage(t *testing.T) {
	exec := &fakeExecutor{posts: fixturePosts(10)}
	p := testPaginator(exec)
	plan := mustCompile(t, []types.Block{
		types.FilterType{Types: []types.PostType{types.PostTypeText}, Mode: types.ModeInclude},
		types.Limit{Count: 2},
	}, "viewer-1")

	page, err := p.Paginate(context.Background(), plan, "", 50)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(page.Items) != 2 {
		t.Errorf("page size = %d, want 2 (pipeline limit)", len(page.Items))
	}
}

func TestPaginate_DefaultAndMaxPageSize(t *testing.T) {
	exec := &fakeExecutor{posts: fixturePosts(250)}
	p := testPaginator(exec)
	plan := mustCompile(t, nil, "viewer-1")

	page, err := p.Paginate(context.Background(), plan, "", 0)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(page.Items) != types.DefaultPageSize {
		t.Errorf("default page size = %d, want %d", len(page.Items), types.DefaultPageSize)
	}

	page, err = p.Paginate(context.Background(), plan, "", 1000)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(page.Items) != types.MaxPageSize {
		t.Errorf("oversized request page = %d, want %d", len(page.Items), types.MaxPageSize)
	}
}

func TestPaginate_StaleCursorOnEdit(t *testing.T) {
	exec := &fakeExecutor{posts: fixturePosts(5)}
	p := testPaginator(exec)

	original := mustCompile(t, []types.Block{
		types.SortRecent{Direction: types.Descending},
	}, "viewer-1")

	page, err := p.Paginate(context.Background(), original, "", 2)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	// The pipeline is edited between requests: same cursor, new order.
	edited := mustCompile(t, []types.Block{
		types.SortRecent{Direction: types.Ascending},
	}, "viewer-1")

	_, err = p.Paginate(context.Background(), edited, page.NextCursor, 2)
	if !errors.Is(err, types.ErrStaleCursor) {
		t.Fatalf("Paginate() with edited plan error = %v, want ErrStaleCursor", err)
	}

	// The unedited plan still resumes fine.
	if _, err := p.Paginate(context.Background(), original, page.NextCursor, 2); err != nil {
		t.Errorf("Paginate() resume error = %v, want nil", err)
	}
}

func TestPaginate_AutoSeededRandomSession(t *testing.T) {
	exec := &fakeExecutor{posts: fixturePosts(6)}
	p := testPaginator(exec)

	compileRandom := func() *QueryPlan {
		return mustCompile(t, []types.Block{types.SortRandom{}}, "viewer-1")
	}

	ctx := context.Background()
	first, err := p.Paginate(ctx, compileRandom(), "", 2)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(first.Items) != 2 || !first.HasMore {
		t.Fatalf("first page = %d items HasMore=%v, want 2 true", len(first.Items), first.HasMore)
	}

	// Resume compiles a fresh unseeded plan, as a stateless server would.
	// The cursor's carried seed must keep the session's permutation.
	seen := map[types.PostID]bool{}
	for _, item := range first.Items {
		seen[item.Post.ID] = true
	}

	second, err := p.Paginate(ctx, compileRandom(), first.NextCursor, 2)
	if err != nil {
		t.Fatalf("Paginate() resume error = %v", err)
	}
	for _, item := range second.Items {
		if seen[item.Post.ID] {
			t.Errorf("post %s repeated across random pages", item.Post.ID)
		}
		seen[item.Post.ID] = true
	}

	third, err := p.Paginate(ctx, compileRandom(), second.NextCursor, 2)
	if err != nil {
		t.Fatalf("Paginate() resume error = %v", err)
	}
	for _, item := range third.Items {
		if seen[item.Post.ID] {
			t.Errorf("post %s repeated across random pages", item.Post.ID)
		}
		seen[item.Post.ID] = true
	}
	if len(seen) != 6 {
		t.Errorf("saw %d distinct posts, want 6", len(seen))
	}
}

func TestPaginate_UserSeedChangeTripsStale(t *testing.T) {
	exec := &fakeExecutor{posts: fixturePosts(6)}
	p := testPaginator(exec)

	seedA := uint64(1)
	planA := mustCompile(t, []types.Block{types.SortRandom{Seed: &seedA}}, "viewer-1")
	page, err := p.Paginate(context.Background(), planA, "", 2)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}

	seedB := uint64(2)
	planB := mustCompile(t, []types.Block{types.SortRandom{Seed: &seedB}}, "viewer-1")
	_, err = p.Paginate(context.Background(), planB, page.NextCursor, 2)
	if !errors.Is(err, types.ErrStaleCursor) {
		t.Fatalf("Paginate() with changed seed error = %v, want ErrStaleCursor", err)
	}
}

func TestPaginate_ExactFitLastPage(t *testing.T) {
	// [filter image, sort-recent desc, limit 2] over one text and two image
	// posts: both matching posts fill the page exactly and the scan is over.
	// HasMore must be false with no cursor, not a dangling cursor to an
	// empty page.
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mkPost := func(id string, kind types.PostType, at time.Time) types.Post {
		return types.Post{
			ID: types.PostID(id), AuthorID: "alice", Type: kind,
			Visibility: types.VisibilityPublic, Status: types.PostStatusPublished,
			CreatedAt: at,
		}
	}
	exec := &fakeExecutor{posts: []types.Post{
		mkPost("post-a", types.PostTypeText, base.Add(3*time.Minute)),
		mkPost("post-b", types.PostTypeImage, base.Add(2*time.Minute)),
		mkPost("post-c", types.PostTypeImage, base.Add(time.Minute)),
	}}
	p := testPaginator(exec)
	plan := mustCompile(t, []types.Block{
		types.FilterType{Types: []types.PostType{types.PostTypeImage}, Mode: types.ModeInclude},
		types.SortRecent{Direction: types.Descending},
		types.Limit{Count: 2},
	}, "viewer-1")

	page, err := p.Paginate(context.Background(), plan, "", 0)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Post.ID != "post-b" || page.Items[1].Post.ID != "post-c" {
		t.Fatalf("page items = %v, want [post-b post-c]", page.Items)
	}
	if page.HasMore {
		t.Error("exact-fit final page reported HasMore")
	}
	if page.NextCursor != "" {
		t.Error("exact-fit final page issued a cursor")
	}
}

func TestPaginate_ExhaustedReturnsEmptyPage(t *testing.T) {
	// A cursor issued while more data existed may outlive that data. The
	// resumed request answers with an empty page, not an error.
	exec := &fakeExecutor{posts: fixturePosts(4)}
	p := testPaginator(exec)
	plan := mustCompile(t, nil, "viewer-1")
	ctx := context.Background()

	first, err := p.Paginate(ctx, plan, "", 2)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if !first.HasMore {
		t.Fatal("first page should report HasMore")
	}

	// The two unseen posts disappear before the cursor is redeemed.
	exec.posts = exec.posts[2:]

	second, err := p.Paginate(ctx, plan, first.NextCursor, 2)
	if err != nil {
		t.Fatalf("Paginate() past exhaustion error = %v, want nil", err)
	}
	if len(second.Items) != 0 || second.HasMore || second.NextCursor != "" {
		t.Errorf("exhausted page = %+v, want empty terminal page", second)
	}
}

func TestPaginate_WindowedAnchorCarriedInCursor(t *testing.T) {
	posts := fixturePosts(5)
	for i := range posts {
		posts[i].LikeCount = int64(10 * (i + 1))
	}
	exec := &fakeExecutor{posts: posts}
	p := testPaginator(exec)

	compileWindowed := func() *QueryPlan {
		return mustCompile(t, []types.Block{
			types.SortPopular{Metric: types.MetricLikes, Direction: types.Descending, Window: 24 * time.Hour},
		}, "viewer-1")
	}

	ctx := context.Background()
	first, err := p.Paginate(ctx, compileWindowed(), "", 2)
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if !first.HasMore {
		t.Fatal("first page should report HasMore")
	}

	cur, err := testCodec().Decode(first.NextCursor)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cur.Anchor == nil {
		t.Fatal("windowed session cursor carries no window anchor")
	}

	// Resume compiles a fresh unanchored plan, as a stateless server would.
	// The carried anchor must keep the fingerprint stable.
	second, err := p.Paginate(ctx, compileWindowed(), first.NextCursor, 2)
	if err != nil {
		t.Fatalf("Paginate() resume error = %v", err)
	}
	for _, it := range second.Items {
		for _, prev := range first.Items {
			if it.Post.ID == prev.Post.ID {
				t.Errorf("post %s repeated across windowed pages", it.Post.ID)
			}
		}
	}
}

func TestPaginate_ExecutorFailure(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("connection refused")}
	p := testPaginator(exec)
	plan := mustCompile(t, nil, "viewer-1")

	_, err := p.Paginate(context.Background(), plan, "", 2)
	if !errors.Is(err, types.ErrExecution) {
		t.Fatalf("Paginate() error = %v, want ErrExecution", err)
	}
}

func TestPaginate_MalformedAndExpiredPassThrough(t *testing.T) {
	exec := &fakeExecutor{posts: fixturePosts(3)}
	p := testPaginator(exec)
	plan := mustCompile(t, nil, "viewer-1")

	_, err := p.Paginate(context.Background(), plan, "not-a-cursor", 2)
	if !errors.Is(err, types.ErrCursorMalformed) {
		t.Fatalf("Paginate() error = %v, want ErrCursorMalformed", err)
	}
}
