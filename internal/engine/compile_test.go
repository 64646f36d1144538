// internal/engine/compile_test.go
package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/averko/feedmill/internal/types"
)

func mustCompile(t *testing.T, blocks []types.Block, viewer types.UserID) *QueryPlan {
	t.Helper()
	p, err := Validate(blocks)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	plan, err := Compile(p, viewer)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return plan
}

func TestCompile_RejectsUnvalidated(t *testing.T) {
	_, err := Compile(nil, "viewer-1")
	if !errors.Is(err, types.ErrUnvalidatedPipeline) {
		t.Fatalf("Compile(nil) error = %v, want ErrUnvalidatedPipeline", err)
	}
}

func TestCompile_DefaultOrder(t *testing.T) {
	plan := mustCompile(t, nil, "viewer-1")
	if plan.Order.Kind != OrderRecent || plan.Order.Direction != types.Descending {
		t.Errorf("default order = %+v, want recent desc", plan.Order)
	}
}

func TestCompile_LastSortWins(t *testing.T) {
	plan := mustCompile(t, []types.Block{
		types.SortRecent{Direction: types.Descending},
		types.SortPopular{Metric: types.MetricLikes, Direction: types.Descending},
	}, "viewer-1")

	if plan.Order.Kind != OrderPopular {
		t.Fatalf("order kind = %v, want OrderPopular", plan.Order.Kind)
	}
	if plan.Order.Metric != types.MetricLikes {
		t.Errorf("order metric = %v, want likes", plan.Order.Metric)
	}
}

func TestCompile_RandomForcesAscending(t *testing.T) {
	seed := uint64(7)
	plan := mustCompile(t, []types.Block{
		types.SortRandom{Seed: &seed},
	}, "viewer-1")

	if plan.Order.Kind != OrderRandom {
		t.Fatalf("order kind = %v, want OrderRandom", plan.Order.Kind)
	}
	if plan.Order.Direction != types.Ascending {
		t.Errorf("random order direction = %v, want asc", plan.Order.Direction)
	}
	if plan.Order.Seed == nil || *plan.Order.Seed != 7 {
		t.Errorf("seed = %v, want 7", plan.Order.Seed)
	}
}

func TestCompile_VisibilityAlwaysPresent(t *testing.T) {
	pipelines := [][]types.Block{
		nil,
		{types.FilterAuthor{Usernames: []string{"rival"}, Mode: types.ModeExclude}},
		// A viewer cannot strip their own visibility clause by excluding
		// themselves; the filter and the clause are independent conjuncts.
		{types.FilterAuthor{Usernames: []string{"self"}, Mode: types.ModeExclude}},
		{types.FilterType{Types: nil, Mode: types.ModeInclude}},
	}

	for _, blocks := range pipelines {
		plan := mustCompile(t, blocks, "viewer-1")

		if len(plan.Predicate.Atoms) == 0 {
			t.Fatal("plan has no atoms, visibility missing")
		}
		last := plan.Predicate.Atoms[len(plan.Predicate.Atoms)-1]
		vis, ok := last.(VisibilityAtom)
		if !ok {
			t.Fatalf("last atom = %T, want VisibilityAtom", last)
		}
		if vis.Viewer != "viewer-1" {
			t.Errorf("visibility viewer = %v, want viewer-1", vis.Viewer)
		}
	}
}

func TestCompile_Deterministic(t *testing.T) {
	blocks := []types.Block{
		types.FilterAuthor{Usernames: []string{"zoe", "amy", "zoe"}, Mode: types.ModeInclude},
		types.FilterHashtag{Tags: []string{"b", "a"}, Mode: types.ModeInclude},
		types.SortPopular{Metric: types.MetricShares, Direction: types.Ascending, Window: time.Hour},
		types.Limit{Count: 25},
	}

	a := mustCompile(t, blocks, "viewer-1")
	b := mustCompile(t, blocks, "viewer-1")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("identical input compiled to different plans:\n%+v\n%+v", a, b)
	}

	// Value sets are normalized, so emission order doesn't matter.
	reordered := []types.Block{
		types.FilterAuthor{Usernames: []string{"amy", "zoe"}, Mode: types.ModeInclude},
		types.FilterHashtag{Tags: []string{"a", "b"}, Mode: types.ModeInclude},
		types.SortPopular{Metric: types.MetricShares, Direction: types.Ascending, Window: time.Hour},
		types.Limit{Count: 25},
	}
	c := mustCompile(t, reordered, "viewer-1")
	if !reflect.DeepEqual(a, c) {
		t.Errorf("set order changed the compiled plan:\n%+v\n%+v", a, c)
	}
}

func TestCompile_ResultCap(t *testing.T) {
	plan := mustCompile(t, []types.Block{types.Limit{Count: 30}}, "viewer-1")
	if plan.ResultCap != 30 {
		t.Errorf("ResultCap = %d, want 30", plan.ResultCap)
	}

	plan = mustCompile(t, nil, "viewer-1")
	if plan.ResultCap != 0 {
		t.Errorf("ResultCap = %d, want 0 (unbounded)", plan.ResultCap)
	}
}

func TestFingerprint_ShapeNotValues(t *testing.T) {
	base := mustCompile(t, []types.Block{
		types.FilterAuthor{Usernames: []string{"alice"}, Mode: types.ModeInclude},
		types.SortRecent{Direction: types.Descending},
	}, "viewer-1")

	// Same shape, different values: cursors stay valid across value edits
	// that don't change the plan's structure or order.
	sameShape := mustCompile(t, []types.Block{
		types.FilterAuthor{Usernames: []string{"bob"}, Mode: types.ModeInclude},
		types.SortRecent{Direction: types.Descending},
	}, "viewer-1")
	if base.Fingerprint() != sameShape.Fingerprint() {
		t.Error("fingerprint changed with only filter values")
	}

	differentMode := mustCompile(t, []types.Block{
		types.FilterAuthor{Usernames: []string{"alice"}, Mode: types.ModeExclude},
		types.SortRecent{Direction: types.Descending},
	}, "viewer-1")
	if base.Fingerprint() == differentMode.Fingerprint() {
		t.Error("fingerprint identical across include/exclude modes")
	}

	differentOrder := mustCompile(t, []types.Block{
		types.FilterAuthor{Usernames: []string{"alice"}, Mode: types.ModeInclude},
		types.SortRecent{Direction: types.Ascending},
	}, "viewer-1")
	if base.Fingerprint() == differentOrder.Fingerprint() {
		t.Error("fingerprint identical across sort directions")
	}
}

func TestFingerprint_SeedSensitive(t *testing.T) {
	seedA, seedB := uint64(1), uint64(2)
	a := mustCompile(t, []types.Block{types.SortRandom{Seed: &seedA}}, "viewer-1")
	b := mustCompile(t, []types.Block{types.SortRandom{Seed: &seedB}}, "viewer-1")
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprint identical across seeds")
	}

	unseeded := mustCompile(t, []types.Block{types.SortRandom{}}, "viewer-1")
	if unseeded.Fingerprint() == a.Fingerprint() {
		t.Error("unseeded fingerprint collides with seeded")
	}
	if seeded := unseeded.WithSeed(1); seeded.Fingerprint() != a.Fingerprint() {
		t.Error("WithSeed(1) fingerprint differs from explicitly seeded plan")
	}
}

func TestWithSeed_DoesNotMutate(t *testing.T) {
	plan := mustCompile(t, []types.Block{types.SortRandom{}}, "viewer-1")
	if !plan.NeedsSeed() {
		t.Fatal("NeedsSeed() = false for unseeded random plan")
	}

	seeded := plan.WithSeed(99)
	if plan.Order.Seed != nil {
		t.Error("WithSeed mutated the original plan")
	}
	if seeded.NeedsSeed() {
		t.Error("seeded plan still reports NeedsSeed")
	}
}

func TestFingerprint_AnchorSensitive(t *testing.T) {
	windowed := mustCompile(t, []types.Block{
		types.SortPopular{Metric: types.MetricLikes, Direction: types.Descending, Window: 24 * time.Hour},
	}, "viewer-1")
	if !windowed.NeedsAnchor() {
		t.Fatal("NeedsAnchor() = false for unanchored windowed plan")
	}

	a := windowed.WithAnchor(1_000_000)
	b := windowed.WithAnchor(2_000_000)
	if a.Fingerprint() == windowed.Fingerprint() {
		t.Error("anchored and unanchored plans share a fingerprint")
	}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("differently anchored plans share a fingerprint")
	}
	if a.Fingerprint() != windowed.WithAnchor(1_000_000).Fingerprint() {
		t.Error("same anchor should reproduce the fingerprint")
	}
}

func TestWithAnchor_DoesNotMutate(t *testing.T) {
	plan := mustCompile(t, []types.Block{
		types.SortPopular{Metric: types.MetricShares, Direction: types.Descending, Window: time.Hour},
	}, "viewer-1")

	anchored := plan.WithAnchor(42)
	if plan.Order.Anchor != nil {
		t.Error("WithAnchor mutated the original plan")
	}
	if anchored.NeedsAnchor() {
		t.Error("anchored plan still reports NeedsAnchor")
	}

	// All-time popularity and recency never need an anchor.
	allTime := mustCompile(t, []types.Block{
		types.SortPopular{Metric: types.MetricShares, Direction: types.Descending},
	}, "viewer-1")
	if allTime.NeedsAnchor() {
		t.Error("all-time popularity plan reports NeedsAnchor")
	}
	if anchored := allTime.WithAnchor(42); anchored.Order.Anchor != nil {
		t.Error("WithAnchor anchored an all-time plan")
	}
}
