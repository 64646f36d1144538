// internal/engine/compile.go
package engine

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/averko/feedmill/internal/types"
)

/*
 * Plan compilation.
 *
 * Folds a validated pipeline (plus the requesting user) into a single
 * QueryPlan: a conjunction of source-tagged predicate atoms, one effective
 * order key with an implicit post-id tie-break, and a result cap.
 *
 * Compilation workflow:
 *   1. Fold filter blocks in pipeline order into predicate atoms
 *   2. Keep the last sort block seen (documented last-writer-wins policy;
 *      earlier sorts are superseded silently, not rejected)
 *   3. Default to sort-recent desc when no sort block is present
 *   4. Append the visibility atom unconditionally (see visibility.go)
 *   5. Take the single limit block's count as the result cap
 *
 * Compile is pure: same validated pipeline and user always produce an
 * identical plan. No RNG and no clock run here; an unseeded sort-random
 * compiles to a plan with a nil seed, and a windowed sort-popular to a
 * plan with a nil window anchor. The paginator fills both on the first
 * page and carries them through the session's cursors, so the keys a
 * cursor was minted under do not drift between requests.
 *
 * The plan fingerprint hashes the ordering and the predicate shape (atom
 * kinds, modes, flags - not values). Cursors carry it so that resuming a
 * scan under a semantically different plan fails as stale instead of
 * producing duplicated or skipped items.
 */

// OrderKind selects the primary order key expression.
type OrderKind int

const (
	OrderRecent OrderKind = iota
	OrderPopular
	OrderRandom
)

// OrderKey is the effective ordering of a compiled plan. Exactly one user
// key survives compilation; the (post-id, ascending) tie-break is implicit
// and unconditional, guaranteeing a total order even when the user key has
// duplicates (shared timestamps, hash collisions).
type OrderKey struct {
	Kind      OrderKind
	Direction types.Direction
	Metric    types.Metric  // OrderPopular only
	Window    time.Duration // OrderPopular only; 0 = all-time
	Seed      *uint64       // OrderRandom only; nil until seeded
	Anchor    *int64        // windowed OrderPopular only; unix micro; nil until anchored
}

// Predicate is a conjunction of atomic predicates, each tagged by the
// filter kind that produced it.
type Predicate struct {
	Atoms []Atom
}

// Atom is one conjunct of a compiled predicate. Sealed: the five atom
// structs in this file implement it. shape writes the value-free canonical
// form used for plan fingerprints.
type Atom interface {
	isAtom()
	shape(w *strings.Builder)
}

// AuthorAtom tests post author membership in a username set.
type AuthorAtom struct {
	Usernames []string
	Exclude   bool
}

// TypeAtom tests post type membership.
type TypeAtom struct {
	Types   []types.PostType
	Exclude bool
}

// HashtagAtom tests tag membership; MatchAll requires every tag.
type HashtagAtom struct {
	Tags     []string
	Exclude  bool
	MatchAll bool
}

// DateAtom tests the inclusive creation-time range.
type DateAtom struct {
	From *time.Time
	To   *time.Time
}

// VisibilityAtom is the mandatory clause no pipeline can remove:
// public OR authored by the viewer OR followers-only from a followed
// author. Also excludes soft-deleted and pending posts.
type VisibilityAtom struct {
	Viewer types.UserID
}

func (AuthorAtom) isAtom()     {}
func (TypeAtom) isAtom()       {}
func (HashtagAtom) isAtom()    {}
func (DateAtom) isAtom()       {}
func (VisibilityAtom) isAtom() {}

func (a AuthorAtom) shape(w *strings.Builder) {
	fmt.Fprintf(w, "author(exclude=%t);", a.Exclude)
}

func (a TypeAtom) shape(w *strings.Builder) {
	fmt.Fprintf(w, "type(exclude=%t);", a.Exclude)
}

func (a HashtagAtom) shape(w *strings.Builder) {
	fmt.Fprintf(w, "hashtag(exclude=%t,all=%t);", a.Exclude, a.MatchAll)
}

func (a DateAtom) shape(w *strings.Builder) {
	fmt.Fprintf(w, "date(from=%t,to=%t);", a.From != nil, a.To != nil)
}

func (a VisibilityAtom) shape(w *strings.Builder) {
	w.WriteString("visibility;")
}

// QueryPlan is the compiled, executable form of a pipeline. Ephemeral:
// recomputed per request, never persisted or cached across edits.
type QueryPlan struct {
	Viewer    types.UserID
	Predicate Predicate
	Order     OrderKey
	ResultCap uint32 // 0 = unbounded; bounded later by request page size
}

// Compile folds a validated pipeline into a QueryPlan for viewer. A nil
// pipeline (anything that did not pass Validate) is rejected with
// ErrUnvalidatedPipeline rather than guessed at.
func Compile(p *Pipeline, viewer types.UserID) (*QueryPlan, error) {
	if p == nil {
		return nil, types.ErrUnvalidatedPipeline
	}

	plan := &QueryPlan{
		Viewer: viewer,
		Order:  OrderKey{Kind: OrderRecent, Direction: types.Descending},
	}

	for _, b := range p.Blocks() {
		switch v := b.(type) {
		case types.FilterAuthor:
			plan.Predicate.Atoms = append(plan.Predicate.Atoms, AuthorAtom{
				Usernames: normalizeSet(v.Usernames),
				Exclude:   v.Mode == types.ModeExclude,
			})

		case types.FilterType:
			plan.Predicate.Atoms = append(plan.Predicate.Atoms, TypeAtom{
				Types:   normalizeTypes(v.Types),
				Exclude: v.Mode == types.ModeExclude,
			})

		case types.FilterHashtag:
			plan.Predicate.Atoms = append(plan.Predicate.Atoms, HashtagAtom{
				Tags:     normalizeSet(v.Tags),
				Exclude:  v.Mode == types.ModeExclude,
				MatchAll: v.MatchAll,
			})

		case types.FilterDate:
			plan.Predicate.Atoms = append(plan.Predicate.Atoms, DateAtom{
				From: v.From,
				To:   v.To,
			})

		case types.SortRecent:
			plan.Order = OrderKey{Kind: OrderRecent, Direction: v.Direction}

		case types.SortPopular:
			plan.Order = OrderKey{
				Kind:      OrderPopular,
				Direction: v.Direction,
				Metric:    v.Metric,
				Window:    v.Window,
			}

		case types.SortRandom:
			plan.Order = OrderKey{
				Kind:      OrderRandom,
				Direction: types.Ascending,
				Seed:      v.Seed,
			}

		case types.Limit:
			plan.ResultCap = v.Count
		}
	}

	injectVisibility(plan)
	return plan, nil
}

// NeedsSeed reports whether the plan orders randomly without a seed yet.
func (p *QueryPlan) NeedsSeed() bool {
	return p.Order.Kind == OrderRandom && p.Order.Seed == nil
}

// WithSeed returns a copy of the plan with the random seed set. No-op copy
// for plans that don't order randomly or already carry a seed.
func (p *QueryPlan) WithSeed(seed uint64) *QueryPlan {
	out := *p
	if out.Order.Kind == OrderRandom && out.Order.Seed == nil {
		out.Order.Seed = &seed
	}
	return &out
}

// NeedsAnchor reports whether the plan orders by a trailing window without
// an anchor yet. Windowed keys are relative to a point in time; executing
// against the current clock on every page would let keys drift mid-session.
func (p *QueryPlan) NeedsAnchor() bool {
	return p.Order.Kind == OrderPopular && p.Order.Window > 0 && p.Order.Anchor == nil
}

// WithAnchor returns a copy of the plan with the window anchor set to the
// given unix-microsecond instant. No-op copy for plans that don't need one.
func (p *QueryPlan) WithAnchor(anchor int64) *QueryPlan {
	out := *p
	if out.NeedsAnchor() {
		out.Order.Anchor = &anchor
	}
	return &out
}

// Fingerprint returns the stable hash of the plan's ordering and
// predicate shape. Two plans share a fingerprint exactly when a cursor
// minted under one can safely resume under the other.
func (p *QueryPlan) Fingerprint() string {
	var w strings.Builder
	w.WriteString("v1|order:")
	switch p.Order.Kind {
	case OrderRecent:
		fmt.Fprintf(&w, "recent,%s", p.Order.Direction)
	case OrderPopular:
		fmt.Fprintf(&w, "popular,%s,%s,%d", p.Order.Metric, p.Order.Direction, p.Order.Window)
		if p.Order.Anchor != nil {
			fmt.Fprintf(&w, "@%d", *p.Order.Anchor)
		}
	case OrderRandom:
		if p.Order.Seed != nil {
			fmt.Fprintf(&w, "random,%d", *p.Order.Seed)
		} else {
			w.WriteString("random,unseeded")
		}
	}
	w.WriteString("|pred:")
	for _, a := range p.Predicate.Atoms {
		a.shape(&w)
	}
	sum := sha256.Sum256([]byte(w.String()))
	return fmt.Sprintf("%x", sum[:16])
}

// normalizeSet sorts and deduplicates a value set so that compilation is
// deterministic regardless of the order the editor emitted values in.
func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// normalizeTypes is normalizeSet for post types.
func normalizeTypes(values []types.PostType) []types.PostType {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = string(v)
	}
	norm := normalizeSet(strs)
	out := make([]types.PostType, len(norm))
	for i, v := range norm {
		out[i] = types.PostType(v)
	}
	return out
}
