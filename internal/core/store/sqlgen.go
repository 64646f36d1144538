// internal/core/store/sqlgen.go
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/averko/feedmill/internal/engine"
	"github.com/averko/feedmill/internal/types"
)

/*
 * SQL generation for compiled query plans.
 *
 * Pure translation layer: a QueryPlan's predicate atoms become WHERE
 * conjuncts, the order key becomes ORDER BY plus a keyset row bound, and
 * the cap becomes LIMIT. No database handle here, so the generated text is
 * testable against the in-memory semantics without a live store.
 *
 * Keyset bounds implement strictly-after:
 *   desc key: (expr < ? OR (expr = ? AND p.post_id > ?))
 *   asc key:  (expr > ? OR (expr = ? AND p.post_id > ?))
 * The post-id tie-break is always ascending, matching the plan's implicit
 * total order.
 *
 * Placeholders are always ?; callers Rebind for PostgreSQL. Argument order
 * is SELECT list, WHERE conjuncts, LIMIT - the assembly below appends them
 * in exactly that sequence.
 *
 * sort-random is deliberately absent: its key is a Go-side hash, so the
 * executor runs a candidate id scan (buildCandidateQuery) and orders in
 * memory. See sqlstore.go.
 */

const postColumns = `p.post_id, p.author_id, u.username AS author_username, ` +
	`p.post_type, p.body, p.visibility, p.status, p.created_at, p.deleted_at, ` +
	`p.like_count, p.comment_count, p.share_count`

const postFrom = `FROM posts p JOIN users u ON u.user_id = p.author_id`

// pageQuery is a generated page fetch. Keyed reports whether rows carry a
// computed order_key column (popularity sorts); recency sorts derive the
// key from created_at instead.
type pageQuery struct {
	SQL   string
	Args  []any
	Keyed bool
}

// buildPageQuery generates the page fetch for recency and popularity
// plans. Windowed popularity requires an anchored plan: the window's
// reference instant is session state carried in the cursor, never the
// executor's clock.
func buildPageQuery(plan *engine.QueryPlan, after *engine.KeyBound, limit int) (pageQuery, error) {
	if plan.Order.Kind == engine.OrderRandom {
		return pageQuery{}, fmt.Errorf("random order has no single-query form")
	}
	if plan.NeedsAnchor() {
		return pageQuery{}, fmt.Errorf("windowed popularity plan executed without an anchor")
	}

	var q pageQuery

	keyExpr, keyArgs := orderKeyExpr(plan.Order)
	selectList := postColumns
	if plan.Order.Kind == engine.OrderPopular {
		selectList += ", " + keyExpr + " AS order_key"
		q.Args = append(q.Args, keyArgs...)
		q.Keyed = true
	}

	conds, args := predicateSQL(plan.Predicate)
	q.Args = append(q.Args, args...)

	if after != nil {
		cmp := "<"
		if plan.Order.Direction == types.Ascending {
			cmp = ">"
		}
		conds = append(conds, fmt.Sprintf("(%s %s ? OR (%s = ? AND p.post_id > ?))",
			keyExpr, cmp, keyExpr))
		boundKey := boundValue(plan.Order, after.Key)
		q.Args = append(q.Args, keyArgs...)
		q.Args = append(q.Args, boundKey)
		q.Args = append(q.Args, keyArgs...)
		q.Args = append(q.Args, boundKey, string(after.ID))
	}

	dir := "DESC"
	if plan.Order.Direction == types.Ascending {
		dir = "ASC"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s\n%s\nWHERE %s\nORDER BY %s %s, p.post_id ASC\nLIMIT ?",
		selectList, postFrom, strings.Join(conds, "\n  AND "), keyExpr, dir)
	q.Args = append(q.Args, limit)
	q.SQL = sb.String()
	return q, nil
}

// buildCandidateQuery generates the filtered id scan feeding the random
// order path. scanCap bounds the candidate set.
func buildCandidateQuery(plan *engine.QueryPlan, scanCap int) pageQuery {
	conds, args := predicateSQL(plan.Predicate)
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT p.post_id\n%s\nWHERE %s\nORDER BY p.post_id ASC\nLIMIT ?",
		postFrom, strings.Join(conds, "\n  AND "))
	args = append(args, scanCap)
	return pageQuery{SQL: sb.String(), Args: args}
}

// orderKeyExpr returns the SQL expression (and its bound parameters) for a
// plan's primary order key. Windowed keys require key.Anchor set.
func orderKeyExpr(key engine.OrderKey) (string, []any) {
	if key.Kind == engine.OrderRecent {
		return "p.created_at", nil
	}

	if key.Window == 0 {
		switch key.Metric {
		case types.MetricLikes:
			return "p.like_count", nil
		case types.MetricComments:
			return "p.comment_count", nil
		case types.MetricShares:
			return "p.share_count", nil
		default:
			return "(p.like_count + p.comment_count + p.share_count)", nil
		}
	}

	// Windowed counts come from the engagement event table; the
	// denormalized counters only cover all-time.
	windowStart := time.UnixMicro(*key.Anchor).Add(-key.Window).UTC()
	if key.Metric == types.MetricEngagement {
		return "(SELECT COUNT(*) FROM post_engagements e WHERE e.post_id = p.post_id AND e.created_at >= ?)",
			[]any{windowStart}
	}
	return "(SELECT COUNT(*) FROM post_engagements e WHERE e.post_id = p.post_id AND e.kind = ? AND e.created_at >= ?)",
		[]any{metricKind(key.Metric), windowStart}
}

// metricKind maps a popularity metric to its engagement event kind.
func metricKind(m types.Metric) string {
	switch m {
	case types.MetricLikes:
		return "like"
	case types.MetricComments:
		return "comment"
	case types.MetricShares:
		return "share"
	}
	return ""
}

// boundValue converts a cursor's int64 key back to the parameter type the
// key expression compares against. Recency keys are unix microseconds;
// post timestamps carry at most microsecond precision (a schema invariant,
// see migrations/), so the round-trip is exact at page edges.
func boundValue(key engine.OrderKey, k int64) any {
	if key.Kind == engine.OrderRecent {
		return time.UnixMicro(k).UTC()
	}
	return k
}

// predicateSQL renders the predicate atoms as WHERE conjuncts.
func predicateSQL(pred engine.Predicate) ([]string, []any) {
	var conds []string
	var args []any

	for _, atom := range pred.Atoms {
		switch a := atom.(type) {
		case engine.AuthorAtom:
			cond, ok := membershipSQL("u.username", a.Usernames, a.Exclude, &args)
			if ok {
				conds = append(conds, cond)
			}

		case engine.TypeAtom:
			values := make([]string, len(a.Types))
			for i, t := range a.Types {
				values[i] = string(t)
			}
			cond, ok := membershipSQL("p.post_type", values, a.Exclude, &args)
			if ok {
				conds = append(conds, cond)
			}

		case engine.HashtagAtom:
			cond, ok := hashtagSQL(a, &args)
			if ok {
				conds = append(conds, cond)
			}

		case engine.DateAtom:
			if a.From != nil {
				conds = append(conds, "p.created_at >= ?")
				args = append(args, a.From.UTC())
			}
			if a.To != nil {
				conds = append(conds, "p.created_at <= ?")
				args = append(args, a.To.UTC())
			}

		case engine.VisibilityAtom:
			conds = append(conds,
				"(p.visibility = 'public' OR p.author_id = ? OR "+
					"(p.visibility = 'followers' AND EXISTS "+
					"(SELECT 1 FROM follows f WHERE f.follower_id = ? AND f.followee_id = p.author_id)))")
			args = append(args, string(a.Viewer), string(a.Viewer))
			conds = append(conds, "p.status = 'published'", "p.deleted_at IS NULL")
		}
	}

	if len(conds) == 0 {
		conds = append(conds, "1 = 1")
	}
	return conds, args
}

// membershipSQL renders an IN / NOT IN membership test. The degenerate
// empty sets follow the documented pipeline semantics: include-empty
// matches nothing, exclude-empty contributes no clause at all.
func membershipSQL(column string, values []string, exclude bool, args *[]any) (string, bool) {
	if len(values) == 0 {
		if exclude {
			return "", false
		}
		return "1 = 0", true
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	for _, v := range values {
		*args = append(*args, v)
	}
	op := "IN"
	if exclude {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", column, op, placeholders), true
}

// hashtagSQL renders tag membership via EXISTS subqueries on the
// post_hashtags table.
func hashtagSQL(a engine.HashtagAtom, args *[]any) (string, bool) {
	if len(a.Tags) == 0 {
		if a.Exclude {
			return "", false
		}
		return "1 = 0", true
	}

	var cond string
	if a.MatchAll {
		parts := make([]string, len(a.Tags))
		for i, tag := range a.Tags {
			parts[i] = "EXISTS (SELECT 1 FROM post_hashtags h WHERE h.post_id = p.post_id AND h.tag = ?)"
			*args = append(*args, tag)
		}
		cond = "(" + strings.Join(parts, " AND ") + ")"
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(a.Tags)), ", ")
		for _, tag := range a.Tags {
			*args = append(*args, tag)
		}
		cond = fmt.Sprintf("EXISTS (SELECT 1 FROM post_hashtags h WHERE h.post_id = p.post_id AND h.tag IN (%s))", placeholders)
	}

	if a.Exclude {
		cond = "NOT " + cond
	}
	return cond, true
}
