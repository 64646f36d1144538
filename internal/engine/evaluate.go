// internal/engine/evaluate.go
package engine

import (
	"github.com/averko/feedmill/internal/types"
)

/*
 * In-memory predicate evaluation.
 *
 * Evaluates a compiled predicate against a single post with AND semantics
 * over atoms, short-circuiting on the first non-match. The SQL executor
 * pushes the same semantics into WHERE clauses; this path serves the
 * in-memory executor and the random-order candidate scan, and is the
 * reference implementation the SQL generation is tested against.
 *
 * Atom semantics:
 *   - include with empty set matches nothing; exclude with empty set
 *     removes nothing (degenerate mid-edit pipeline states, not errors)
 *   - hashtag MatchAll requires every tag present, otherwise any suffices
 *   - date bounds are inclusive
 *   - visibility: public, own post, or followed followers-only author;
 *     soft-deleted and pending posts never match
 */

// PostContext carries the per-post facts evaluation needs beyond the post
// row itself: its tag set and whether the plan's viewer follows the author.
type PostContext struct {
	Hashtags            []string
	ViewerFollowsAuthor bool
}

// MatchPost reports whether post satisfies every atom of the predicate.
func MatchPost(pred Predicate, post types.Post, pctx PostContext) bool {
	for _, atom := range pred.Atoms {
		if !matchAtom(atom, post, pctx) {
			return false
		}
	}
	return true
}

// matchAtom evaluates a single conjunct.
func matchAtom(atom Atom, post types.Post, pctx PostContext) bool {
	switch a := atom.(type) {
	case AuthorAtom:
		return applyMode(containsString(a.Usernames, post.AuthorUsername), a.Exclude)

	case TypeAtom:
		member := false
		for _, t := range a.Types {
			if t == post.Type {
				member = true
				break
			}
		}
		return applyMode(member, a.Exclude)

	case HashtagAtom:
		return applyMode(matchTags(a, pctx.Hashtags), a.Exclude)

	case DateAtom:
		if a.From != nil && post.CreatedAt.Before(*a.From) {
			return false
		}
		if a.To != nil && post.CreatedAt.After(*a.To) {
			return false
		}
		return true

	case VisibilityAtom:
		return matchVisibility(a, post, pctx)

	default:
		// Unknown atom cannot be proven safe to show; fail closed.
		return false
	}
}

// matchTags evaluates tag membership under the block's MatchAll flag.
// Exclude negation is the caller's concern; this is the raw membership
// test, which for an empty tag set is false either way (include-empty
// matches nothing, exclude-empty removes nothing).
func matchTags(a HashtagAtom, tags []string) bool {
	if len(a.Tags) == 0 {
		return false
	}
	if a.MatchAll {
		for _, want := range a.Tags {
			if !containsString(tags, want) {
				return false
			}
		}
		return true
	}
	for _, want := range a.Tags {
		if containsString(tags, want) {
			return true
		}
	}
	return false
}

// matchVisibility applies the mandatory visibility clause.
func matchVisibility(a VisibilityAtom, post types.Post, pctx PostContext) bool {
	if post.DeletedAt != nil || post.Status != types.PostStatusPublished {
		return false
	}
	if post.Visibility == types.VisibilityPublic {
		return true
	}
	if post.AuthorID == a.Viewer {
		return true
	}
	return post.Visibility == types.VisibilityFollowers && pctx.ViewerFollowsAuthor
}

// applyMode negates a membership result for exclude-mode filters.
func applyMode(member, exclude bool) bool {
	if exclude {
		return !member
	}
	return member
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
