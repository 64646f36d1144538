// internal/engine/visibility.go
package engine

/*
 * Visibility injection.
 *
 * Every compiled plan ends with the default visibility clause ANDed onto
 * whatever the pipeline specified:
 *
 *   visibility = public
 *   OR author = viewer
 *   OR (visibility = followers AND viewer follows author)
 *
 * plus the unconditional exclusion of soft-deleted and pending posts.
 *
 * The injection runs after user filters are compiled, is not exposed as an
 * editable block kind, and has no bypass parameter. A pipeline that
 * excludes the viewer's own authors, or includes none, still carries the
 * clause: the engine can narrow visibility, never widen it.
 */

// injectVisibility appends the mandatory visibility atom to the plan's
// predicate. Called from Compile for every plan; not exported so no caller
// can compile around it.
func injectVisibility(plan *QueryPlan) {
	plan.Predicate.Atoms = append(plan.Predicate.Atoms, VisibilityAtom{
		Viewer: plan.Viewer,
	})
}
