package types

import "errors"

// Sentinel errors for feedmill operations. The three groups mirror the
// engine's failure taxonomy: validation errors are local to an edit and
// surfaced verbatim, compile errors indicate a broken caller invariant,
// cursor errors tell the caller to restart pagination from page one.
var (
	// ErrPipelineTooComplex indicates a pipeline exceeds MaxPipelineBlocks
	// or a filter block's value set exceeds MaxFilterValues.
	ErrPipelineTooComplex = errors.New("pipeline exceeds complexity limits")

	// ErrDuplicateLimitBlock indicates more than one limit block. Rejected
	// outright rather than resolved first-wins to avoid silent ambiguity.
	ErrDuplicateLimitBlock = errors.New("pipeline has more than one limit block")

	// ErrInvalidDateRange indicates a filter-date block with from > to.
	ErrInvalidDateRange = errors.New("date filter range start is after range end")

	// ErrInvalidLimitCount indicates a limit block count outside 1..MaxPageSize.
	ErrInvalidLimitCount = errors.New("limit block count out of range")

	// ErrUnsupportedBlockKind indicates a block kind this version doesn't
	// know. Never silently dropped: ignoring a filter block would leak
	// content the author meant to exclude.
	ErrUnsupportedBlockKind = errors.New("unsupported block kind")

	// ErrUnvalidatedPipeline indicates the compiler received a pipeline
	// that never passed validation. Internal invariant violation.
	ErrUnvalidatedPipeline = errors.New("pipeline was not validated before compilation")

	// ErrCursorMalformed indicates a pagination token that doesn't parse
	// or whose signature doesn't verify.
	ErrCursorMalformed = errors.New("pagination cursor is malformed")

	// ErrCursorExpired indicates a pagination token older than the cursor TTL.
	ErrCursorExpired = errors.New("pagination cursor has expired")

	// ErrStaleCursor indicates a token minted under a different compiled
	// plan (the pipeline was edited, or the random seed changed).
	ErrStaleCursor = errors.New("pagination cursor belongs to a different plan")

	// ErrExecution wraps transient post-store failures. The only category
	// for which callers may retry with backoff.
	ErrExecution = errors.New("post store execution failed")

	// ErrNotFound indicates a feed definition that doesn't exist.
	ErrNotFound = errors.New("feed definition not found")

	// ErrNotOwner indicates an edit attempt by someone other than the
	// definition's owner.
	ErrNotOwner = errors.New("feed definition is owned by another user")
)

// IsValidationError reports whether err belongs to the pipeline validation
// taxonomy (surfaced verbatim to editors, never retried).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPipelineTooComplex) ||
		errors.Is(err, ErrDuplicateLimitBlock) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidLimitCount) ||
		errors.Is(err, ErrUnsupportedBlockKind)
}

// IsCursorError reports whether err belongs to the cursor taxonomy
// (caller must restart pagination from the first page).
func IsCursorError(err error) bool {
	return errors.Is(err, ErrCursorMalformed) ||
		errors.Is(err, ErrCursorExpired) ||
		errors.Is(err, ErrStaleCursor)
}
