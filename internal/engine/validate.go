// internal/engine/validate.go
package engine

import (
	"fmt"

	"github.com/averko/feedmill/internal/types"
)

/*
 * Pipeline validation.
 *
 * Checks a proposed ordered block list for structural legality before it is
 * compiled or persisted. All illegal states are caught here so the compiler
 * never fails on validated input; Compile refuses anything that did not
 * pass through Validate.
 *
 * Rules:
 *   - Block count bounded (MaxPipelineBlocks) to cap compile time
 *   - Filter value sets bounded (MaxFilterValues)
 *   - At most one limit block; a second is rejected outright rather than
 *     resolved first-wins, to avoid silent ambiguity
 *   - limit count must be in 1..MaxPageSize
 *   - filter-date from must not exceed to when both given
 *   - Multiple sort blocks are legal: the compiler's documented last-wins
 *     policy applies, matching an iterative visual-editor UX
 *   - Empty filter value sets are legal degenerate states (include matches
 *     nothing, exclude removes nothing), reachable mid-edit
 */

// Pipeline is a block list that passed validation. Only Validate constructs
// a non-nil Pipeline, which is the compiler's admission ticket.
type Pipeline struct {
	blocks []types.Block
}

// Blocks returns the validated block list in pipeline order.
func (p *Pipeline) Blocks() []types.Block {
	if p == nil {
		return nil
	}
	return p.blocks
}

// Validate checks an ordered block list against the structural rules above.
// Returns a validated Pipeline on success; on failure the error wraps one
// of the validation sentinels in types.
func Validate(blocks []types.Block) (*Pipeline, error) {
	if len(blocks) > types.MaxPipelineBlocks {
		return nil, fmt.Errorf("%w: %d blocks exceeds maximum of %d",
			types.ErrPipelineTooComplex, len(blocks), types.MaxPipelineBlocks)
	}

	limitSeen := false
	for i, b := range blocks {
		switch v := b.(type) {
		case types.FilterAuthor:
			if len(v.Usernames) > types.MaxFilterValues {
				return nil, fmt.Errorf("%w: block %d has %d usernames, maximum is %d",
					types.ErrPipelineTooComplex, i, len(v.Usernames), types.MaxFilterValues)
			}

		case types.FilterType:
			// Type sets are tiny by construction; no size check needed.

		case types.FilterHashtag:
			if len(v.Tags) > types.MaxFilterValues {
				return nil, fmt.Errorf("%w: block %d has %d tags, maximum is %d",
					types.ErrPipelineTooComplex, i, len(v.Tags), types.MaxFilterValues)
			}

		case types.FilterDate:
			if v.From != nil && v.To != nil && v.From.After(*v.To) {
				return nil, fmt.Errorf("%w: block %d", types.ErrInvalidDateRange, i)
			}

		case types.SortPopular, types.SortRecent, types.SortRandom:
			// Multiple sort blocks are legal; last one wins at compile time.

		case types.Limit:
			if limitSeen {
				return nil, fmt.Errorf("%w: second limit at block %d",
					types.ErrDuplicateLimitBlock, i)
			}
			limitSeen = true
			if v.Count < 1 || v.Count > types.MaxPageSize {
				return nil, fmt.Errorf("%w: block %d count %d not in 1..%d",
					types.ErrInvalidLimitCount, i, v.Count, types.MaxPageSize)
			}

		default:
			// Unreachable for decoded blocks; guards hand-constructed lists.
			return nil, fmt.Errorf("%w: %T at block %d",
				types.ErrUnsupportedBlockKind, b, i)
		}
	}

	out := make([]types.Block, len(blocks))
	copy(out, blocks)
	return &Pipeline{blocks: out}, nil
}
