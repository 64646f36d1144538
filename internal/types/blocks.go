// internal/types/blocks.go
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

/*
 * Pipeline block model.
 *
 * The eight block kinds form a closed tagged union: concrete structs behind
 * the sealed Block interface, so the compiler can switch exhaustively and an
 * unknown kind is impossible for decoded values. Forward-compat payloads
 * from newer clients surface ErrUnsupportedBlockKind at decode time instead
 * of being silently dropped.
 *
 * Wire format is a JSON array of objects with a "kind" discriminator:
 *
 *   [{"kind": "filter-type", "types": ["image"]},
 *    {"kind": "sort-recent", "direction": "desc"},
 *    {"kind": "limit", "count": 50}]
 *
 * Decoding is strict about enum values (unknown mode/metric/direction is a
 * malformed payload) but lenient about omissions: mode defaults to include,
 * direction defaults to desc, matching what the visual editor emits.
 */

// BlockKind discriminates the tagged union on the wire.
type BlockKind string

const (
	KindFilterAuthor  BlockKind = "filter-author"
	KindFilterType    BlockKind = "filter-type"
	KindFilterHashtag BlockKind = "filter-hashtag"
	KindFilterDate    BlockKind = "filter-date"
	KindSortPopular   BlockKind = "sort-popular"
	KindSortRecent    BlockKind = "sort-recent"
	KindSortRandom    BlockKind = "sort-random"
	KindLimit         BlockKind = "limit"
)

// FilterMode selects membership or negated membership for a filter block.
type FilterMode string

const (
	ModeInclude FilterMode = "include"
	ModeExclude FilterMode = "exclude"
)

// Direction orders a sort key.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// Metric selects the aggregate a sort-popular block orders by.
type Metric string

const (
	MetricLikes      Metric = "likes"
	MetricComments   Metric = "comments"
	MetricShares     Metric = "shares"
	MetricEngagement Metric = "engagement"
)

// Block is one declarative unit of a feed pipeline. Sealed: only the eight
// block structs in this file implement it.
type Block interface {
	Kind() BlockKind
	isBlock()
}

// FilterAuthor restricts to (include) or removes (exclude) given authors.
// An empty include set matches nothing; an empty exclude set removes
// nothing. Both are legal states a user reaches mid-edit.
type FilterAuthor struct {
	Usernames []string
	Mode      FilterMode
}

// FilterType restricts to or removes given post types.
type FilterType struct {
	Types []PostType
	Mode  FilterMode
}

// FilterHashtag restricts by tag membership. MatchAll requires every tag
// (AND); otherwise any tag suffices (OR).
type FilterHashtag struct {
	Tags     []string
	Mode     FilterMode
	MatchAll bool
}

// FilterDate keeps posts created within the inclusive range. Either bound
// may be nil.
type FilterDate struct {
	From *time.Time
	To   *time.Time
}

// SortPopular orders by an aggregate metric, optionally restricted to
// engagement events within Window of the session's first request; later
// pages reuse that anchor so windowed keys hold still while paginating.
// Window zero means all-time (denormalized counters).
type SortPopular struct {
	Metric    Metric
	Direction Direction
	Window    time.Duration
}

// SortRecent orders by post creation time.
type SortRecent struct {
	Direction Direction
}

// SortRandom orders by hash(seed, post-id). A nil seed means the paginator
// picks one on the first page so later pages of the same session stay
// stable.
type SortRandom struct {
	Seed *uint64
}

// Limit caps the result page size independent of the request-time page
// size; the smaller of the two wins.
type Limit struct {
	Count uint32
}

func (FilterAuthor) Kind() BlockKind  { return KindFilterAuthor }
func (FilterType) Kind() BlockKind    { return KindFilterType }
func (FilterHashtag) Kind() BlockKind { return KindFilterHashtag }
func (FilterDate) Kind() BlockKind    { return KindFilterDate }
func (SortPopular) Kind() BlockKind   { return KindSortPopular }
func (SortRecent) Kind() BlockKind    { return KindSortRecent }
func (SortRandom) Kind() BlockKind    { return KindSortRandom }
func (Limit) Kind() BlockKind         { return KindLimit }

func (FilterAuthor) isBlock()  {}
func (FilterType) isBlock()    {}
func (FilterHashtag) isBlock() {}
func (FilterDate) isBlock()    {}
func (SortPopular) isBlock()   {}
func (SortRecent) isBlock()    {}
func (SortRandom) isBlock()    {}
func (Limit) isBlock()         {}

// IsSort reports whether b is one of the sort block kinds.
func IsSort(b Block) bool {
	switch b.(type) {
	case SortPopular, SortRecent, SortRandom:
		return true
	}
	return false
}

// Wire envelopes. Kept private: callers go through DecodeBlocks/EncodeBlocks.
type blockEnvelope struct {
	Kind BlockKind `json:"kind"`

	Usernames []string   `json:"usernames,omitempty"`
	Types     []PostType `json:"types,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	Mode      FilterMode `json:"mode,omitempty"`
	MatchAll  bool       `json:"matchAll,omitempty"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	Metric    Metric     `json:"metric,omitempty"`
	Direction Direction  `json:"direction,omitempty"`
	Window    string     `json:"timeWindow,omitempty"`
	Seed      *uint64    `json:"seed,omitempty"`
	Count     uint32     `json:"count,omitempty"`
}

// DecodeBlocks parses the tagged-union JSON array into typed blocks.
// Unknown kinds return ErrUnsupportedBlockKind; malformed payloads return
// plain decode errors. Structural legality (counts, ranges, duplicates) is
// the validator's job, not this function's.
func DecodeBlocks(data []byte) ([]Block, error) {
	var envelopes []blockEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, fmt.Errorf("invalid block payload: %w", err)
	}

	blocks := make([]Block, 0, len(envelopes))
	for i, env := range envelopes {
		b, err := decodeEnvelope(env)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// decodeEnvelope converts one wire envelope to its typed block.
func decodeEnvelope(env blockEnvelope) (Block, error) {
	switch env.Kind {
	case KindFilterAuthor:
		mode, err := decodeMode(env.Mode)
		if err != nil {
			return nil, err
		}
		return FilterAuthor{Usernames: env.Usernames, Mode: mode}, nil

	case KindFilterType:
		mode, err := decodeMode(env.Mode)
		if err != nil {
			return nil, err
		}
		for _, t := range env.Types {
			if !KnownPostType(t) {
				return nil, fmt.Errorf("unknown post type %q", t)
			}
		}
		return FilterType{Types: env.Types, Mode: mode}, nil

	case KindFilterHashtag:
		mode, err := decodeMode(env.Mode)
		if err != nil {
			return nil, err
		}
		return FilterHashtag{Tags: env.Tags, Mode: mode, MatchAll: env.MatchAll}, nil

	case KindFilterDate:
		return FilterDate{From: env.From, To: env.To}, nil

	case KindSortPopular:
		dir, err := decodeDirection(env.Direction)
		if err != nil {
			return nil, err
		}
		switch env.Metric {
		case MetricLikes, MetricComments, MetricShares, MetricEngagement:
		default:
			return nil, fmt.Errorf("unknown popularity metric %q", env.Metric)
		}
		var window time.Duration
		if env.Window != "" {
			window, err = time.ParseDuration(env.Window)
			if err != nil {
				return nil, fmt.Errorf("invalid timeWindow: %w", err)
			}
			if window < 0 {
				return nil, fmt.Errorf("negative timeWindow %q", env.Window)
			}
		}
		return SortPopular{Metric: env.Metric, Direction: dir, Window: window}, nil

	case KindSortRecent:
		dir, err := decodeDirection(env.Direction)
		if err != nil {
			return nil, err
		}
		return SortRecent{Direction: dir}, nil

	case KindSortRandom:
		return SortRandom{Seed: env.Seed}, nil

	case KindLimit:
		return Limit{Count: env.Count}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBlockKind, env.Kind)
	}
}

// decodeMode defaults an omitted mode to include.
func decodeMode(m FilterMode) (FilterMode, error) {
	switch m {
	case "":
		return ModeInclude, nil
	case ModeInclude, ModeExclude:
		return m, nil
	default:
		return "", fmt.Errorf("unknown filter mode %q", m)
	}
}

// decodeDirection defaults an omitted direction to desc.
func decodeDirection(d Direction) (Direction, error) {
	switch d {
	case "":
		return Descending, nil
	case Ascending, Descending:
		return d, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", d)
	}
}

// EncodeBlocks serializes typed blocks back to the tagged-union JSON array.
// Round-trips with DecodeBlocks for all valid blocks.
func EncodeBlocks(blocks []Block) ([]byte, error) {
	envelopes := make([]blockEnvelope, 0, len(blocks))
	for _, b := range blocks {
		env := blockEnvelope{Kind: b.Kind()}
		switch v := b.(type) {
		case FilterAuthor:
			env.Usernames = v.Usernames
			env.Mode = v.Mode
		case FilterType:
			env.Types = v.Types
			env.Mode = v.Mode
		case FilterHashtag:
			env.Tags = v.Tags
			env.Mode = v.Mode
			env.MatchAll = v.MatchAll
		case FilterDate:
			env.From = v.From
			env.To = v.To
		case SortPopular:
			env.Metric = v.Metric
			env.Direction = v.Direction
			if v.Window != 0 {
				env.Window = v.Window.String()
			}
		case SortRecent:
			env.Direction = v.Direction
		case SortRandom:
			env.Seed = v.Seed
		case Limit:
			env.Count = v.Count
		default:
			return nil, fmt.Errorf("%w: %T", ErrUnsupportedBlockKind, b)
		}
		envelopes = append(envelopes, env)
	}
	return json.Marshal(envelopes)
}
