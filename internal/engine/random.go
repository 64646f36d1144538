// internal/engine/random.go
package engine

import (
	"crypto/rand"
	"encoding/binary"
	"hash/fnv"

	"github.com/averko/feedmill/internal/types"
)

/*
 * Seeded random ordering.
 *
 * sort-random orders by hash(seed, post-id), so the shuffle is a pure
 * function of the seed: deterministic when the user supplies one, and
 * stable across pages of one browsing session when the paginator picks one.
 * Without a fixed seed, every page fetch would reshuffle and duplicate or
 * skip items; that is why seeding is mandatory internally even though the
 * block's seed field is optional externally.
 *
 * FNV-1a is used as the mixing function: deterministic across platforms
 * and process restarts (unlike maphash), no cryptographic requirement.
 */

// RandomRank returns the order key for a post under a seeded random sort.
// The uint64 hash is reinterpreted as int64 so rank comparisons share the
// one signed key domain that cursors and key bounds use.
func RandomRank(seed uint64, id types.PostID) int64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seed)
	h.Write(buf[:])
	h.Write([]byte(id))
	return int64(h.Sum64())
}

// NewSeed draws a random seed for an unseeded sort-random plan.
// crypto/rand for uniformity; fail-safe to a fixed seed on RNG error so
// pagination stays stable rather than panicking mid-request.
func NewSeed() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0x5eedfeedbeef
	}
	return binary.BigEndian.Uint64(buf[:])
}
