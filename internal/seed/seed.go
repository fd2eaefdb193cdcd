// Package seed turns a human-supplied seed string into a warmed-up
// math/rand source, the Go analogue of the std::seed_seq-based
// std::mt19937 construction in original_source/src/dirichlet_tree.hpp's
// setSeed.
package seed

import (
	"hash/fnv"
	"math/rand"
)

// warmupDraws mirrors dirichlet_tree.hpp's "engine.state_size * 100"
// discard, using mt19937's state size (624 32-bit words) as the reference
// constant even though math/rand's generator differs internally.
const warmupDraws = 624 * 100

// Hash reduces an arbitrary seed string to a 64-bit integer seed, standing
// in for std::seed_seq's construction from a string's byte range.
func Hash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

// New returns a *rand.Rand seeded from s and warmed up by discarding a
// fixed number of draws, matching dirichlet_tree.hpp's warmup-on-seed
// contract.
func New(s string) *rand.Rand {
	r := rand.New(rand.NewSource(Hash(s)))
	Warmup(r)
	return r
}

// FromInt64 is like New but takes an already-hashed seed, used when seeding
// per-batch workers from seeds drawn off another *rand.Rand rather than
// from a string.
func FromInt64(s int64) *rand.Rand {
	r := rand.New(rand.NewSource(s))
	Warmup(r)
	return r
}

// Warmup discards warmupDraws outputs from r.
func Warmup(r *rand.Rand) {
	for i := 0; i < warmupDraws; i++ {
		r.Int63()
	}
}
