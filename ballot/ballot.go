// Package ballot defines the ranked-ballot data model: an ordered,
// duplicate-free sequence of candidate indices, and its aggregated
// (ballot, multiplicity) form.
//
// Modeled on the Result/Results pair in lib/results.go (a plain value type
// plus a slice type carrying the sort/aggregation behavior), and on
// original_source/src's IRVBallot / IRVBallotCount distinction used
// throughout RcppIRV.cpp.
package ballot

import (
	"sort"
	"strconv"
	"strings"

	"github.com/fleverest/DtreeElections/internal/errs"
)

// Ballot is an ordered ranking of a subset of candidates, each identified
// by its stable index in [0, n). It contains no duplicates.
type Ballot []int

// Len is the number of preferences expressed on the ballot.
func (b Ballot) Len() int { return len(b) }

// Equal reports whether b and other express the same ranking.
func (b Ballot) Equal(other Ballot) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}
	return true
}

// Key returns a hashable, order-preserving string representation of b,
// suitable for map keys when aggregating identical ballots.
func (b Ballot) Key() string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// Clone returns a copy of b so callers may extend it without aliasing.
func (b Ballot) Clone() Ballot {
	out := make(Ballot, len(b))
	copy(out, b)
	return out
}

// Validate reports whether b is a well-formed ballot over nCandidates
// candidates: every index in [0, nCandidates), no repeats, length at most
// nCandidates.
func (b Ballot) Validate(nCandidates int) error {
	if len(b) > nCandidates {
		return errs.Invalidf("ballot of length %d exceeds %d candidates", len(b), nCandidates)
	}
	seen := make(map[int]struct{}, len(b))
	for _, c := range b {
		if c < 0 || c >= nCandidates {
			return errs.Invalidf("candidate index %d out of range [0,%d)", c, nCandidates)
		}
		if _, dup := seen[c]; dup {
			return errs.Invalidf("duplicate candidate index %d", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// Count pairs a Ballot with a positive multiplicity, the aggregated form
// used everywhere multiple identical ballots are observed together.
type Count struct {
	Ballot Ballot
	N      int
}

// Counts is a slice of aggregated ballots. It implements sort.Interface by
// ballot key, mirroring Results' sort.Interface implementation by
// timestamp in lib/results.go.
type Counts []Count

func (cs Counts) Len() int           { return len(cs) }
func (cs Counts) Less(i, j int) bool { return cs[i].Ballot.Key() < cs[j].Ballot.Key() }
func (cs Counts) Swap(i, j int)      { cs[i], cs[j] = cs[j], cs[i] }

// Sort sorts cs in place by ballot key, for deterministic output and for
// tests that compare aggregated ballots irrespective of arrival order.
func (cs Counts) Sort() { sort.Sort(cs) }

// Total returns the sum of multiplicities across cs.
func (cs Counts) Total() int {
	total := 0
	for _, c := range cs {
		total += c.N
	}
	return total
}

// Aggregate collapses a list of individual ballots into Counts, summing the
// multiplicity of identical rankings. Equivalent to the bookkeeping
// RSocialChoiceIRV performs ad hoc while building its IRVBallotCount list.
func Aggregate(bs []Ballot) Counts {
	idx := make(map[string]int)
	var out Counts
	for _, b := range bs {
		k := b.Key()
		if i, ok := idx[k]; ok {
			out[i].N++
			continue
		}
		idx[k] = len(out)
		out = append(out, Count{Ballot: b.Clone(), N: 1})
	}
	return out
}

// Expand is the inverse of Aggregate: it returns cs as a flat slice of
// individual ballots, each repeated N times.
func (cs Counts) Expand() []Ballot {
	out := make([]Ballot, 0, cs.Total())
	for _, c := range cs {
		for i := 0; i < c.N; i++ {
			out = append(out, c.Ballot)
		}
	}
	return out
}
