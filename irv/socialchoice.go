// Package irv implements the instant-runoff social choice function used to
// turn a set of ranked ballots into a sequence of eliminated candidates and
// a final set of winners.
//
// Grounded on original_source/src/RcppIRV.cpp's socialChoiceIRV: repeated
// rounds of tallying first active preferences, eliminating the
// minimum-tally candidate (breaking ties uniformly at random), until only
// one candidate remains active; RSocialChoiceIRV then splits the
// resulting full permutation into an elimination order and a winner set.
package irv

import (
	"math/rand"

	"github.com/fleverest/DtreeElections/ballot"
	"github.com/fleverest/DtreeElections/internal/errs"
)

// Result is the outcome of running SocialChoice, split from the full
// elimination permutation: its first n-nWinners entries in elimination
// order, followed by the winners (its last nWinners entries: the last
// candidate standing plus the nWinners-1 eliminated just before it).
type Result struct {
	EliminationOrder []int
	Winners          []int
}

// SocialChoice runs instant-runoff voting over counts, a set of ranked
// ballots over nCandidates candidates, eliminating candidates one at a
// time until a single candidate remains, producing a full permutation of
// [0,nCandidates); the last nWinners entries of that permutation are the
// winners. Ties for minimum tally are broken uniformly at random using
// rng, so the result is deterministic given a fixed rng stream and
// non-deterministic otherwise.
func SocialChoice(counts ballot.Counts, nCandidates, nWinners int, rng *rand.Rand) (*Result, error) {
	if nCandidates < 2 {
		return nil, errs.Invalidf("n_candidates must be >= 2, got %d", nCandidates)
	}
	if nWinners < 1 || nWinners >= nCandidates {
		return nil, errs.Invalidf("n_winners must be in [1,%d), got %d", nCandidates, nWinners)
	}
	if len(counts) == 0 {
		return nil, errs.Invalid("cannot run IRV over an empty ballot set")
	}
	for _, c := range counts {
		if err := c.Ballot.Validate(nCandidates); err != nil {
			return nil, err
		}
		if c.N <= 0 {
			return nil, errs.Invalidf("ballot count must be positive, got %d", c.N)
		}
	}

	active := make([]bool, nCandidates)
	for i := range active {
		active[i] = true
	}
	remaining := nCandidates

	eliminationOrder := make([]int, 0, nCandidates)
	for remaining > 1 {
		tally := make([]int, nCandidates)
		for _, c := range counts {
			for _, cand := range c.Ballot {
				if active[cand] {
					tally[cand] += c.N
					break
				}
			}
			// A ballot whose every ranked candidate is already eliminated is
			// exhausted and contributes to no tally, matching RSocialChoiceIRV.
		}

		min := -1
		var tied []int
		for cand := 0; cand < nCandidates; cand++ {
			if !active[cand] {
				continue
			}
			switch {
			case min == -1 || tally[cand] < min:
				min = tally[cand]
				tied = []int{cand}
			case tally[cand] == min:
				tied = append(tied, cand)
			}
		}

		loser := tied[0]
		if len(tied) > 1 {
			loser = tied[rng.Intn(len(tied))]
		}
		active[loser] = false
		eliminationOrder = append(eliminationOrder, loser)
		remaining--
	}

	// The last active candidate is never explicitly eliminated; its index
	// completes the permutation so eliminationOrder always has length
	// nCandidates before being split below.
	for cand := 0; cand < nCandidates; cand++ {
		if active[cand] {
			eliminationOrder = append(eliminationOrder, cand)
			break
		}
	}

	split := nCandidates - nWinners
	return &Result{
		EliminationOrder: eliminationOrder[:split],
		Winners:          eliminationOrder[split:],
	}, nil
}
