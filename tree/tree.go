package tree

import (
	"fmt"
	"math/rand"

	"github.com/fleverest/DtreeElections/ballot"
	"github.com/fleverest/DtreeElections/internal/errs"
	"github.com/fleverest/DtreeElections/internal/seed"
	"github.com/fleverest/DtreeElections/params"
)

// Tree is a lazily-materialized Dirichlet tree over ranked ballots: a root
// node, the parameters governing its shape and prior, the PRNG driving its
// sampling, and the ballots folded into it so far.
//
// Modeled on vegeta.Attacker in lib/attack.go: a long-lived value built
// once with New and then driven through its exported methods, with a
// dedicated PRNG field rather than a package-global one so that
// concurrent Trees (or a Tree reseeded between runs) never share state.
type Tree struct {
	params   *params.Parameters
	root     *node
	rng      *rand.Rand
	observed ballot.Counts
}

// New returns a Tree over nCandidates candidates, seeded from seedStr, with
// popts applied to its Parameters (see the params package for available
// options).
func New(nCandidates int, seedStr string, popts ...params.Option) (*Tree, error) {
	p, err := params.New(nCandidates, popts...)
	if err != nil {
		return nil, err
	}
	return &Tree{
		params: p,
		root:   newNode(0),
		rng:    seed.New(seedStr),
	}, nil
}

// Params returns the tree's Parameters, mutable in place through its Set*
// methods.
func (t *Tree) Params() *params.Parameters { return t.params }

// Observed returns a copy of the ballots folded into the tree so far.
func (t *Tree) Observed() ballot.Counts {
	out := make(ballot.Counts, len(t.observed))
	copy(out, t.observed)
	return out
}

// NodeCount returns the number of materialized nodes, root included. Used
// by posterior/metrics.go to expose a tree-size gauge.
func (t *Tree) NodeCount() int { return t.root.nodeCount() }

// SetSeed reseeds the tree's PRNG from seedStr, discarding the previous
// stream. Sampling and marginal-probability draws made after SetSeed are
// independent of any made before it.
func (t *Tree) SetSeed(seedStr string) { t.rng = seed.New(seedStr) }

// DrawSeed draws (and consumes) one int64 from the tree's PRNG, for use as
// an independent seed elsewhere. posterior.Driver.Run calls this n_batches+1 times
// up front to pre-seed its worker streams: the tree's own PRNG is never
// drawn from concurrently by more than one goroutine.
func (t *Tree) DrawSeed() int64 { return t.rng.Int63() }

// Reset discards all observed ballots and materialized nodes, returning the
// tree to its prior (no data) state. Parameters are left unchanged except
// for the observed-depth bookkeeping used by SetMinDepth/SetMaxDepth.
func (t *Tree) Reset() {
	t.root = newNode(0)
	t.observed = nil
	t.params.ClearObservedDepths()
}

// Update folds counts into the tree's posterior. All ballots are validated
// against the tree's candidate count before any are applied: either every
// count is folded in, or (on a validation error) none are.
//
// A ballot whose length falls outside [min_depth, max_depth] is still
// recorded, but raises an InconsistentState warning rather than an error,
// since the data observed is a fact regardless of how the tree happens to
// be configured.
func (t *Tree) Update(counts ballot.Counts) error {
	for _, c := range counts {
		if err := c.Ballot.Validate(t.params.NCandidates()); err != nil {
			return err
		}
		if c.N <= 0 {
			return errs.Invalidf("ballot count must be positive, got %d", c.N)
		}
	}

	for _, c := range counts {
		d := c.Ballot.Len()
		t.params.NoteObservedDepth(d)
		if d < t.params.MinDepth() || d > t.params.MaxDepth() {
			t.params.Warn("Update", fmt.Sprintf(
				"observed ballot of length %d outside [min_depth=%d,max_depth=%d]",
				d, t.params.MinDepth(), t.params.MaxDepth()))
		}
		t.root.update(c.Ballot, float64(c.N))
		t.observed = append(t.observed, c)
	}
	return nil
}

// Sample draws n ballots from one realization of the tree's posterior
// predictive distribution, aggregated and sorted by ballot key.
func (t *Tree) Sample(n int) (ballot.Counts, error) {
	return t.SampleWith(t.rng, n)
}

// SampleWith is Sample, drawing from rng instead of the tree's own PRNG. It
// performs no writes to t, so it is safe to call concurrently from several
// goroutines as long as each is given its own rng and nothing else is
// concurrently calling Update: this is what posterior.Driver's worker pool
// uses, with one independently pre-seeded rng per batch.
func (t *Tree) SampleWith(rng *rand.Rand, n int) (ballot.Counts, error) {
	if n < 0 {
		return nil, errs.Invalidf("n must be >= 0, got %d", n)
	}
	raw := t.root.sample(t.params, rng, ballot.Ballot{}, n)
	out := ballot.Aggregate(raw)
	out.Sort()
	return out, nil
}

// MarginalProbability returns one Monte Carlo draw of P(observe o |
// posterior). Repeated calls return independent draws; callers average
// n_samples of them to estimate the posterior marginal.
func (t *Tree) MarginalProbability(o ballot.Ballot) (float64, error) {
	return t.MarginalProbabilityWith(t.rng, o)
}

// MarginalProbabilityWith is MarginalProbability, drawing from rng instead
// of the tree's own PRNG; see SampleWith for the concurrency contract.
func (t *Tree) MarginalProbabilityWith(rng *rand.Rand, o ballot.Ballot) (float64, error) {
	if err := o.Validate(t.params.NCandidates()); err != nil {
		return 0, err
	}
	return t.root.marginalProbability(t.params, rng, o), nil
}

// PosteriorSets draws nSets independent posterior sets, each containing
// every already-observed ballot plus (nBallots - len(observed)) additional
// ballots drawn from the posterior predictive.
//
// With replace=true the additional ballots within a set share a single
// Dirichlet draw per node (i.e. Sample(extra)): standard posterior
// predictive sampling with replacement. With replace=false they are drawn
// one at a time against a private clone of the tree, folding each draw in
// before the next (a sequential Polya-urn scheme), so that within a set no
// single realization of theta dominates every draw. Either way, distinct
// sets are statistically independent of one another.
func (t *Tree) PosteriorSets(nSets, nBallots int, replace bool) ([]ballot.Counts, error) {
	return t.PosteriorSetsWith(t.rng, nSets, nBallots, replace)
}

// PosteriorSetsWith is PosteriorSets, drawing from rng instead of the
// tree's own PRNG; see SampleWith for the concurrency contract.
func (t *Tree) PosteriorSetsWith(rng *rand.Rand, nSets, nBallots int, replace bool) ([]ballot.Counts, error) {
	if nSets < 0 {
		return nil, errs.Invalidf("n_sets must be >= 0, got %d", nSets)
	}
	observedTotal := t.observed.Total()
	if nBallots < observedTotal {
		return nil, errs.Invalidf(
			"n_ballots (%d) must be >= the number of already-observed ballots (%d)",
			nBallots, observedTotal)
	}
	extra := nBallots - observedTotal

	sets := make([]ballot.Counts, nSets)
	for i := 0; i < nSets; i++ {
		var drawn []ballot.Ballot
		if replace {
			drawn = t.root.sample(t.params, rng, ballot.Ballot{}, extra)
		} else {
			work := t.root.clone()
			drawn = make([]ballot.Ballot, 0, extra)
			for j := 0; j < extra; j++ {
				b := work.sampleOne(t.params, rng, ballot.Ballot{})
				drawn = append(drawn, b)
				work.update(b, 1)
			}
		}

		all := make([]ballot.Ballot, 0, nBallots)
		for _, c := range t.observed {
			for k := 0; k < c.N; k++ {
				all = append(all, c.Ballot)
			}
		}
		all = append(all, drawn...)

		counts := ballot.Aggregate(all)
		counts.Sort()
		sets[i] = counts
	}
	return sets, nil
}
