// Package candidate adapts the index-based ballot/tree/irv machinery to a
// caller's candidate names: translating named ballots into index-based
// ballot.Ballot values and index-based irv.Result values back into names.
//
// Grounded on original_source/src/RcppIRV.cpp's PIRVDirichletTree, which
// plays exactly this role between R's character-vector candidate names and
// the index-based DirichletTree/IRV core.
package candidate

import (
	"log"
	"math/rand"
	"sort"

	gk "github.com/dgryski/go-gk"
	"github.com/influxdata/tdigest"

	"github.com/fleverest/DtreeElections/ballot"
	"github.com/fleverest/DtreeElections/internal/errs"
	"github.com/fleverest/DtreeElections/irv"
	"github.com/fleverest/DtreeElections/tree"
)

// Adapter maps candidate names to the stable indices the rest of the
// module operates on, and back.
type Adapter struct {
	names []string
	index map[string]int
}

// NewAdapter returns an Adapter for the given candidate names, in index
// order. Names must be non-empty and unique.
func NewAdapter(names []string) (*Adapter, error) {
	if len(names) < 2 {
		return nil, errs.Invalidf("must have at least 2 candidates, got %d", len(names))
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		if name == "" {
			return nil, errs.Invalidf("candidate %d has an empty name", i)
		}
		if _, dup := index[name]; dup {
			return nil, errs.Invalidf("duplicate candidate name %q", name)
		}
		index[name] = i
	}
	return &Adapter{names: append([]string(nil), names...), index: index}, nil
}

// NCandidates returns the number of candidates.
func (a *Adapter) NCandidates() int { return len(a.names) }

// Name returns the name of candidate i.
func (a *Adapter) Name(i int) string { return a.names[i] }

// Index returns the index of the candidate with the given name.
func (a *Adapter) Index(name string) (int, bool) {
	i, ok := a.index[name]
	return i, ok
}

// NamedBallot is a ranking expressed by candidate name rather than index.
type NamedBallot []string

// NamedCount pairs a NamedBallot with its observed multiplicity.
type NamedCount struct {
	Ballot NamedBallot
	N      int
}

// ToBallot converts nb to an index-based ballot.Ballot, erroring on any
// name the Adapter doesn't recognize.
func (a *Adapter) ToBallot(nb NamedBallot) (ballot.Ballot, error) {
	out := make(ballot.Ballot, len(nb))
	for i, name := range nb {
		idx, ok := a.index[name]
		if !ok {
			return nil, errs.Invalidf("unknown candidate %q", name)
		}
		out[i] = idx
	}
	if err := out.Validate(a.NCandidates()); err != nil {
		return nil, err
	}
	return out, nil
}

// ToCounts converts a slice of NamedCount into ballot.Counts.
func (a *Adapter) ToCounts(ncs []NamedCount) (ballot.Counts, error) {
	out := make(ballot.Counts, 0, len(ncs))
	for _, nc := range ncs {
		b, err := a.ToBallot(nc.Ballot)
		if err != nil {
			return nil, err
		}
		out = append(out, ballot.Count{Ballot: b, N: nc.N})
	}
	return out, nil
}

// FromCounts converts ballot.Counts back into their named form, for
// reporting.
func (a *Adapter) FromCounts(counts ballot.Counts) []NamedCount {
	out := make([]NamedCount, len(counts))
	for i, c := range counts {
		nb := make(NamedBallot, len(c.Ballot))
		for j, idx := range c.Ballot {
			nb[j] = a.names[idx]
		}
		out[i] = NamedCount{Ballot: nb, N: c.N}
	}
	return out
}

// NamedResult is irv.Result with candidates identified by name.
type NamedResult struct {
	EliminationOrder []string
	Winners          []string
}

// FromResult converts an index-based irv.Result to its named form.
func (a *Adapter) FromResult(r *irv.Result) *NamedResult {
	elim := make([]string, len(r.EliminationOrder))
	for i, c := range r.EliminationOrder {
		elim[i] = a.names[c]
	}
	winners := make([]string, len(r.Winners))
	for i, c := range r.Winners {
		winners[i] = a.names[c]
	}
	return &NamedResult{EliminationOrder: elim, Winners: winners}
}

// RunIRV runs instant-runoff voting over counts and returns the result with
// candidates identified by name.
func (a *Adapter) RunIRV(counts ballot.Counts, nWinners int, rng *rand.Rand) (*NamedResult, error) {
	r, err := irv.SocialChoice(counts, a.NCandidates(), nWinners, rng)
	if err != nil {
		return nil, err
	}
	return a.FromResult(r), nil
}

// MarginalSummary reports a Monte Carlo credible-interval summary of
// repeated tree.Tree.MarginalProbability draws for one named ballot.
type MarginalSummary struct {
	Ballot     NamedBallot
	NSamples   int
	Mean       float64
	Lower      float64 // (1-confidence)/2 quantile
	Upper      float64 // 1-(1-confidence)/2 quantile
	Confidence float64
}

// SummarizeMarginalProbability draws nSamples independent
// MarginalProbability estimates for nb and summarizes them as a mean plus a
// credible interval at the given confidence level (e.g. 0.95).
//
// The interval bounds come from a t-digest (mailru/easyjson's sibling
// influxdata/tdigest, used the way a streaming quantile estimator belongs
// in a library with no fixed sample count ahead of time). A coarser
// GK-sketch quantile (dgryski/go-gk) is computed alongside purely as a
// cross-check: its rank-error-bounded estimate of the median should track
// the t-digest's, and a large divergence between them would flag a
// miscalibrated digest compression rather than a real bimodal posterior.
func (a *Adapter) SummarizeMarginalProbability(t *tree.Tree, nb NamedBallot, nSamples int, confidence float64) (*MarginalSummary, error) {
	if nSamples < 1 {
		return nil, errs.Invalidf("n_samples must be >= 1, got %d", nSamples)
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, errs.Invalidf("confidence must be in (0,1), got %v", confidence)
	}
	b, err := a.ToBallot(nb)
	if err != nil {
		return nil, err
	}

	td := tdigest.New()
	sketch := gk.New(0.01)
	sum := 0.0
	for i := 0; i < nSamples; i++ {
		p, err := t.MarginalProbability(b)
		if err != nil {
			return nil, err
		}
		td.Add(p, 1)
		sketch.Insert(p)
		sum += p
	}

	alpha := (1 - confidence) / 2
	lower, upper := td.Quantile(alpha), td.Quantile(1-alpha)
	median, sketchMedian := td.Quantile(0.5), sketch.Query(0.5)
	if d := median - sketchMedian; d > 0.05 || d < -0.05 {
		log.Printf("candidate: t-digest/GK-sketch median diverge by %.4f for %v (t-digest=%.4f, sketch=%.4f)",
			d, nb, median, sketchMedian)
	}

	return &MarginalSummary{
		Ballot:     append(NamedBallot(nil), nb...),
		NSamples:   nSamples,
		Mean:       sum / float64(nSamples),
		Lower:      lower,
		Upper:      upper,
		Confidence: confidence,
	}, nil
}

// SortedNames returns the candidate names in lexicographic order,
// independent of their index assignment, for callers that want a stable
// display order.
func (a *Adapter) SortedNames() []string {
	out := append([]string(nil), a.names...)
	sort.Strings(out)
	return out
}
