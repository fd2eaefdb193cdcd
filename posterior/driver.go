// Package posterior implements the parallel Monte Carlo batch driver: it
// repeatedly draws a full posterior-predictive completion of the ballot
// population, runs instant-runoff voting over it, and tallies how often the
// simulated outcome matches a reported result — the core computation of a
// Bayesian ballot-polling audit.
//
// Grounded on the worker-pool pattern in lib/attack.go's Attacker.Attack:
// a bounded pool of goroutines pulling units of work off a channel while
// the calling goroutine also participates, here adapted so that every
// unit of work (a batch of elections) gets its own independently
// pre-seeded PRNG rather than sharing one pacer.
package posterior

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/fleverest/DtreeElections/ballot"
	"github.com/fleverest/DtreeElections/internal/errs"
	"github.com/fleverest/DtreeElections/internal/seed"
	"github.com/fleverest/DtreeElections/irv"
	"github.com/fleverest/DtreeElections/tree"
)

// Config configures a Driver.
type Config struct {
	// NWinners is the number of IRV winners to elect per simulated election.
	NWinners int
	// ReportedWinners are the certified winners to compare simulated
	// outcomes against; order does not matter.
	ReportedWinners []int
	// Replace selects with-replacement (single shared Dirichlet draw per
	// simulated election, faster) or without-replacement (sequential
	// Polya-urn draws, slower but avoids one draw dominating a whole
	// simulated population) sampling of the unobserved ballots. See
	// tree.Tree.PosteriorSets.
	Replace bool
	// Metrics, if non-nil, receives Prometheus instrumentation for the run.
	Metrics *Metrics
	// Trace, if non-nil, records a downsamplable convergence trace of the
	// running match fraction as elections complete.
	Trace *Trace
}

// Driver runs repeated posterior-predictive IRV simulations against a
// fixed, read-only Tree.
type Driver struct {
	tree     *tree.Tree
	nWinners int
	reported string // canonical key, see irv outcome keying below
	cfg      Config
}

// NewDriver returns a Driver simulating elections against t with cfg.
func NewDriver(t *tree.Tree, cfg Config) (*Driver, error) {
	if cfg.NWinners < 1 || cfg.NWinners >= t.Params().NCandidates() {
		return nil, errs.Invalidf("n_winners must be in [1,%d), got %d",
			t.Params().NCandidates(), cfg.NWinners)
	}
	return &Driver{
		tree:     t,
		nWinners: cfg.NWinners,
		reported: outcomeKey(cfg.ReportedWinners),
		cfg:      cfg,
	}, nil
}

// outcomeKey canonicalizes a winner set (order-independent) into a
// comparable string, reusing ballot.Ballot's key encoding.
func outcomeKey(winners []int) string {
	sorted := append([]int(nil), winners...)
	sort.Ints(sorted)
	return ballot.Ballot(sorted).Key()
}

// Summary is the commutative aggregate of a Run: how many simulated
// elections were completed, how many matched the reported outcome, the
// full distribution of outcomes observed (keyed by their canonical winner
// set), and a running per-candidate win count (incrementing the count for
// each of the last n_winners entries in every simulated election's
// elimination order). Summing Summaries field-by-field (as mergeSummaries
// does) is order-independent, so the driver's result does not depend on
// goroutine scheduling. It does depend on n_batches: the per-batch seeds
// and batch sizes change with it, so runs with different batch counts
// generally give different Summaries.
type Summary struct {
	NElections    int
	Matches       int
	OutcomeCounts map[string]int
	WinCounts     []int // length n_candidates; WinCounts[c] = elections won by c
}

func newSummary(nCandidates int) *Summary {
	return &Summary{OutcomeCounts: map[string]int{}, WinCounts: make([]int, nCandidates)}
}

func mergeSummaries(nCandidates int, parts []*Summary) *Summary {
	out := newSummary(nCandidates)
	for _, s := range parts {
		if s == nil {
			continue
		}
		out.NElections += s.NElections
		out.Matches += s.Matches
		for k, v := range s.OutcomeCounts {
			out.OutcomeCounts[k] += v
		}
		for c, v := range s.WinCounts {
			out.WinCounts[c] += v
		}
	}
	return out
}

// WinProbabilities returns the empirical posterior probability that each
// candidate is among the winners, indexed by candidate: WinCounts[c] /
// NElections. The entries sum to NWinners within floating-point tolerance,
// since every simulated election contributes exactly NWinners winners.
func (s *Summary) WinProbabilities() []float64 {
	probs := make([]float64, len(s.WinCounts))
	if s.NElections == 0 {
		return probs
	}
	for c, n := range s.WinCounts {
		probs[c] = float64(n) / float64(s.NElections)
	}
	return probs
}

// batchChunks splits nElections across nBatches worker jobs plus one
// sequential remainder job (index nBatches): each of the nBatches workers
// gets nElections/nBatches, and the remainder job gets nElections%nBatches.
// nElections<=1 is a special case that routes everything to the remainder
// job instead, so a single election never spins up the worker pool at
// all.
func batchChunks(nElections, nBatches int) []int {
	chunks := make([]int, nBatches+1)
	if nElections <= 1 {
		chunks[nBatches] = nElections
		return chunks
	}
	batchSize, remainder := nElections/nBatches, nElections%nBatches
	for i := 0; i < nBatches; i++ {
		chunks[i] = batchSize
	}
	chunks[nBatches] = remainder
	return chunks
}

// Run simulates nElections elections against nBallots ballots each
// (including the tree's already-observed ballots), split across nBatches
// worker goroutines plus one additional batch always run on the calling
// goroutine — hence the n_batches+1 seeds drawn up front from the tree's
// own PRNG. maxWorkers bounds how many of the nBatches worker batches run
// concurrently.
//
// Run respects ctx: on cancellation, in-flight batches abandon their
// remaining work between elections and Run returns an Interrupted error;
// the partial counts accumulated so far are discarded rather than
// returned, since a cancelled run is not a valid posterior estimate.
func (d *Driver) Run(ctx context.Context, nElections, nBallots, nBatches, maxWorkers int) (*Summary, error) {
	if nElections < 0 {
		return nil, errs.Invalidf("n_elections must be >= 0, got %d", nElections)
	}
	if nBatches < 1 {
		return nil, errs.Invalidf("n_batches must be >= 1, got %d", nBatches)
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	observedTotal := d.tree.Observed().Total()
	if nBallots < observedTotal {
		return nil, errs.Invalidf(
			"n_ballots (%d) must be >= the number of already-observed ballots (%d)",
			nBallots, observedTotal)
	}

	chunks := batchChunks(nElections, nBatches)

	seeds := make([]int64, nBatches+1)
	for i := range seeds {
		seeds[i] = d.tree.DrawSeed()
	}

	nCandidates := d.tree.Params().NCandidates()
	results := make([]*Summary, nBatches+1)
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup
	for i := 0; i < nBatches; i++ {
		if chunks[i] == 0 {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = d.runBatch(ctx, seeds[i], chunks[i], nBallots)
		}(i)
	}

	// The remainder batch runs inline: the calling goroutine is a worker
	// too, not just a dispatcher.
	results[nBatches] = d.runBatch(ctx, seeds[nBatches], chunks[nBatches], nBallots)

	wg.Wait()

	if ctx.Err() != nil {
		return nil, errs.Interrupted("posterior: simulation cancelled")
	}

	if d.cfg.Metrics != nil {
		d.cfg.Metrics.setNodesMaterialized(d.tree.NodeCount())
	}

	return mergeSummaries(nCandidates, results), nil
}

func (d *Driver) runBatch(ctx context.Context, s int64, n, nBallots int) *Summary {
	started := time.Now()
	rng := seed.FromInt64(s)
	summary := newSummary(d.tree.Params().NCandidates())

	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return summary
		default:
		}

		matched, key, winners, err := d.simulateOne(rng, nBallots)
		if err != nil {
			// A structural error here (e.g. an empty ballot set) indicates a
			// misconfigured tree, not a transient failure; stop the batch.
			return summary
		}

		summary.NElections++
		summary.OutcomeCounts[key]++
		for _, w := range winners {
			summary.WinCounts[w]++
		}
		if matched {
			summary.Matches++
		}
		if d.cfg.Metrics != nil {
			d.cfg.Metrics.recordElection(matched)
		}
		if d.cfg.Trace != nil {
			rate := float64(summary.Matches) / float64(summary.NElections)
			d.cfg.Trace.Record(uint64(summary.NElections), rate)
		}
	}

	if d.cfg.Metrics != nil {
		d.cfg.Metrics.recordBatch(time.Since(started))
	}
	return summary
}

func (d *Driver) simulateOne(rng *rand.Rand, nBallots int) (matched bool, key string, winners []int, err error) {
	sets, err := d.tree.PosteriorSetsWith(rng, 1, nBallots, d.cfg.Replace)
	if err != nil {
		return false, "", nil, err
	}
	result, err := irv.SocialChoice(sets[0], d.tree.Params().NCandidates(), d.nWinners, rng)
	if err != nil {
		return false, "", nil, err
	}
	key = outcomeKey(result.Winners)
	return key == d.reported, key, result.Winners, nil
}
