package tree

import (
	"math"
	"testing"

	"pgregory.net/rapid"

	"github.com/fleverest/DtreeElections/ballot"
	"github.com/fleverest/DtreeElections/params"
)

func mustNew(t *testing.T, n int, seedStr string, opts ...params.Option) *Tree {
	t.Helper()
	tr, err := New(n, seedStr, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestSampleReturnsExactlyN(t *testing.T) {
	t.Parallel()
	tr := mustNew(t, 4, "sample-count")
	counts, err := tr.Sample(500)
	if err != nil {
		t.Fatal(err)
	}
	if got := counts.Total(); got != 500 {
		t.Fatalf("Total() = %d, want 500", got)
	}
}

func TestSampledBallotsAreWellFormed(t *testing.T) {
	t.Parallel()
	tr := mustNew(t, 5, "sample-wellformed", params.WithMinDepth(1))
	counts, err := tr.Sample(300)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range counts {
		if err := c.Ballot.Validate(5); err != nil {
			t.Fatalf("invalid sampled ballot %v: %v", c.Ballot, err)
		}
	}
}

func TestUpdateTwiceWithOneEqualsUpdateOnceWithTwo(t *testing.T) {
	t.Parallel()
	b := ballot.Ballot{0, 2, 1}

	a := mustNew(t, 4, "merge-a")
	if err := a.Update(ballot.Counts{{Ballot: b, N: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := a.Update(ballot.Counts{{Ballot: b, N: 1}}); err != nil {
		t.Fatal(err)
	}

	bt := mustNew(t, 4, "merge-b")
	if err := bt.Update(ballot.Counts{{Ballot: b, N: 2}}); err != nil {
		t.Fatal(err)
	}

	if got, want := a.root.counts[b[0]], bt.root.counts[b[0]]; got != want {
		t.Fatalf("root count for branch %d = %v, want %v", b[0], got, want)
	}
	if got, want := a.NodeCount(), bt.NodeCount(); got != want {
		t.Fatalf("NodeCount() = %d, want %d", got, want)
	}
}

func TestPosteriorSetsContainObservedBallots(t *testing.T) {
	t.Parallel()
	tr := mustNew(t, 3, "posterior-sets-contain-observed")
	observed := ballot.Counts{
		{Ballot: ballot.Ballot{0, 1, 2}, N: 3},
		{Ballot: ballot.Ballot{1, 0, 2}, N: 2},
	}
	if err := tr.Update(observed); err != nil {
		t.Fatal(err)
	}

	sets, err := tr.PosteriorSets(4, 20, true)
	if err != nil {
		t.Fatal(err)
	}
	for i, set := range sets {
		have := map[string]int{}
		for _, c := range set {
			have[c.Ballot.Key()] = c.N
		}
		for _, o := range observed {
			if have[o.Ballot.Key()] < o.N {
				t.Fatalf("set %d: observed ballot %v count %d not fully present (got %d)",
					i, o.Ballot, o.N, have[o.Ballot.Key()])
			}
		}
		if got := set.Total(); got != 20 {
			t.Fatalf("set %d: Total() = %d, want 20", i, got)
		}
	}
}

func TestPosteriorSetsRejectsTooFewBallots(t *testing.T) {
	t.Parallel()
	tr := mustNew(t, 3, "posterior-sets-too-few")
	if err := tr.Update(ballot.Counts{{Ballot: ballot.Ballot{0, 1, 2}, N: 5}}); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.PosteriorSets(1, 3, true); err == nil {
		t.Fatal("PosteriorSets with n_ballots < observed total succeeded, want error")
	}
}

func TestReducibleFullRankingMarginalIsUniform(t *testing.T) {
	t.Parallel()
	// Scenario 1: n=3, a0=1, min_depth=max_depth=3, reducible. The marginal
	// probability of any specific full ranking should average to 1/3! = 1/6.
	tr := mustNew(t, 3, "reducible-uniform",
		params.WithMinDepth(3), params.WithMaxDepth(3), params.WithReducible(true))

	const draws = 20000
	sum := 0.0
	o := ballot.Ballot{0, 1, 2}
	for i := 0; i < draws; i++ {
		p, err := tr.MarginalProbability(o)
		if err != nil {
			t.Fatal(err)
		}
		sum += p
	}
	mean := sum / draws
	if math.Abs(mean-1.0/6) > 0.01 {
		t.Fatalf("mean marginal probability = %v, want ~0.1667", mean)
	}
}

func TestMarginalProbabilityRejectsMalformedBallot(t *testing.T) {
	t.Parallel()
	tr := mustNew(t, 3, "marginal-malformed")
	if _, err := tr.MarginalProbability(ballot.Ballot{0, 0}); err == nil {
		t.Fatal("MarginalProbability accepted a duplicate-candidate ballot")
	}
}

func TestResetClearsTreeAndObserved(t *testing.T) {
	t.Parallel()
	tr := mustNew(t, 3, "reset")
	if err := tr.Update(ballot.Counts{{Ballot: ballot.Ballot{0, 1, 2}, N: 1}}); err != nil {
		t.Fatal(err)
	}
	tr.Reset()
	if tr.NodeCount() != 1 {
		t.Fatalf("NodeCount() after Reset = %d, want 1", tr.NodeCount())
	}
	if len(tr.Observed()) != 0 {
		t.Fatalf("Observed() after Reset = %v, want empty", tr.Observed())
	}
}

// TestSampleRapidInvariants checks, for a range of generated configurations,
// that every ballot drawn from Sample is well-formed and that the batch size
// always matches the request exactly.
func TestSampleRapidInvariants(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(2, 6).Draw(rt, "n")
		minDepth := rapid.IntRange(0, n).Draw(rt, "minDepth")
		maxDepth := rapid.IntRange(minDepth, n).Draw(rt, "maxDepth")
		a0 := rapid.Float64Range(0.01, 5).Draw(rt, "a0")
		count := rapid.IntRange(0, 40).Draw(rt, "count")

		tr, err := New(n, "rapid-seed",
			params.WithMinDepth(minDepth),
			params.WithMaxDepth(maxDepth),
			params.WithA0(a0))
		if err != nil {
			rt.Fatal(err)
		}

		counts, err := tr.Sample(count)
		if err != nil {
			rt.Fatal(err)
		}
		if got := counts.Total(); got != count {
			rt.Fatalf("Total() = %d, want %d", got, count)
		}
		for _, c := range counts {
			if err := c.Ballot.Validate(n); err != nil {
				rt.Fatalf("invalid ballot %v: %v", c.Ballot, err)
			}
			if l := c.Ballot.Len(); l < minDepth {
				rt.Fatalf("ballot length %d below min_depth %d", l, minDepth)
			}
			if l := c.Ballot.Len(); l > maxDepth {
				rt.Fatalf("ballot length %d above max_depth %d", l, maxDepth)
			}
		}
	})
}
