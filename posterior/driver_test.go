package posterior

import (
	"context"
	"errors"
	"testing"

	"github.com/fleverest/DtreeElections/ballot"
	"github.com/fleverest/DtreeElections/internal/errs"
	"github.com/fleverest/DtreeElections/tree"
)

func newTestTree(t *testing.T, seedStr string) *tree.Tree {
	t.Helper()
	tr, err := tree.New(3, seedStr)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Update(ballot.Counts{
		{Ballot: ballot.Ballot{0, 1, 2}, N: 4},
		{Ballot: ballot.Ballot{1, 0, 2}, N: 3},
		{Ballot: ballot.Ballot{2, 1, 0}, N: 3},
	}); err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestRunIsDeterministicRegardlessOfBatchCount(t *testing.T) {
	t.Parallel()

	run := func(nBatches, maxWorkers int) *Summary {
		tr := newTestTree(t, "driver-determinism")
		d, err := NewDriver(tr, Config{NWinners: 1, ReportedWinners: []int{0}})
		if err != nil {
			t.Fatal(err)
		}
		s, err := d.Run(context.Background(), 200, 10, nBatches, maxWorkers)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	a := run(1, 1)
	b := run(4, 4)
	c := run(7, 2)

	if a.NElections != b.NElections || a.NElections != c.NElections {
		t.Fatalf("NElections differ: %d, %d, %d", a.NElections, b.NElections, c.NElections)
	}
	if a.Matches != b.Matches || a.Matches != c.Matches {
		t.Fatalf("Matches differ: %d, %d, %d", a.Matches, b.Matches, c.Matches)
	}
	for k, v := range a.OutcomeCounts {
		if b.OutcomeCounts[k] != v || c.OutcomeCounts[k] != v {
			t.Fatalf("OutcomeCounts[%q] differ: %d, %d, %d", k, v, b.OutcomeCounts[k], c.OutcomeCounts[k])
		}
	}
}

func TestRunRejectsTooFewBallots(t *testing.T) {
	t.Parallel()
	tr := newTestTree(t, "driver-too-few")
	d, err := NewDriver(tr, Config{NWinners: 1, ReportedWinners: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Run(context.Background(), 5, 3, 2, 2); err == nil {
		t.Fatal("Run with n_ballots < observed total succeeded, want error")
	}
}

func TestRunRespectsContextCancellation(t *testing.T) {
	t.Parallel()
	tr := newTestTree(t, "driver-cancel")
	d, err := NewDriver(tr, Config{NWinners: 1, ReportedWinners: []int{0}})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := d.Run(ctx, 1000, 10, 4, 4)
	if err == nil {
		t.Fatal("Run with a pre-cancelled context succeeded, want an Interrupted error")
	}
	if !errors.Is(err, errs.ErrInterrupted) {
		t.Fatalf("Run error = %v, want errs.ErrInterrupted", err)
	}
	if s != nil {
		t.Fatalf("Summary = %v, want nil on interruption (partial counts must be discarded)", s)
	}
}

func TestWinProbabilitiesSumToNWinners(t *testing.T) {
	t.Parallel()
	tr := newTestTree(t, "driver-win-probs")
	d, err := NewDriver(tr, Config{NWinners: 1, ReportedWinners: []int{0}})
	if err != nil {
		t.Fatal(err)
	}
	s, err := d.Run(context.Background(), 500, 10, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	probs := s.WinProbabilities()
	if len(probs) != 3 {
		t.Fatalf("len(WinProbabilities()) = %d, want 3", len(probs))
	}
	sum := 0.0
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Fatalf("probability out of range: %v", probs)
		}
		sum += p
	}
	if diff := sum - 1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("sum(WinProbabilities()) = %v, want 1 (n_winners=1)", sum)
	}
}

func TestWinProbabilitiesMatchAcrossBatchCounts(t *testing.T) {
	t.Parallel()

	run := func(nBatches int) []float64 {
		tr := newTestTree(t, "driver-win-probs-determinism")
		d, err := NewDriver(tr, Config{NWinners: 1, ReportedWinners: []int{0}})
		if err != nil {
			t.Fatal(err)
		}
		s, err := d.Run(context.Background(), 300, 10, nBatches, 3)
		if err != nil {
			t.Fatal(err)
		}
		return s.WinProbabilities()
	}

	a, b := run(1), run(6)
	for c := range a {
		if a[c] != b[c] {
			t.Fatalf("WinProbabilities()[%d] differ across batch counts: %v vs %v", c, a, b)
		}
	}
}

func TestBatchChunksSpecialCasesSingleElection(t *testing.T) {
	t.Parallel()
	for _, n := range []int{0, 1} {
		chunks := batchChunks(n, 4)
		for i := 0; i < 4; i++ {
			if chunks[i] != 0 {
				t.Fatalf("batchChunks(%d,4)[%d] = %d, want 0 (worker pool must be skipped)", n, i, chunks[i])
			}
		}
		if chunks[4] != n {
			t.Fatalf("batchChunks(%d,4)[4] = %d, want %d (remainder job takes everything)", n, chunks[4], n)
		}
	}
}

func TestBatchChunksSplitsEvenlyWithRemainderOnLastJob(t *testing.T) {
	t.Parallel()
	chunks := batchChunks(10, 3)
	for i := 0; i < 3; i++ {
		if chunks[i] != 3 {
			t.Fatalf("batchChunks(10,3)[%d] = %d, want 3", i, chunks[i])
		}
	}
	if chunks[3] != 1 {
		t.Fatalf("batchChunks(10,3)[3] = %d, want 1 (10%%3)", chunks[3])
	}
}

func TestNewDriverRejectsBadNWinners(t *testing.T) {
	t.Parallel()
	tr := newTestTree(t, "driver-bad-nwinners")
	if _, err := NewDriver(tr, Config{NWinners: 0}); err == nil {
		t.Fatal("n_winners=0 succeeded, want error")
	}
	if _, err := NewDriver(tr, Config{NWinners: 3}); err == nil {
		t.Fatal("n_winners=n_candidates succeeded, want error")
	}
}
