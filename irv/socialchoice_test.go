package irv

import (
	"math/rand"
	"testing"

	"github.com/fleverest/DtreeElections/ballot"
)

func scenarioBallots() ballot.Counts {
	return ballot.Counts{
		{Ballot: ballot.Ballot{0, 1, 2}, N: 4},
		{Ballot: ballot.Ballot{1, 0, 2}, N: 3},
		{Ballot: ballot.Ballot{2, 1, 0}, N: 3},
	}
}

func TestSocialChoiceIsDeterministicGivenSeed(t *testing.T) {
	t.Parallel()
	counts := scenarioBallots()

	r1, err := SocialChoice(counts, 3, 1, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	r2, err := SocialChoice(counts, 3, 1, rand.New(rand.NewSource(42)))
	if err != nil {
		t.Fatal(err)
	}
	if len(r1.Winners) != len(r2.Winners) || r1.Winners[0] != r2.Winners[0] {
		t.Fatalf("winners differ across identically-seeded runs: %v vs %v", r1.Winners, r2.Winners)
	}
	for i := range r1.EliminationOrder {
		if r1.EliminationOrder[i] != r2.EliminationOrder[i] {
			t.Fatalf("elimination orders differ: %v vs %v", r1.EliminationOrder, r2.EliminationOrder)
		}
	}
}

func TestSocialChoiceNeverElectsCandidateTwo(t *testing.T) {
	t.Parallel()
	// Candidate 2 has the fewest first preferences under every possible
	// tie-break in round one (4 vs 3 vs 3, and 2 is always eliminated
	// before or in place of candidate 0 or 1's runoff), so it can never
	// win scenarioBallots() regardless of seed.
	counts := scenarioBallots()
	for seed := int64(0); seed < 20; seed++ {
		r, err := SocialChoice(counts, 3, 1, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatal(err)
		}
		if r.Winners[0] == 2 {
			t.Fatalf("seed %d: candidate 2 won, want 0 or 1", seed)
		}
	}
}

func TestSocialChoiceEliminationOrderAndWinnersPartitionCandidates(t *testing.T) {
	t.Parallel()
	r, err := SocialChoice(scenarioBallots(), 3, 1, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatal(err)
	}
	seen := map[int]bool{}
	for _, c := range r.EliminationOrder {
		seen[c] = true
	}
	for _, c := range r.Winners {
		seen[c] = true
	}
	if len(seen) != 3 {
		t.Fatalf("elimination order %v + winners %v does not cover all 3 candidates",
			r.EliminationOrder, r.Winners)
	}
}

func TestSocialChoiceRejectsBadNWinners(t *testing.T) {
	t.Parallel()
	counts := scenarioBallots()
	rng := rand.New(rand.NewSource(1))
	if _, err := SocialChoice(counts, 3, 0, rng); err == nil {
		t.Fatal("n_winners=0 succeeded, want error")
	}
	if _, err := SocialChoice(counts, 3, 3, rng); err == nil {
		t.Fatal("n_winners=n_candidates succeeded, want error")
	}
}

func TestSocialChoiceRejectsEmptyBallotSet(t *testing.T) {
	t.Parallel()
	if _, err := SocialChoice(nil, 3, 1, rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("empty ballot set succeeded, want error")
	}
}

func TestSocialChoiceMultiWinner(t *testing.T) {
	t.Parallel()
	// With n_winners=2 over 4 candidates, the loop must still run to a
	// single standing candidate and then split the full permutation,
	// rather than stopping early at 2 remaining.
	counts := ballot.Counts{
		{Ballot: ballot.Ballot{0, 1, 2, 3}, N: 5},
		{Ballot: ballot.Ballot{1, 0, 2, 3}, N: 4},
		{Ballot: ballot.Ballot{2, 1, 0, 3}, N: 2},
		{Ballot: ballot.Ballot{3, 2, 1, 0}, N: 1},
	}
	r, err := SocialChoice(counts, 4, 2, rand.New(rand.NewSource(11)))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.EliminationOrder) != 2 {
		t.Fatalf("len(EliminationOrder) = %d, want 2", len(r.EliminationOrder))
	}
	if len(r.Winners) != 2 {
		t.Fatalf("len(Winners) = %d, want 2", len(r.Winners))
	}
	seen := map[int]bool{}
	for _, c := range append(append([]int{}, r.EliminationOrder...), r.Winners...) {
		seen[c] = true
	}
	if len(seen) != 4 {
		t.Fatalf("elimination order %v + winners %v does not partition all 4 candidates",
			r.EliminationOrder, r.Winners)
	}
}

func TestSocialChoiceHandlesExhaustedBallots(t *testing.T) {
	t.Parallel()
	// A ballot ranking only already-eliminated candidates contributes to no
	// later round's tally but must not panic or be double-counted.
	counts := ballot.Counts{
		{Ballot: ballot.Ballot{0}, N: 5},
		{Ballot: ballot.Ballot{1, 2}, N: 4},
		{Ballot: ballot.Ballot{2, 1}, N: 3},
	}
	r, err := SocialChoice(counts, 3, 1, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Winners) != 1 {
		t.Fatalf("len(Winners) = %d, want 1", len(r.Winners))
	}
}
