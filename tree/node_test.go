package tree

import (
	"math"
	"math/rand"
	"testing"
)

func TestDirichletDrawSumsToOne(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	theta := dirichletDraw(rng, []float64{1, 2, 3, 0.5})
	sum := 0.0
	for _, th := range theta {
		if th < 0 {
			t.Fatalf("negative theta: %v", theta)
		}
		sum += th
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("sum(theta) = %v, want 1", sum)
	}
}

func TestDirichletDrawSingleCategoryIsCertain(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))
	theta := dirichletDraw(rng, []float64{7})
	if theta[0] != 1 {
		t.Fatalf("theta = %v, want [1]", theta)
	}
}

func TestMultinomialDrawSumsToN(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(2))
	theta := []float64{0.1, 0.2, 0.3, 0.4}
	m := multinomialDraw(rng, 1000, theta)
	total := 0
	for _, mi := range m {
		if mi < 0 {
			t.Fatalf("negative bucket: %v", m)
		}
		total += mi
	}
	if total != 1000 {
		t.Fatalf("sum(m) = %d, want 1000", total)
	}
}

func TestMultinomialDrawSingleCategory(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(2))
	m := multinomialDraw(rng, 42, []float64{1})
	if len(m) != 1 || m[0] != 42 {
		t.Fatalf("m = %v, want [42]", m)
	}
}

func TestNodeUpdateMaterializesPath(t *testing.T) {
	t.Parallel()
	root := newNode(0)
	root.update([]int{0, 1}, 3)
	if root.counts[0] != 3 {
		t.Fatalf("root.counts[0] = %v, want 3", root.counts[0])
	}
	child, ok := root.children[0]
	if !ok {
		t.Fatal("expected branch 0 to be materialized")
	}
	grandchild, ok := child.children[1]
	if !ok {
		t.Fatal("expected branch 0 -> 1 to be materialized")
	}
	if grandchild.counts[haltBranch] != 3 {
		t.Fatalf("grandchild.counts[halt] = %v, want 3 (ballot ends at depth 2)", grandchild.counts[haltBranch])
	}
}

func TestNodeCloneIsIndependent(t *testing.T) {
	t.Parallel()
	root := newNode(0)
	root.update([]int{0}, 2)

	clone := root.clone()
	clone.update([]int{1}, 5)

	if _, ok := root.children[1]; ok {
		t.Fatal("mutating the clone affected the original")
	}
	if clone.counts[0] != 2 {
		t.Fatalf("clone lost original counts: %v", clone.counts)
	}
}
