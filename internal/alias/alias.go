// Package alias implements Vose's alias method for O(1) sampling from a
// fixed discrete distribution over branches of a Dirichlet-tree node.
//
// Adapted from lib/internal/discreterand (itself derived from Damian
// Gryski's implementation): rather than picking among HTTP targets, a
// Table here picks among a node's branches (candidates plus, where
// applicable, the halt branch) once their Dirichlet-draw probabilities
// theta are known. This gives posteriorSets a cheap way to draw a single
// ballot at a time when sampling without replacement, where a full
// Binomial-decomposed multinomial draw of size one would be wasteful.
package alias

import "math/rand"

// Table draws indices in [0, n) according to a fixed probability vector.
type Table struct {
	alias []int
	prob  []float64
}

// array-based stack, as in discreterand's worklist.
type worklist []int

func (w *worklist) push(i int) { *w = append(*w, i) }

func (w *worklist) pop() int {
	l := len(*w) - 1
	n := (*w)[l]
	*w = (*w)[:l]
	return n
}

// New constructs a Table for the given (not necessarily normalized)
// weights. Weights must be non-negative and sum to a positive value.
func New(weights []float64) Table {
	n := len(weights)

	total := 0.0
	for _, w := range weights {
		total += w
	}

	t := Table{
		alias: make([]int, n),
		prob:  make([]float64, n),
	}

	p := make([]float64, n)
	for i, w := range weights {
		p[i] = w / total * float64(n)
	}

	var small, large worklist
	for i, pi := range p {
		if pi < 1 {
			small.push(i)
		} else {
			large.push(i)
		}
	}

	for len(large) > 0 && len(small) > 0 {
		l := small.pop()
		g := large.pop()
		t.prob[l] = p[l]
		t.alias[l] = g

		p[g] = (p[g] + p[l]) - 1
		if p[g] < 1 {
			small.push(g)
		} else {
			large.push(g)
		}
	}

	for len(large) > 0 {
		t.prob[large.pop()] = 1
	}
	for len(small) > 0 {
		t.prob[small.pop()] = 1
	}

	return t
}

// Next draws a single index from the distribution using rnd.
func (t *Table) Next(rnd *rand.Rand) int {
	n := len(t.alias)
	i := rnd.Intn(n)
	if rnd.Float64() < t.prob[i] {
		return i
	}
	return t.alias[i]
}
