// Package tree implements the lazily-materialized Dirichlet-tree
// distribution over ranked ballots: an interior node type (this file) and
// the owning facade (tree.go).
//
// Grounded on original_source/src/dirichlet_tree.hpp and the node
// semantics implied by RcppIRV.cpp's IRVNode/IRVParameters usage, adapted
// to Go's map-of-pointers idiom in place of the original's templated
// NodeType/Outcome/Parameters triplet.
package tree

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fleverest/DtreeElections/ballot"
	"github.com/fleverest/DtreeElections/internal/alias"
	"github.com/fleverest/DtreeElections/params"
)

// haltBranch is the sentinel branch key for "stop the ballot here", kept
// distinct from any candidate index (which are all >= 0).
const haltBranch = -1

// node is an interior node of the Dirichlet tree at a fixed depth. Its
// branches are the candidates not yet appearing on the path that reached
// it, plus a halt branch where applicable. Branches and children are keyed
// directly by candidate index (or haltBranch); an unmaterialized branch
// need not appear in either map and is treated as a freshly-initialized
// node with all counts zero.
type node struct {
	depth    int
	counts   map[int]float64
	children map[int]*node
}

func newNode(depth int) *node {
	return &node{depth: depth, counts: map[int]float64{}, children: map[int]*node{}}
}

// remaining returns the candidates not present in path, in ascending
// order, against a universe of n candidates.
func remaining(path ballot.Ballot, n int) []int {
	used := make([]bool, n)
	for _, c := range path {
		used[c] = true
	}
	out := make([]int, 0, n-len(path))
	for i := 0; i < n; i++ {
		if !used[i] {
			out = append(out, i)
		}
	}
	return out
}

// branches returns the branch ids and their current Dirichlet parameters
// (alpha0 + observed count) for this node, given the path that reached it.
// Candidate branches are listed in ascending index order, with the halt
// branch (if any) appended last.
func (nd *node) branches(p *params.Parameters, path ballot.Ballot) ([]int, []float64) {
	rem := remaining(path, p.NCandidates())
	alpha0 := p.EffectiveA0(nd.depth)

	ids := make([]int, 0, len(rem)+1)
	weights := make([]float64, 0, len(rem)+1)
	for _, c := range rem {
		ids = append(ids, c)
		weights = append(weights, alpha0+nd.counts[c])
	}
	if p.HasHalt(nd.depth) {
		ids = append(ids, haltBranch)
		weights = append(weights, p.A0()+nd.counts[haltBranch])
	}
	return ids, weights
}

// childOrVirtual returns the materialized child for branch b, or a fresh
// unmaterialized node standing in for it, without ever mutating nd. This is
// what keeps sample and marginalProbability safe to call concurrently
// against a posterior tree that is not being updated: only update ever
// writes into the children map.
func (nd *node) childOrVirtual(b int) *node {
	if child, ok := nd.children[b]; ok {
		return child
	}
	return newNode(nd.depth + 1)
}

// materialize returns the child for branch b, creating and storing it if
// absent. Only ever called from update.
func (nd *node) materialize(b int) *node {
	child, ok := nd.children[b]
	if !ok {
		child = newNode(nd.depth + 1)
		nd.children[b] = child
	}
	return child
}

// update records count additional observations of outcome o, traversing
// (and materializing) the path it describes.
func (nd *node) update(o ballot.Ballot, count float64) {
	d := nd.depth
	if len(o) == d {
		nd.counts[haltBranch] += count
		return
	}
	b := o[d]
	nd.counts[b] += count
	nd.materialize(b).update(o, count)
}

// nodeCount returns 1 plus the number of materialized descendants, used to
// expose a "nodes materialized" gauge (posterior/metrics.go).
func (nd *node) nodeCount() int {
	total := 1
	for _, child := range nd.children {
		total += child.nodeCount()
	}
	return total
}

// gonumSource adapts a *rand.Rand (math/rand) to gonum/stat/distuv's
// golang.org/x/exp/rand.Source interface, delegating every draw to the
// same underlying generator rather than introducing a second RNG.
type gonumSource struct{ r *rand.Rand }

func (s gonumSource) Uint64() uint64   { return s.r.Uint64() }
func (s gonumSource) Seed(seed uint64) { s.r.Seed(int64(seed)) }

// dirichletDraw draws a single realization of theta ~ Dirichlet(alpha) by
// drawing independent Gamma(alpha_i, 1) variates and normalizing, the
// standard construction.
func dirichletDraw(rng *rand.Rand, alpha []float64) []float64 {
	theta := make([]float64, len(alpha))
	if len(alpha) == 1 {
		theta[0] = 1
		return theta
	}
	sum := 0.0
	for i, a := range alpha {
		g := distuv.Gamma{Alpha: a, Beta: 1, Src: gonumSource{rng}}
		theta[i] = g.Rand()
		sum += theta[i]
	}
	if sum <= 0 {
		// Numerically degenerate (all alpha tiny); fall back to uniform
		// rather than dividing by zero.
		for i := range theta {
			theta[i] = 1 / float64(len(theta))
		}
		return theta
	}
	for i := range theta {
		theta[i] /= sum
	}
	return theta
}

// multinomialDraw draws m ~ Multinomial(n, theta) via sequential
// Binomial decomposition: m_i ~ Binomial(n_remaining, theta_i /
// sum(theta_{j>=i})), clamped into [0,1]. This avoids the
// overflow/precision anomalies naive multinomial sampling exhibits for
// large n and many small probabilities.
func multinomialDraw(rng *rand.Rand, n int, theta []float64) []int {
	m := make([]int, len(theta))
	if len(theta) == 1 {
		m[0] = n
		return m
	}
	remainingN := n
	remainingP := 1.0
	for i, th := range theta {
		if i == len(theta)-1 {
			m[i] = remainingN
			break
		}
		if remainingN <= 0 {
			break
		}
		p := 0.0
		if remainingP > 1e-12 {
			p = th / remainingP
		}
		if p < 0 {
			p = 0
		} else if p > 1 {
			p = 1
		}
		b := distuv.Binomial{N: float64(remainingN), P: p, Src: gonumSource{rng}}
		k := int(math.Round(b.Rand()))
		if k < 0 {
			k = 0
		} else if k > remainingN {
			k = remainingN
		}
		m[i] = k
		remainingN -= k
		remainingP -= th
	}
	return m
}

// sample draws count ballots from one realization of this node's posterior
// predictive, extending prefix. It never mutates nd or its descendants:
// unmaterialized children are stood in for by ephemeral virtual nodes.
func (nd *node) sample(p *params.Parameters, rng *rand.Rand, prefix ballot.Ballot, count int) []ballot.Ballot {
	if count == 0 {
		return nil
	}

	// A node at max_depth is itself a leaf (only the root can be, when
	// max_depth is 0): every draw is the prefix as it stands.
	if nd.depth >= p.MaxDepth() {
		out := make([]ballot.Ballot, 0, count)
		for j := 0; j < count; j++ {
			out = append(out, prefix.Clone())
		}
		return out
	}

	ids, weights := nd.branches(p, prefix)

	// Terminal short-circuit: a single branch needs no Dirichlet/multinomial
	// draw at all, since all mass trivially belongs to it.
	var m []int
	if len(ids) == 1 {
		m = []int{count}
	} else {
		theta := dirichletDraw(rng, weights)
		m = multinomialDraw(rng, count, theta)
	}

	out := make([]ballot.Ballot, 0, count)
	for i, b := range ids {
		mi := m[i]
		if mi == 0 {
			continue
		}
		if b == haltBranch {
			for j := 0; j < mi; j++ {
				out = append(out, prefix.Clone())
			}
			continue
		}

		next := append(prefix.Clone(), b)
		if nd.depth+1 >= p.MaxDepth() || nd.depth+1 >= p.NCandidates() {
			// The child is a forced leaf: emit directly without recursing.
			for j := 0; j < mi; j++ {
				out = append(out, next.Clone())
			}
			continue
		}
		child := nd.childOrVirtual(b)
		out = append(out, child.sample(p, rng, next, mi)...)
	}
	return out
}

// marginalProbability returns one Monte Carlo draw of P(observe o |
// posterior), by drawing a fresh theta ~ Dirichlet(alpha) at every node
// along o's path and taking the product of the drawn branch probabilities.
// Repeated calls against the same (unchanged) tree give independent draws:
// this samples theta_b at each step rather than returning the deterministic
// ratio alpha_b/A, since a Monte Carlo audit needs draws that integrate
// over the tree's posterior uncertainty, not a point estimate conditioned
// on one fixed theta. See DESIGN.md.
func (nd *node) marginalProbability(p *params.Parameters, rng *rand.Rand, o ballot.Ballot) float64 {
	d := nd.depth

	if d == len(o) {
		if d >= p.NCandidates() || d >= p.MaxDepth() {
			return 1 // forced leaf: reaching it was already certain once chosen
		}
		if !p.HasHalt(d) {
			return 0 // o is shorter than min_depth allows: infeasible
		}
		_, weights := nd.branches(p, o)
		theta := dirichletDraw(rng, weights)
		return theta[len(theta)-1] // halt is always listed last
	}

	ids, weights := nd.branches(p, o[:d])
	if len(ids) == 1 {
		// Only one legal branch and it must be o[d] (o has no duplicates),
		// so this step is certain.
		child := nd.childOrVirtual(ids[0])
		return child.marginalProbability(p, rng, o)
	}

	theta := dirichletDraw(rng, weights)
	b := o[d]
	for i, id := range ids {
		if id == b {
			child := nd.childOrVirtual(b)
			return theta[i] * child.marginalProbability(p, rng, o)
		}
	}
	return 0 // o[d] is not a legal branch at this node
}

// clone returns a deep copy of nd and its materialized descendants, used by
// posterior-set sampling without replacement (tree.go's PosteriorSets) so
// that the sequential Polya-urn updates it performs stay local to one set
// and never touch the shared posterior.
func (nd *node) clone() *node {
	c := newNode(nd.depth)
	for b, n := range nd.counts {
		c.counts[b] = n
	}
	for b, child := range nd.children {
		c.children[b] = child.clone()
	}
	return c
}

// sampleOne draws a single ballot from one realization of this node's
// posterior predictive, picking among branches with an alias table (lib/
// internal/discreterand's O(1) technique, adapted in internal/alias)
// instead of the Binomial-decomposition multinomial draw used for batches:
// for a single draw the alias table amortizes better, and it is what
// PosteriorSets calls in a tight loop when sampling without replacement.
func (nd *node) sampleOne(p *params.Parameters, rng *rand.Rand, prefix ballot.Ballot) ballot.Ballot {
	ids, weights := nd.branches(p, prefix)

	var b int
	if len(ids) == 1 {
		b = ids[0]
	} else {
		theta := dirichletDraw(rng, weights)
		tbl := alias.New(theta)
		b = ids[tbl.Next(rng)]
	}

	if b == haltBranch {
		return prefix.Clone()
	}
	next := append(prefix.Clone(), b)
	if nd.depth+1 >= p.MaxDepth() || nd.depth+1 >= p.NCandidates() {
		return next
	}
	child := nd.childOrVirtual(b)
	return child.sampleOne(p, rng, next)
}
