// Package params defines the Dirichlet-tree configuration: the immutable
// candidate count and the mutable min_depth/max_depth/a0/reducible knobs,
// along with the effective-concentration math that makes "reducible" mode
// behave like a flat Dirichlet over complete rankings.
//
// Constructed with a functional-options constructor, the same shape as
// vegeta.NewAttacker(opts ...func(*Attacker)) in attack.go, except that
// options here can fail validation and so return an error.
package params

import (
	"github.com/fleverest/DtreeElections/internal/errs"
)

// Parameters holds the structural and prior configuration of a Dirichlet
// tree. NCandidates is fixed at construction; the remaining fields may be
// changed at runtime through the Set* methods.
type Parameters struct {
	nCandidates int
	minDepth    int
	maxDepth    int
	a0          float64
	reducible   bool

	// observedDepths tracks the set of distinct ballot lengths already
	// observed by the owning tree, so that SetMinDepth can warn when it
	// would contradict them. Populated by the tree, not by callers.
	observedDepths map[int]struct{}
	warn           errs.WarnFunc
}

// Option configures a Parameters at construction time.
type Option func(*Parameters) error

// WithMinDepth sets the minimum ballot depth at which the halt branch
// becomes available.
func WithMinDepth(d int) Option {
	return func(p *Parameters) error { return p.SetMinDepth(d) }
}

// WithMaxDepth sets the maximum ballot depth (depth of a full leaf).
func WithMaxDepth(d int) Option {
	return func(p *Parameters) error { return p.SetMaxDepth(d) }
}

// WithA0 sets the base Dirichlet concentration.
func WithA0(a float64) Option {
	return func(p *Parameters) error { return p.SetA0(a) }
}

// WithReducible toggles reducible-to-Dirichlet mode.
func WithReducible(r bool) Option {
	return func(p *Parameters) error { p.reducible = r; return nil }
}

// WithWarnFunc registers a callback for InconsistentState warnings raised
// by later Set* calls.
func WithWarnFunc(fn errs.WarnFunc) Option {
	return func(p *Parameters) error { p.warn = fn; return nil }
}

// New returns a new Parameters for nCandidates candidates with min_depth=0,
// max_depth=nCandidates and a0=1, before applying opts in order.
func New(nCandidates int, opts ...Option) (*Parameters, error) {
	if nCandidates < 2 {
		return nil, errs.Invalidf("n_candidates must be >= 2, got %d", nCandidates)
	}
	p := &Parameters{
		nCandidates:    nCandidates,
		minDepth:       0,
		maxDepth:       nCandidates,
		a0:             1.0,
		reducible:      false,
		observedDepths: map[int]struct{}{},
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NCandidates returns the (immutable) number of candidates.
func (p *Parameters) NCandidates() int { return p.nCandidates }

// MinDepth returns the current minimum ballot depth.
func (p *Parameters) MinDepth() int { return p.minDepth }

// MaxDepth returns the current maximum ballot depth.
func (p *Parameters) MaxDepth() int { return p.maxDepth }

// A0 returns the base concentration parameter.
func (p *Parameters) A0() float64 { return p.a0 }

// Reducible reports whether reducible-to-Dirichlet mode is enabled.
func (p *Parameters) Reducible() bool { return p.reducible }

// DefaultPath returns the empty prefix, i.e. the root's path: "no
// preferences chosen yet".
func (p *Parameters) DefaultPath() []int { return []int{} }

// SetMinDepth updates the minimum depth, validating min_depth <= max_depth.
// If the new value exceeds the length of an already-observed ballot, the
// change still proceeds but a Warning is emitted (InconsistentState): this
// is a warning, not a fatal error.
func (p *Parameters) SetMinDepth(d int) error {
	if d < 0 || d > p.maxDepth {
		return errs.Invalidf("min_depth must be in [0,%d], got %d", p.maxDepth, d)
	}
	for observed := range p.observedDepths {
		if observed < d {
			p.warn.Emit(errs.NewWarning("SetMinDepth",
				"raising min_depth above the length of an already-observed ballot compromises reducibility"))
			break
		}
	}
	p.minDepth = d
	return nil
}

// SetMaxDepth updates the maximum depth, validating min_depth <= max_depth
// <= n_candidates.
func (p *Parameters) SetMaxDepth(d int) error {
	if d < p.minDepth || d > p.nCandidates {
		return errs.Invalidf("max_depth must be in [%d,%d], got %d", p.minDepth, p.nCandidates, d)
	}
	for observed := range p.observedDepths {
		if observed > d {
			p.warn.Emit(errs.NewWarning("SetMaxDepth",
				"lowering max_depth below the length of an already-observed ballot compromises reducibility"))
			break
		}
	}
	p.maxDepth = d
	return nil
}

// SetA0 updates the base concentration parameter, which must be positive.
func (p *Parameters) SetA0(a float64) error {
	if a <= 0 {
		return errs.Invalidf("a0 must be > 0, got %v", a)
	}
	p.a0 = a
	return nil
}

// SetReducible toggles reducible-to-Dirichlet mode.
func (p *Parameters) SetReducible(r bool) { p.reducible = r }

// Warn reports an InconsistentState condition to the registered WarnFunc,
// if any. Used by tree.Tree.Update to flag observed ballots whose length
// falls outside [min_depth, max_depth] without aborting the update.
func (p *Parameters) Warn(op, msg string) { p.warn.Emit(errs.NewWarning(op, msg)) }

// NoteObservedDepth records that a ballot of the given length has been
// observed, for later consistency checks in SetMinDepth/SetMaxDepth. Called
// by tree.Tree.Update; not meant for direct use.
func (p *Parameters) NoteObservedDepth(depth int) { p.observedDepths[depth] = struct{}{} }

// ClearObservedDepths forgets all recorded ballot lengths. Called by
// tree.Tree.Reset.
func (p *Parameters) ClearObservedDepths() { p.observedDepths = map[int]struct{}{} }

// HasHalt reports whether a node at the given depth has a halt branch:
// min_depth <= depth < max_depth.
func (p *Parameters) HasHalt(depth int) bool {
	return depth >= p.minDepth && depth < p.maxDepth
}

// EffectiveA0 returns the concentration to apply to each "continue" branch
// of a node at the given depth.
//
// In non-reducible mode this is simply A0. In reducible mode it is scaled
// by the number of leaf ballots reachable beneath a single continue branch,
// which is the standard construction making a Dirichlet tree mathematically
// equivalent to a flat Dirichlet(a0) over its leaf categories: see
// DESIGN.md's resolution of the open question on halt-branch mass.
// The halt branch itself always carries concentration A0 unscaled, in both
// modes, since it has exactly one descendant leaf (the ballot that stops
// there) regardless of depth.
func (p *Parameters) EffectiveA0(depth int) float64 {
	if !p.reducible {
		return p.a0
	}
	return p.a0 * p.leavesBeneath(depth+1)
}

// leavesBeneath returns the number of distinct complete-or-halted ballots
// reachable from a node at the given depth, i.e. the node's total leaf
// count under the current min_depth/max_depth.
func (p *Parameters) leavesBeneath(depth int) float64 {
	if depth >= p.maxDepth {
		return 1
	}
	total := float64(p.nCandidates-depth) * p.leavesBeneath(depth+1)
	if p.HasHalt(depth) {
		total++
	}
	return total
}
