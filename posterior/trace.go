package posterior

import (
	"errors"
	"sync"

	tsz "github.com/tsenart/go-tsz"
)

// Point is one sample of a convergence trace: x is the number of
// simulated elections completed so far, y the running estimate (e.g. the
// fraction whose outcome matched the reported winners) at that point.
type Point struct{ X, Y float64 }

// Trace records the running estimate of a Driver's simulation as it
// accumulates elections, compactly, using the same delta-of-delta
// time-series encoding lib/timeseries.go and lib/plot/timeseries.go apply
// to attack latencies: here x (an election count) stands in for what was
// a timestamp, and y is the running match fraction rather than a latency.
//
// A Trace is safe for concurrent Record calls, since posterior.Driver's
// worker pool and its calling-goroutine batch may both report progress.
type Trace struct {
	mu   sync.Mutex
	data *tsz.Series
	len  int
}

// NewTrace returns an empty Trace.
func NewTrace() *Trace {
	return &Trace{data: tsz.New(0)}
}

// Record appends one (x, y) sample. x must be non-decreasing across calls,
// per go-tsz's delta encoding.
func (tr *Trace) Record(x uint64, y float64) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.data.Push(x, y)
	tr.len++
}

// Len returns the number of samples recorded.
func (tr *Trace) Len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.len
}

// iter returns a paging iterator over the recorded samples, in the shape
// lttbDownsample expects: repeated calls return the next count points.
func (tr *Trace) iter() (func(count int) ([]Point, error), int) {
	tr.mu.Lock()
	it := tr.data.Iter()
	n := tr.len
	tr.mu.Unlock()

	return func(count int) ([]Point, error) {
		ps := make([]Point, 0, count)
		for i := 0; i < count && it.Next(); i++ {
			x, y := it.Values()
			ps = append(ps, Point{X: float64(x), Y: y})
		}
		return ps, it.Err()
	}, n
}

// Downsample returns at most threshold points summarizing the trace,
// preserving its visual shape via Largest-Triangle-Three-Buckets. Adapted
// from lib/lttb/lttb.go, generalized from time/latency points to the
// (election count, match fraction) points recorded here.
func (tr *Trace) Downsample(threshold int) ([]Point, error) {
	it, count := tr.iter()
	return lttbDownsample(count, threshold, it)
}

func lttbDownsample(count, threshold int, it func(int) ([]Point, error)) ([]Point, error) {
	if threshold >= count || threshold == 0 {
		return it(count)
	}
	if threshold < 3 {
		return nil, errors.New("posterior: lttb threshold must be >= 3")
	}

	bucketWidth := float64(count-2) / float64(threshold-2)
	bucketEnd := func(bucket int) int { return int(bucketWidth*float64(bucket+1)) + 1 }

	anchor, err := it(bucketEnd(0))
	if err != nil {
		return nil, err
	}

	kept := make([]Point, 0, threshold)
	kept = append(kept, anchor[0])
	bucket := anchor[1:]

	for i := 1; i < threshold-1; i++ {
		lookahead, err := it(bucketEnd(i) - bucketEnd(i-1))
		if err != nil {
			return nil, err
		}
		kept = append(kept, lttbTriangle(kept[len(kept)-1], bucket, lookahead))
		bucket = lookahead
	}

	tail, err := it(count - len(kept))
	if err != nil {
		return nil, err
	} else if len(tail) == 0 {
		tail = bucket
	}
	if len(tail) > 0 {
		kept = append(kept, tail[len(tail)-1])
	}

	return kept, nil
}

// lttbTriangle returns whichever point in bucket forms the largest triangle
// with anchor and the centroid of the following bucket lookahead.
func lttbTriangle(anchor Point, bucket, lookahead []Point) Point {
	var centroid Point
	for _, p := range lookahead {
		centroid.X += p.X
		centroid.Y += p.Y
	}
	centroid.X /= float64(len(lookahead))
	centroid.Y /= float64(len(lookahead))

	best, bestArea := bucket[0], 0.0
	for _, p := range bucket {
		area := (anchor.X-centroid.X)*(p.Y-anchor.Y) - (anchor.X-p.X)*(centroid.Y-anchor.Y)
		if area *= area; area > bestArea {
			bestArea, best = area, p
		}
	}
	return best
}
