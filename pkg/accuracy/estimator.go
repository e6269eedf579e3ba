// Package accuracy implements a write-monotone estimate of how coarse a
// filesystem's mtime resolution is. It's bound to a single FileSystemInfo
// instance rather than kept process-global, purely for testability.
package accuracy

import "sync/atomic"

// Estimator tracks an adaptive estimate of filesystem mtime granularity, in
// milliseconds. It starts pessimistic (2000ms) and tightens monotonically as
// mtimes are observed that disprove coarser granularities. It is safe for
// concurrent use.
type Estimator struct {
	// milliseconds holds the current estimate, guarded by atomic access so
	// that Observe can be called from any of FileSystemInfo's read queues
	// without additional synchronization.
	milliseconds int64
}

// NewEstimator creates an Estimator starting at the most pessimistic
// granularity (2000ms).
func NewEstimator() *Estimator {
	return &Estimator{milliseconds: 2000}
}

// Milliseconds returns the current accuracy estimate.
func (e *Estimator) Milliseconds() int64 {
	return atomic.LoadInt64(&e.milliseconds)
}

// Observe tightens the estimate given a freshly observed, nonzero mtime in
// milliseconds since the epoch. It never widens the estimate: each
// successively tighter bucket (1, 10, 100, 1000ms) is adopted only if the
// current estimate is coarser than it and the observed mtime disproves the
// coarser bucket (i.e. isn't a multiple of twice that bucket).
func (e *Estimator) Observe(mtimeMilliseconds int64) {
	if mtimeMilliseconds == 0 {
		return
	}
	for {
		current := atomic.LoadInt64(&e.milliseconds)
		next := tighten(current, mtimeMilliseconds)
		if next == current {
			return
		}
		if atomic.CompareAndSwapInt64(&e.milliseconds, current, next) {
			return
		}
		// Lost a race with a concurrent Observe; retry against the new value.
	}
}

// tighten computes the next accuracy estimate given the current one and a
// newly observed mtime, implementing the monotone tightening rule verbatim.
func tighten(current, mtime int64) int64 {
	if current > 1 && mtime%2 != 0 {
		return 1
	} else if current > 10 && mtime%20 != 0 {
		return 10
	} else if current > 100 && mtime%200 != 0 {
		return 100
	} else if current > 1000 && mtime%2000 != 0 {
		return 1000
	}
	return current
}
