// Package queue implements AsyncQueue, a coalescing, bounded-parallelism
// work queue keyed by path. It is the scheduling primitive underneath every
// per-path cache in the fsinfo package: stats, content reads, directory
// listings, and managed-item reads are all funneled through one of these so
// that concurrent requests for the same path share a single underlying
// filesystem operation.
//
// The coalescing half is grounded on golang.org/x/sync/singleflight, whose
// Do semantics ("only one execution is in-flight for a given key at a time;
// duplicate callers wait for and share the original result") are exactly
// AsyncQueue's contract. The bounded-parallelism half is a small token-bucket
// modeled after the condition-variable-to-channel bridge pattern used
// elsewhere in this codebase's logging and state-tracking utilities, because
// it additionally needs to support transient, in-place resizing (see
// IncreaseParallelism / DecreaseParallelism below), which a fixed-size
// semaphore does not support.
package queue

import (
	"golang.org/x/sync/singleflight"
)

// AsyncQueue coalesces concurrent requests for the same key and bounds the
// number of distinct keys processed concurrently.
type AsyncQueue struct {
	group singleflight.Group
	// tokens is a buffered channel acting as a token bucket: each in-flight
	// job (for a distinct, non-coalesced key) holds one token for its
	// duration.
	tokens chan struct{}
}

// New creates an AsyncQueue with the given parallelism (the number of
// distinct keys that may be processed concurrently; must be at least 1).
func New(parallelism int) *AsyncQueue {
	if parallelism < 1 {
		parallelism = 1
	}
	// The channel's capacity only limits how many idle tokens it can hold,
	// not how many jobs run at once, so it leaves room for extra slots:
	// IncreaseParallelism must not block even when no job holds a token.
	// The elements are zero-sized, so the spare capacity costs no memory.
	const maxExtraSlots = 1 << 16
	tokens := make(chan struct{}, parallelism+maxExtraSlots)
	for i := 0; i < parallelism; i++ {
		tokens <- struct{}{}
	}
	return &AsyncQueue{tokens: tokens}
}

// Add enqueues a request to compute the result for key, running compute at
// most once per key concurrently and fanning the single result out to every
// caller that arrived while that computation was in flight. Per the AsyncQueue
// contract, FIFO among distinct queued keys is not guaranteed — only that
// each key's computation runs exactly once and that all of its waiters
// observe the same (value, error) outcome.
func (q *AsyncQueue) Add(key string, compute func() (interface{}, error)) (interface{}, error) {
	value, err, _ := q.group.Do(key, func() (interface{}, error) {
		<-q.tokens
		defer func() { q.tokens <- struct{}{} }()
		return compute()
	})
	return value, err
}

// IncreaseParallelism adds one extra slot to the concurrency budget. It is
// used by directory content hashing immediately before recursing into a
// child directory's hash, so that the recursive call doesn't block forever
// waiting for a token that the parent call itself is holding.
func (q *AsyncQueue) IncreaseParallelism() {
	q.tokens <- struct{}{}
}

// DecreaseParallelism removes the extra slot added by a prior
// IncreaseParallelism call, once the recursive work it was guarding against
// deadlock has completed. It blocks until a token is available, which is
// always true immediately after the corresponding recursive call returns its
// token.
func (q *AsyncQueue) DecreaseParallelism() {
	<-q.tokens
}
