// Package epoch implements a small quiescent-state-based reclaimer.
//
// It exists for exactly one consumer: optional node pooling on a
// concurrent trie. Readers never take a lock, so a retired node cannot be
// handed back to a pool (and its fields overwritten) until every reader
// that might still hold a pointer to it has moved past the epoch in which
// it was retired. Readers announce their presence on entry and clear it
// on exit; these are plain atomic stores, never a blocking operation, so
// a reader is never delayed by the reclaimer.
package epoch

import "sync/atomic"

// none marks a reader slot as not currently in a critical section.
const none = ^uint64(0)

// maxReaders bounds the number of concurrently announced reader slots.
// A Guard beyond this count still works correctly: it is counted in
// overflow instead of a slot, which blocks all reclamation until it is
// released - this only delays reclamation, never correctness.
const maxReaders = 256

// Reclaimer tracks a global epoch counter and one slot per concurrent
// reader. A writer advances the epoch and retires displaced values into
// the current epoch's limbo list; values become safe to reuse once every
// reader slot has advanced past the epoch they were retired in.
type Reclaimer[T any] struct {
	epoch   atomic.Uint64
	readers [maxReaders]atomic.Uint64
	probe   atomic.Uint64 // scan start, spreads CAS attempts across slots

	// overflow counts guards that could not claim a slot because every
	// slot was occupied. Advance treats a nonzero overflow as "an
	// unaccounted reader might be active" and refuses to reclaim at all
	// until it drains back to zero, trading a stalled reclaim for
	// never reclaiming out from under a reader we lost track of.
	overflow atomic.Int64

	limbo [3][]T // indexed by epoch % 3, matches the 3-epoch scan window below
}

// New creates an empty Reclaimer.
func New[T any]() *Reclaimer[T] {
	r := &Reclaimer[T]{}
	for i := range r.readers {
		r.readers[i].Store(none)
	}
	return r
}

// Guard marks the calling goroutine as active in a read-side critical
// section for the lifetime of the returned release function. It must be
// released before the goroutine returns to the caller. Guard claims a
// slot via CAS rather than a fixed index, so two concurrent callers
// never stomp on each other's announcement.
func (r *Reclaimer[T]) Guard() func() {
	e := r.epoch.Load()
	start := int(r.probe.Add(1) % maxReaders)

	for i := 0; i < maxReaders; i++ {
		slot := (start + i) % maxReaders
		if r.readers[slot].CompareAndSwap(none, e) {
			return func() {
				r.readers[slot].Store(none)
			}
		}
	}

	r.overflow.Add(1)
	return func() {
		r.overflow.Add(-1)
	}
}

// Retire hands a displaced value to the reclaimer. It is not reused until
// every announced reader has advanced past the current epoch.
func (r *Reclaimer[T]) Retire(v T) {
	e := r.epoch.Load()
	bucket := e % 3
	r.limbo[bucket] = append(r.limbo[bucket], v)
}

// Advance bumps the global epoch and returns any values retired two
// epochs ago that are now provably unreachable by any reader, because
// every reader slot has either advanced past that epoch or is idle.
//
// Callers run this under the same exclusion that already serializes all
// writers (a single global writer mutex), so Advance itself needs no
// extra synchronization.
func (r *Reclaimer[T]) Advance() []T {
	if r.overflow.Load() != 0 {
		return nil
	}

	next := r.epoch.Add(1)

	for i := range r.readers {
		if g := r.readers[i].Load(); g != none && g+2 < next {
			// a reader is still active in an epoch old enough that
			// reclaiming would be unsafe; skip this round entirely.
			return nil
		}
	}

	reclaim := next % 3
	out := r.limbo[reclaim]
	r.limbo[reclaim] = nil
	return out
}
