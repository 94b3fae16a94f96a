package ctrie

import (
	"sync"
	"sync/atomic"

	"github.com/kvradix/ctrie/internal/epoch"
)

// pool is a type-safe wrapper around sync.Pool, specialized for
// *node[V] and fronted by an epoch reclaimer. Readers walk the tree
// without taking any lock, so a node displaced by a structural edit
// can't simply go back into circulation the moment the writer is done
// with it - some reader goroutine might still hold a pointer to it from
// before the edit. retire defers that handoff until every reader has
// provably moved on.
//
// A nil *pool is a valid, fully functional "pooling disabled" value:
// every method on it degrades to plain allocation/drop.
type pool[V any] struct {
	sync.Pool
	reclaimer *epoch.Reclaimer[*node[V]]

	totalAllocated atomic.Int64
	currentLive    atomic.Int64
}

func newPool[V any]() *pool[V] {
	p := &pool[V]{reclaimer: epoch.New[*node[V]]()}
	p.New = func() any {
		p.totalAllocated.Add(1)
		return new(node[V])
	}
	return p
}

// get returns a node ready to hold a freshly-built body, either reused
// from the pool or freshly allocated.
func (p *pool[V]) get() *node[V] {
	if p == nil {
		return new(node[V])
	}
	p.currentLive.Add(1)
	return p.Pool.Get().(*node[V])
}

// retire marks n as displaced from the live tree. It is not handed back
// to the underlying sync.Pool for reuse until reclaim proves no
// concurrent reader can still be dereferencing it.
func (p *pool[V]) retire(n *node[V]) {
	if p == nil {
		return
	}
	p.reclaimer.Retire(n)
}

// reclaim advances the epoch by one and returns any now-safe nodes to
// the underlying sync.Pool. Callers run this under the writer mutex,
// the same exclusion that already serializes every structural edit.
func (p *pool[V]) reclaim() {
	if p == nil {
		return
	}
	for _, n := range p.reclaimer.Advance() {
		n.reset()
		p.Pool.Put(n)
		p.currentLive.Add(-1)
	}
}

// guard announces a read-side critical section for as long as the
// returned release function is not yet called. Callers should call it
// unconditionally and defer the release: with pooling disabled p is
// nil and the release is a no-op.
func (p *pool[V]) guard() func() {
	if p == nil {
		return func() {}
	}
	return p.reclaimer.Guard()
}

// stats reports the number of currently live (checked-out) nodes and
// the total ever allocated by this pool.
func (p *pool[V]) stats() (live int64, total int64) {
	if p == nil {
		return 0, 0
	}
	return p.currentLive.Load(), p.totalAllocated.Load()
}
