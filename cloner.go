package ctrie

// Cloner lets a value type opt into deep copying. Snapshot and Clone
// use a value's Clone method when V implements Cloner[V]; otherwise
// the value is copied by plain assignment.
type Cloner[V any] interface {
	Clone() V
}

func cloneVal[V any](v V) V {
	if c, ok := any(v).(Cloner[V]); ok {
		return c.Clone()
	}
	return v
}

// Snapshot returns an independent copy of the Trie: every node is
// freshly allocated, and every value is copied via cloneVal - deep-copied
// when V implements Cloner[V], copied by plain assignment otherwise. The
// copy shares no trie structure with the original, so it is safe to run
// ordered iteration over the snapshot concurrently with writers still
// mutating the original - an escape hatch for callers who need ordered
// iteration and a live writer at the same time, at the cost of an O(n)
// copy.
func (t *Trie[V]) Snapshot() *Trie[V] {
	t.mu.Lock()
	defer t.mu.Unlock()

	root := cloneSubtree[V](t.root.Load(), nil, 0)
	clone := &Trie[V]{size: t.size}
	clone.root.Store(root)
	return clone
}

// Clone is an alias for Snapshot, matching the C++ façade's naming for
// the same operation.
func (t *Trie[V]) Clone() *Trie[V] { return t.Snapshot() }

// cloneSubtree deep-copies n and everything reachable from it, wiring
// the clone's parent/parentEdge/hasParent to reflect its place under
// the (already-cloned) parent passed in.
func cloneSubtree[V any](n *node[V], parent *node[V], edge byte) *node[V] {
	body := n.loadBody()

	clone := new(node[V])
	clone.parent, clone.parentEdge, clone.hasParent = parent, edge, parent != nil

	nb := &nodeBody[V]{
		skip:    append([]byte(nil), body.skip...),
		present: body.present,
	}
	if body.present {
		nb.value = cloneVal(body.value)
	}

	if children := body.children.Copy(); children != nil {
		edges := children.AsSlice(make([]uint, 0, children.Len()))
		for i, old := range children.Items {
			children.Items[i] = cloneSubtree(old, clone, byte(edges[i]))
		}
		nb.children = *children
	}

	clone.body.Store(nb)
	return clone
}
