package ctrie

import (
	"bytes"
	"iter"
)

// All returns an in-order sequence of (key, value) pairs over every
// present key in the Trie, in ascending byte-string order.
//
// Safe only with no concurrent writer active, or over the result of
// Snapshot, which no writer ever touches.
func (t *Trie[V]) All() iter.Seq2[[]byte, V] {
	return walk[V](handleOf(t.root.Load()), nil, false)
}

// Reverse returns a descending-order sequence of (key, value) pairs.
// Same concurrency restriction as All.
func (t *Trie[V]) Reverse() iter.Seq2[[]byte, V] {
	return walk[V](handleOf(t.root.Load()), nil, true)
}

// WalkPrefix returns an in-order sequence of every (key, value) pair
// whose key has prefix as a prefix. Same concurrency restriction as
// All.
func (t *Trie[V]) WalkPrefix(prefix []byte) iter.Seq2[[]byte, V] {
	return func(yield func([]byte, V) bool) {
		h := handleOf(t.root.Load())
		rest := prefix
		acc := []byte{}

		for {
			skip := h.Skip()
			m := matchLen(rest, skip)

			switch {
			case len(rest) <= len(skip):
				// prefix ends inside, or exactly at, this node's skip -
				// everything under this node qualifies once the match
				// covers all of rest.
				if m == len(rest) {
					walk[V](h, acc, false)(yield)
				}
				return

			case m == len(skip):
				acc = append(acc, skip...)
				rest = rest[m:]
				edge := rest[0]
				child, ok := h.ChildAt(edge)
				if !ok {
					return
				}
				acc = append(acc, edge)
				rest = rest[1:]
				h = child

			default:
				return
			}
		}
	}
}

// walk returns an in-order (or, if reverse, a descending-order)
// sequence of every present key reachable from h, with prefix
// prepended to every reconstructed key.
func walk[V any](h Handle[V], prefix []byte, reverse bool) iter.Seq2[[]byte, V] {
	return func(yield func([]byte, V) bool) {
		key := append([]byte{}, prefix...)
		key = append(key, h.Skip()...)
		walkNode(h, key, reverse, yield)
	}
}

func walkNode[V any](h Handle[V], key []byte, reverse bool, yield func([]byte, V) bool) bool {
	if !reverse && h.Present() {
		if !yield(key, h.Value()) {
			return false
		}
	}

	edge, child, ok := firstOrLast(h, 0, reverse, true)
	for ok {
		childKey := append(append([]byte{}, key...), edge)
		childKey = append(childKey, child.Skip()...)
		if !walkNode(child, childKey, reverse, yield) {
			return false
		}
		edge, child, ok = firstOrLast(h, edge, reverse, false)
	}

	if reverse && h.Present() {
		if !yield(key, h.Value()) {
			return false
		}
	}

	return true
}

// firstOrLast abstracts over ascending/descending child enumeration so
// walkNode can share one loop body. first selects FirstChild/LastChild
// on the initial call; subsequent calls step from after.
func firstOrLast[V any](h Handle[V], after byte, reverse bool, first bool) (byte, Handle[V], bool) {
	if !reverse {
		if first {
			c, edge, ok := h.FirstChild()
			return edge, c, ok
		}
		c, edge, ok := h.NextChild(after)
		return edge, c, ok
	}

	if first {
		c, edge, ok := h.LastChild()
		return edge, c, ok
	}
	c, edge, ok := h.PrevChild(after)
	return edge, c, ok
}

// LowerBound returns the smallest present key >= key, and its value.
// Same concurrency restriction as All.
func (t *Trie[V]) LowerBound(key []byte) (foundKey []byte, value V, ok bool) {
	for k, v := range t.All() {
		if bytes.Compare(k, key) >= 0 {
			return k, v, true
		}
	}
	return nil, value, false
}

// UpperBound returns the smallest present key > key, and its value.
// Same concurrency restriction as All.
func (t *Trie[V]) UpperBound(key []byte) (foundKey []byte, value V, ok bool) {
	for k, v := range t.All() {
		if bytes.Compare(k, key) > 0 {
			return k, v, true
		}
	}
	return nil, value, false
}

// EqualRange is the counterpart of the C++ façade's equal_range. Since
// keys are unique, the range holds at most one entry: value is the
// value stored under key (if any), and found reports whether it exists.
func (t *Trie[V]) EqualRange(key []byte) (value V, found bool) {
	return t.Find(key)
}
