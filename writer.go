package ctrie

import "github.com/kvradix/ctrie/internal/sparse"

// insert implements Trie.Insert. Callers must hold the writer mutex and
// must adopt the returned root, since a split at the very top of the
// tree relocates the node the caller used to call root. p may be nil,
// in which case every node it would have reused is freshly allocated.
//
// Every replacement body and node is built in local variables before any
// node.storeBody or reparenting happens, so a structural edit is either
// fully applied or - on a real allocation failure, which Go turns into a
// process fatal rather than a recoverable error - never applied at all.
// Nothing is ever published half-built.
func insert[V any](root *node[V], key []byte, value V, p *pool[V]) (newRoot *node[V], existed bool) {
	n, body, rest, exact := locate(root, key)

	if exact {
		// n already names this exact key - set or overwrite its value.
		existed = body.present
		n.storeBody(body.withValue(value))
		return root, existed
	}

	m := matchLen(rest, body.skip)

	if m == len(body.skip) {
		// n's whole skip matched but it has no child for the next byte -
		// attach a brand new leaf, n's identity is untouched.
		edge := rest[m]
		leaf := newLeaf(rest[m+1:], value, p)
		n.storeBody(body.withChild(edge, leaf))
		leaf.parent, leaf.parentEdge, leaf.hasParent = n, edge, true
		return root, false
	}

	// The new key diverges partway through n's skip. n must be given a
	// new, shorter parent that holds the common prefix, with n relocated
	// one level deeper. n's identity is preserved - only the bytes it's
	// responsible for shrink.
	splitSkip := body.skip[:m]
	oldEdge := body.skip[m]
	oldRestSkip := body.skip[m+1:]

	mid := newNode[V](p)
	midChildren := &sparse.Array256[*node[V]]{}
	midChildren.InsertAt(uint(oldEdge), n)

	var midBody *nodeBody[V]
	if len(rest) == m {
		// The new key ends exactly at the split point - the intermediate
		// node itself holds the value, with no sibling leaf needed.
		midBody = &nodeBody[V]{skip: splitSkip, present: true, value: value, children: *midChildren}
	} else {
		// The new key continues past the split point with a byte of its
		// own - a sibling leaf is attached alongside n.
		newEdge := rest[m]
		leaf := newLeaf(rest[m+1:], value, p)
		midChildren.InsertAt(uint(newEdge), leaf)
		midBody = &nodeBody[V]{skip: splitSkip, children: *midChildren}
		leaf.parent, leaf.parentEdge, leaf.hasParent = mid, newEdge, true
	}
	mid.storeBody(midBody)

	// n's old position (grandparent/edge, or "n was the root") must be
	// read before n's own parent fields are overwritten to point at mid.
	wasRoot := !n.hasParent
	spliceIn(n, mid)

	n.storeBody(body.withSkip(oldRestSkip))
	n.parent, n.parentEdge, n.hasParent = mid, oldEdge, true

	if wasRoot {
		return mid, false
	}
	return root, false
}

// erase implements Trie.Erase. Callers must hold the writer mutex and
// adopt the returned root; compact never folds or removes the root, so
// the returned root is always the one passed in.
func erase[V any](root *node[V], key []byte, p *pool[V]) (newRoot *node[V], existed bool) {
	n, body, _, exact := locate(root, key)
	if !exact || !body.present {
		return root, false
	}

	n.storeBody(body.withoutValue())
	return compact(root, n, p), true
}

// compact walks upward from n, removing now-dangling empty nodes and
// folding single-child, valueless nodes into their child. It runs
// eagerly, under the same writer-mutex hold as the erase that triggered
// it, and never re-enters the traversal protocol. Every node it drops
// out of the tree is handed to p.retire rather than simply forgotten,
// since a concurrent reader may still be walking through it.
func compact[V any](root *node[V], n *node[V], p *pool[V]) *node[V] {
	for {
		body := n.loadBody()
		if body.present {
			return root
		}

		switch body.childCount() {
		case 0:
			if !n.hasParent {
				return root // root may be empty
			}
			parent := n.parent
			edge := n.parentEdge
			parent.storeBody(parent.loadBody().withoutChild(edge))
			p.retire(n)
			n = parent
			continue

		case 1:
			if !n.hasParent {
				// n is the root: it never folds into its child, since the
				// root's skip must stay empty (it has no parent edge to
				// absorb bytes into). Leaving it present=false with a
				// single child is harmless - one extra hop, no lost bytes.
				return root
			}

			edge, child, _ := body.onlyChild()
			childBody := child.loadBody()

			merged := make([]byte, 0, len(body.skip)+1+len(childBody.skip))
			merged = append(merged, body.skip...)
			merged = append(merged, edge)
			merged = append(merged, childBody.skip...)
			child.storeBody(childBody.withSkip(merged))

			spliceIn(n, child)
			p.retire(n)
			return root

		default:
			return root
		}
	}
}

// spliceIn replaces old's position - as seen from old's parent, or as
// the trie's root - with replacement. old and replacement must already
// agree on what old's parent/parentEdge were. Callers that splice in the
// root's position are responsible for adopting replacement as their new
// root; spliceIn itself has no notion of which node a caller treats as
// root.
func spliceIn[V any](old, replacement *node[V]) {
	if !old.hasParent {
		replacement.hasParent = false
		replacement.parent = nil
		return
	}

	parent := old.parent
	edge := old.parentEdge
	parent.storeBody(parent.loadBody().withChild(edge, replacement))
	replacement.parent, replacement.parentEdge, replacement.hasParent = parent, edge, true
}

func newLeaf[V any](skip []byte, value V, p *pool[V]) *node[V] {
	leaf := p.get()
	leaf.body.Store(&nodeBody[V]{skip: skip, present: true, value: value})
	return leaf
}
