package ctrie

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"sync"
	"testing"
)

func k(s string) []byte { return []byte(s) }

// TestScenarioHelloWorld is the sequence of inserts/finds from the
// classic radix-trie path-compression example: overlapping words that
// share and then diverge from a common prefix.
func TestScenarioHelloWorld(t *testing.T) {
	t.Parallel()
	tr := New[int]()

	for i, w := range []string{"hello", "hell", "helicopter", "help", "world"} {
		tr.Insert(k(w), i+1)
	}

	if got := tr.Size(); got != 5 {
		t.Fatalf("Size = %d, want 5", got)
	}
	if _, ok := tr.Find(k("hel")); ok {
		t.Fatal("Find(hel) should be absent")
	}
	if _, ok := tr.Find(k("notfound")); ok {
		t.Fatal("Find(notfound) should be absent")
	}
	if v, ok := tr.Find(k("hello")); !ok || v != 1 {
		t.Fatalf("Find(hello) = %d, %v, want 1, true", v, ok)
	}

	if existed := tr.Erase(k("helicopter")); !existed {
		t.Fatal("Erase(helicopter) should report existed")
	}
	if got := tr.Size(); got != 4 {
		t.Fatalf("Size = %d, want 4", got)
	}
	if _, ok := tr.Find(k("helicopter")); ok {
		t.Fatal("Find(helicopter) should be absent after erase")
	}
	for i, w := range []string{"hello", "hell", "help", "world"} {
		want := []int{1, 2, 4, 5}[i]
		if v, ok := tr.Find(k(w)); !ok || v != want {
			t.Fatalf("Find(%s) = %d, %v, want %d, true", w, v, ok, want)
		}
	}

	if existed := tr.Erase(k("notfound")); existed {
		t.Fatal("Erase(notfound) should report not existed")
	}
	if existed := tr.Erase(k("hel")); existed {
		t.Fatal("Erase(hel) should report not existed, hel was never inserted")
	}
	if got := tr.Size(); got != 4 {
		t.Fatalf("Size = %d, want 4 unchanged", got)
	}

	// erasing a node with a single remaining sibling must not disturb
	// that sibling - this exercises compaction folding "hell" away
	// while "hello" (which branches under it) and "help" (its sibling)
	// both stay reachable.
	tr.Erase(k("hell"))
	if v, ok := tr.Find(k("hello")); !ok || v != 1 {
		t.Fatalf("Find(hello) after erasing hell = %d, %v, want 1, true", v, ok)
	}
	if v, ok := tr.Find(k("help")); !ok || v != 4 {
		t.Fatalf("Find(help) after erasing hell = %d, %v, want 4, true", v, ok)
	}
}

// TestScenarioNestedSplit exercises a split that happens underneath an
// already-path-compressed node with grandchildren on both sides of the
// erased key.
func TestScenarioNestedSplit(t *testing.T) {
	t.Parallel()
	tr := New[int]()

	tr.Insert(k("abcdefghij"), 1)
	tr.Insert(k("abcdef"), 2)
	tr.Insert(k("abcdefghijklmnop"), 3)

	tr.Erase(k("abcdefghij"))

	if v, ok := tr.Find(k("abcdef")); !ok || v != 2 {
		t.Fatalf("Find(abcdef) = %d, %v, want 2, true", v, ok)
	}
	if v, ok := tr.Find(k("abcdefghijklmnop")); !ok || v != 3 {
		t.Fatalf("Find(abcdefghijklmnop) = %d, %v, want 3, true", v, ok)
	}
	if _, ok := tr.Find(k("abcdefghij")); ok {
		t.Fatal("Find(abcdefghij) should be absent after erase")
	}
}

func TestInsertIdempotent(t *testing.T) {
	t.Parallel()
	tr := New[int]()

	if existed := tr.Insert(k("x"), 1); existed {
		t.Fatal("first insert should report not existed")
	}
	if existed := tr.Insert(k("x"), 2); !existed {
		t.Fatal("second insert of same key should report existed")
	}
	if got := tr.Size(); got != 1 {
		t.Fatalf("Size = %d, want 1", got)
	}
	if v, _ := tr.Find(k("x")); v != 2 {
		t.Fatalf("Find(x) = %d, want 2 (overwritten)", v)
	}
}

func TestEmptyKey(t *testing.T) {
	t.Parallel()
	tr := New[int]()

	tr.Insert(nil, 42)
	if v, ok := tr.Find(nil); !ok || v != 42 {
		t.Fatalf("Find(nil) = %d, %v, want 42, true", v, ok)
	}
	if got := tr.Size(); got != 1 {
		t.Fatalf("Size = %d, want 1", got)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()
	tr := New[int]()
	for _, w := range []string{"a", "ab", "abc", "b"} {
		tr.Insert(k(w), len(w))
	}

	tr.Clear()

	if !tr.Empty() {
		t.Fatal("Empty() should be true after Clear")
	}
	if got := tr.Size(); got != 0 {
		t.Fatalf("Size = %d, want 0", got)
	}
	for _, w := range []string{"a", "ab", "abc", "b"} {
		if _, ok := tr.Find(k(w)); ok {
			t.Fatalf("Find(%s) should be absent after Clear", w)
		}
	}

	// the trie must still be usable after Clear.
	tr.Insert(k("fresh"), 1)
	if v, ok := tr.Find(k("fresh")); !ok || v != 1 {
		t.Fatalf("Find(fresh) = %d, %v, want 1, true", v, ok)
	}
}

func randomWords(prng *rand.Rand, n int) [][]byte {
	alphabet := "abcdefghijklmnop"
	seen := make(map[string]bool, n)
	words := make([][]byte, 0, n)
	for len(words) < n {
		l := 1 + prng.IntN(8)
		buf := make([]byte, l)
		for i := range buf {
			buf[i] = alphabet[prng.IntN(len(alphabet))]
		}
		if seen[string(buf)] {
			continue
		}
		seen[string(buf)] = true
		words = append(words, buf)
	}
	return words
}

// TestInsertOrderIndependent checks that inserting the same key set in
// different orders produces identical (key, value) sets and identical
// iteration order.
func TestInsertOrderIndependent(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(1, 1))
	words := randomWords(prng, 500)

	tr1 := New[int]()
	for i, w := range words {
		tr1.Insert(w, i)
	}

	shuffled := slices.Clone(words)
	prng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	tr2 := New[int]()
	for _, w := range shuffled {
		i := slices.IndexFunc(words, func(w2 []byte) bool { return string(w2) == string(w) })
		tr2.Insert(w, i)
	}

	var keys1, keys2 [][]byte
	for kk := range tr1.All() {
		keys1 = append(keys1, slices.Clone(kk))
	}
	for kk := range tr2.All() {
		keys2 = append(keys2, slices.Clone(kk))
	}

	if len(keys1) != len(keys2) {
		t.Fatalf("key count differs: %d vs %d", len(keys1), len(keys2))
	}
	for i := range keys1 {
		if string(keys1[i]) != string(keys2[i]) {
			t.Fatalf("iteration order differs at %d: %q vs %q", i, keys1[i], keys2[i])
		}
	}
}

// TestRoundTripAgainstMap inserts and erases a randomized sequence of
// operations against a plain Go map used as the reference model, and
// checks that Find/All agree with the reference map after every
// operation.
func TestRoundTripAgainstMap(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(7, 7))
	words := randomWords(prng, 300)

	tr := New[int]()
	ref := map[string]int{}

	for step := 0; step < 3000; step++ {
		w := words[prng.IntN(len(words))]
		switch prng.IntN(3) {
		case 0, 1:
			v := prng.IntN(1_000_000)
			existedGot := tr.Insert(w, v)
			_, existedWant := ref[string(w)]
			if existedGot != existedWant {
				t.Fatalf("Insert(%q) existed = %v, want %v", w, existedGot, existedWant)
			}
			ref[string(w)] = v
		case 2:
			existedGot := tr.Erase(w)
			_, existedWant := ref[string(w)]
			if existedGot != existedWant {
				t.Fatalf("Erase(%q) existed = %v, want %v", w, existedGot, existedWant)
			}
			delete(ref, string(w))
		}

		if got, want := tr.Size(), len(ref); got != want {
			t.Fatalf("after step %d: Size = %d, want %d", step, got, want)
		}
	}

	for w, v := range ref {
		got, ok := tr.Find([]byte(w))
		if !ok || got != v {
			t.Fatalf("Find(%q) = %d, %v, want %d, true", w, got, ok, v)
		}
	}

	count := 0
	for kk, v := range tr.All() {
		want, ok := ref[string(kk)]
		if !ok {
			t.Fatalf("All() yielded unexpected key %q", kk)
		}
		if v != want {
			t.Fatalf("All() yielded %q = %d, want %d", kk, v, want)
		}
		count++
	}
	if count != len(ref) {
		t.Fatalf("All() yielded %d keys, want %d", count, len(ref))
	}

	checkInvariants(t, tr)
}

// checkInvariants walks the live tree and verifies the structural
// invariants: bitmap/children correspondence, back-pointer agreement,
// and that no valueless node with fewer than two children survives
// outside of the root.
func checkInvariants[V any](t *testing.T, tr *Trie[V]) {
	t.Helper()
	var walk func(n *node[V], isRoot bool)
	walk = func(n *node[V], isRoot bool) {
		body := n.loadBody()

		if isRoot && len(body.skip) != 0 {
			t.Errorf("root has non-empty skip %q, want empty", body.skip)
		}

		if !isRoot && !body.present && body.childCount() < 2 {
			t.Errorf("non-root node with present=false has %d children, want >=2", body.childCount())
		}

		seen := map[byte]bool{}
		bits := body.children.AsSlice(make([]uint, 0, 256))
		if len(bits) != body.children.Len() {
			t.Errorf("bitset set-bit count %d != children length %d", len(bits), body.children.Len())
		}
		for _, b := range bits {
			child, ok := body.children.Get(b)
			if !ok {
				t.Errorf("bit %d set but Get failed", b)
				continue
			}
			if seen[byte(b)] {
				t.Errorf("duplicate edge byte %d", b)
			}
			seen[byte(b)] = true

			if !child.hasParent || child.parent != n || child.parentEdge != byte(b) {
				t.Errorf("child at edge %d has inconsistent back-pointer", b)
			}
			walk(child, false)
		}
	}
	walk(tr.root.Load(), true)
}

// TestConcurrentFindDuringWrites runs many concurrent readers against
// a trie under a steady stream of writers, checking that no reader
// ever observes a torn or inconsistent node. Run with -race.
func TestConcurrentFindDuringWrites(t *testing.T) {
	prng := rand.New(rand.NewPCG(99, 99))
	words := randomWords(prng, 1000)

	tr := New[int]()
	for i, w := range words {
		tr.Insert(w, i)
	}

	var wg, writers sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(seed, seed))
			for {
				select {
				case <-stop:
					return
				default:
				}
				w := words[r.IntN(len(words))]
				tr.Find(w)
				tr.Contains(w)
			}
		}(uint64(i) + 1)
	}

	for i := 0; i < 4; i++ {
		writers.Add(1)
		go func(seed uint64) {
			defer writers.Done()
			r := rand.New(rand.NewPCG(seed, seed))
			for i := 0; i < 2000; i++ {
				w := words[r.IntN(len(words))]
				if r.IntN(2) == 0 {
					tr.Insert(w, r.IntN(1_000_000))
				} else {
					tr.Erase(w)
				}
			}
		}(uint64(i) + 100)
	}

	writers.Wait()
	close(stop)
	wg.Wait()
}

// TestConcurrentNoLostUpdates runs many goroutines each cycling
// find/insert/find/erase/find/insert over a shared vocabulary, and
// checks that after everyone joins, every word resolves to some value
// consistent with "last write observed" - no key silently vanishes.
func TestConcurrentNoLostUpdates(t *testing.T) {
	prng := rand.New(rand.NewPCG(5, 5))
	words := randomWords(prng, 200)

	tr := New[int]()

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(seed, seed))
			shuffled := slices.Clone(words)
			r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			for _, w := range shuffled {
				tr.Find(w)
				tr.Insert(w, 1)
				tr.Find(w)
				tr.Erase(w)
				tr.Find(w)
				tr.Insert(w, 2)
				tr.Find(w)
			}
		}(uint64(g) + 1)
	}
	wg.Wait()

	for _, w := range words {
		v, ok := tr.Find(w)
		if !ok {
			t.Fatalf("word %q lost after concurrent run", w)
		}
		if v != 1 && v != 2 {
			t.Fatalf("word %q has unexpected value %d", w, v)
		}
	}
}

func TestPooling(t *testing.T) {
	t.Parallel()
	tr := New[int]()
	tr.EnablePooling()

	prng := rand.New(rand.NewPCG(11, 11))
	words := randomWords(prng, 200)

	for i, w := range words {
		tr.Insert(w, i)
	}
	for i, w := range words {
		if i%2 == 0 {
			tr.Erase(w)
		}
	}
	for i, w := range words {
		if i%2 == 0 {
			if _, ok := tr.Find(w); ok {
				t.Fatalf("word %q should be absent", w)
			}
		} else if v, ok := tr.Find(w); !ok || v != i {
			t.Fatalf("Find(%q) = %d, %v, want %d, true", w, v, ok, i)
		}
	}

	checkInvariants(t, tr)
}

// TestPoolingUnderConcurrentReaders exercises node pooling with many
// goroutines reading while a writer is actively retiring and reclaiming
// nodes, the scenario the epoch guard exists for: a retired node must
// never be handed back out while a reader might still be dereferencing
// it.
func TestPoolingUnderConcurrentReaders(t *testing.T) {
	prng := rand.New(rand.NewPCG(13, 13))
	words := randomWords(prng, 300)

	tr := New[int]()
	tr.EnablePooling()
	for i, w := range words {
		tr.Insert(w, i)
	}

	var wg, writers sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seed uint64) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(seed, seed))
			for {
				select {
				case <-stop:
					return
				default:
				}
				tr.Find(words[r.IntN(len(words))])
			}
		}(uint64(i) + 1)
	}

	for i := 0; i < 4; i++ {
		writers.Add(1)
		go func(seed uint64) {
			defer writers.Done()
			r := rand.New(rand.NewPCG(seed, seed))
			for i := 0; i < 3000; i++ {
				w := words[r.IntN(len(words))]
				if r.IntN(2) == 0 {
					tr.Insert(w, r.IntN(1_000_000))
				} else {
					tr.Erase(w)
				}
			}
		}(uint64(i) + 50)
	}

	writers.Wait()
	close(stop)
	wg.Wait()

	checkInvariants(t, tr)
}

func TestSnapshotIndependence(t *testing.T) {
	t.Parallel()
	tr := New[int]()
	tr.Insert(k("a"), 1)
	tr.Insert(k("ab"), 2)

	snap := tr.Snapshot()

	tr.Insert(k("ac"), 3)
	tr.Erase(k("a"))

	if _, ok := snap.Find(k("ac")); ok {
		t.Fatal("snapshot should not see post-snapshot inserts")
	}
	if v, ok := snap.Find(k("a")); !ok || v != 1 {
		t.Fatalf("snapshot should still see erased key, got %d, %v", v, ok)
	}

	var keys []string
	for kk := range snap.All() {
		keys = append(keys, string(kk))
	}
	sort.Strings(keys)
	if fmt.Sprint(keys) != fmt.Sprint([]string{"a", "ab"}) {
		t.Fatalf("snapshot keys = %v, want [a ab]", keys)
	}
}

