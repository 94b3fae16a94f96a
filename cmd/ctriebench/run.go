package main

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kvradix/ctrie"
)

var runFlags struct {
	keys       int
	goroutines int
	opsPerG    int
	workload   string
	intKeys    bool
	pooling    bool
	seed       uint64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Populate a trie and hammer it with a concurrent workload",
	RunE:  runBenchmark,
}

func init() {
	f := runCmd.Flags()
	f.IntVar(&runFlags.keys, "keys", 100_000, "number of distinct keys to preload")
	f.IntVar(&runFlags.goroutines, "goroutines", 8, "number of concurrent workers")
	f.IntVar(&runFlags.opsPerG, "ops", 200_000, "operations performed by each worker")
	f.StringVar(&runFlags.workload, "workload", "read", "read, write, or mixed")
	f.BoolVar(&runFlags.intKeys, "int-keys", false, "use big-endian uint64 keys instead of a synthetic word list")
	f.BoolVar(&runFlags.pooling, "pool", false, "enable node pooling")
	f.Uint64Var(&runFlags.seed, "seed", 42, "PRNG seed")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	switch runFlags.workload {
	case "read", "write", "mixed":
	default:
		return fmt.Errorf("unknown workload %q, want read, write, or mixed", runFlags.workload)
	}

	keys := buildKeys(runFlags.keys, runFlags.intKeys, runFlags.seed)

	tr := ctrie.New[int]()
	if runFlags.pooling {
		tr.EnablePooling()
	}
	for i, k := range keys {
		tr.Insert(k, i)
	}

	log.Info().
		Int("keys", len(keys)).
		Int("goroutines", runFlags.goroutines).
		Int("ops_per_goroutine", runFlags.opsPerG).
		Str("workload", runFlags.workload).
		Bool("int_keys", runFlags.intKeys).
		Bool("pooling", runFlags.pooling).
		Msg("starting run")

	report := runWorkers(tr, keys, runFlags.goroutines, runFlags.opsPerG, runFlags.workload, runFlags.seed)

	log.Info().
		Int64("total_ops", report.totalOps).
		Dur("elapsed", report.elapsed).
		Float64("ops_per_sec", report.opsPerSec()).
		Dur("p50", report.percentile(50)).
		Dur("p99", report.percentile(99)).
		Dur("p999", report.percentile(99.9)).
		Msg("run complete")

	return nil
}

func buildKeys(n int, intKeys bool, seed uint64) [][]byte {
	keys := make([][]byte, n)
	if intKeys {
		for i := range keys {
			keys[i] = ctrie.Uint64Key(uint64(i))
		}
		return keys
	}

	prng := rand.New(rand.NewPCG(seed, seed))
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	seen := make(map[string]bool, n)
	for i := range keys {
		for {
			l := 3 + prng.IntN(12)
			buf := make([]byte, l)
			for j := range buf {
				buf[j] = alphabet[prng.IntN(len(alphabet))]
			}
			if seen[string(buf)] {
				continue
			}
			seen[string(buf)] = true
			keys[i] = buf
			break
		}
	}
	return keys
}

type runReport struct {
	totalOps int64
	elapsed  time.Duration
	latency  []time.Duration // sorted
}

func (r runReport) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.totalOps) / r.elapsed.Seconds()
}

func (r runReport) percentile(p float64) time.Duration {
	if len(r.latency) == 0 {
		return 0
	}
	idx := int(p / 100 * float64(len(r.latency)))
	if idx >= len(r.latency) {
		idx = len(r.latency) - 1
	}
	return r.latency[idx]
}

// runWorkers fans goroutines concurrent operations out against tr and
// collects a global sample of per-operation latency for percentile
// reporting. Each worker keeps its own latency slice to avoid
// contending on a shared one, merged once every worker has finished.
func runWorkers(tr *ctrie.Trie[int], keys [][]byte, goroutines, opsPerG int, workload string, seed uint64) runReport {
	var wg sync.WaitGroup
	samples := make([][]time.Duration, goroutines)
	var totalOps atomic.Int64

	start := time.Now()
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			prng := rand.New(rand.NewPCG(seed+uint64(g)+1, seed+uint64(g)+1))
			local := make([]time.Duration, 0, opsPerG)

			for i := 0; i < opsPerG; i++ {
				key := keys[prng.IntN(len(keys))]
				op := time.Now()

				switch workload {
				case "read":
					tr.Find(key)
				case "write":
					if prng.IntN(2) == 0 {
						tr.Insert(key, i)
					} else {
						tr.Erase(key)
					}
				case "mixed":
					switch prng.IntN(10) {
					case 0:
						tr.Insert(key, i)
					case 1:
						tr.Erase(key)
					default:
						tr.Find(key)
					}
				}

				local = append(local, time.Since(op))
			}

			samples[g] = local
			totalOps.Add(int64(opsPerG))
		}(g)
	}
	wg.Wait()
	elapsed := time.Since(start)

	merged := make([]time.Duration, 0, goroutines*opsPerG)
	for _, s := range samples {
		merged = append(merged, s...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })

	return runReport{totalOps: totalOps.Load(), elapsed: elapsed, latency: merged}
}
