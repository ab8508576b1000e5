// Package beam implements the parallel beam search driver: at each level
// it enumerates every legal successor comparator across the current beam,
// deduplicates isomorphic continuations by canonical hash, prunes
// survivors under a successive-halving budget when there are more
// candidates than beam width, and reconstructs the next beam.
package beam

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"

	"sortnet/internal/config"
	"sortnet/internal/core"
	"sortnet/internal/lookup"
	"sortnet/internal/normalize"
	"sortnet/internal/scorer"
	"sortnet/internal/state"
)

// entry is one slot of the beam: a comparator sequence shared from level 0.
type entry struct {
	ops []core.Comparator
}

// candidate is a not-yet-accepted successor of some beam entry, carrying
// enough information to reconstruct its State and to deduplicate it
// against isomorphic siblings.
type candidate struct {
	parent int
	op     core.Comparator
	hash   uint64

	// accumulated Monte-Carlo samples from successive halving rounds.
	samples []core.Sample
}

// Result is the outcome of one beam_search call: the comparator sequence
// of the completed network.
type Result struct {
	Ops []core.Comparator
}

// Logger receives the per-level progress narration described by the
// output format: level number, then a dedup count, then a tests-per-round
// marker for each halving round.
type Logger interface {
	Level(level int)
	Dedup(before, after int)
	Round(testsPerCandidate int)
	Done()
}

// NopLogger discards all progress output.
type NopLogger struct{}

func (NopLogger) Level(int)      {}
func (NopLogger) Dedup(int, int) {}
func (NopLogger) Round(int)      {}
func (NopLogger) Done()          {}

// WriterLogger writes the progress narration to out, single line per
// level, matching the original's incremental std::cout narration.
type WriterLogger struct {
	out io.Writer
}

// NewWriterLogger wraps out as a Logger.
func NewWriterLogger(out io.Writer) *WriterLogger { return &WriterLogger{out: out} }

func (l *WriterLogger) Level(level int) {
	if level > 0 {
		fmt.Fprintln(l.out)
	}
	fmt.Fprintf(l.out, "%d", level)
}

func (l *WriterLogger) Dedup(before, after int) {
	if before == after {
		fmt.Fprintf(l.out, " [%d] ", after)
	} else {
		fmt.Fprintf(l.out, " [%d→%d] ", before, after)
	}
}

func (l *WriterLogger) Round(testsPerCandidate int) {
	fmt.Fprintf(l.out, "{%d} ", testsPerCandidate)
}

func (l *WriterLogger) Done() { fmt.Fprintln(l.out) }

// Search runs one beam search to completion and returns the comparator
// sequence of the network it found. Search takes no cancellation input
// (cancellation is an iteration-level concern, see internal/search), so it
// always runs to completion once invoked.
func Search(cfg *config.BuildConfig, lookups *lookup.Tables, bootSeed uint64, log Logger) (*Result, error) {
	n := cfg.NetSize
	maxOps := cfg.LengthUpperBound
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 1
	}

	beam := make([]entry, 1, cfg.MaxBeamSize)
	beam[0] = entry{ops: make([]core.Comparator, 0, maxOps)}

	workerStates := make([]*state.State, numWorkers)
	workerScratch := make([]*state.State, numWorkers)
	workerRngs := make([]*rand.Rand, numWorkers)
	for w := 0; w < numWorkers; w++ {
		workerStates[w] = state.New(lookups, maxOps)
		workerScratch[w] = state.New(lookups, maxOps)
		workerRngs[w] = rand.New(rand.NewSource(int64(core.WorkerSeed(bootSeed, w))))
	}

	for level := 0; ; level++ {
		if level >= maxOps {
			return nil, core.InvariantViolation{Msg: "beam search exceeded length_upper_bound"}
		}
		log.Level(level)

		candidates, completedParent := enumerateLevel(beam, level, n, cfg.UseSymmetry, workerStates)
		if completedParent != -1 {
			log.Done()
			return &Result{Ops: append([]core.Comparator(nil), beam[completedParent].ops...)}, nil
		}

		before := len(candidates)
		candidates = dedupCandidates(candidates)
		after := len(candidates)
		log.Dedup(before, after)

		candidates = selectSurvivors(candidates, beam, level, cfg, workerStates, workerScratch, workerRngs, log)

		beam = rebuildBeam(beam, candidates, level, maxOps)
	}
}

// enumerateLevel reconstructs every beam entry's State, enumerates its
// legal successors, and emits one candidate per legal comparator (or just
// the symmetry-mirrored one, per the shortcut). It returns -1 for
// completedParent unless some beam entry has no legal successors.
func enumerateLevel(beam []entry, level, n int, useSymmetry bool, workerStates []*state.State) ([]candidate, int) {
	numWorkers := len(workerStates)
	var wg sync.WaitGroup
	var next atomic.Int64
	var completedParent atomic.Int64
	completedParent.Store(-1)

	localLists := make([][]candidate, numWorkers)

	matrices := make([][][]bool, numWorkers)
	for w := 0; w < numWorkers; w++ {
		m := make([][]bool, n)
		for i := range m {
			m[i] = make([]bool, n)
		}
		matrices[w] = m
	}

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(w int) {
			defer wg.Done()
			st := workerStates[w]
			matrix := matrices[w]
			var local []candidate

			for {
				i := int(next.Add(1)) - 1
				if i >= len(beam) {
					break
				}
				if completedParent.Load() != -1 {
					continue
				}

				st.ReplayFrom(beam[i].ops[:level])
				count := st.EnumerateLegalSuccessors(matrix)
				if count == 0 {
					completedParent.CompareAndSwap(-1, int64(i))
					continue
				}

				if useSymmetry && level >= 1 {
					last := beam[i].ops[level-1]
					n1, n2 := int(last.I), int(last.J)
					invN1, invN2 := (n-1)-n2, (n-1)-n1

					onAxis := n1 == (n-1)-n1 || n1 == (n-1)-n2 || n2 == (n-1)-n1 || n2 == (n-1)-n2
					if !onAxis && matrix[invN1][invN2] {
						local = append(local, makeCandidate(beam[i].ops[:level], i, invN1, invN2, n))
						continue
					}
				}

				for a := 0; a < n-1; a++ {
					for b := a + 1; b < n; b++ {
						if matrix[a][b] {
							local = append(local, makeCandidate(beam[i].ops[:level], i, a, b, n))
						}
					}
				}
			}

			localLists[w] = local
		}(w)
	}
	wg.Wait()

	if cp := completedParent.Load(); cp != -1 {
		return nil, int(cp)
	}

	total := 0
	for _, l := range localLists {
		total += len(l)
	}
	merged := make([]candidate, 0, total)
	for _, l := range localLists {
		merged = append(merged, l...)
	}
	return merged, -1
}

func makeCandidate(parentOps []core.Comparator, parent, i, j, n int) candidate {
	ext := make([]core.Comparator, len(parentOps)+1)
	copy(ext, parentOps)
	ext[len(parentOps)] = core.Comparator{I: uint8(i), J: uint8(j)}
	return candidate{
		parent: parent,
		op:     core.Comparator{I: uint8(i), J: uint8(j)},
		hash:   normalize.Hash(ext, n),
	}
}

// dedupCandidates buckets candidates by canonical hash, keeping the first
// occurrence in traversal order.
func dedupCandidates(candidates []candidate) []candidate {
	seen := make(map[uint64]bool, len(candidates)*2)
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.hash] {
			continue
		}
		seen[c.hash] = true
		out = append(out, c)
	}
	return out
}

// selectSurvivors runs successive halving when there are more candidates
// than the beam width allows, otherwise returns candidates unchanged.
func selectSurvivors(candidates []candidate, beam []entry, level int, cfg *config.BuildConfig, workerStates, workerScratch []*state.State, workerRngs []*rand.Rand, log Logger) []candidate {
	k := cfg.MaxBeamSize
	if len(candidates) <= k {
		return candidates
	}

	active := candidates
	baseNumTests := cfg.NumScoringTests
	baseElites := cfg.NumElites
	depthWeight := cfg.DepthWeight

	numRounds := int(math.Ceil(math.Log2(float64(len(candidates)) / float64(k))))
	if numRounds < 1 {
		numRounds = 1
	}
	testsPerCandidate := int(math.Ceil(float64(baseNumTests) / float64(numRounds)))
	if testsPerCandidate < 1 {
		testsPerCandidate = 1
	}

	totalSamples := 0
	for len(active) > k {
		log.Round(testsPerCandidate)

		runScoringRound(active, beam, level, testsPerCandidate, workerStates, workerScratch, workerRngs)
		totalSamples += testsPerCandidate

		numElites := scorer.ScaleElites(baseElites, baseNumTests, totalSamples)
		scores := make([]float64, len(active))
		for i := range active {
			scores[i] = scorer.Aggregate(active[i].samples, numElites, depthWeight)
		}

		idx := make([]int, len(active))
		for i := range idx {
			idx[i] = i
		}
		sortByScore(idx, scores)

		newSize := len(active) / 2
		if newSize < k {
			break
		}
		reordered := make([]candidate, newSize)
		for i := 0; i < newSize; i++ {
			reordered[i] = active[idx[i]]
		}
		active = reordered
		testsPerCandidate *= 2
	}

	if len(active) > k {
		scores := make([]float64, len(active))
		numElites := scorer.ScaleElites(baseElites, baseNumTests, totalSamples)
		for i := range active {
			if len(active[i].samples) == 0 {
				// Never scored (C <= K path never reaches here, but guard
				// against numRounds rounding leaving a round unrun).
				scores[i] = math.Inf(1)
				continue
			}
			scores[i] = scorer.Aggregate(active[i].samples, numElites, depthWeight)
		}
		idx := make([]int, len(active))
		for i := range idx {
			idx[i] = i
		}
		sortByScore(idx, scores)
		truncated := make([]candidate, k)
		for i := 0; i < k; i++ {
			truncated[i] = active[idx[i]]
		}
		active = truncated
	}

	return active
}

func sortByScore(idx []int, scores []float64) {
	// insertion sort is fine: idx is at most a few thousand long per round
	// and this runs log2(C/K) times per level.
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && scores[idx[j-1]] > scores[idx[j]]; j-- {
			idx[j-1], idx[j] = idx[j], idx[j-1]
		}
	}
}

func runScoringRound(active []candidate, beam []entry, level, numTests int, workerStates, workerScratch []*state.State, workerRngs []*rand.Rand) {
	numWorkers := len(workerStates)
	var wg sync.WaitGroup
	var next atomic.Int64
	var mu sync.Mutex

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(w int) {
			defer wg.Done()
			st := workerStates[w]
			scratch := workerScratch[w]
			rng := workerRngs[w]

			for {
				i := int(next.Add(1)) - 1
				if i >= len(active) {
					break
				}

				cand := &active[i]
				parentOps := beam[cand.parent].ops[:level]
				st.Reset()
				for _, op := range parentOps {
					st.Apply(int(op.I), int(op.J))
				}
				st.Apply(int(cand.op.I), int(cand.op.J))

				samples := scorer.Score(st, numTests, scratch, rng)

				mu.Lock()
				active[i].samples = append(active[i].samples, samples...)
				mu.Unlock()

				if i%8 == 0 {
					runtime.Gosched()
				}
			}
		}(w)
	}
	wg.Wait()
}

// rebuildBeam materializes the new beam from surviving candidates: each
// new entry is its parent's sequence extended by the candidate's
// comparator.
func rebuildBeam(beam []entry, candidates []candidate, level, maxOps int) []entry {
	next := make([]entry, len(candidates))
	for i, c := range candidates {
		ops := make([]core.Comparator, level+1, maxOps)
		copy(ops, beam[c.parent].ops[:level])
		ops[level] = c.op
		next[i] = entry{ops: ops}
	}
	return next
}
