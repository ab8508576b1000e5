// Package scorer estimates the future cost of a partial comparator network
// by Monte Carlo rollout: complete the network randomly many times, then
// aggregate the resulting (length, depth) pairs into a single scalar that
// the beam search can rank candidates by.
package scorer

import (
	"math/rand"
	"sort"

	"sortnet/internal/core"
	"sortnet/internal/state"
)

// Score runs numTests independent random completions of a clone of st,
// leaving st itself untouched, and returns one Sample per completion.
// scratch, if non-nil, is reused as the clone target to avoid allocating a
// fresh State per call; it must have been built against the same lookup
// tables as st.
func Score(st *state.State, numTests int, scratch *state.State, rng *rand.Rand) []core.Sample {
	samples := make([]core.Sample, numTests)

	clone := scratch
	if clone == nil {
		clone = st.Clone()
	}

	for t := 0; t < numTests; t++ {
		clone.CopyFrom(st)
		for clone.NumUnsorted() > 0 {
			clone.RandomRolloutStep(rng)
		}
		clone.MinimizeDepth()
		samples[t] = core.Sample{
			Length: clone.CurrentLevel(),
			Depth:  clone.ComputeDepth(),
		}
	}

	return samples
}

// Aggregate sorts samples by a depth_weight-dependent key, averages the
// best numElites of them, and returns the weighted combination of mean
// length and mean depth. Lower is better.
func Aggregate(samples []core.Sample, numElites int, depthWeight float64) float64 {
	if len(samples) == 0 {
		panic(core.InvariantViolation{Msg: "Aggregate called with no samples"})
	}
	if numElites > len(samples) {
		numElites = len(samples)
	}
	if numElites < 1 {
		numElites = 1
	}

	sorted := append([]core.Sample(nil), samples...)
	if depthWeight < 0.5 {
		sort.Slice(sorted, func(a, b int) bool {
			if sorted[a].Length != sorted[b].Length {
				return sorted[a].Length < sorted[b].Length
			}
			return sorted[a].Depth < sorted[b].Depth
		})
	} else {
		sort.Slice(sorted, func(a, b int) bool {
			if sorted[a].Depth != sorted[b].Depth {
				return sorted[a].Depth < sorted[b].Depth
			}
			return sorted[a].Length < sorted[b].Length
		})
	}

	var sumLength, sumDepth int
	for _, s := range sorted[:numElites] {
		sumLength += s.Length
		sumDepth += s.Depth
	}
	meanLength := float64(sumLength) / float64(numElites)
	meanDepth := float64(sumDepth) / float64(numElites)

	return (1-depthWeight)*meanLength + depthWeight*meanDepth
}

// ScaleElites re-derives the number of elites to use against an
// accumulated sample set of totalSamples, proportional to the ratio
// between the base elites/num_tests configured at startup:
// num_elites' = max(1, base_elites * total_samples / base_num_tests).
func ScaleElites(baseElites, baseNumTests, totalSamples int) int {
	scaled := baseElites * totalSamples / baseNumTests
	if scaled < 1 {
		return 1
	}
	return scaled
}
