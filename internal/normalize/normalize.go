// Package normalize computes a canonical form and a canonical hash for a
// comparator sequence, so that isomorphic networks (related by a relabeling
// of wires) usually collapse to the same representative during beam-search
// deduplication. The labeling algorithm is Choi & Moon's greedy structural
// relabeling: assign new labels to wires in order of comparator degree,
// breaking ties by neighbor-degree sum and then by original label. Because
// the last tie-break depends on the original labels, the canonical form is
// not invariant under every relabeling.
package normalize

import (
	"hash/fnv"
	"sort"

	"sortnet/internal/core"
)

const invalidLabel = 0xFF

// CanonicalMapping returns, for each of the first n wires, the canonical
// label it should be relabeled to, given the comparator sequence ops.
func CanonicalMapping(ops []core.Comparator, n int) []uint8 {
	degrees := make([]int, n)
	for _, op := range ops {
		degrees[op.I]++
		degrees[op.J]++
	}

	neighborSums := make([]int, n)
	for _, op := range ops {
		neighborSums[op.I] += degrees[op.J]
		neighborSums[op.J] += degrees[op.I]
	}

	mapping := make([]uint8, n)
	for i := range mapping {
		mapping[i] = invalidLabel
	}
	assigned := make([]bool, n)

	for newLabel := 0; newLabel < n; newLabel++ {
		bestBus := -1
		bestDegree := -1
		bestNeighborSum := -1

		for bus := 0; bus < n; bus++ {
			if assigned[bus] {
				continue
			}
			if degrees[bus] > bestDegree ||
				(degrees[bus] == bestDegree && neighborSums[bus] > bestNeighborSum) ||
				(degrees[bus] == bestDegree && neighborSums[bus] == bestNeighborSum &&
					(bestBus == -1 || bus < bestBus)) {
				bestBus = bus
				bestDegree = degrees[bus]
				bestNeighborSum = neighborSums[bus]
			}
		}

		if bestBus < 0 {
			continue
		}
		mapping[bestBus] = uint8(newLabel)
		assigned[bestBus] = true

		for _, op := range ops {
			if int(op.I) == bestBus && !assigned[op.J] {
				neighborSums[op.J] -= bestDegree
			} else if int(op.J) == bestBus && !assigned[op.I] {
				neighborSums[op.I] -= bestDegree
			}
		}
	}

	return mapping
}

// ApplyMapping relabels every comparator in ops according to mapping,
// restoring I<J where the relabeling reversed a pair. ops is modified
// in place.
func ApplyMapping(ops []core.Comparator, mapping []uint8) {
	for k := range ops {
		a, b := mapping[ops[k].I], mapping[ops[k].J]
		if a > b {
			a, b = b, a
		}
		ops[k] = core.Comparator{I: a, J: b}
	}
}

// NormalizeLayerOrder regroups ops into maximal parallel layers in a single
// pass (an op joins the current layer iff both its wires are still unused in
// that layer; otherwise it starts the next layer), then sorts each layer by
// (I,J), so that two comparator sequences differing only by the order
// comparators were discovered in, but identical as sets of layers, produce
// the same sequence.
func NormalizeLayerOrder(ops []core.Comparator, n int) {
	flat := make([]core.Comparator, 0, len(ops))
	used := make([]bool, n)
	layerStart := 0

	sortLayer := func() {
		layer := flat[layerStart:]
		sort.Slice(layer, func(a, b int) bool {
			return layer[a].Less(layer[b])
		})
	}

	for _, op := range ops {
		if used[op.I] || used[op.J] {
			sortLayer()
			layerStart = len(flat)
			for k := range used {
				used[k] = false
			}
		}
		flat = append(flat, op)
		used[op.I] = true
		used[op.J] = true
	}
	sortLayer()

	copy(ops, flat)
}

// Canonicalize rewrites ops in place into its canonical form: a structural
// relabeling of wires followed by layer-order normalization.
func Canonicalize(ops []core.Comparator, n int) {
	if len(ops) == 0 {
		return
	}
	mapping := CanonicalMapping(ops, n)
	ApplyMapping(ops, mapping)
	NormalizeLayerOrder(ops, n)
}

// Hash returns the FNV-1a hash of ops' canonical form. Two comparator
// sequences related by a wire relabeling hash identically when the greedy
// labeling never has to fall back to the original wire index; when it does,
// they can hash differently (the path (0,1),(1,2),(2,3) and its reversal
// (2,3),(1,2),(0,1) on 4 wires do).
func Hash(ops []core.Comparator, n int) uint64 {
	if len(ops) == 0 {
		return 0
	}

	normalized := make([]core.Comparator, len(ops))
	copy(normalized, ops)
	Canonicalize(normalized, n)

	h := fnv.New64a()
	buf := make([]byte, 0, len(normalized)*2)
	for _, op := range normalized {
		buf = append(buf, op.I, op.J)
	}
	h.Write(buf)
	return h.Sum64()
}
