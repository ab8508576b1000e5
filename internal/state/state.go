// Package state implements the core mutable entity of the search engine: the
// set of still-unsorted binary patterns under a partial comparator network,
// and the incremental update (O(1) work per live pattern) that applying one
// more comparator performs on that set.
package state

import (
	"math/rand"

	"sortnet/internal/core"
	"sortnet/internal/lookup"
)

const endOfList = -1

// State tracks which binary input patterns remain unsorted under a partial
// network, plus the comparator sequence applied so far.
//
// The unsorted set is an intrusive singly-linked list over an arena of
// exactly NumPatterns() slots, one per originally-unsorted pattern. A slot's
// position in the arena never changes once assigned; what changes as
// comparators are applied is the pattern *value* the slot currently holds
// (slotValue) and the slot's position in the chain (slotNext/first). A
// separate bit-vector indexed by pattern value (inList) answers "is some
// live slot currently holding this value" in O(1), which is what both
// collision detection and pattern-merging need.
type State struct {
	lookups *lookup.Tables
	n       int

	inList    *core.BitVector
	slotNext  []int32
	slotValue []uint32
	first     int32

	numUnsorted int
	ops         []core.Comparator
}

// New allocates a State for the given lookup tables and resets it to the
// start set.
func New(lookups *lookup.Tables, lengthUpperBound int) *State {
	s := &State{
		lookups: lookups,
		n:       lookups.N(),
	}
	numPatterns := lookups.NumPatterns()
	s.inList = core.NewBitVector(uint64(numPatterns))
	s.slotNext = make([]int32, numPatterns)
	s.slotValue = make([]uint32, numPatterns)
	s.ops = make([]core.Comparator, 0, lengthUpperBound)
	s.Reset()
	return s
}

// Reset restores the State to the start set: every pattern that is not
// already sorted, 2^N - (N+1) of them.
func (s *State) Reset() {
	numPatterns := s.lookups.NumPatterns()
	s.first = endOfList
	for p := uint64(0); p < uint64(numPatterns); p++ {
		s.inList.Unset(p)
	}
	for p := uint32(0); p < numPatterns; p++ {
		if s.lookups.IsSorted(p) {
			continue
		}
		s.slotValue[p] = p
		s.slotNext[p] = s.first
		s.first = int32(p)
		s.inList.Set(uint64(p))
	}
	s.numUnsorted = int(numPatterns) - (s.n + 1)
	s.ops = s.ops[:0]
}

// NumUnsorted returns the number of patterns still needing to be sorted.
func (s *State) NumUnsorted() int { return s.numUnsorted }

// CurrentLevel returns the number of comparators applied so far.
func (s *State) CurrentLevel() int { return len(s.ops) }

// Ops returns the comparator sequence applied so far. The returned slice
// must not be retained across a further mutation of s.
func (s *State) Ops() []core.Comparator { return s.ops }

// Apply applies comparator (i,j), i<j, to every unsorted pattern. It is an
// InvariantViolation to call Apply with i>=j.
func (s *State) Apply(i, j int) {
	if i >= j {
		panic(core.InvariantViolation{Msg: "Apply called with i>=j"})
	}

	var last int32 = endOfList
	for idx := s.first; idx != endOfList; {
		next := s.slotNext[idx]
		p := s.slotValue[idx]

		if bit(p, i) == 0 && bit(p, j) == 1 {
			s.inList.Unset(uint64(p))
			pp := (p | (1 << uint(i))) &^ (1 << uint(j))

			if s.inList.Get(uint64(pp)) || s.lookups.IsSorted(pp) {
				s.numUnsorted--
				if last != endOfList {
					s.slotNext[last] = next
				} else {
					s.first = next
				}
			} else {
				s.inList.Set(uint64(pp))
				s.slotValue[idx] = pp
				if last != endOfList {
					s.slotNext[last] = idx
				} else {
					s.first = idx
				}
				last = idx
			}
		} else {
			last = idx
		}
		idx = next
	}

	s.ops = append(s.ops, core.Comparator{I: uint8(i), J: uint8(j)})
}

// RandomRolloutStep selects one unsorted pattern uniformly from the live
// set, then one of its legal comparators uniformly, and applies it. This
// implicitly weights comparator selection by how many live patterns it
// would affect — preserve this bias exactly.
func (s *State) RandomRolloutStep(rng *rand.Rand) {
	if s.numUnsorted <= 0 {
		panic(core.InvariantViolation{Msg: "RandomRolloutStep called with no unsorted patterns"})
	}

	target := rng.Intn(s.numUnsorted)
	idx := s.first
	for n := 0; n < target; n++ {
		idx = s.slotNext[idx]
	}
	p := s.slotValue[idx]

	ops := s.lookups.AllowedOps(p)
	if len(ops) == 0 {
		// Cannot occur with valid lookup tables.
		panic(core.InvariantViolation{Msg: "live pattern has no allowed ops"})
	}
	op := ops[rng.Intn(len(ops))]
	s.Apply(int(op.I), int(op.J))
}

// EnumerateLegalSuccessors sets outMatrix[i][j] = true for every comparator
// (i,j) that would change at least one live pattern, and returns the count
// of such comparators. outMatrix must be an n x n matrix (only the i<j
// triangle is written). A partial network is complete exactly when the
// returned count is 0.
func (s *State) EnumerateLegalSuccessors(outMatrix [][]bool) int {
	for i := 0; i < s.n; i++ {
		row := outMatrix[i]
		for j := range row {
			row[j] = false
		}
	}

	for idx := s.first; idx != endOfList; idx = s.slotNext[idx] {
		p := s.slotValue[idx]
		for i := 0; i < s.n-1; i++ {
			if bit(p, i) != 0 {
				continue
			}
			for j := i + 1; j < s.n; j++ {
				if bit(p, j) == 1 {
					outMatrix[i][j] = true
				}
			}
		}
	}

	count := 0
	for i := 0; i < s.n-1; i++ {
		for j := i + 1; j < s.n; j++ {
			if outMatrix[i][j] {
				count++
			}
		}
	}
	return count
}

// ComputeDepth returns the number of parallel layers in the applied
// comparator sequence: a new layer starts whenever the next comparator
// shares a wire with one already used in the current layer.
func (s *State) ComputeDepth() int {
	var used uint32
	layers := 1
	for _, op := range s.ops {
		mask := uint32(1)<<op.I | uint32(1)<<op.J
		if used&mask != 0 {
			layers++
			used = 0
		}
		used |= mask
	}
	return layers
}

// MinimizeDepth greedily reorders the applied comparator sequence into the
// minimum number of parallel layers. Two comparators commute when they
// touch disjoint wires, so reordering never changes the function the
// network computes.
func (s *State) MinimizeDepth() {
	ops := s.ops
	level := len(ops)

	for {
		altered := false
		var used1 uint32

		for l1 := 0; l1 < level; l1++ {
			mask1 := uint32(1)<<ops[l1].I | uint32(1)<<ops[l1].J
			if used1&mask1 != 0 {
				var used2 uint32
				for l2 := l1; l2 < level; l2++ {
					mask2 := uint32(1)<<ops[l2].I | uint32(1)<<ops[l2].J
					if used2&mask2 != 0 {
						break
					}
					if used1&mask2 == 0 {
						used1 |= mask2
						ops[l1], ops[l2] = ops[l2], ops[l1]
						l2 = l1
						l1++
						used2 = 0
						altered = true
						continue
					}
					used2 |= mask2
				}
				used1 = 0
			}
			used1 |= uint32(1)<<ops[l1].I | uint32(1)<<ops[l1].J
		}

		if !altered {
			break
		}
	}
}

// Clone returns an independent copy, used for speculative scoring rollouts.
func (s *State) Clone() *State {
	c := &State{
		lookups:     s.lookups,
		n:           s.n,
		inList:      s.inList.Clone(),
		first:       s.first,
		numUnsorted: s.numUnsorted,
	}
	c.slotNext = make([]int32, len(s.slotNext))
	copy(c.slotNext, s.slotNext)
	c.slotValue = make([]uint32, len(s.slotValue))
	copy(c.slotValue, s.slotValue)
	c.ops = make([]core.Comparator, len(s.ops), cap(s.ops))
	copy(c.ops, s.ops)
	return c
}

// CopyFrom turns the receiver into an exact copy of other's state, reusing
// the receiver's list and ops arrays (the membership bit-vector is cloned
// afresh). Used by scorer.Score to restart each rollout from the same state
// without reallocating the list.
func (s *State) CopyFrom(other *State) {
	copy(s.slotNext, other.slotNext)
	copy(s.slotValue, other.slotValue)
	s.first = other.first
	s.numUnsorted = other.numUnsorted
	s.inList = other.inList.Clone()
	s.ops = append(s.ops[:0], other.ops...)
}

// ReplayFrom resets the receiver and applies the given comparator sequence,
// used to reconstruct a beam entry's State from its stored ops: storing the
// sequence is cheaper than storing a full state per beam slot.
func (s *State) ReplayFrom(ops []core.Comparator) {
	s.Reset()
	for _, op := range ops {
		s.Apply(int(op.I), int(op.J))
	}
}

func bit(p uint32, i int) uint32 {
	return (p >> uint(i)) & 1
}
