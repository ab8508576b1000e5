package state

import (
	"math/rand"
	"testing"

	"sortnet/internal/core"
	"sortnet/internal/lookup"
)

func mustBuild(t *testing.T, n int) *lookup.Tables {
	tbl, err := lookup.Build(n)
	if err != nil {
		t.Fatalf("lookup.Build(%d): %v", n, err)
	}
	return tbl
}

// TestResetUnsortedCountN4 checks the starting unsorted-pattern count for N=4.
func TestResetUnsortedCountN4(t *testing.T) {
	tbl := mustBuild(t, 4)
	s := New(tbl, 32)
	if got, want := s.NumUnsorted(), 11; got != want {
		t.Fatalf("NumUnsorted() = %d, want %d", got, want)
	}
}

// singlePatternState builds a State whose only live pattern is p, bypassing
// Reset's "every unsorted pattern" start set so that Apply's effect on p can
// be observed in isolation, with no possibility of colliding into another
// live slot.
func singlePatternState(tbl *lookup.Tables, p uint32) *State {
	s := New(tbl, 4)
	numPatterns := tbl.NumPatterns()
	s.inList = core.NewBitVector(uint64(numPatterns))
	s.slotNext = make([]int32, numPatterns)
	s.slotValue = make([]uint32, numPatterns)
	s.first = int32(p)
	s.slotNext[p] = endOfList
	s.slotValue[p] = p
	s.inList.Set(uint64(p))
	s.numUnsorted = 1
	s.ops = s.ops[:0]
	return s
}

// TestApplyMatchesBitFormula checks that applying comparator (i,j) to a
// pattern actually moves the live slot's value to (p|2^i) &^ 2^j whenever p
// has bit i=0, bit j=1, by calling State.Apply and inspecting the resulting
// slot rather than recomputing the formula twice.
func TestApplyMatchesBitFormula(t *testing.T) {
	n := 6
	tbl := mustBuild(t, n)
	for p := uint32(0); p < tbl.NumPatterns(); p++ {
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				if (p>>uint(i))&1 != 0 || (p>>uint(j))&1 != 1 {
					continue
				}
				want := (p | (1 << uint(i))) &^ (1 << uint(j))

				st := singlePatternState(tbl, p)
				st.Apply(i, j)

				if tbl.IsSorted(want) {
					if st.NumUnsorted() != 0 {
						t.Fatalf("p=%d i=%d j=%d: want slot removed (result %d already sorted), but NumUnsorted=%d", p, i, j, want, st.NumUnsorted())
					}
					continue
				}
				if st.NumUnsorted() != 1 {
					t.Fatalf("p=%d i=%d j=%d: NumUnsorted = %d, want 1", p, i, j, st.NumUnsorted())
				}
				if got := st.slotValue[p]; got != want {
					t.Fatalf("p=%d i=%d j=%d: slot value = %d, want %d", p, i, j, got, want)
				}
				if !st.inList.Get(uint64(want)) {
					t.Fatalf("p=%d i=%d j=%d: inList does not reflect new value %d", p, i, j, want)
				}
			}
		}
	}
}

// TestCompletionSortsAllPermutations checks that a completed network
// (NumUnsorted==0) sorts every permutation of 0..N-1 when interpreted
// as a value-comparator network.
func TestCompletionSortsAllPermutations(t *testing.T) {
	for n := 4; n <= 6; n++ {
		tbl := mustBuild(t, n)
		s := New(tbl, 2*n*n)
		rng := rand.New(rand.NewSource(1))
		for s.NumUnsorted() > 0 {
			s.RandomRolloutStep(rng)
		}

		ops := append([]core.Comparator(nil), s.Ops()...)
		permute(n, func(perm []int) {
			vals := append([]int(nil), perm...)
			for _, op := range ops {
				if vals[op.I] > vals[op.J] {
					vals[op.I], vals[op.J] = vals[op.J], vals[op.I]
				}
			}
			for i := 1; i < n; i++ {
				if vals[i-1] > vals[i] {
					t.Fatalf("n=%d perm=%v ops=%v: output %v not sorted", n, perm, ops, vals)
				}
			}
		})
	}
}

func permute(n int, visit func([]int)) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	var rec func(k int)
	rec = func(k int) {
		if k == n {
			visit(perm)
			return
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			rec(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	rec(0)
}

// TestSuccessorEnumerationRoundTrip checks that for every live pattern p,
// every legal (i,j) is reflected in EnumerateLegalSuccessors' matrix.
func TestSuccessorEnumerationRoundTrip(t *testing.T) {
	n := 5
	tbl := mustBuild(t, n)
	s := New(tbl, 32)
	matrix := make([][]bool, n)
	for i := range matrix {
		matrix[i] = make([]bool, n)
	}

	s.EnumerateLegalSuccessors(matrix)

	for idx := s.first; idx != endOfList; idx = s.slotNext[idx] {
		p := s.slotValue[idx]
		for i := 0; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				want := bit(p, i) == 0 && bit(p, j) == 1
				if want && !matrix[i][j] {
					t.Fatalf("pattern %d wants (%d,%d) legal but matrix says false", p, i, j)
				}
			}
		}
	}
}

// TestN3EmptyStateSuccessorCount checks the legal successor count for a fresh N=3 state.
func TestN3EmptyStateSuccessorCount(t *testing.T) {
	n := 3
	tbl := mustBuild(t, n)
	s := New(tbl, 16)
	matrix := make([][]bool, n)
	for i := range matrix {
		matrix[i] = make([]bool, n)
	}
	count := s.EnumerateLegalSuccessors(matrix)
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	for _, pair := range [][2]int{{0, 1}, {0, 2}, {1, 2}} {
		if !matrix[pair[0]][pair[1]] {
			t.Errorf("expected (%d,%d) legal", pair[0], pair[1])
		}
	}

	before := s.EnumerateLegalSuccessors(matrix)
	s.Apply(0, 2)
	after := s.EnumerateLegalSuccessors(matrix)
	if after >= before {
		t.Fatalf("applying (0,2) should strictly reduce legal successor count: before=%d after=%d", before, after)
	}
}

// TestDepthMonotonicity checks that MinimizeDepth never increases depth,
// never changes CurrentLevel, and preserves the sorting function.
func TestDepthMonotonicity(t *testing.T) {
	n := 6
	tbl := mustBuild(t, n)
	s := New(tbl, 64)
	rng := rand.New(rand.NewSource(7))
	for s.NumUnsorted() > 0 {
		s.RandomRolloutStep(rng)
	}

	before := s.ComputeDepth()
	beforeLevel := s.CurrentLevel()
	opsBefore := append([]core.Comparator(nil), s.Ops()...)

	s.MinimizeDepth()

	after := s.ComputeDepth()
	if after > before {
		t.Fatalf("depth increased: before=%d after=%d", before, after)
	}
	if s.CurrentLevel() != beforeLevel {
		t.Fatalf("CurrentLevel changed: before=%d after=%d", beforeLevel, s.CurrentLevel())
	}

	// Function preservation: sort all 2^n binary inputs with both orders.
	for p := uint32(0); p < tbl.NumPatterns(); p++ {
		if !applySortsPattern(opsBefore, p, n) {
			t.Fatalf("pre-minimize ops do not sort pattern %d", p)
		}
		if !applySortsPattern(s.Ops(), p, n) {
			t.Fatalf("post-minimize ops do not sort pattern %d", p)
		}
	}
}

func applySortsPattern(ops []core.Comparator, p uint32, n int) bool {
	for _, op := range ops {
		if bit(p, int(op.I)) == 0 && bit(p, int(op.J)) == 1 {
			p = (p | (1 << op.I)) &^ (1 << op.J)
		}
	}
	for i := 0; i < n-1; i++ {
		if bit(p, i) == 0 && bit(p, i+1) == 1 {
			return false
		}
	}
	return true
}

func TestCloneIndependence(t *testing.T) {
	tbl := mustBuild(t, 5)
	s := New(tbl, 32)
	s.Apply(0, 1)

	clone := s.Clone()
	clone.Apply(1, 2)

	if s.CurrentLevel() == clone.CurrentLevel() {
		t.Fatalf("mutating clone must not affect original")
	}
}

func TestReplayFromMatchesDirectApply(t *testing.T) {
	tbl := mustBuild(t, 5)
	s := New(tbl, 32)
	s.Apply(0, 1)
	s.Apply(2, 3)
	s.Apply(1, 4)

	replay := New(tbl, 32)
	replay.ReplayFrom(s.Ops())

	if replay.NumUnsorted() != s.NumUnsorted() {
		t.Fatalf("replay NumUnsorted = %d, want %d", replay.NumUnsorted(), s.NumUnsorted())
	}
}

func TestApplyRejectsIGreaterEqualJ(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic for i>=j")
		}
	}()
	tbl := mustBuild(t, 4)
	s := New(tbl, 16)
	s.Apply(2, 1)
}
