// Package bounds provides the known best-published (length, depth) bounds
// for optimal sorting networks on N wires, N in [2,32], used to size the
// comparator buffer and seed the upper-bound-on-length default.
//
// Source: https://bertdobbelaere.github.io/sorting_networks.html
package bounds

import "fmt"

// Bounds is the known best length and depth for an N-wire sorting network.
type Bounds struct {
	Length int
	Depth  int
}

var table = map[int]Bounds{
	2:  {1, 1},
	3:  {3, 3},
	4:  {5, 3},
	5:  {9, 5},
	6:  {12, 5},
	7:  {16, 6},
	8:  {19, 6},
	9:  {25, 7},
	10: {29, 7},
	11: {35, 8},
	12: {39, 8},
	13: {45, 9},
	14: {51, 9},
	15: {56, 9},
	16: {60, 9},
	17: {71, 10},
	18: {77, 11},
	19: {85, 11},
	20: {91, 11},
	21: {99, 12},
	22: {106, 12},
	23: {114, 12},
	24: {120, 12},
	25: {130, 13},
	26: {138, 13},
	27: {147, 13},
	28: {155, 13},
	29: {164, 14},
	30: {172, 14},
	31: {180, 14},
	32: {185, 14},
}

// Get returns the known bounds for net size n, or an error if n is out of
// the known range [2,32].
func Get(n int) (Bounds, error) {
	b, ok := table[n]
	if !ok {
		return Bounds{}, fmt.Errorf("bounds: no known bounds for net size %d", n)
	}
	return b, nil
}
