// Package search runs the top-level iteration loop: up to max_iterations
// independent beam searches, each followed by depth minimization, printed
// in the canonicalized output format, stopping early on a new record or
// on a cooperative cancellation request.
package search

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"sortnet/internal/beam"
	"sortnet/internal/config"
	"sortnet/internal/core"
	"sortnet/internal/lookup"
	"sortnet/internal/normalize"
	"sortnet/internal/state"
)

// StopFlag is the cooperative, signal-driven cancellation flag: checked
// only at iteration boundaries, never inside a beam level.
type StopFlag struct {
	requested atomic.Bool
}

// Request marks the flag as set. Safe to call from a signal handler.
func (f *StopFlag) Request() { f.requested.Store(true) }

// Requested reports whether cancellation has been requested.
func (f *StopFlag) Requested() bool { return f.requested.Load() }

// Summary is the outcome of one Run call.
type Summary struct {
	TotalIterations int
	Elapsed         time.Duration
}

// Run executes up to cfg.MaxIterations beam searches, printing each
// result to out in the canonicalized output format. It stops early when
// a beam search breaks a known record (length or depth strictly below
// the configured lower bound) or when stop is requested between
// iterations.
func Run(cfg *config.BuildConfig, lookups *lookup.Tables, bootSeed uint64, out io.Writer, stop *StopFlag) Summary {
	start := time.Now()

	scratch := state.New(lookups, cfg.LengthUpperBound)

	iteration := 0
	for ; iteration < cfg.MaxIterations && !stop.Requested(); iteration++ {
		fmt.Fprintf(out, "Iteration %d:\n", iteration+1)

		result, err := beam.Search(cfg, lookups, bootSeed+uint64(iteration), beam.NewWriterLogger(out))
		if err != nil {
			panic(err)
		}
		length := len(result.Ops)

		scratch.ReplayFrom(result.Ops)
		scratch.MinimizeDepth()
		depth := scratch.ComputeDepth()

		printResult(out, scratch.Ops(), length, depth, cfg.NetSize)

		if length < cfg.LengthLowerBound || depth < cfg.DepthLowerBound {
			iteration++
			break
		}
	}

	elapsed := time.Since(start)
	fmt.Fprintf(out, "Total Iterations  : %d\n", iteration)
	fmt.Fprintf(out, "Total Time        : %v seconds\n", elapsed.Seconds())

	return Summary{TotalIterations: iteration, Elapsed: elapsed}
}

// printResult writes the canonicalized network followed by its length
// and depth, matching the documented output format.
func printResult(out io.Writer, ops []core.Comparator, length, depth, n int) {
	normalized := append([]core.Comparator(nil), ops...)
	normalize.Canonicalize(normalized, n)

	for i, op := range normalized {
		fmt.Fprintf(out, "+%d:(%d,%d)\n", i+1, op.I, op.J)
	}
	fmt.Fprintf(out, "+Length: %d\n", length)
	fmt.Fprintf(out, "+Depth : %d\n", depth)
	fmt.Fprintln(out)
}
