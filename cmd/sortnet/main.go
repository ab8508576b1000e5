// Command sortnet searches for short sorting networks on N wires using a
// stochastic parallel beam search.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sortnet/internal/config"
	"sortnet/internal/core"
	"sortnet/internal/lookup"
	"sortnet/internal/search"
)

func main() {
	os.Exit(run())
}

// run is the only place in this repository that recovers a panic: an
// InvariantViolation means the search engine found itself in a state it
// should never reach, and this boundary turns that into a clean message and
// a defined exit code instead of a raw stack trace.
func run() (code int) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		violation, ok := r.(core.InvariantViolation)
		if !ok {
			panic(r)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", violation)
		code = 2
	}()

	cfg, err := config.ParseArgs(os.Args[1:], os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if cfg == nil {
		// -h/--help: usage already printed, exit 0.
		return 0
	}

	lookups, err := lookup.Build(cfg.NetSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	stop := &search.StopFlag{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		for range sigCh {
			if stop.Requested() {
				os.Exit(1)
			}
			stop.Request()
		}
	}()

	cfg.Print(os.Stdout)

	bootSeed := uint64(time.Now().UnixNano())
	search.Run(cfg, lookups, bootSeed, os.Stdout, stop)

	return 0
}
