// Package config parses command-line flags into a validated BuildConfig,
// the single record threaded through the rest of the search engine instead
// of package-level mutable state.
package config

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"sortnet/internal/bounds"
	"sortnet/internal/core"
)

// BuildConfig holds every user-configurable and derived parameter for one
// search run, mirroring the original Config class: a small set of flags,
// plus bounds-table-derived fields computed once at Initialize.
type BuildConfig struct {
	// User-configurable.
	MaxIterations    int
	NetSize          int
	MaxBeamSize      int
	NumScoringTests  int
	NumElites        int
	UseSymmetry      bool
	symmetryExplicit bool
	DepthWeight      float64

	// Computed by Initialize.
	NumInputPatterns uint64
	LengthLowerBound int
	LengthUpperBound int
	DepthLowerBound  int
	BranchingFactor  int
}

// Default returns a BuildConfig populated with the documented flag
// defaults, not yet Initialized.
func Default() *BuildConfig {
	return &BuildConfig{
		MaxIterations:   1,
		NetSize:         8,
		MaxBeamSize:     100,
		NumScoringTests: 5,
		NumElites:       1,
		UseSymmetry:     true,
		DepthWeight:     0.0001,
	}
}

// ParseArgs parses argv (not including the program name) into a
// BuildConfig and initializes it. On -h/--help it writes usage to out and
// returns (nil, nil) so the caller can exit 0 without treating it as an
// error. Any parse or validation failure is returned as a core.ConfigError;
// a flag that cannot be parsed (unknown flag, malformed value) also writes
// usage to out.
func ParseArgs(argv []string, out io.Writer) (*BuildConfig, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("sortnet", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { PrintUsage(out, fs) }

	fs.IntVarP(&cfg.MaxIterations, "max-iterations", "i", cfg.MaxIterations, "maximum search iterations")
	fs.IntVarP(&cfg.NetSize, "net-size", "n", cfg.NetSize, "network size, 2-32")
	fs.IntVarP(&cfg.MaxBeamSize, "beam-size", "b", cfg.MaxBeamSize, "beam width")
	fs.IntVarP(&cfg.NumScoringTests, "scoring-iterations", "t", cfg.NumScoringTests, "rollouts per scoring round")
	fs.IntVarP(&cfg.NumElites, "elites", "e", cfg.NumElites, "number of elite tests to average")
	fs.Float64VarP(&cfg.DepthWeight, "depth-weight", "w", cfg.DepthWeight, "weight for depth vs length, 0.0-1.0")

	var symmetry, noSymmetry bool
	fs.BoolVarP(&symmetry, "symmetry", "s", false, "enable symmetry heuristic")
	fs.BoolVarP(&noSymmetry, "no-symmetry", "S", false, "disable symmetry heuristic")

	if err := fs.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return nil, nil
		}
		fs.Usage()
		return nil, core.ConfigError{Msg: err.Error()}
	}

	if symmetry && noSymmetry {
		return nil, core.ConfigError{Msg: "cannot pass both -s/--symmetry and -S/--no-symmetry"}
	}
	if symmetry {
		cfg.UseSymmetry = true
		cfg.symmetryExplicit = true
	}
	if noSymmetry {
		cfg.UseSymmetry = false
		cfg.symmetryExplicit = true
	}

	if err := cfg.Initialize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Initialize validates every parameter and computes the derived fields.
// It is exported separately from ParseArgs so callers building a
// BuildConfig programmatically (tests, library embedders) can validate
// without going through flag parsing.
func (c *BuildConfig) Initialize() error {
	if c.NetSize < 2 || c.NetSize > 32 {
		return core.ConfigError{Msg: fmt.Sprintf("net-size must be between 2 and 32, got %d", c.NetSize)}
	}
	b, err := bounds.Get(c.NetSize)
	if err != nil {
		return core.ConfigError{Msg: err.Error()}
	}

	if !c.symmetryExplicit {
		c.UseSymmetry = c.NetSize%2 == 0
	}

	if c.MaxBeamSize < 1 {
		return core.ConfigError{Msg: "beam-size must be at least 1"}
	}
	if c.NumScoringTests < 1 {
		return core.ConfigError{Msg: "scoring-iterations must be at least 1"}
	}
	if c.NumElites < 1 {
		return core.ConfigError{Msg: "elites must be at least 1"}
	}
	if c.NumElites > c.NumScoringTests {
		return core.ConfigError{Msg: "elites cannot exceed scoring-iterations"}
	}
	if c.DepthWeight < 0.0 || c.DepthWeight > 1.0 {
		return core.ConfigError{Msg: "depth-weight must be between 0.0 and 1.0"}
	}
	if c.MaxIterations < 1 {
		return core.ConfigError{Msg: "max-iterations must be at least 1"}
	}

	c.BranchingFactor = (c.NetSize * (c.NetSize - 1)) / 2
	c.NumInputPatterns = uint64(1) << uint(c.NetSize)
	c.LengthLowerBound = b.Length
	c.LengthUpperBound = b.Length * 2
	c.DepthLowerBound = b.Depth
	return nil
}

// PrintUsage writes the help text, mirroring the original's worked
// examples.
func PrintUsage(out io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(out, "Usage: sortnet [options]\n\nOptions:\n")
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nExamples:\n"+
		"  sortnet -n 8                    # Search for size-8 network\n"+
		"  sortnet -n 12 -b 500 -t 5       # Search with larger beam\n"+
		"  sortnet -n 17 -s                # Force symmetry for odd size\n"+
		"  sortnet -n 16 -S                # Disable symmetry for even size\n")
}

// Print writes the startup banner: every configured and derived parameter,
// the way the original logged its Config before the first iteration.
func (c *BuildConfig) Print(out io.Writer) {
	fmt.Fprintf(out, "MAX_ITERATIONS          = %d\n", c.MaxIterations)
	fmt.Fprintf(out, "NET_SIZE                = %d\n", c.NetSize)
	fmt.Fprintf(out, "MAX_BEAM_SIZE           = %d\n", c.MaxBeamSize)
	fmt.Fprintf(out, "NUM_SCORING_TESTS       = %d\n", c.NumScoringTests)
	fmt.Fprintf(out, "NUM_ELITE_TESTS         = %d\n", c.NumElites)
	fmt.Fprintf(out, "USE_SYMMETRY_HEURISTIC  = %v\n", c.UseSymmetry)
	fmt.Fprintf(out, "DEPTH_WEIGHT            = %v\n", c.DepthWeight)
	fmt.Fprintf(out, "BRANCHING_FACTOR        = %d\n", c.BranchingFactor)
	fmt.Fprintf(out, "NUM_INPUT_PATTERNS      = %d\n", c.NumInputPatterns)
	fmt.Fprintf(out, "LENGTH_LOWER_BOUND      = %d\n", c.LengthLowerBound)
	fmt.Fprintf(out, "LENGTH_UPPER_BOUND      = %d\n", c.LengthUpperBound)
	fmt.Fprintf(out, "DEPTH_LOWER_BOUND       = %d\n", c.DepthLowerBound)
	fmt.Fprintln(out)
}
