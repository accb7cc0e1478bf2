// Package config defines the analyzer's Options and wires them to
// github.com/spf13/pflag.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
)

// ErrConfigConflict is returned by Validate when two options that
// cannot both be honored are set together.
var ErrConfigConflict = errors.New("config: conflicting options")

// Options holds every recognized analyzer flag.
type Options struct {
	DumpSSA           bool
	DumpSSAFunc       string
	DotDepgraph       bool
	DotTaintPaths     bool
	DumpRegions       bool
	DumpModRef        bool
	Timer             bool
	DisablePhiElim    bool
	ContextSensitive  bool
	NoInstrumentation bool
	StrongUpdate      bool
	WeakUpdate        bool
	NoPtrDep          bool
	NoPhiPred         bool
	NoDataflow        bool
	CheckMPI          bool
	CheckOMP          bool
	CheckUPC          bool
	CheckCUDA         bool
	Statistics        bool
}

// RegisterFlags binds Options' fields onto fs, one flag per field.
func RegisterFlags(fs *pflag.FlagSet, o *Options) {
	fs.BoolVar(&o.DumpSSA, "dump-ssa", false, "print memory-SSA")
	fs.StringVar(&o.DumpSSAFunc, "dump-ssa-func", "", "print memory-SSA for one function")
	fs.BoolVar(&o.DotDepgraph, "dot-depgraph", false, "write the full dependency graph as dg.dot")
	fs.BoolVar(&o.DotTaintPaths, "dot-taint-paths", false, "write taintedpath-<file>-<line>.dot per warning")
	fs.BoolVar(&o.DumpRegions, "dump-regions", false, "print the region table")
	fs.BoolVar(&o.DumpModRef, "dump-modref", false, "print the mod/ref summary")
	fs.BoolVar(&o.Timer, "timer", false, "print per-phase wall-clock timings")
	fs.BoolVar(&o.DisablePhiElim, "disable-phi-elim", false, "skip phi-elimination")
	fs.BoolVar(&o.ContextSensitive, "context-sensitive", false, "context-sensitive taint (incompatible with dot-taint-paths)")
	fs.BoolVar(&o.NoInstrumentation, "no-instrumentation", false, "analyse only, do not emit instrumented IR")
	fs.BoolVar(&o.StrongUpdate, "strong-update", false, "pointer-analysis precision: strong update")
	fs.BoolVar(&o.WeakUpdate, "weak-update", false, "pointer-analysis precision: weak update")
	fs.BoolVar(&o.NoPtrDep, "no-ptr-dep", false, "omit v->r edge from pointer operand at loads/stores")
	fs.BoolVar(&o.NoPhiPred, "no-phi-pred", false, "omit predicate->phi edges")
	fs.BoolVar(&o.NoDataflow, "no-dataflow", false, "skip taint, warn on every NAVS predicate")
	fs.BoolVar(&o.CheckMPI, "check-mpi", false, "enable the MPI collective table")
	fs.BoolVar(&o.CheckOMP, "check-omp", false, "enable the OpenMP collective table")
	fs.BoolVar(&o.CheckUPC, "check-upc", false, "enable the UPC collective table")
	fs.BoolVar(&o.CheckCUDA, "check-cuda", false, "enable the CUDA collective table")
	fs.BoolVar(&o.Statistics, "statistics", false, "print IR object counts and exit")
}

// Validate rejects option combinations that cannot both be honored:
// context-sensitive taint is incompatible with per-warning DOT
// visualization (the latter assumes a single, context-insensitive
// tainted-path reconstruction), strong-update and weak-update are
// mutually exclusive precision knobs, and only one collective-family
// table may be active per run, since the divergence checker's warning
// message names a single family.
func Validate(o *Options) error {
	if o.ContextSensitive && o.DotTaintPaths {
		return fmt.Errorf("%w: -context-sensitive is incompatible with -dot-taint-paths", ErrConfigConflict)
	}
	if o.StrongUpdate && o.WeakUpdate {
		return fmt.Errorf("%w: -strong-update and -weak-update are mutually exclusive", ErrConfigConflict)
	}
	families := 0
	for _, on := range []bool{o.CheckMPI, o.CheckOMP, o.CheckUPC, o.CheckCUDA} {
		if on {
			families++
		}
	}
	if families > 1 {
		return fmt.Errorf("%w: only one of -check-mpi/-check-omp/-check-upc/-check-cuda may be set", ErrConfigConflict)
	}
	return nil
}
