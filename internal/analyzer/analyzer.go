// Package analyzer drives the whole analysis as a single Run: it wires
// the external collaborators into region, memssa, depgraph, taint,
// collective and checker, in that pipeline order, and returns the
// collected warnings plus optional diagnostics.
package analyzer

import (
	"fmt"
	"time"

	"go.tansy.dev/comdiv/internal/checker"
	"go.tansy.dev/comdiv/internal/collab"
	"go.tansy.dev/comdiv/internal/collective"
	"go.tansy.dev/comdiv/internal/config"
	"go.tansy.dev/comdiv/internal/depgraph"
	"go.tansy.dev/comdiv/internal/diag"
	"go.tansy.dev/comdiv/internal/instrument"
	"go.tansy.dev/comdiv/internal/ir"
	"go.tansy.dev/comdiv/internal/memssa"
	"go.tansy.dev/comdiv/internal/region"
	"go.tansy.dev/comdiv/internal/taint"
)

// Collaborators bundles every external input the analysis requires.
// Apart from collective.DefaultTable, which can serve as the
// CollectiveTable, none of these are implemented in this repository.
type Collaborators struct {
	PointerAnalysis collab.PointerAnalysis
	Dominance       collab.DominanceInfo
	CallGraph       collab.CallGraph
	ModRef          collab.ModRefOracle
	CollectiveTable collab.CollectiveTable
	ExternalModRef  collab.ExternalModRef
}

// Timing is one phase's wall-clock duration, collected when
// Options.Timer is set.
type Timing struct {
	Phase    string
	Duration time.Duration
}

// Result is everything a successful Run produces.
type Result struct {
	Warnings     []diag.Warning
	Insertions   []instrument.Insertion // empty under -no-instrumentation
	Sources      []depgraph.NodeID      // the rank-query taint-source nodes
	TaintedCalls map[*ir.Inst]bool      // per call site, including transitive callee taint
	Graph        *depgraph.Graph
	SSA          *memssa.Module
	Regions      *region.Model
	Summaries    *collective.Summaries
	Tainted      *taint.Set
	Timings      []Timing
	Statistics   *ModuleStats
}

// ModuleStats is the -statistics output: IR object counts, printed
// without running the checker.
type ModuleStats struct {
	Functions    int
	ExternalFns  int
	BasicBlocks  int
	Instructions int
}

// CollectStatistics walks mod and counts its IR objects.
func CollectStatistics(mod *ir.Module) *ModuleStats {
	s := &ModuleStats{}
	for _, name := range mod.Order {
		fn := mod.Functions[name]
		s.Functions++
		if fn.External {
			s.ExternalFns++
			continue
		}
		for _, b := range fn.Blocks {
			s.BasicBlocks++
			s.Instructions += len(b.Insts)
		}
	}
	return s
}

func (s *ModuleStats) String() string {
	return fmt.Sprintf("functions=%d (external=%d) blocks=%d instructions=%d",
		s.Functions, s.ExternalFns, s.BasicBlocks, s.Instructions)
}

// Run executes the full analysis pipeline over mod.
func Run(mod *ir.Module, collabs Collaborators, opts config.Options) (*Result, error) {
	if err := config.Validate(&opts); err != nil {
		return nil, err
	}

	if opts.Statistics {
		return &Result{Statistics: CollectStatistics(mod)}, nil
	}

	var timings []Timing
	phase := func(name string, fn func()) {
		start := time.Now()
		fn()
		if opts.Timer {
			timings = append(timings, Timing{Phase: name, Duration: time.Since(start)})
		}
	}

	var regions *region.Model
	phase("regions", func() {
		regions = region.Build(mod, collabs.PointerAnalysis)
	})

	var ssa *memssa.Module
	phase("memssa", func() {
		ssa = memssa.Build(mod, regions, modRefAdapter{collabs.ModRef, regions}, collabs.Dominance, collabs.ExternalModRef)
	})
	// A broken renaming is fatal: every later phase trusts the version
	// discipline, so abort here rather than warn from garbage.
	if err := memssa.Verify(ssa); err != nil {
		return nil, err
	}

	var g *depgraph.Graph
	var sources []*memssa.MemVar
	phase("depgraph", func() {
		g, sources = depgraph.Build(mod, ssa, regions, collabs.CallGraph, collabs.Dominance, collabs.ExternalModRef, depgraph.Options{
			NoPtrDep:  opts.NoPtrDep,
			NoPhiPred: opts.NoPhiPred,
		})
		if !opts.DisablePhiElim {
			depgraph.EliminatePhis(ssa, g)
		}
	})

	sourceNodes := make([]depgraph.NodeID, 0, len(sources))
	for _, mv := range sources {
		sourceNodes = append(sourceNodes, g.MemVarNode(mv))
	}

	var tainted *taint.Set
	var taintedCalls map[*ir.Inst]bool
	phase("taint", func() {
		if opts.NoDataflow {
			tainted = taint.AllTainted()
			return
		}
		tainted = taint.Flood(g, sourceNodes)
		var callSites []*ir.Inst
		for _, name := range mod.Order {
			fn := mod.Functions[name]
			if fn.External {
				continue
			}
			for _, b := range fn.Blocks {
				for _, inst := range b.Insts {
					if inst.Opcode == ir.OpCall {
						callSites = append(callSites, inst)
					}
				}
			}
		}
		taintedCalls = taint.TaintedCalls(g, tainted, callSites)
	})

	var summaries *collective.Summaries
	phase("collective", func() {
		summaries = collective.Build(mod, collabs.CallGraph, collabs.Dominance, collabs.CollectiveTable)
	})

	var warnings *diag.Collection
	phase("checker", func() {
		chk := checker.New(g, tainted, summaries, collabs.CallGraph, collabs.Dominance, collabs.CollectiveTable)
		warnings = chk.Check(mod)
	})

	sorted := warnings.Sorted()
	var insertions []instrument.Insertion
	if !opts.NoInstrumentation {
		insertions = instrument.Plan(sorted, func(w diag.Warning) *ir.Inst { return w.Site })
	}

	return &Result{
		Warnings:     sorted,
		Insertions:   insertions,
		Sources:      sourceNodes,
		TaintedCalls: taintedCalls,
		Graph:        g,
		SSA:          ssa,
		Regions:      regions,
		Summaries:    summaries,
		Tainted:      tainted,
		Timings:      timings,
	}, nil
}

// modRefAdapter bridges collab.ModRefOracle's []collab.Region result to
// memssa.ModRefOracle's []*region.Region, since the two packages
// intentionally don't share a concrete Region type (region is a leaf
// package collab points back at via its own narrow collab.Region
// interface, see internal/collab's doc comment).
type modRefAdapter struct {
	oracle  collab.ModRefOracle
	regions *region.Model
}

func (a modRefAdapter) Mod(fn *ir.Function) []*region.Region { return a.convert(a.oracle.Mod(fn)) }
func (a modRefAdapter) Ref(fn *ir.Function) []*region.Region { return a.convert(a.oracle.Ref(fn)) }

func (a modRefAdapter) convert(in []collab.Region) []*region.Region {
	out := make([]*region.Region, 0, len(in))
	for _, r := range in {
		if concrete, ok := a.regions.RegionOfSite(r.RegionSite()); ok {
			out = append(out, concrete)
		}
	}
	return out
}
