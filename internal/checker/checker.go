// Package checker implements the divergence checker: for every
// collective call site, it recomputes the
// inter-procedural post-dominance frontier (reusing depgraph's control-
// dependence machinery), cross-references each control predicate
// against the taint flood-fill, and corroborates against the
// collective-sequence summary before emitting a warning — a predicate
// being rank-tainted is necessary but not sufficient; the branches it
// guards must also actually call different collective sequences, or
// every process takes a different path to the identical outcome and
// there is nothing to report.
package checker

import (
	"go.tansy.dev/comdiv/internal/collab"
	"go.tansy.dev/comdiv/internal/collective"
	"go.tansy.dev/comdiv/internal/depgraph"
	"go.tansy.dev/comdiv/internal/diag"
	"go.tansy.dev/comdiv/internal/ir"
	"go.tansy.dev/comdiv/internal/taint"
)

// CallGraph and DominanceInfo mirror depgraph's interfaces so checker
// does not need to know depgraph's internal naming; production callers
// hand the same collab-backed value for both.
type CallGraph = depgraph.CallGraph
type DominanceInfo = depgraph.DominanceInfo

// Checker cross-references a built dependency graph, taint set and
// collective summary to find unsafe collective calls.
type Checker struct {
	g         *depgraph.Graph
	tainted   *taint.Set
	summaries *collective.Summaries
	cg        CallGraph
	dom       DominanceInfo
	table     collab.CollectiveTable
}

// New builds a Checker from the already-built analysis artifacts.
func New(g *depgraph.Graph, tainted *taint.Set, summaries *collective.Summaries, cg CallGraph, dom DominanceInfo, table collab.CollectiveTable) *Checker {
	return &Checker{g: g, tainted: tainted, summaries: summaries, cg: cg, dom: dom, table: table}
}

// Check walks every collective call site in mod and returns the
// warnings found, in the diag.Collection's insertion order (callers
// should call Collection.Sorted for the stable, idempotent order).
func (c *Checker) Check(mod *ir.Module) *diag.Collection {
	out := &diag.Collection{}
	for _, name := range mod.Order {
		fn := mod.Functions[name]
		if fn == nil || fn.External {
			continue
		}
		for _, b := range fn.Blocks {
			for _, inst := range b.Insts {
				if inst.Opcode != ir.OpCall || inst.Callee == nil {
					continue
				}
				if !c.table.IsCollective(inst.Callee) {
					continue
				}
				c.checkCallSite(fn, inst, out)
			}
		}
	}
	return out
}

func (c *Checker) checkCallSite(fn *ir.Function, inst *ir.Inst, out *diag.Collection) {
	points := depgraph.InterproceduralControlPoints(inst, c.cg, c.dom)
	for _, cp := range points {
		if !c.tainted.Tainted(c.g.ValueNode(cp.Predicate)) {
			continue
		}
		if !c.divergentAt(cp.Block) {
			continue
		}

		var taintedBy []ir.DebugLoc
		if predInst, ok := cp.Predicate.(*ir.Inst); ok {
			taintedBy = append(taintedBy, predInst.Loc)
		}

		out.Add(diag.Warning{
			Loc:       inst.Loc,
			Name:      c.table.Name(inst.Callee),
			Color:     c.table.Color(inst.Callee).String(),
			Func:      fn.Name,
			Site:      inst,
			Message:   "reached under a rank-dependent condition whose branches call different collective sequences",
			TaintedBy: taintedBy,
		})
	}
}

// divergentAt reports whether b's successors disagree on the
// collective sequence remaining before their function's exits. With
// fewer than two successors, or no summary for b's function, there is
// nothing to corroborate against — conservatively treated as divergent
// so a tainted control dependence is never silently dropped.
func (c *Checker) divergentAt(b *ir.BasicBlock) bool {
	if b.Func == nil {
		return true
	}
	fs := c.summaries.Func(b.Func)
	if fs == nil || len(b.Succs) < 2 {
		return true
	}
	first := fs.BlockSequence(b.Succs[0])
	for _, succ := range b.Succs[1:] {
		if !collective.SeqEqual(first, fs.BlockSequence(succ)) {
			return true
		}
	}
	return false
}
