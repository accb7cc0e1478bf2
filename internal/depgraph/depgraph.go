// Package depgraph builds the inter-procedural dependency graph
// combining top-level SSA values and memory-SSA variables, and runs
// the φ-elimination pass that sharpens taint by collapsing spurious
// 2-operand memory φ's.
//
// The graph is represented as two parallel adjacency maps (children,
// parents) keyed by a stable NodeID; every edge operation mutates both
// maps together, and nothing relies on pointer identity for equality.
package depgraph

import (
	"sort"

	"github.com/golang/glog"

	"go.tansy.dev/comdiv/internal/ir"
	"go.tansy.dev/comdiv/internal/memssa"
	"go.tansy.dev/comdiv/internal/region"
)

// NodeKind distinguishes the two node colors plus the call-site
// pseudo-nodes control-dependence edges point into.
type NodeKind int

const (
	NodeValue NodeKind = iota
	NodeMemVar
	NodeCall
)

// NodeID is a stable identifier into one of two arenas (Values,
// MemVars) or the call-site table.
type NodeID struct {
	Kind  NodeKind
	Index int
}

// EdgeColor is one of the four DG edge families, plus the
// control-dependence and call→function colors.
type EdgeColor int

const (
	ValueToValue EdgeColor = iota
	ValueToMem
	MemToValue
	MemToMem
	Control     // predicate Value -> call node
	CallToFunc  // call node -> callee Function (tracked separately, see CallTargets)
)

// Edge is one adjacency-list entry.
type Edge struct {
	To    NodeID
	Color EdgeColor
}

// Graph is the built dependency graph for a whole module.
type Graph struct {
	values   []ir.Value
	valueIdx map[ir.Value]int

	memvars   []*memssa.MemVar
	memvarIdx map[*memssa.MemVar]int

	calls   []*ir.Inst
	callIdx map[*ir.Inst]int

	children map[NodeID][]Edge
	parents  map[NodeID][]Edge

	// CallTargets is call node -> resolved callee set (possibly more
	// than one for an indirect call, possibly empty if unresolved).
	CallTargets map[NodeID][]*ir.Function
}

func newGraph() *Graph {
	return &Graph{
		valueIdx:    make(map[ir.Value]int),
		memvarIdx:   make(map[*memssa.MemVar]int),
		callIdx:     make(map[*ir.Inst]int),
		children:    make(map[NodeID][]Edge),
		parents:     make(map[NodeID][]Edge),
		CallTargets: make(map[NodeID][]*ir.Function),
	}
}

// ValueNode returns the (creating if needed) node for a top-level Value.
func (g *Graph) ValueNode(v ir.Value) NodeID {
	if i, ok := g.valueIdx[v]; ok {
		return NodeID{NodeValue, i}
	}
	i := len(g.values)
	g.values = append(g.values, v)
	g.valueIdx[v] = i
	return NodeID{NodeValue, i}
}

// MemVarNode returns the (creating if needed) node for a MemVar.
func (g *Graph) MemVarNode(v *memssa.MemVar) NodeID {
	if i, ok := g.memvarIdx[v]; ok {
		return NodeID{NodeMemVar, i}
	}
	i := len(g.memvars)
	g.memvars = append(g.memvars, v)
	g.memvarIdx[v] = i
	return NodeID{NodeMemVar, i}
}

// CallNode returns the (creating if needed) pseudo-node for a call site.
func (g *Graph) CallNode(inst *ir.Inst) NodeID {
	if i, ok := g.callIdx[inst]; ok {
		return NodeID{NodeCall, i}
	}
	i := len(g.calls)
	g.calls = append(g.calls, inst)
	g.callIdx[inst] = i
	return NodeID{NodeCall, i}
}

// ValueAt / MemVarAt / CallAt reverse-resolve a NodeID back to the IR
// object it represents.
func (g *Graph) ValueAt(id NodeID) ir.Value        { return g.values[id.Index] }
func (g *Graph) MemVarAt(id NodeID) *memssa.MemVar { return g.memvars[id.Index] }
func (g *Graph) CallAt(id NodeID) *ir.Inst         { return g.calls[id.Index] }

func (g *Graph) addEdge(from, to NodeID, color EdgeColor) {
	for _, e := range g.children[from] {
		if e.To == to && e.Color == color {
			return // edge already present
		}
	}
	g.children[from] = append(g.children[from], Edge{To: to, Color: color})
	g.parents[to] = append(g.parents[to], Edge{To: from, Color: color})
}

// Children returns the outgoing edges of n.
func (g *Graph) Children(n NodeID) []Edge { return g.children[n] }

// Parents returns the incoming edges of n.
func (g *Graph) Parents(n NodeID) []Edge { return g.parents[n] }

// AllNodes returns every node that has at least one edge, in no
// particular order — used by dotwriter to enumerate what to render.
func (g *Graph) AllNodes() []NodeID {
	seen := make(map[NodeID]bool)
	for n, edges := range g.children {
		seen[n] = true
		for _, e := range edges {
			seen[e.To] = true
		}
	}
	for n, edges := range g.parents {
		seen[n] = true
		for _, e := range edges {
			seen[e.To] = true
		}
	}
	out := make([]NodeID, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

// removeNode deletes every edge touching n, in both directions.
func (g *Graph) removeNode(n NodeID) {
	for _, e := range g.children[n] {
		g.parents[e.To] = removeEdgeTo(g.parents[e.To], n)
	}
	for _, e := range g.parents[n] {
		g.children[e.To] = removeEdgeTo(g.children[e.To], n)
	}
	delete(g.children, n)
	delete(g.parents, n)
}

func removeEdgeTo(edges []Edge, target NodeID) []Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.To != target {
			out = append(out, e)
		}
	}
	return out
}

// ExternalModRef classifies external-function names into canonical
// intrinsic identifiers. Declared locally, mirrored by
// collab.ExternalModRef.
type ExternalModRef interface {
	Classify(name string) string
}

// CallGraph is the subset of collab.CallGraph the control-dependence
// pass needs.
type CallGraph interface {
	Callees(call *ir.Inst) []*ir.Function
	Callers(fn *ir.Function) []*ir.Inst
}

// DominanceInfo is the subset of collab.DominanceInfo the
// control-dependence pass needs.
type DominanceInfo interface {
	PostDominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock
}

// Options are the graph-construction knobs.
type Options struct {
	NoPtrDep  bool // omit the v->r edge from the pointer operand at loads/stores
	NoPhiPred bool // omit predicate->phi edges
}

// ControlPoint is one predicate-controlled block found while computing
// an inter-procedural post-dominance frontier.
type ControlPoint struct {
	Block     *ir.BasicBlock
	Predicate ir.Value
}

// InterproceduralControlPoints computes the inter-procedural
// post-dominance frontier of a call site: the set of predicate blocks,
// crossing call boundaries via the inverse of call-graph edges, that
// control whether call executes. The divergence checker reuses it as
// its first step.
func InterproceduralControlPoints(call *ir.Inst, cg CallGraph, dom DominanceInfo) []ControlPoint {
	visited := make(map[*ir.BasicBlock]bool)
	return climb(call.Block, cg, dom, visited)
}

func climb(start *ir.BasicBlock, cg CallGraph, dom DominanceInfo, visited map[*ir.BasicBlock]bool) []ControlPoint {
	if visited[start] {
		return nil
	}
	visited[start] = true

	fn := start.Func
	frontier := dom.PostDominanceFrontier(fn, start)
	if len(frontier) == 0 {
		// start unconditionally post-dominates the function body: the
		// call always executes once fn is entered, so control over it
		// must come from fn's callers.
		var points []ControlPoint
		for _, callSite := range cg.Callers(fn) {
			points = append(points, climb(callSite.Block, cg, dom, visited)...)
		}
		return points
	}

	var points []ControlPoint
	for _, b := range frontier {
		term := b.Terminator()
		if term != nil && term.Opcode == ir.OpCondBr && len(term.Operands) > 0 {
			points = append(points, ControlPoint{Block: b, Predicate: term.Operands[0]})
		}
		// Whatever controls the frontier block controls start too.
		points = append(points, climb(b, cg, dom, visited)...)
	}
	return points
}

// Build constructs the full inter-procedural dependency graph for mod,
// given its memory-SSA form. It returns the graph plus the taint-source
// set: the MemVars written by an MPI_Comm_rank / MPI_Group_rank call.
func Build(mod *ir.Module, ssa *memssa.Module, regions *region.Model, cg CallGraph, dom DominanceInfo, extmodref ExternalModRef, opts Options) (*Graph, []*memssa.MemVar) {
	g := newGraph()
	var sources []*memssa.MemVar

	for _, name := range mod.Order {
		fn := mod.Functions[name]
		f := ssa.Funcs[fn]
		if f == nil || fn.External {
			continue
		}
		buildFunc(g, fn, f, regions, extmodref, opts, &sources)
	}

	for _, name := range mod.Order {
		fn := mod.Functions[name]
		f := ssa.Funcs[fn]
		if f == nil || fn.External {
			continue
		}
		for _, b := range fn.Blocks {
			for _, inst := range b.Insts {
				if inst.Opcode != ir.OpCall {
					continue
				}
				linkCall(g, inst, ssa, cg, dom, opts)
			}
		}
	}

	return g, sources
}

func buildFunc(g *Graph, fn *ir.Function, f *memssa.Func, regions *region.Model, extmodref ExternalModRef, opts Options, sources *[]*memssa.MemVar) {
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			switch inst.Opcode {
			case ir.OpBinOp, ir.OpCmp, ir.OpCast, ir.OpSelect, ir.OpGEP, ir.OpExtract, ir.OpInsert:
				result := g.ValueNode(inst)
				for _, op := range inst.Operands {
					g.addEdge(g.ValueNode(op), result, ValueToValue)
				}

			case ir.OpLoad:
				result := g.ValueNode(inst)
				for _, mu := range f.MusFor(inst) {
					g.addEdge(g.MemVarNode(mu.Var), result, MemToValue)
				}
				if !opts.NoPtrDep {
					g.addEdge(g.ValueNode(inst.Pointer), result, ValueToValue)
				}

			case ir.OpStore:
				for _, chi := range f.ChisFor(inst) {
					newNode := g.MemVarNode(chi.New)
					if chi.Old != nil {
						g.addEdge(g.MemVarNode(chi.Old), newNode, MemToMem)
					}
					g.addEdge(g.ValueNode(inst.Stored), newNode, ValueToMem)
					if !opts.NoPtrDep {
						g.addEdge(g.ValueNode(inst.Pointer), newNode, ValueToMem)
					}
				}

			case ir.OpPhi:
				result := g.ValueNode(inst)
				for _, edge := range inst.Incoming {
					g.addEdge(g.ValueNode(edge.Value), result, ValueToValue)
					if !opts.NoPhiPred {
						for _, guard := range blockGuards(edge.Pred) {
							g.addEdge(g.ValueNode(guard), result, ValueToValue)
						}
					}
				}

			case ir.OpCall:
				buildCallSite(g, inst, f, regions, extmodref, opts, sources)

			case ir.OpUnhandled:
				// Malformed IR: the value produces no edges, so taint
				// over-approximates around it.
				glog.V(1).Infof("unhandled instruction kind at %s:%d, skipped", inst.Loc.File, inst.Loc.Line)
			}
		}
	}

	// Memory φ-nodes, across every region touched in this function.
	for _, v := range f.AllVars() {
		if v.Def != memssa.DefPhi {
			continue
		}
		result := g.MemVarNode(v)
		for _, op := range v.Phi {
			if op.In == nil {
				continue
			}
			g.addEdge(g.MemVarNode(op.In), result, MemToMem)
			if !opts.NoPhiPred {
				for _, guard := range op.Guards {
					g.addEdge(g.ValueNode(guard), result, ValueToMem)
				}
			}
		}
	}
}

func buildCallSite(g *Graph, inst *ir.Inst, f *memssa.Func, regions *region.Model, extmodref ExternalModRef, opts Options, sources *[]*memssa.MemVar) {
	callee := inst.Callee
	if callee == nil {
		// Unresolved indirect call: no edges added, downstream results
		// stay approximate.
		glog.V(1).Infof("unresolved indirect call at %s:%d, dependence edges omitted", inst.Loc.File, inst.Loc.Line)
		return
	}

	// Rank-query taint sources.
	if isRankQuery(callee.Name) && len(inst.Args) > 1 {
		for _, r := range regions.RegionOf(inst.Args[1]) {
			if chi := f.ChiFor(inst, r); chi != nil {
				*sources = append(*sources, chi.New)
			}
		}
	}

	kind := ""
	if extmodref != nil {
		kind = extmodref.Classify(callee.Name)
	}
	switch kind {
	case "memcpy", "memmove":
		if len(inst.Args) >= 2 {
			dstRegions := regions.RegionOf(inst.Args[0])
			srcRegions := regions.RegionOf(inst.Args[1])
			for _, dr := range dstRegions {
				dstChi := f.ChiFor(inst, dr)
				if dstChi == nil {
					continue
				}
				dstNode := g.MemVarNode(dstChi.New)
				for _, sr := range srcRegions {
					if mu := f.MuFor(inst, sr); mu != nil {
						g.addEdge(g.MemVarNode(mu.Var), dstNode, MemToMem)
					}
				}
				if callee.ReturnsPointer {
					for _, rr := range regions.RegionOf(inst) {
						if retChi := f.ChiFor(inst, rr); retChi != nil && retChi != dstChi {
							g.addEdge(dstNode, g.MemVarNode(retChi.New), MemToMem)
						}
					}
				}
			}
		}
		return
	case "memset":
		if len(inst.Args) >= 2 {
			for _, dr := range regions.RegionOf(inst.Args[0]) {
				if chi := f.ChiFor(inst, dr); chi != nil {
					g.addEdge(g.ValueNode(inst.Args[1]), g.MemVarNode(chi.New), ValueToMem)
				}
			}
		}
		return
	}

	// Argument binding and the call-site Chi's own def/use edge run
	// here; return-value, EntryChi and return-side linkage need the
	// callee's memssa.Func and run in linkCall, once every function's
	// intraprocedural graph exists.
	for i, arg := range inst.Args {
		if i < len(callee.Params) {
			g.addEdge(g.ValueNode(arg), g.ValueNode(callee.Params[i]), ValueToValue)
		}
	}
	for _, chi := range f.ChisFor(inst) {
		newNode := g.MemVarNode(chi.New)
		if chi.Old != nil {
			g.addEdge(g.MemVarNode(chi.Old), newNode, MemToMem)
		}
	}
}

// linkCall adds the inter-procedural edges that need both caller and
// callee memssa.Func to exist: callee return value -> call result,
// caller's Mu MemVar -> callee's EntryChi, and callee's return-side
// MemVar -> call-site Chi's new MemVar.
func linkCall(g *Graph, inst *ir.Inst, ssa *memssa.Module, cg CallGraph, dom DominanceInfo, opts Options) {
	callee := inst.Callee
	if callee == nil || callee.External {
		addControlEdges(g, inst, cg, dom, opts)
		return
	}
	calleeF := ssa.Funcs[callee]
	callerF := ssa.Funcs[inst.Block.Func]
	if calleeF == nil || callerF == nil {
		addControlEdges(g, inst, cg, dom, opts)
		return
	}

	// Callee return values flow into the call result.
	result := g.ValueNode(inst)
	for _, b := range callee.Blocks {
		term := b.Terminator()
		if term != nil && term.Opcode == ir.OpReturn && len(term.Operands) > 0 {
			g.addEdge(g.ValueNode(term.Operands[0]), result, ValueToValue)
		}
	}

	// The caller's Mu at the call site flows into the callee's EntryChi
	// for the same region.
	for _, mu := range callerF.MusFor(inst) {
		if entry, ok := calleeF.Entry[mu.Region]; ok {
			g.addEdge(g.MemVarNode(mu.Var), g.MemVarNode(entry), MemToMem)
		}
	}

	// The callee's return-side MemVar flows back into the call-site Chi.
	for _, chi := range callerF.ChisFor(inst) {
		if vret, ok := calleeF.Exit[chi.Region]; ok {
			g.addEdge(g.MemVarNode(vret), g.MemVarNode(chi.New), MemToMem)
		}
	}

	addControlEdges(g, inst, cg, dom, opts)
}

func addControlEdges(g *Graph, inst *ir.Inst, cg CallGraph, dom DominanceInfo, opts Options) {
	callNode := g.CallNode(inst)
	if cg != nil {
		targets := cg.Callees(inst)
		g.CallTargets[callNode] = targets
	}
	if cg == nil || dom == nil {
		return
	}
	for _, cp := range InterproceduralControlPoints(inst, cg, dom) {
		g.addEdge(g.ValueNode(cp.Predicate), callNode, Control)
	}
}

func isRankQuery(name string) bool {
	switch name {
	case "MPI_Comm_rank", "MPI_Group_rank":
		return true
	default:
		return false
	}
}

func blockGuards(b *ir.BasicBlock) []ir.Value {
	term := b.Terminator()
	if term == nil || term.Opcode != ir.OpCondBr || len(term.Operands) == 0 {
		return nil
	}
	return []ir.Value{term.Operands[0]}
}

// EliminatePhis collapses equivalent 2-operand memory φ-nodes. Two
// MemVars are equivalent iff neither is a PhiDef and they have
// byte-identical outgoing and incoming edge sets. Runs to a fixed
// point per function.
func EliminatePhis(ssa *memssa.Module, g *Graph) {
	for _, f := range ssa.Funcs {
		for {
			if !eliminateOnePass(f, g) {
				break
			}
		}
	}
}

func eliminateOnePass(f *memssa.Func, g *Graph) bool {
	changed := false
	for _, v := range f.AllVars() {
		if v.Def != memssa.DefPhi || len(v.Phi) != 2 {
			continue
		}
		op0, op1 := v.Phi[0].In, v.Phi[1].In
		if op0 == nil || op1 == nil || op0 == op1 {
			continue
		}
		if op0.Def == memssa.DefPhi || op1.Def == memssa.DefPhi {
			continue
		}
		if !nodesEquivalent(g, g.MemVarNode(op0), g.MemVarNode(op1)) {
			continue
		}

		phiID := g.MemVarNode(v)
		op0ID := g.MemVarNode(op0)

		// Redirect all outgoing edges of the phi to operand #0.
		for _, e := range append([]Edge(nil), g.children[phiID]...) {
			g.addEdge(op0ID, e.To, e.Color)
		}
		// If the phi feeds another phi, rewrite that phi's operand slot.
		for _, other := range f.AllVars() {
			if other == v || other.Def != memssa.DefPhi {
				continue
			}
			for i, op := range other.Phi {
				if op.In == v {
					other.Phi[i].In = op0
				}
			}
		}

		g.removeNode(phiID)
		g.removeNode(g.MemVarNode(op1))
		f.RemovePhi(v.Block, v.Region)
		changed = true
	}
	return changed
}

// nodesEquivalent compares the full (unordered) edge sets of two nodes,
// combined across all four edge colors.
func nodesEquivalent(g *Graph, a, b NodeID) bool {
	return edgeSetEqual(g.children[a], g.children[b]) && edgeSetEqual(g.parents[a], g.parents[b])
}

func edgeSetEqual(a, b []Edge) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]Edge(nil), a...)
	bs := append([]Edge(nil), b...)
	less := func(s []Edge) func(i, j int) bool {
		return func(i, j int) bool {
			if s[i].To.Kind != s[j].To.Kind {
				return s[i].To.Kind < s[j].To.Kind
			}
			if s[i].To.Index != s[j].To.Index {
				return s[i].To.Index < s[j].To.Index
			}
			return s[i].Color < s[j].Color
		}
	}
	sort.Slice(as, less(as))
	sort.Slice(bs, less(bs))
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
