// Package memssa attaches Mu/Chi memory annotations to loads, stores,
// call sites, function entries and exits, then renames them into
// memory-SSA form by inserting φ-nodes at dominance frontiers and
// walking the dominator tree in pre-order, as Cytron et al. (1991)
// describe for scalar SSA, adapted from scalar allocs to memory
// regions.
//
// Annotation and renaming are one package, not two, because a MemVar's
// Version field only becomes meaningful once renaming has run.
package memssa

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"go.tansy.dev/comdiv/internal/ir"
	"go.tansy.dev/comdiv/internal/region"
)

// DefKind distinguishes the four ways a MemVar can be defined.
type DefKind int

const (
	DefEntry DefKind = iota
	DefStore
	DefCall
	DefPhi
)

// PhiOperand is one incoming (predecessor, value) pair of a PhiDef,
// together with the predicate Values that control reaching that
// predecessor.
type PhiOperand struct {
	Pred   *ir.BasicBlock
	In     *MemVar
	Guards []ir.Value // predicate Values controlling this incoming edge
}

// MemVar is a versioned name of a region at a program point.
type MemVar struct {
	Region  *region.Region
	Version int
	Def     DefKind
	Block   *ir.BasicBlock // nil for EntryDef (bound to function, not a block)
	Inst    *ir.Inst       // set for DefStore/DefCall
	Phi     []PhiOperand   // set for DefPhi
}

func (v *MemVar) String() string {
	return fmt.Sprintf("r%d.%d", v.Region.ID, v.Version)
}

// Mu records "instruction I uses version v of region R."
type Mu struct {
	Inst   *ir.Inst
	Region *region.Region
	Var    *MemVar
}

// Chi records "instruction I updates R, defining v_new from v_old."
type Chi struct {
	Inst   *ir.Inst
	Region *region.Region
	New    *MemVar
	Old    *MemVar
}

// ModRefOracle reports, for a callee, the regions it transitively
// modifies and references. Declared locally so memssa does not need to
// import collab; analyzer adapts collab.ModRefOracle to this shape.
type ModRefOracle interface {
	Mod(fn *ir.Function) []*region.Region
	Ref(fn *ir.Function) []*region.Region
}

// DominanceInfo is the subset of collab.DominanceInfo the renamer needs.
type DominanceInfo interface {
	IDom(fn *ir.Function, b *ir.BasicBlock) *ir.BasicBlock
	DominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock
}

// ExternalModRef classifies external-function names into canonical
// intrinsic identifiers (memcpy, memmove, memset, ...), mirrored from
// collab.ExternalModRef so memssa need not import collab. memcpy-family
// calls get dedicated Mu/Chi attached by argument position rather than
// through the generic ModRefOracle summary, since their mod/ref
// behavior depends on which argument is source and which is
// destination, not on the callee alone.
type ExternalModRef interface {
	Classify(name string) string
}

// Func holds every Mu/Chi and MemVar for one function, plus the
// per-region EntryChi map used when wiring inter-procedural edges.
type Func struct {
	Fn *ir.Function

	Mus  []*Mu
	Chis []*Chi

	// EntryDef per region, synthesized at function entry.
	Entry map[*region.Region]*MemVar
	// Exit is, per region, the MemVar reaching the function's (merged)
	// return side — used by DG construction rule 5.
	Exit map[*region.Region]*MemVar

	phis map[*ir.BasicBlock]map[*region.Region]*MemVar // PhiDef lookup
}

// RemovePhi deletes a PhiDef MemVar from f's bookkeeping, used by the
// depgraph package's φ-elimination pass. It does not rewrite
// any Mu/Chi that still reference the φ or the operand being folded
// away, and depgraph does not either: it rewrites only graph edges and
// the operand slots of other φ-nodes.
func (f *Func) RemovePhi(block *ir.BasicBlock, r *region.Region) {
	if m, ok := f.phis[block]; ok {
		delete(m, r)
	}
}

// AllVars returns every MemVar belonging to fn, de-duplicated.
func (f *Func) AllVars() []*MemVar {
	seen := make(map[*MemVar]bool)
	var out []*MemVar
	add := func(v *MemVar) {
		if v != nil && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, v := range f.Entry {
		add(v)
	}
	for _, c := range f.Chis {
		add(c.Old)
		add(c.New)
	}
	for _, mu := range f.Mus {
		add(mu.Var)
	}
	for _, byRegion := range f.phis {
		for _, v := range byRegion {
			add(v)
		}
	}
	return out
}

// MusFor returns every Mu attached to inst, one per region it reads.
func (f *Func) MusFor(inst *ir.Inst) []*Mu {
	var out []*Mu
	for _, mu := range f.Mus {
		if mu.Inst == inst {
			out = append(out, mu)
		}
	}
	return out
}

// ChisFor returns every Chi attached to inst, one per region it writes.
func (f *Func) ChisFor(inst *ir.Inst) []*Chi {
	var out []*Chi
	for _, chi := range f.Chis {
		if chi.Inst == inst {
			out = append(out, chi)
		}
	}
	return out
}

// MuFor returns the Mu attached to inst for region r, nil if none.
func (f *Func) MuFor(inst *ir.Inst, r *region.Region) *Mu {
	for _, mu := range f.Mus {
		if mu.Inst == inst && mu.Region == r {
			return mu
		}
	}
	return nil
}

// ChiFor returns the Chi attached to inst for region r, nil if none.
func (f *Func) ChiFor(inst *ir.Inst, r *region.Region) *Chi {
	for _, chi := range f.Chis {
		if chi.Inst == inst && chi.Region == r {
			return chi
		}
	}
	return nil
}

// Module is the memssa result for every function in an ir.Module.
type Module struct {
	Funcs map[*ir.Function]*Func
}

// ErrInvariant marks a broken memory-SSA invariant. The analysis
// cannot continue past one; callers abort rather than work on from a
// malformed renaming.
var ErrInvariant = errors.New("memssa: invariant violation")

// Verify checks the renaming invariants on every defined function:
// version numbers are unique per region within a function, every Chi
// defines a fresh version from an operand version, every Mu reads a
// version, and every φ carries at least two operands.
func Verify(m *Module) error {
	for fn, f := range m.Funcs {
		if fn.External {
			continue
		}
		seen := make(map[*region.Region]map[int]bool)
		for _, v := range f.AllVars() {
			byRegion := seen[v.Region]
			if byRegion == nil {
				byRegion = make(map[int]bool)
				seen[v.Region] = byRegion
			}
			if byRegion[v.Version] {
				return fmt.Errorf("%w: duplicate version r%d.%d in %s", ErrInvariant, v.Region.ID, v.Version, fn.Name)
			}
			byRegion[v.Version] = true
			if v.Def == DefPhi && len(v.Phi) < 2 {
				return fmt.Errorf("%w: φ for r%d in %s has %d operands", ErrInvariant, v.Region.ID, fn.Name, len(v.Phi))
			}
		}
		for _, chi := range f.Chis {
			if chi.New == nil || chi.Old == nil {
				return fmt.Errorf("%w: chi without versions at %s in %s", ErrInvariant, chi.Inst, fn.Name)
			}
		}
		for _, mu := range f.Mus {
			if mu.Var == nil {
				return fmt.Errorf("%w: mu without an operand version at %s in %s", ErrInvariant, mu.Inst, fn.Name)
			}
		}
	}
	return nil
}

// Fprint writes a human-readable rendering of f's memory-SSA form to
// w, the -dump-ssa output: per-region entry versions, then each
// block's φ-nodes and the Mu/Chi attached to its instructions.
func Fprint(w io.Writer, f *Func) {
	fmt.Fprintf(w, "func %s:\n", f.Fn.Name)
	for _, entry := range sortedByRegion(f.Entry) {
		fmt.Fprintf(w, "  entry %s\n", entry)
	}
	for _, b := range f.Fn.Blocks {
		fmt.Fprintf(w, "  block %s:\n", b.Name)
		if byRegion, ok := f.phis[b]; ok {
			for _, phi := range sortedByRegion(byRegion) {
				fmt.Fprintf(w, "    phi %s =", phi)
				for _, op := range phi.Phi {
					pred := "?"
					if op.Pred != nil {
						pred = op.Pred.Name
					}
					fmt.Fprintf(w, " [%s, %s]", memvarName(op.In), pred)
				}
				fmt.Fprintln(w)
			}
		}
		for _, inst := range b.Insts {
			for _, mu := range f.MusFor(inst) {
				fmt.Fprintf(w, "    mu(%s) at %s\n", memvarName(mu.Var), inst)
			}
			for _, chi := range f.ChisFor(inst) {
				fmt.Fprintf(w, "    chi %s <- %s at %s\n", memvarName(chi.New), memvarName(chi.Old), inst)
			}
		}
	}
}

func memvarName(v *MemVar) string {
	if v == nil {
		return "?"
	}
	return v.String()
}

func sortedByRegion(m map[*region.Region]*MemVar) []*MemVar {
	out := make([]*MemVar, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region.ID < out[j].Region.ID })
	return out
}

// Build runs annotation then φ-insertion and renaming over every
// function in mod, in isolation per function —
// memory-SSA is intraprocedural; inter-procedural linkage is added
// later by depgraph's call-site rules.
func Build(mod *ir.Module, regions *region.Model, modref ModRefOracle, dom DominanceInfo, extmodref ExternalModRef) *Module {
	out := &Module{Funcs: make(map[*ir.Function]*Func)}
	for _, name := range mod.Order {
		fn := mod.Functions[name]
		out.Funcs[fn] = buildFunc(fn, regions, modref, dom, extmodref)
	}
	return out
}

func buildFunc(fn *ir.Function, regions *region.Model, modref ModRefOracle, dom DominanceInfo, extmodref ExternalModRef) *Func {
	f := &Func{
		Fn:    fn,
		Entry: make(map[*region.Region]*MemVar),
		Exit:  make(map[*region.Region]*MemVar),
		phis:  make(map[*ir.BasicBlock]map[*region.Region]*MemVar),
	}

	if fn.External {
		annotateExternal(f, fn, regions)
		return f
	}

	annotate(f, fn, regions, modref, extmodref)
	buildSSA(f, fn, dom)
	return f
}

// annotateExternal synthesizes EntryChi/ExitChi pairs for every
// pointer-typed parameter of an external declaration, and for its
// var-args bundle if variadic.
func annotateExternal(f *Func, fn *ir.Function, regions *region.Model) {
	for _, p := range fn.Params {
		for _, r := range regions.RegionOf(p) {
			entry := &MemVar{Region: r, Version: 0, Def: DefEntry}
			f.Entry[r] = entry
			f.Exit[r] = &MemVar{Region: r, Version: 1, Def: DefCall} // synthetic ExitChi
		}
	}
	if fn.Variadic {
		// The var-args bundle behaves as one more pointer-typed
		// parameter: one region of its own, with an entry version the
		// callee may read and an exit version it may have updated.
		r := regions.VarArgsRegion(fn)
		f.Entry[r] = &MemVar{Region: r, Version: 0, Def: DefEntry}
		f.Exit[r] = &MemVar{Region: r, Version: 1, Def: DefCall}
	}
	if fn.ReturnsPointer {
		// A pointer-returning external function updates the region(s)
		// its return value may alias; resolved lazily by the caller's
		// call-site Chi via the pointer analysis, so nothing to record
		// here beyond the parameter ExitChis above.
	}
}

// annotate attaches Mu/Chi skeletons (region only, no
// version yet — renaming fills that in) to every load, store, call site
// and function entry.
func annotate(f *Func, fn *ir.Function, regions *region.Model, modref ModRefOracle, extmodref ExternalModRef) {
	// EntryChi: one per region the function or its transitive callees
	// may read or write, approximated as the union of every region
	// touched by a Mu/Chi discovered below, computed in a first pass so
	// versions can be seeded at entry in the second.
	touched := make(map[*region.Region]bool)

	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			switch inst.Opcode {
			case ir.OpLoad:
				for _, r := range regions.RegionOf(inst.Pointer) {
					touched[r] = true
				}
			case ir.OpStore:
				for _, r := range regions.RegionOf(inst.Pointer) {
					touched[r] = true
				}
			case ir.OpCall:
				if inst.Callee == nil {
					continue
				}
				if kind := classify(extmodref, inst.Callee.Name); kind != "" {
					for _, r := range memcpyTouched(kind, regions, inst) {
						touched[r] = true
					}
					continue
				}
				for _, r := range modref.Ref(inst.Callee) {
					touched[r] = true
				}
				for _, r := range modref.Mod(inst.Callee) {
					touched[r] = true
				}
				if inst.Callee.ReturnsPointer {
					for _, r := range regions.RegionOf(inst) {
						touched[r] = true
					}
				}
			}
		}
	}

	for r := range touched {
		f.Entry[r] = &MemVar{Region: r, Version: 0, Def: DefEntry}
	}

	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			switch inst.Opcode {
			case ir.OpLoad:
				for _, r := range regions.RegionOf(inst.Pointer) {
					mu := &Mu{Inst: inst, Region: r}
					f.Mus = append(f.Mus, mu)
				}
			case ir.OpStore:
				for _, r := range regions.RegionOf(inst.Pointer) {
					chi := &Chi{Inst: inst, Region: r}
					f.Chis = append(f.Chis, chi)
				}
			case ir.OpCall:
				if inst.Callee == nil {
					continue
				}
				// memcpy/memmove/memset get dedicated Mu/Chi by argument
				// position rather than the generic callee summary, since
				// which argument is source vs. destination determines
				// the mod/ref split.
				switch classify(extmodref, inst.Callee.Name) {
				case "memcpy", "memmove":
					if len(inst.Args) >= 2 {
						for _, r := range regions.RegionOf(inst.Args[1]) {
							f.Mus = append(f.Mus, &Mu{Inst: inst, Region: r})
						}
						for _, r := range regions.RegionOf(inst.Args[0]) {
							f.Chis = append(f.Chis, &Chi{Inst: inst, Region: r})
						}
						if inst.Callee.ReturnsPointer {
							for _, r := range regions.RegionOf(inst) {
								f.Chis = append(f.Chis, &Chi{Inst: inst, Region: r})
							}
						}
					}
					continue
				case "memset":
					if len(inst.Args) >= 1 {
						for _, r := range regions.RegionOf(inst.Args[0]) {
							f.Chis = append(f.Chis, &Chi{Inst: inst, Region: r})
						}
					}
					continue
				}
				for _, r := range modref.Ref(inst.Callee) {
					f.Mus = append(f.Mus, &Mu{Inst: inst, Region: r})
				}
				for _, r := range modref.Mod(inst.Callee) {
					f.Chis = append(f.Chis, &Chi{Inst: inst, Region: r})
				}
				if inst.Callee.ReturnsPointer {
					for _, r := range regions.RegionOf(inst) {
						f.Chis = append(f.Chis, &Chi{Inst: inst, Region: r})
					}
				}
			}
		}
	}
}

func classify(extmodref ExternalModRef, name string) string {
	if extmodref == nil {
		return ""
	}
	return extmodref.Classify(name)
}

func memcpyTouched(kind string, regions *region.Model, inst *ir.Inst) []*region.Region {
	var out []*region.Region
	switch kind {
	case "memcpy", "memmove":
		if len(inst.Args) >= 2 {
			out = append(out, regions.RegionOf(inst.Args[0])...)
			out = append(out, regions.RegionOf(inst.Args[1])...)
			if inst.Callee != nil && inst.Callee.ReturnsPointer {
				out = append(out, regions.RegionOf(inst)...)
			}
		}
	case "memset":
		if len(inst.Args) >= 1 {
			out = append(out, regions.RegionOf(inst.Args[0])...)
		}
	}
	return out
}

// domChildren builds the dominator-tree children map for fn from the
// IDom relation, so renaming can walk it in pre-order.
func domChildren(fn *ir.Function, dom DominanceInfo) map[*ir.BasicBlock][]*ir.BasicBlock {
	children := make(map[*ir.BasicBlock][]*ir.BasicBlock)
	for _, b := range fn.Blocks {
		if b == fn.Entry {
			continue
		}
		idom := dom.IDom(fn, b)
		if idom != nil {
			children[idom] = append(children[idom], b)
		}
	}
	return children
}

// buildSSA inserts φ-nodes at iterated dominance frontiers, then
// renames in a pre-order dominator-tree walk with a per-region version
// counter and stack.
func buildSSA(f *Func, fn *ir.Function, dom DominanceInfo) {
	if fn.Entry == nil {
		return
	}

	// Step 1: φ-insertion. For each region, compute the set of blocks
	// with a Chi on it and insert PhiDef at the iterated dominance
	// frontier.
	defBlocksByRegion := make(map[*region.Region]map[*ir.BasicBlock]bool)
	for _, chi := range f.Chis {
		m := defBlocksByRegion[chi.Region]
		if m == nil {
			m = make(map[*ir.BasicBlock]bool)
			defBlocksByRegion[chi.Region] = m
		}
		m[chi.Inst.Block] = true
	}
	// The synthesized function-entry Chi counts as a definition in the
	// entry block; each region has at most one EntryChi per function.
	for r := range f.Entry {
		m := defBlocksByRegion[r]
		if m == nil {
			m = make(map[*ir.BasicBlock]bool)
			defBlocksByRegion[r] = m
		}
		m[fn.Entry] = true
	}

	for r, defBlocks := range defBlocksByRegion {
		hasPhi := make(map[*ir.BasicBlock]bool)
		var worklist []*ir.BasicBlock
		for b := range defBlocks {
			worklist = append(worklist, b)
		}
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, v := range dom.DominanceFrontier(fn, b) {
				if hasPhi[v] {
					continue
				}
				hasPhi[v] = true
				m := f.phis[v]
				if m == nil {
					m = make(map[*region.Region]*MemVar)
					f.phis[v] = m
				}
				m[r] = &MemVar{Region: r, Def: DefPhi, Block: v}
				if !defBlocks[v] {
					defBlocks[v] = true
					worklist = append(worklist, v)
				}
			}
		}
	}

	// Step 2: renaming. Per-region version counter (version numbers are
	// unique per region within the function) and a stack of
	// "current" MemVar per region, threaded through a pre-order
	// dominator-tree walk.
	children := domChildren(fn, dom)
	counters := make(map[*region.Region]int)
	fresh := func(r *region.Region) int {
		v := counters[r]
		counters[r]++
		return v
	}

	// muByInst/chiByInst let the walk find the Mu/Chi attached to each
	// instruction without a per-instruction linear scan.
	muByInst := make(map[*ir.Inst][]*Mu)
	for _, mu := range f.Mus {
		muByInst[mu.Inst] = append(muByInst[mu.Inst], mu)
	}
	chiByInst := make(map[*ir.Inst][]*Chi)
	for _, chi := range f.Chis {
		chiByInst[chi.Inst] = append(chiByInst[chi.Inst], chi)
	}

	stack := make(map[*region.Region][]*MemVar)
	for r, entry := range f.Entry {
		entry.Version = fresh(r)
		stack[r] = append(stack[r], entry)
	}

	var walk func(b *ir.BasicBlock)
	walk = func(b *ir.BasicBlock) {
		pushed := make(map[*region.Region]int) // count of pushes this block, per region

		if byRegion, ok := f.phis[b]; ok {
			for r, phi := range byRegion {
				phi.Version = fresh(r)
				stack[r] = append(stack[r], phi)
				pushed[r]++
			}
		}

		for _, inst := range b.Insts {
			for _, mu := range muByInst[inst] {
				s := stack[mu.Region]
				if len(s) > 0 {
					mu.Var = s[len(s)-1]
				}
			}
			for _, chi := range chiByInst[inst] {
				s := stack[chi.Region]
				if len(s) > 0 {
					chi.Old = s[len(s)-1]
				}
				chi.New = &MemVar{Region: chi.Region, Def: DefStore, Block: b, Inst: inst}
				if inst.Opcode == ir.OpCall {
					chi.New.Def = DefCall
				}
				chi.New.Version = fresh(chi.Region)
				stack[chi.Region] = append(stack[chi.Region], chi.New)
				pushed[chi.Region]++
			}
		}

		for _, succ := range b.Succs {
			byRegion, ok := f.phis[succ]
			if !ok {
				continue
			}
			predIdx := succ.PredIndex(b)
			for r, phi := range byRegion {
				s := stack[r]
				var incoming *MemVar
				if len(s) > 0 {
					incoming = s[len(s)-1]
				}
				guards := blockGuards(b)
				for len(phi.Phi) <= predIdx {
					phi.Phi = append(phi.Phi, PhiOperand{})
				}
				phi.Phi[predIdx] = PhiOperand{Pred: b, In: incoming, Guards: guards}
			}
		}

		for _, child := range children[b] {
			walk(child)
		}

		for r, n := range pushed {
			stack[r] = stack[r][:len(stack[r])-n]
		}
	}
	walk(fn.Entry)

	// Record the function's return-side MemVar per region: the version
	// live at each exit block, used by DG construction rule 5. If
	// exits disagree (should not happen once φ-insertion has run, since
	// the frontier computation guarantees a merge point), the first
	// writer wins; this is a best-effort summary, not itself load
	// bearing for soundness.
	for _, exit := range fn.Exits() {
		for r := range f.Entry {
			if v := currentAt(f, exit, r); v != nil {
				if _, ok := f.Exit[r]; !ok {
					f.Exit[r] = v
				}
			}
		}
	}
}

// currentAt looks up, for a region, the MemVar live at the end of
// block b by replaying the block's Chis/PhiDef (cheap: blocks are
// small, and this only runs once per (exit, region) pair).
func currentAt(f *Func, b *ir.BasicBlock, r *region.Region) *MemVar {
	var current *MemVar
	if byRegion, ok := f.phis[b]; ok {
		if v, ok := byRegion[r]; ok {
			current = v
		}
	}
	for _, inst := range b.Insts {
		for _, chi := range f.Chis {
			if chi.Region == r && chi.Inst == inst {
				current = chi.New
			}
		}
	}
	if current == nil {
		current = f.Entry[r]
	}
	return current
}

// blockGuards returns the predicate Value controlling b's terminator,
// if b ends in a conditional branch — used to populate a PhiDef's
// Guards and, downstream, the predicate→φ edges in depgraph.
func blockGuards(b *ir.BasicBlock) []ir.Value {
	term := b.Terminator()
	if term == nil || term.Opcode != ir.OpCondBr || len(term.Operands) == 0 {
		return nil
	}
	return []ir.Value{term.Operands[0]}
}
