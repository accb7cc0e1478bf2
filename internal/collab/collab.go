// Package collab declares the external collaborators the analyzer
// consumes: the pointer-to analysis, dominance services, the call
// graph, the mod/ref oracle, and the collective-name table. None of
// these are implemented here; the IR parser, Andersen analysis,
// dominator-tree builder and loop detector all live outside this
// repository. The one implementation the repository carries is the
// default name-based collective table, collective.DefaultTable.
// Production callers supply real implementations; tests use the
// generated-style doubles in collabmock.
package collab

import "go.tansy.dev/comdiv/internal/ir"

// PointerAnalysis answers points-to queries over allocation sites.
type PointerAnalysis interface {
	PointsTo(v ir.Value) []ir.Value // representative allocation-site Values
	AllAllocationSites() []ir.Value
}

// Loop is one natural loop of a function's loop forest.
type Loop struct {
	Header    *ir.BasicBlock
	Body      []*ir.BasicBlock // includes Header
	Preheader *ir.BasicBlock   // nil if none
}

// DominanceInfo exposes per-function dominator tree, dominance
// frontier, post-dominator tree, post-dominance frontier and loop
// forest.
type DominanceInfo interface {
	Dominates(fn *ir.Function, a, b *ir.BasicBlock) bool
	IDom(fn *ir.Function, b *ir.BasicBlock) *ir.BasicBlock
	DominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock

	PostDominates(fn *ir.Function, a, b *ir.BasicBlock) bool
	IPostDom(fn *ir.Function, b *ir.BasicBlock) *ir.BasicBlock
	PostDominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock

	Loops(fn *ir.Function) []*Loop
}

// CallGraph resolves callees (including indirect calls) and exposes the
// per-module call graph's strongly-connected components in reverse
// topological order, used by the collective-summary reverse-BFS driver.
type CallGraph interface {
	Callees(call *ir.Inst) []*ir.Function
	Callers(fn *ir.Function) []*ir.Inst
	// SCCsReverseTopological returns each strongly-connected component
	// of the call graph, callees before callers.
	SCCsReverseTopological() [][]*ir.Function
}

// ModRefOracle reports, for any callee (including external
// declarations), the memory regions it transitively modifies and
// references.
type ModRefOracle interface {
	Mod(fn *ir.Function) []Region
	Ref(fn *ir.Function) []Region
}

// Region is the collaborator-facing view of a memory region: just
// enough identity for ModRefOracle and PointerAnalysis to agree with
// internal/region's Model without importing it (region imports collab,
// not the other way around).
type Region interface {
	RegionSite() ir.Value
}

// Color identifies which collective-call family a callee belongs to.
type Color int

const (
	ColorNone Color = iota
	ColorMPI
	ColorOMP
	ColorUPC
	ColorCUDA
)

func (c Color) String() string {
	switch c {
	case ColorMPI:
		return "MPI"
	case ColorOMP:
		return "OMP"
	case ColorUPC:
		return "UPC"
	case ColorCUDA:
		return "CUDA"
	default:
		return "none"
	}
}

// CollectiveTable answers whether a callee is a collective operation,
// which family it belongs to, and which argument index (if any) carries
// its communicator/group handle.
type CollectiveTable interface {
	IsCollective(fn *ir.Function) bool
	Color(fn *ir.Function) Color
	CommArgIndex(c Color) int // -1 if the family has no communicator argument
	Name(fn *ir.Function) string
}

// ExternalModRef is the fallback table for library calls (memcpy,
// memmove, memset, MPI_*, ...) whose mod/ref behavior is known by name
// rather than by summarizing a body. The table is keyed by canonical
// intrinsic identifier rather than matched by substring, which is
// fragile under name mangling and versioned symbol suffixes.
type ExternalModRef interface {
	// Classify returns the canonical intrinsic identifier for name, or
	// "" if name is not a recognized external intrinsic.
	Classify(name string) string
}
