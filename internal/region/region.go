// Package region maps every allocation site and distinguished global
// to a MemoryRegion, and answers RegionOf queries by delegating to the
// pointer-to analysis.
//
// Allocation-site and global regions are created eagerly by Build; a
// var-args bundle region is created on the first VarArgsRegion call for
// its function. Regions live for the lifetime of the module and are
// never mutated once created.
package region

import (
	"sort"

	"go.tansy.dev/comdiv/internal/ir"
)

// Kind distinguishes the storage class a Region abstracts.
type Kind int

const (
	KindHeap Kind = iota
	KindStack
	KindGlobal
)

func (k Kind) String() string {
	switch k {
	case KindHeap:
		return "heap"
	case KindStack:
		return "stack"
	case KindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Region is an equivalence class of storage cells the pointer-to
// abstraction cannot tell apart. It is identified by its representative
// allocation Value.
type Region struct {
	ID   int
	Site ir.Value
	Kind Kind
}

// RegionSite implements collab.Region without importing collab — region
// is a leaf package the external-collaborator contracts point back at.
func (r *Region) RegionSite() ir.Value { return r.Site }

// PointerAnalysis is the subset of collab.PointerAnalysis Build needs.
// Declared locally (rather than importing collab) to keep region a leaf
// package with no dependency on the collaborator-contract package.
type PointerAnalysis interface {
	PointsTo(v ir.Value) []ir.Value
	AllAllocationSites() []ir.Value
}

// Model is the built region table for one module.
type Model struct {
	regions []*Region
	bySite  map[ir.Value]*Region
	cache   map[ir.Value][]*Region
	pa      PointerAnalysis
}

// Build creates one Region per allocation site reported by pa, plus one
// per pointer-typed global in mod. This is the coarsest abstraction
// that still lets Mu/Chi carry meaningful version numbers.
func Build(mod *ir.Module, pa PointerAnalysis) *Model {
	m := &Model{
		bySite: make(map[ir.Value]*Region),
		cache:  make(map[ir.Value][]*Region),
		pa:     pa,
	}

	for _, site := range pa.AllAllocationSites() {
		m.newRegion(site, KindHeap)
	}

	for _, name := range mod.Order {
		g := mod.Globals[name]
		if g != nil && g.PointerTyped {
			m.newRegion(g, KindGlobal)
		}
	}
	// Globals map may contain entries not reachable via Order (defensive
	// against a parser that doesn't populate Order); pick those up too,
	// in name order so region IDs do not depend on map iteration.
	names := make([]string, 0, len(mod.Globals))
	for name := range mod.Globals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if g := mod.Globals[name]; g.PointerTyped {
			if _, ok := m.bySite[g]; !ok {
				m.newRegion(g, KindGlobal)
			}
		}
	}

	return m
}

func (m *Model) newRegion(site ir.Value, kind Kind) *Region {
	if r, ok := m.bySite[site]; ok {
		return r
	}
	r := &Region{ID: len(m.regions), Site: site, Kind: kind}
	m.regions = append(m.regions, r)
	m.bySite[site] = r
	return r
}

// VarArgsRegion returns the region standing for fn's var-args bundle,
// creating it on first use. The bundle has no allocation site of its
// own, so the function value itself is the representative site.
func (m *Model) VarArgsRegion(fn *ir.Function) *Region {
	return m.newRegion(fn, KindStack)
}

// RegionOf returns the set of regions v may point to.
func (m *Model) RegionOf(v ir.Value) []*Region {
	if rs, ok := m.cache[v]; ok {
		return rs
	}
	var out []*Region
	if g, ok := v.(*ir.Global); ok && g.PointerTyped {
		if r, ok := m.bySite[g]; ok {
			out = append(out, r)
		}
	}
	for _, site := range m.pa.PointsTo(v) {
		if r, ok := m.bySite[site]; ok {
			out = append(out, r)
		}
	}
	m.cache[v] = out
	return out
}

// AllRegions returns every region in the module, in creation order
// (stable: allocation sites first, then globals).
func (m *Model) AllRegions() []*Region {
	return m.regions
}

// RegionOfSite returns the Region created for a given representative
// site, if one exists — used by tests and by the analyzer's mod/ref
// adapter to look a region back up by its allocation Value.
func (m *Model) RegionOfSite(site ir.Value) (*Region, bool) {
	r, ok := m.bySite[site]
	return r, ok
}
