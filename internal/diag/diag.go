// Package diag collects and orders the warnings the divergence checker
// emits. Ordering is the load-bearing part: warnings come out in a
// stable (file, line, name) order, so two runs over the same input
// never disagree only on presentation order.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"go.tansy.dev/comdiv/internal/ir"
)

// Warning is one divergence finding.
type Warning struct {
	Loc       ir.DebugLoc
	Name      string   // the collective's canonical name
	Color     string   // its family (MPI/OMP/UPC/CUDA)
	Func      string   // enclosing function
	Site      *ir.Inst // the flagged call instruction, for back ends that rewrite IR
	Message   string
	TaintedBy []ir.DebugLoc // debug locations of the tainted predicates implicated, if any
}

// String renders a warning as "<file>:<line>: <color> collective
// <name> in <func> may not be called by all processes: <message>
// (conditionals: <file>:<line>, ...)", the trailing list naming the
// tainted predicates that control the call.
func (w Warning) String() string {
	s := fmt.Sprintf("%s:%d: %s collective %q in %s may not be called by all processes",
		w.Loc.File, w.Loc.Line, w.Color, w.Name, w.Func)
	if w.Message != "" {
		s += ": " + w.Message
	}
	if len(w.TaintedBy) > 0 {
		locs := make([]string, len(w.TaintedBy))
		for i, loc := range w.TaintedBy {
			locs[i] = fmt.Sprintf("%s:%d", loc.File, loc.Line)
		}
		s += " (conditionals: " + strings.Join(locs, ", ") + ")"
	}
	return s
}

// Collection accumulates warnings and yields them in a stable order.
type Collection struct {
	warnings []Warning
}

func (c *Collection) Add(w Warning) { c.warnings = append(c.warnings, w) }

// Sorted returns every collected warning ordered by (file, line, name).
func (c *Collection) Sorted() []Warning {
	out := append([]Warning(nil), c.warnings...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Loc.File != b.Loc.File {
			return a.Loc.File < b.Loc.File
		}
		if a.Loc.Line != b.Loc.Line {
			return a.Loc.Line < b.Loc.Line
		}
		return a.Name < b.Name
	})
	return out
}

// Len reports how many warnings have been collected.
func (c *Collection) Len() int { return len(c.warnings) }
