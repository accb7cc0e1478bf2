// Package instrument implements the optional instrumentation back end:
// for every warned collective call site it plans a call to a runtime
// check function (check_collective_MPI/OMP/UPC/return, named after the
// call site's family) immediately before the original call, so an
// instrumented binary can assert at run time that every process really
// did reach it together.
//
// Disabled by the -no-instrumentation option; analysis-only runs never
// call Plan.
package instrument

import (
	"fmt"

	"go.tansy.dev/comdiv/internal/diag"
	"go.tansy.dev/comdiv/internal/ir"
)

// CheckFunctionName returns the runtime check function to insert ahead
// of a warned call in family color (MPI/OMP/UPC/CUDA falls back to the
// generic "return" form, since CUDA's divergence model has no separate
// runtime probe in this tool's scope).
func CheckFunctionName(color string) string {
	switch color {
	case "MPI":
		return "check_collective_MPI"
	case "OMP":
		return "check_collective_OMP"
	case "UPC":
		return "check_collective_UPC"
	default:
		return "check_collective_return"
	}
}

// Insertion is one instrumentation point: a check call to synthesize
// immediately before At.
type Insertion struct {
	At      *ir.Inst
	Callee  string
	Warning diag.Warning
}

// Plan turns a set of warnings into the ordered list of insertions an
// IR-mutating back end should apply. It does not mutate the module
// itself: the parser/IR builder is an external collaborator, so
// instrument only decides what to insert, leaving the actual rewriting
// to whatever owns IR construction.
func Plan(warnings []diag.Warning, siteOf func(diag.Warning) *ir.Inst) []Insertion {
	var out []Insertion
	for _, w := range warnings {
		inst := siteOf(w)
		if inst == nil {
			continue
		}
		out = append(out, Insertion{
			At:      inst,
			Callee:  CheckFunctionName(w.Color),
			Warning: w,
		})
	}
	return out
}

// String renders an insertion the way a textual IR dump would show the
// synthesized call, useful for -dump-ssa-style debugging output.
func (i Insertion) String() string {
	return fmt.Sprintf("%s:%d: insert call %s() before %s", i.Warning.Loc.File, i.Warning.Loc.Line, i.Callee, i.At.String())
}
