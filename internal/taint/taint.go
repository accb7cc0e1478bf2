// Package taint flood-fills the dependency graph from the rank-query
// taint sources depgraph.Build identifies, then runs a second pass
// marking which call sites are themselves tainted (control- or
// data-dependent on a tainted predicate).
package taint

import (
	"go.tansy.dev/comdiv/internal/depgraph"
	"go.tansy.dev/comdiv/internal/ir"
)

// Set is the result of flood-filling taint from a set of sources: every
// node (Value or MemVar) reachable by following DG edges forward.
type Set struct {
	nodes map[depgraph.NodeID]bool
	all   bool // true under -no-dataflow: every node reports tainted
}

// Tainted reports whether n is reachable from a taint source.
func (s *Set) Tainted(n depgraph.NodeID) bool { return s.all || s.nodes[n] }

// AllTainted returns a Set that reports every node as tainted,
// realizing the -no-dataflow option (warn on every NAVS predicate)
// without special-casing the checker: it simply never finds an
// untainted control predicate to filter on.
func AllTainted() *Set { return &Set{all: true} }

// Nodes returns every tainted node, in no particular order.
func (s *Set) Nodes() []depgraph.NodeID {
	out := make([]depgraph.NodeID, 0, len(s.nodes))
	for n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// Flood runs the taint flood-fill from the rank-query source MemVars.
// The traversal is a single BFS over the union of outgoing edges
// regardless of color, since all four edge families carry a tainted
// value forward.
func Flood(g *depgraph.Graph, sources []depgraph.NodeID) *Set {
	visited := make(map[depgraph.NodeID]bool)
	var queue []depgraph.NodeID
	for _, s := range sources {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, s)
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.Children(n) {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	return &Set{nodes: visited}
}

// Path reconstructs one shortest taint path from any of sources to
// sink, following the same forward edges Flood does. Returns nil when
// sink is unreachable. Used to render the -dot-taint-paths output for
// a warning: sink is the warned call's node, sources are the rank
// queries.
func Path(g *depgraph.Graph, sources []depgraph.NodeID, sink depgraph.NodeID) []depgraph.NodeID {
	parent := make(map[depgraph.NodeID]depgraph.NodeID)
	visited := make(map[depgraph.NodeID]bool)
	var queue []depgraph.NodeID
	for _, s := range sources {
		if !visited[s] {
			visited[s] = true
			queue = append(queue, s)
		}
		if s == sink {
			return []depgraph.NodeID{s}
		}
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, e := range g.Children(n) {
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			parent[e.To] = n
			if e.To == sink {
				var path []depgraph.NodeID
				for at := sink; ; {
					path = append([]depgraph.NodeID{at}, path...)
					p, ok := parent[at]
					if !ok {
						return path
					}
					at = p
				}
			}
			queue = append(queue, e.To)
		}
	}
	return nil
}

// TaintedCalls is the second pass: a call site is tainted if its
// control node (the predicates in its inter-procedural post-dominance
// frontier) is tainted, or if any of its argument Values are. The
// taint then closes transitively over the call graph: a tainted
// caller taints every call site inside its callees, recursively, since
// whether those run at all depends on the same predicate. calls is
// every OpCall instruction the caller cares about; taintedness is
// defined for any call.
func TaintedCalls(g *depgraph.Graph, set *Set, calls []*ir.Inst) map[*ir.Inst]bool {
	out := make(map[*ir.Inst]bool)
	callsIn := make(map[*ir.Function][]*ir.Inst)
	for _, call := range calls {
		if call.Block != nil && call.Block.Func != nil {
			callsIn[call.Block.Func] = append(callsIn[call.Block.Func], call)
		}
	}

	var queue []*ir.Inst
	for _, call := range calls {
		out[call] = directlyTainted(g, set, call)
		if out[call] {
			queue = append(queue, call)
		}
	}

	for len(queue) > 0 {
		call := queue[0]
		queue = queue[1:]
		for _, callee := range calleesOf(g, call) {
			for _, inner := range callsIn[callee] {
				if !out[inner] {
					out[inner] = true
					queue = append(queue, inner)
				}
			}
		}
	}
	return out
}

func directlyTainted(g *depgraph.Graph, set *Set, call *ir.Inst) bool {
	node := g.CallNode(call)
	if set.Tainted(node) {
		return true
	}
	for _, e := range g.Parents(node) {
		if e.Color == depgraph.Control && set.Tainted(e.To) {
			return true
		}
	}
	for _, arg := range call.Args {
		if set.Tainted(g.ValueNode(arg)) {
			return true
		}
	}
	return false
}

func calleesOf(g *depgraph.Graph, call *ir.Inst) []*ir.Function {
	if targets := g.CallTargets[g.CallNode(call)]; len(targets) > 0 {
		return targets
	}
	if call.Callee != nil {
		return []*ir.Function{call.Callee}
	}
	return nil
}
