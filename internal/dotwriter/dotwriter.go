// Package dotwriter renders the dependency graph and per-warning
// tainted-path visualizations as Graphviz DOT, for the -dot-depgraph
// and -dot-taint-paths outputs.
package dotwriter

import (
	"fmt"
	"io"

	"go.tansy.dev/comdiv/internal/depgraph"
)

func nodeLabel(g *depgraph.Graph, n depgraph.NodeID) string {
	switch n.Kind {
	case depgraph.NodeValue:
		return g.ValueAt(n).String()
	case depgraph.NodeMemVar:
		return g.MemVarAt(n).String()
	case depgraph.NodeCall:
		return "call:" + g.CallAt(n).String()
	default:
		return "?"
	}
}

func colorName(c depgraph.EdgeColor) string {
	switch c {
	case depgraph.ValueToValue:
		return "black"
	case depgraph.ValueToMem:
		return "blue"
	case depgraph.MemToValue:
		return "green"
	case depgraph.MemToMem:
		return "red"
	case depgraph.Control:
		return "orange"
	default:
		return "gray"
	}
}

// WriteGraph writes the full dependency graph as a DOT digraph, the
// -dot-depgraph output.
func WriteGraph(w io.Writer, g *depgraph.Graph) error {
	if _, err := fmt.Fprintln(w, "digraph DG {"); err != nil {
		return err
	}
	seen := make(map[depgraph.NodeID]bool)
	var visit func(n depgraph.NodeID)
	visit = func(n depgraph.NodeID) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, e := range g.Children(n) {
			fmt.Fprintf(w, "  %q -> %q [color=%s];\n", nodeLabel(g, n), nodeLabel(g, e.To), colorName(e.Color))
			visit(e.To)
		}
	}
	for _, n := range g.AllNodes() {
		visit(n)
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// WriteTaintedPath writes one tainted collective's path as a DOT
// digraph: source nodes and the edges connecting them to sink, the
// -dot-taint-paths per-warning output.
func WriteTaintedPath(w io.Writer, g *depgraph.Graph, path []depgraph.NodeID) error {
	if _, err := fmt.Fprintln(w, "digraph TaintedPath {"); err != nil {
		return err
	}
	for i := 0; i < len(path)-1; i++ {
		fmt.Fprintf(w, "  %q -> %q;\n", nodeLabel(g, path[i]), nodeLabel(g, path[i+1]))
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
