// Command comdiv is the reference CLI entry point for the divergence
// checker. It owns flag parsing and process exit codes only; the IR
// parser, pointer analysis, dominance services, call graph, mod/ref
// oracle and collective table are all external collaborators supplied
// by whatever frontend links this binary; comdiv itself never
// constructs them.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"go.tansy.dev/comdiv/internal/analyzer"
	"go.tansy.dev/comdiv/internal/config"
	"go.tansy.dev/comdiv/internal/dotwriter"
	"go.tansy.dev/comdiv/internal/ir"
	"go.tansy.dev/comdiv/internal/memssa"
	"go.tansy.dev/comdiv/internal/taint"
)

// Frontend is the extension point a real build of comdiv links in: it
// parses an IR module from path and supplies every external
// collaborator the analyzer needs. The reference binary ships no
// frontend, so runCheck reports a clear error rather than pretending
// to analyze anything; analysis without a real pointer-to/dominance/
// call-graph implementation would be meaningless.
type Frontend interface {
	Parse(path string) (*ir.Module, analyzer.Collaborators, error)
}

// frontend is nil in the reference binary; a linked build overwrites it
// from an init() in its own package.
var frontend Frontend

func main() {
	opts := config.Options{}

	root := &cobra.Command{
		Use:   "comdiv",
		Short: "Static checker for MPI/OMP/UPC/CUDA collective-call divergence",
	}

	check := &cobra.Command{
		Use:   "check <ir-file>",
		Short: "Analyze an IR module for divergent collective calls",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args[0], &opts)
		},
	}
	config.RegisterFlags(check.Flags(), &opts)
	root.AddCommand(check)

	if err := root.Execute(); err != nil {
		glog.Errorf("comdiv: %v", err)
		os.Exit(1)
	}
}

func runCheck(path string, opts *config.Options) error {
	if err := config.Validate(opts); err != nil {
		return err
	}
	if frontend == nil {
		return fmt.Errorf("no frontend linked: comdiv needs a build that supplies an IR parser and analysis collaborators")
	}

	mod, collabs, err := frontend.Parse(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	result, err := analyzer.Run(mod, collabs, *opts)
	if err != nil {
		return err
	}

	if result.Statistics != nil {
		fmt.Println(result.Statistics)
		return nil
	}

	if err := dumpDiagnostics(mod, collabs, opts, result); err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Println(w.String())
	}
	for _, ins := range result.Insertions {
		glog.V(1).Infof("instrument: %s", ins)
	}
	if opts.Timer {
		for _, t := range result.Timings {
			glog.Infof("phase %s: %s", t.Phase, t.Duration)
		}
	}
	return nil
}

// dumpDiagnostics honors the dump-*/dot-* flags against a finished
// analysis.
func dumpDiagnostics(mod *ir.Module, collabs analyzer.Collaborators, opts *config.Options, result *analyzer.Result) error {
	if opts.DumpRegions {
		for _, r := range result.Regions.AllRegions() {
			fmt.Printf("region %d: %s (%s)\n", r.ID, r.Site.String(), r.Kind)
		}
	}
	if opts.DumpModRef {
		for _, name := range mod.Order {
			fn := mod.Func(name)
			fmt.Printf("modref %s: mod=%d ref=%d\n", name, len(collabs.ModRef.Mod(fn)), len(collabs.ModRef.Ref(fn)))
		}
	}
	if opts.DumpSSA || opts.DumpSSAFunc != "" {
		for _, name := range mod.Order {
			if opts.DumpSSAFunc != "" && name != opts.DumpSSAFunc {
				continue
			}
			if f := result.SSA.Funcs[mod.Func(name)]; f != nil {
				memssa.Fprint(os.Stdout, f)
			}
		}
	}
	if glog.V(1) {
		var taintedSites []*ir.Inst
		for call, isTainted := range result.TaintedCalls {
			if isTainted {
				taintedSites = append(taintedSites, call)
			}
		}
		sort.Slice(taintedSites, func(i, j int) bool {
			a, b := taintedSites[i].Loc, taintedSites[j].Loc
			if a.File != b.File {
				return a.File < b.File
			}
			return a.Line < b.Line
		})
		for _, call := range taintedSites {
			glog.V(1).Infof("tainted call at %s:%d", call.Loc.File, call.Loc.Line)
		}
	}
	if opts.DotDepgraph {
		if err := writeFile("dg.dot", func(w io.Writer) error {
			return dotwriter.WriteGraph(w, result.Graph)
		}); err != nil {
			return err
		}
	}
	if opts.DotTaintPaths {
		for _, warn := range result.Warnings {
			if warn.Site == nil {
				continue
			}
			path := taint.Path(result.Graph, result.Sources, result.Graph.CallNode(warn.Site))
			if path == nil {
				continue
			}
			name := fmt.Sprintf("taintedpath-%s-%d.dot", filepath.Base(warn.Loc.File), warn.Loc.Line)
			if err := writeFile(name, func(w io.Writer) error {
				return dotwriter.WriteTaintedPath(w, result.Graph, path)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return render(f)
}
