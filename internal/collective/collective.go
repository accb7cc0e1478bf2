// Package collective walks the call graph in reverse topological order
// (callees before callers, via collab.CallGraph.SCCsReverseTopological)
// and, for every basic block of every function, computes the sequence
// of collective operations executed on every path from that block to a
// function exit, or the NAVS ("Not All Visit Same") sentinel when
// paths disagree.
//
// It also supplies the default MPI/OMP/UPC/CUDA CollectiveTable.
package collective

import (
	"fmt"

	"go.tansy.dev/comdiv/internal/collab"
	"go.tansy.dev/comdiv/internal/ir"
)

// Seq is a collective-call sequence, or the NAVS sentinel.
type Seq struct {
	Names []string
	NAVS  bool
}

func navs() Seq { return Seq{NAVS: true} }

func seqEqual(a, b Seq) bool {
	if a.NAVS || b.NAVS {
		return false
	}
	if len(a.Names) != len(b.Names) {
		return false
	}
	for i := range a.Names {
		if a.Names[i] != b.Names[i] {
			return false
		}
	}
	return true
}

func prepend(own Seq, rest Seq) Seq {
	if own.NAVS || rest.NAVS {
		return navs()
	}
	out := make([]string, 0, len(own.Names)+len(rest.Names))
	out = append(out, own.Names...)
	out = append(out, rest.Names...)
	return Seq{Names: out}
}

func mergeSeqs(seqs []Seq) Seq {
	if len(seqs) == 0 {
		return Seq{}
	}
	first := seqs[0]
	if first.NAVS {
		return navs()
	}
	for _, s := range seqs[1:] {
		if !seqEqual(first, s) {
			return navs()
		}
	}
	return first
}

// FunctionSummary is the per-block "through" sequence for one function,
// plus its Entry shortcut (the sequence seen by a caller of this
// function).
type FunctionSummary struct {
	Entry    Seq
	blockSeq map[*ir.BasicBlock]Seq
}

// BlockSequence returns the collective sequence from b to the
// function's exits, or the zero Seq if b is unknown (e.g. unreachable).
func (fs *FunctionSummary) BlockSequence(b *ir.BasicBlock) Seq { return fs.blockSeq[b] }

// Summaries is the built collective-call summary for a whole module.
type Summaries struct {
	table      collab.CollectiveTable
	loops      LoopInfo
	byFunc     map[*ir.Function]*FunctionSummary
	commIDs    map[ir.Value]int
	nextCommID int
}

// Sequence returns fn's entry summary (the sequence a caller of fn
// observes), or the zero Seq if fn has no summary (external / not yet
// built).
func (s *Summaries) Sequence(fn *ir.Function) Seq {
	if fs, ok := s.byFunc[fn]; ok {
		return fs.Entry
	}
	return Seq{}
}

// Func returns fn's full per-block summary, nil if none.
func (s *Summaries) Func(fn *ir.Function) *FunctionSummary { return s.byFunc[fn] }

// CallGraph is the subset of collab.CallGraph Build needs.
type CallGraph interface {
	SCCsReverseTopological() [][]*ir.Function
}

// LoopInfo is the loop-forest subset of collab.DominanceInfo the
// summary builder uses to resolve back-edges precisely; nil falls back
// to the bounded-requeue rule alone.
type LoopInfo interface {
	Loops(fn *ir.Function) []*collab.Loop
}

// Build computes the collective-call summary for every function in
// mod, processing the call graph's strongly-connected components
// callees-before-callers so a caller's summary can inline its callees'
// already-known Entry sequences.
func Build(mod *ir.Module, cg CallGraph, loops LoopInfo, table collab.CollectiveTable) *Summaries {
	s := &Summaries{
		table:   table,
		loops:   loops,
		byFunc:  make(map[*ir.Function]*FunctionSummary),
		commIDs: make(map[ir.Value]int),
	}
	for _, scc := range cg.SCCsReverseTopological() {
		for _, fn := range scc {
			if fn.External || fn.Entry == nil {
				continue
			}
			s.byFunc[fn] = s.summarizeFunc(fn)
		}
	}
	return s
}

// summarizeFunc runs a bounded worklist fixed point over fn's CFG. A
// block is only finalized once every successor it must wait on is
// resolved. Back edges never need waiting: the loop forest identifies
// them, and a back edge contributes NAVS when its loop body calls any
// collective (the post-loop sequence then differs per trip count) and
// nothing otherwise. For cycles the loop forest does not describe, a
// requeue counter takes over: it resets whenever some block was
// finalized since b last waited, so it only grows while the whole
// queue is stuck, and once it exceeds len(b.Succs) the still-open
// successors are treated as NAVS and b is finalized. Each reset
// requires at least one newly finalized block, which bounds the total
// number of requeues and proves termination.
func (s *Summaries) summarizeFunc(fn *ir.Function) *FunctionSummary {
	fs := &FunctionSummary{blockSeq: make(map[*ir.BasicBlock]Seq)}
	known := make(map[*ir.BasicBlock]bool)
	resolved := 0

	// headerBody maps each loop header to its body set; loopCarries
	// records whether that loop's body calls any collective.
	headerBody := make(map[*ir.BasicBlock]map[*ir.BasicBlock]bool)
	loopCarries := make(map[*ir.BasicBlock]bool)
	if s.loops != nil {
		for _, l := range s.loops.Loops(fn) {
			body := make(map[*ir.BasicBlock]bool, len(l.Body))
			carries := false
			for _, bb := range l.Body {
				body[bb] = true
				seq := s.collectivesOfBlock(bb)
				if seq.NAVS || len(seq.Names) > 0 {
					carries = true
				}
			}
			headerBody[l.Header] = body
			loopCarries[l.Header] = carries
		}
	}

	for _, exit := range fn.Exits() {
		fs.blockSeq[exit] = s.collectivesOfBlock(exit)
		known[exit] = true
		resolved++
	}

	var queue []*ir.BasicBlock
	for _, b := range fn.Blocks {
		if !known[b] {
			queue = append(queue, b)
		}
	}

	requeued := make(map[*ir.BasicBlock]int)
	lastResolved := make(map[*ir.BasicBlock]int)
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		if known[b] {
			continue
		}

		var succSeqs []Seq
		waiting := false
		for _, succ := range b.Succs {
			if known[succ] {
				succSeqs = append(succSeqs, fs.blockSeq[succ])
				continue
			}
			if body, ok := headerBody[succ]; ok && body[b] {
				// Back edge to a loop header: the next trip around the
				// loop. A collective-carrying body reaches exit with a
				// different sequence per trip count; a collective-free
				// body contributes nothing.
				if loopCarries[succ] {
					succSeqs = append(succSeqs, navs())
				}
				continue
			}
			waiting = true
			break
		}

		if waiting {
			if resolved > lastResolved[b] {
				lastResolved[b] = resolved
				requeued[b] = 0
			}
			requeued[b]++
			if requeued[b] <= len(b.Succs) {
				queue = append(queue, b)
				continue
			}
			succSeqs = succSeqs[:0]
			for _, succ := range b.Succs {
				if known[succ] {
					succSeqs = append(succSeqs, fs.blockSeq[succ])
				} else {
					succSeqs = append(succSeqs, navs())
				}
			}
		}

		fs.blockSeq[b] = prepend(s.collectivesOfBlock(b), mergeSeqs(succSeqs))
		known[b] = true
		resolved++
	}

	if fn.Entry != nil {
		fs.Entry = fs.blockSeq[fn.Entry]
	} else {
		fs.Entry = navs()
	}
	return fs
}

// collectivesOfBlock returns the sequence of collective names a block
// itself contributes: a direct collective call's (possibly
// communicator-qualified, see commKey) name, or — for a call to an
// already-summarized non-collective function — that callee's inlined
// Entry sequence.
func (s *Summaries) collectivesOfBlock(b *ir.BasicBlock) Seq {
	var names []string
	for _, inst := range b.Insts {
		if inst.Opcode != ir.OpCall || inst.Callee == nil {
			continue
		}
		if s.table.IsCollective(inst.Callee) {
			name := s.table.Name(inst.Callee)
			if k := s.commKey(inst); k != "" {
				name = name + k
			}
			names = append(names, name)
			continue
		}
		if sub, ok := s.byFunc[inst.Callee]; ok {
			if sub.Entry.NAVS {
				return navs()
			}
			names = append(names, sub.Entry.Names...)
		}
	}
	return Seq{Names: names}
}

// commKey returns a per-communicator identity qualifier for an MPI-
// family collective call, so two calls to the same collective on
// different communicators are never folded into the same sequence
// entry. NAVS itself stays a single flag per block, covering every
// communicator. Returns "" for families/functions with no communicator
// argument.
func (s *Summaries) commKey(inst *ir.Inst) string {
	color := s.table.Color(inst.Callee)
	idx := s.table.CommArgIndex(color)
	if idx < 0 || idx >= len(inst.Args) {
		return ""
	}
	commVal := inst.Args[idx]
	id, ok := s.commIDs[commVal]
	if !ok {
		id = s.nextCommID
		s.nextCommID++
		s.commIDs[commVal] = id
	}
	return fmt.Sprintf("#%d", id)
}

// DefaultTable is a name-table CollectiveTable covering the MPI, OMP,
// UPC and CUDA collective families.
type DefaultTable struct{}

var mpiNames = map[string]bool{
	"MPI_Barrier": true, "MPI_Bcast": true, "MPI_Reduce": true,
	"MPI_Allreduce": true, "MPI_Gather": true, "MPI_Allgather": true,
	"MPI_Scatter": true, "MPI_Alltoall": true, "MPI_Scan": true,
	// MPI_Finalize and MPI_Abort must themselves be reached by every
	// process in their communicator for orderly shutdown, so they are
	// collectives in their own right; the exit-seed list treats them
	// the same way, and the checker's "every collective call site"
	// walk needs them in the table to reach them at all.
	"MPI_Finalize": true, "MPI_Abort": true,
}

var ompNames = map[string]bool{
	"__kmpc_barrier": true, "__kmpc_fork_call": true,
	"__kmpc_reduce": true, "__kmpc_reduce_nowait": true,
}

var upcNames = map[string]bool{
	"upc_barrier": true, "upc_notify": true, "upc_wait": true,
	"upc_all_broadcast": true, "upc_all_reduce": true,
}

var cudaNames = map[string]bool{
	"__syncthreads": true, "cudaDeviceSynchronize": true,
	"cudaStreamSynchronize": true,
}

func (DefaultTable) IsCollective(fn *ir.Function) bool {
	n := fn.Name
	return mpiNames[n] || ompNames[n] || upcNames[n] || cudaNames[n]
}

func (DefaultTable) Color(fn *ir.Function) collab.Color {
	switch {
	case mpiNames[fn.Name]:
		return collab.ColorMPI
	case ompNames[fn.Name]:
		return collab.ColorOMP
	case upcNames[fn.Name]:
		return collab.ColorUPC
	case cudaNames[fn.Name]:
		return collab.ColorCUDA
	default:
		return collab.ColorNone
	}
}

// CommArgIndex assumes the single-argument MPI collective shape
// (MPI_Barrier(comm)); multi-argument collectives like MPI_Bcast carry
// comm at a different position, a known simplification of this default
// table. Production callers are expected to supply a table that
// inspects each callee's real signature.
func (DefaultTable) CommArgIndex(c collab.Color) int {
	if c == collab.ColorMPI {
		return 0
	}
	return -1
}

func (t DefaultTable) Name(fn *ir.Function) string { return fn.Name }

// SeqEqual reports whether a and b are the same concrete sequence;
// false if either is NAVS, exported for the checker package's
// divergence corroboration.
func SeqEqual(a, b Seq) bool { return seqEqual(a, b) }
