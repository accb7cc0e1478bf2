package analyzer_test

import (
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go.tansy.dev/comdiv/internal/analyzer"
	"go.tansy.dev/comdiv/internal/collab"
	"go.tansy.dev/comdiv/internal/collab/collabmock"
	"go.tansy.dev/comdiv/internal/collective"
	"go.tansy.dev/comdiv/internal/config"
	"go.tansy.dev/comdiv/internal/ir"
)

// regionRef wraps a representative allocation-site Value as a
// collab.Region, the shape internal/region's concrete type is looked up
// from in analyzer.modRefAdapter.
type regionRef struct{ site ir.Value }

func (r regionRef) RegionSite() ir.Value { return r.site }

// fakePA, fakeDom, fakeCG and fakeModRef are plain (non-gomock) doubles
// used by the scenarios below that don't need EXPECT()-style call
// verification — only the first scenario exercises the collabmock
// doubles, since hand-building gomock expectations for every loop/
// inter-procedural fixture would obscure the CFGs under setup noise.
type fakePA struct {
	sites    []ir.Value
	pointsTo map[ir.Value][]ir.Value
}

func (f *fakePA) AllAllocationSites() []ir.Value { return f.sites }
func (f *fakePA) PointsTo(v ir.Value) []ir.Value { return f.pointsTo[v] }

type fakeModRef struct {
	mod map[*ir.Function][]collab.Region
}

func (m fakeModRef) Mod(fn *ir.Function) []collab.Region { return m.mod[fn] }
func (m fakeModRef) Ref(fn *ir.Function) []collab.Region { return nil }

type fakeDom struct {
	idom map[*ir.BasicBlock]*ir.BasicBlock
	df   map[*ir.BasicBlock][]*ir.BasicBlock
	pdf  map[*ir.BasicBlock][]*ir.BasicBlock
}

func (d fakeDom) Dominates(fn *ir.Function, a, b *ir.BasicBlock) bool { return false }
func (d fakeDom) IDom(fn *ir.Function, b *ir.BasicBlock) *ir.BasicBlock {
	return d.idom[b]
}
func (d fakeDom) DominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock {
	return d.df[b]
}
func (d fakeDom) PostDominates(fn *ir.Function, a, b *ir.BasicBlock) bool { return false }
func (d fakeDom) IPostDom(fn *ir.Function, b *ir.BasicBlock) *ir.BasicBlock {
	return nil
}
func (d fakeDom) PostDominanceFrontier(fn *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock {
	return d.pdf[b]
}
func (d fakeDom) Loops(fn *ir.Function) []*collab.Loop { return nil }

type fakeCG struct {
	callers map[*ir.Function][]*ir.Inst
	sccs    [][]*ir.Function
}

func (c fakeCG) Callees(call *ir.Inst) []*ir.Function { return nil }
func (c fakeCG) Callers(fn *ir.Function) []*ir.Inst   { return c.callers[fn] }
func (c fakeCG) SCCsReverseTopological() [][]*ir.Function {
	return c.sccs
}

var _ = Describe("analyzer end-to-end scenarios", func() {

	// A single collective gated by a rank-derived predicate.
	//
	//	void f() {
	//	  int r; MPI_Comm_rank(MPI_COMM_WORLD, &r);
	//	  if (r == 0) MPI_Barrier(MPI_COMM_WORLD);
	//	}
	It("flags a single collective gated by a rank-derived branch", func() {
		ctrl := gomock.NewController(GinkgoT())

		comm := &ir.Const{Repr: "MPI_COMM_WORLD"}
		commRankFn := &ir.Function{Name: "MPI_Comm_rank", External: true}
		barrierFn := &ir.Function{Name: "MPI_Barrier", External: true}

		fn := &ir.Function{Name: "f"}
		entry := &ir.BasicBlock{Name: "entry", Func: fn}
		thenB := &ir.BasicBlock{Name: "then", Func: fn}
		elseB := &ir.BasicBlock{Name: "else", Func: fn}
		merge := &ir.BasicBlock{Name: "merge", Func: fn}

		rankSite := &ir.Inst{Opcode: ir.OpAlloc, Name: "r", Block: entry, Loc: ir.DebugLoc{File: "s1.c", Line: 1}}
		rankCall := &ir.Inst{Opcode: ir.OpCall, Block: entry, Callee: commRankFn, Args: []ir.Value{comm, rankSite}, Loc: ir.DebugLoc{File: "s1.c", Line: 2}}
		loadR := &ir.Inst{Opcode: ir.OpLoad, Block: entry, Pointer: rankSite, Name: "rv", Loc: ir.DebugLoc{File: "s1.c", Line: 3}}
		condBr := &ir.Inst{Opcode: ir.OpCondBr, Block: entry, Operands: []ir.Value{loadR}, Loc: ir.DebugLoc{File: "s1.c", Line: 3}}
		entry.Insts = []*ir.Inst{rankSite, rankCall, loadR, condBr}
		entry.Succs = []*ir.BasicBlock{thenB, elseB}

		barrierCall := &ir.Inst{Opcode: ir.OpCall, Block: thenB, Callee: barrierFn, Args: []ir.Value{comm}, Loc: ir.DebugLoc{File: "s1.c", Line: 3}}
		thenB.Insts = []*ir.Inst{barrierCall, {Opcode: ir.OpBr, Block: thenB}}
		thenB.Preds = []*ir.BasicBlock{entry}
		thenB.Succs = []*ir.BasicBlock{merge}

		elseB.Insts = []*ir.Inst{{Opcode: ir.OpBr, Block: elseB}}
		elseB.Preds = []*ir.BasicBlock{entry}
		elseB.Succs = []*ir.BasicBlock{merge}

		merge.Insts = []*ir.Inst{{Opcode: ir.OpReturn, Block: merge}}
		merge.Preds = []*ir.BasicBlock{thenB, elseB}

		fn.Blocks = []*ir.BasicBlock{entry, thenB, elseB, merge}
		fn.Entry = entry

		mod := &ir.Module{
			Functions: map[string]*ir.Function{"f": fn},
			Globals:   map[string]*ir.Global{},
			Order:     []string{"f"},
		}

		pa := collabmock.NewMockPointerAnalysis(ctrl)
		pa.EXPECT().AllAllocationSites().Return([]ir.Value{rankSite}).AnyTimes()
		pa.EXPECT().PointsTo(gomock.Any()).DoAndReturn(func(v ir.Value) []ir.Value {
			if v == rankSite {
				return []ir.Value{rankSite}
			}
			return nil
		}).AnyTimes()

		idom := map[*ir.BasicBlock]*ir.BasicBlock{thenB: entry, elseB: entry, merge: entry}
		df := map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {merge}, elseB: {merge}}
		pdf := map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {entry}}

		dom := collabmock.NewMockDominanceInfo(ctrl)
		dom.EXPECT().IDom(gomock.Any(), gomock.Any()).DoAndReturn(func(_ *ir.Function, b *ir.BasicBlock) *ir.BasicBlock {
			return idom[b]
		}).AnyTimes()
		dom.EXPECT().DominanceFrontier(gomock.Any(), gomock.Any()).DoAndReturn(func(_ *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock {
			return df[b]
		}).AnyTimes()
		dom.EXPECT().PostDominanceFrontier(gomock.Any(), gomock.Any()).DoAndReturn(func(_ *ir.Function, b *ir.BasicBlock) []*ir.BasicBlock {
			return pdf[b]
		}).AnyTimes()
		dom.EXPECT().Dominates(gomock.Any(), gomock.Any(), gomock.Any()).Return(false).AnyTimes()
		dom.EXPECT().PostDominates(gomock.Any(), gomock.Any(), gomock.Any()).Return(false).AnyTimes()
		dom.EXPECT().IPostDom(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
		dom.EXPECT().Loops(gomock.Any()).Return(nil).AnyTimes()

		cg := collabmock.NewMockCallGraph(ctrl)
		cg.EXPECT().Callees(gomock.Any()).Return(nil).AnyTimes()
		cg.EXPECT().Callers(gomock.Any()).Return(nil).AnyTimes()
		cg.EXPECT().SCCsReverseTopological().Return([][]*ir.Function{{fn}}).AnyTimes()

		modref := collabmock.NewMockModRefOracle(ctrl)
		modref.EXPECT().Mod(gomock.Any()).DoAndReturn(func(f *ir.Function) []collab.Region {
			if f == commRankFn {
				return []collab.Region{regionRef{site: rankSite}}
			}
			return nil
		}).AnyTimes()
		modref.EXPECT().Ref(gomock.Any()).Return(nil).AnyTimes()

		collabs := analyzer.Collaborators{
			PointerAnalysis: pa,
			Dominance:       dom,
			CallGraph:       cg,
			ModRef:          modref,
			CollectiveTable: collective.DefaultTable{},
		}

		result, err := analyzer.Run(mod, collabs, config.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Warnings).To(HaveLen(1))
		Expect(result.Warnings[0].Name).To(Equal("MPI_Barrier"))
		Expect(result.Warnings[0].Loc).To(Equal(barrierCall.Loc))
		Expect(result.Warnings[0].TaintedBy).To(ContainElement(loadR.Loc))

		Expect(result.Insertions).To(HaveLen(1))
		Expect(result.Insertions[0].At).To(Equal(barrierCall))
		Expect(result.Insertions[0].Callee).To(Equal("check_collective_MPI"))

		// Re-running over the same module must produce a byte-identical
		// warning set.
		again, err := analyzer.Run(mod, collabs, config.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Warnings).To(Equal(result.Warnings))
	})

	// Both branches make the identical assignment to a non-rank-derived
	// variable, and the collective that follows is not itself
	// control-dependent on anything — nothing to report. The
	// phi-elimination mechanics are verified directly in
	// internal/depgraph (the layer that owns them); here it is checked
	// end to end that an unconditional collective after a balanced
	// diamond never false-positives.
	It("never warns on a collective that is not control-dependent on anything", func() {
		comm := &ir.Const{Repr: "MPI_COMM_WORLD"}
		barrierFn := &ir.Function{Name: "MPI_Barrier", External: true}
		x := &ir.Argument{Name: "x"}
		p := &ir.Argument{Name: "p"}
		fn := &ir.Function{Name: "f", Params: []*ir.Argument{x, p}}

		entry := &ir.BasicBlock{Name: "entry", Func: fn}
		thenB := &ir.BasicBlock{Name: "then", Func: fn}
		elseB := &ir.BasicBlock{Name: "else", Func: fn}
		after := &ir.BasicBlock{Name: "after", Func: fn}

		entry.Insts = []*ir.Inst{{Opcode: ir.OpCondBr, Block: entry, Operands: []ir.Value{x}}}
		entry.Succs = []*ir.BasicBlock{thenB, elseB}

		zero := &ir.Const{Repr: "0"}
		thenB.Insts = []*ir.Inst{
			{Opcode: ir.OpStore, Block: thenB, Pointer: p, Stored: zero},
			{Opcode: ir.OpBr, Block: thenB},
		}
		thenB.Preds = []*ir.BasicBlock{entry}
		thenB.Succs = []*ir.BasicBlock{after}

		elseB.Insts = []*ir.Inst{
			{Opcode: ir.OpStore, Block: elseB, Pointer: p, Stored: zero},
			{Opcode: ir.OpBr, Block: elseB},
		}
		elseB.Preds = []*ir.BasicBlock{entry}
		elseB.Succs = []*ir.BasicBlock{after}

		barrierCall := &ir.Inst{Opcode: ir.OpCall, Block: after, Callee: barrierFn, Args: []ir.Value{comm}}
		after.Insts = []*ir.Inst{barrierCall, {Opcode: ir.OpReturn, Block: after}}
		after.Preds = []*ir.BasicBlock{thenB, elseB}

		fn.Blocks = []*ir.BasicBlock{entry, thenB, elseB, after}
		fn.Entry = entry

		mod := &ir.Module{Functions: map[string]*ir.Function{"f": fn}, Globals: map[string]*ir.Global{}, Order: []string{"f"}}

		site := &ir.Inst{Opcode: ir.OpAlloc, Name: "site"}
		pa := &fakePA{sites: []ir.Value{site}, pointsTo: map[ir.Value][]ir.Value{p: {site}}}

		dom := fakeDom{
			idom: map[*ir.BasicBlock]*ir.BasicBlock{thenB: entry, elseB: entry, after: entry},
			df:   map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {after}, elseB: {after}},
			pdf:  map[*ir.BasicBlock][]*ir.BasicBlock{}, // after has no post-dom frontier: unconditional
		}
		cg := fakeCG{sccs: [][]*ir.Function{{fn}}}

		collabs := analyzer.Collaborators{
			PointerAnalysis: pa,
			Dominance:       dom,
			CallGraph:       cg,
			ModRef:          fakeModRef{},
			CollectiveTable: collective.DefaultTable{},
		}

		result, err := analyzer.Run(mod, collabs, config.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Warnings).To(BeEmpty())
	})

	// A collective inside a for-loop. Whether it warns depends only on
	// whether the loop bound is rank-derived.
	DescribeTable("loop-carried collective warns iff the loop bound is rank-tainted",
		func(tainted bool, wantWarnings int) {
			comm := &ir.Const{Repr: "MPI_COMM_WORLD"}
			commRankFn := &ir.Function{Name: "MPI_Comm_rank", External: true}
			barrierFn := &ir.Function{Name: "MPI_Barrier", External: true}

			fn := &ir.Function{Name: "f"}
			entry := &ir.BasicBlock{Name: "entry", Func: fn}
			header := &ir.BasicBlock{Name: "header", Func: fn}
			body := &ir.BasicBlock{Name: "body", Func: fn}
			exit := &ir.BasicBlock{Name: "exit", Func: fn}

			var pa *fakePA
			var modrefMod map[*ir.Function][]collab.Region
			var bound ir.Value

			if tainted {
				rankSite := &ir.Inst{Opcode: ir.OpAlloc, Name: "n", Block: entry}
				rankCall := &ir.Inst{Opcode: ir.OpCall, Block: entry, Callee: commRankFn, Args: []ir.Value{comm, rankSite}}
				loadN := &ir.Inst{Opcode: ir.OpLoad, Block: entry, Pointer: rankSite, Name: "nv"}
				entry.Insts = []*ir.Inst{rankSite, rankCall, loadN, {Opcode: ir.OpBr, Block: entry}}
				bound = loadN
				pa = &fakePA{sites: []ir.Value{rankSite}, pointsTo: map[ir.Value][]ir.Value{rankSite: {rankSite}}}
				modrefMod = map[*ir.Function][]collab.Region{commRankFn: {regionRef{site: rankSite}}}
			} else {
				n := &ir.Argument{Name: "n"}
				fn.Params = []*ir.Argument{n}
				entry.Insts = []*ir.Inst{{Opcode: ir.OpBr, Block: entry}}
				bound = n
				pa = &fakePA{}
				modrefMod = nil
			}
			entry.Succs = []*ir.BasicBlock{header}

			header.Insts = []*ir.Inst{{Opcode: ir.OpCondBr, Block: header, Operands: []ir.Value{bound}}}
			header.Preds = []*ir.BasicBlock{entry, body}
			header.Succs = []*ir.BasicBlock{body, exit}

			barrierCall := &ir.Inst{Opcode: ir.OpCall, Block: body, Callee: barrierFn, Args: []ir.Value{comm}}
			body.Insts = []*ir.Inst{barrierCall, {Opcode: ir.OpBr, Block: body}}
			body.Preds = []*ir.BasicBlock{header}
			body.Succs = []*ir.BasicBlock{header}

			exit.Insts = []*ir.Inst{{Opcode: ir.OpReturn, Block: exit}}
			exit.Preds = []*ir.BasicBlock{header}

			fn.Blocks = []*ir.BasicBlock{entry, header, body, exit}
			fn.Entry = entry

			mod := &ir.Module{Functions: map[string]*ir.Function{"f": fn}, Globals: map[string]*ir.Global{}, Order: []string{"f"}}

			dom := fakeDom{
				idom: map[*ir.BasicBlock]*ir.BasicBlock{header: entry, body: header, exit: header},
				df:   map[*ir.BasicBlock][]*ir.BasicBlock{},
				pdf:  map[*ir.BasicBlock][]*ir.BasicBlock{body: {header}},
			}
			cg := fakeCG{sccs: [][]*ir.Function{{fn}}}

			collabs := analyzer.Collaborators{
				PointerAnalysis: pa,
				Dominance:       dom,
				CallGraph:       cg,
				ModRef:          fakeModRef{mod: modrefMod},
				CollectiveTable: collective.DefaultTable{},
			}

			result, err := analyzer.Run(mod, collabs, config.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Warnings).To(HaveLen(wantWarnings))
		},
		Entry("bound is a plain parameter", false, 0),
		Entry("bound is loaded from a rank query", true, 1),
	)

	// Two communicators; only the rank-gated collective on c1 warns,
	// the unconditional collective on c2 after the if has no controlling
	// predicate at all.
	It("warns on the rank-gated communicator only", func() {
		commRankFn := &ir.Function{Name: "MPI_Comm_rank", External: true}
		barrierFn := &ir.Function{Name: "MPI_Barrier", External: true}
		c1 := &ir.Argument{Name: "c1"}
		c2 := &ir.Argument{Name: "c2"}
		fn := &ir.Function{Name: "f", Params: []*ir.Argument{c1, c2}}

		entry := &ir.BasicBlock{Name: "entry", Func: fn}
		thenB := &ir.BasicBlock{Name: "then", Func: fn}
		elseB := &ir.BasicBlock{Name: "else", Func: fn}
		merge := &ir.BasicBlock{Name: "merge", Func: fn}

		rankSite := &ir.Inst{Opcode: ir.OpAlloc, Name: "r", Block: entry}
		rankCall := &ir.Inst{Opcode: ir.OpCall, Block: entry, Callee: commRankFn, Args: []ir.Value{c1, rankSite}}
		loadR := &ir.Inst{Opcode: ir.OpLoad, Block: entry, Pointer: rankSite, Name: "rv"}
		condBr := &ir.Inst{Opcode: ir.OpCondBr, Block: entry, Operands: []ir.Value{loadR}}
		entry.Insts = []*ir.Inst{rankSite, rankCall, loadR, condBr}
		entry.Succs = []*ir.BasicBlock{thenB, elseB}

		barrierC1 := &ir.Inst{Opcode: ir.OpCall, Block: thenB, Callee: barrierFn, Args: []ir.Value{c1}, Loc: ir.DebugLoc{File: "s4.c", Line: 3}}
		thenB.Insts = []*ir.Inst{barrierC1, {Opcode: ir.OpBr, Block: thenB}}
		thenB.Preds = []*ir.BasicBlock{entry}
		thenB.Succs = []*ir.BasicBlock{merge}

		elseB.Insts = []*ir.Inst{{Opcode: ir.OpBr, Block: elseB}}
		elseB.Preds = []*ir.BasicBlock{entry}
		elseB.Succs = []*ir.BasicBlock{merge}

		barrierC2 := &ir.Inst{Opcode: ir.OpCall, Block: merge, Callee: barrierFn, Args: []ir.Value{c2}, Loc: ir.DebugLoc{File: "s4.c", Line: 4}}
		merge.Insts = []*ir.Inst{barrierC2, {Opcode: ir.OpReturn, Block: merge}}
		merge.Preds = []*ir.BasicBlock{thenB, elseB}

		fn.Blocks = []*ir.BasicBlock{entry, thenB, elseB, merge}
		fn.Entry = entry

		mod := &ir.Module{Functions: map[string]*ir.Function{"f": fn}, Globals: map[string]*ir.Global{}, Order: []string{"f"}}

		pa := &fakePA{sites: []ir.Value{rankSite}, pointsTo: map[ir.Value][]ir.Value{rankSite: {rankSite}}}
		dom := fakeDom{
			idom: map[*ir.BasicBlock]*ir.BasicBlock{thenB: entry, elseB: entry, merge: entry},
			df:   map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {merge}, elseB: {merge}},
			pdf:  map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {entry}}, // merge has none: reached unconditionally
		}
		cg := fakeCG{sccs: [][]*ir.Function{{fn}}}

		collabs := analyzer.Collaborators{
			PointerAnalysis: pa,
			Dominance:       dom,
			CallGraph:       cg,
			ModRef:          fakeModRef{mod: map[*ir.Function][]collab.Region{commRankFn: {regionRef{site: rankSite}}}},
			CollectiveTable: collective.DefaultTable{},
		}

		result, err := analyzer.Run(mod, collabs, config.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Warnings).To(HaveLen(1))
		Expect(result.Warnings[0].Loc).To(Equal(barrierC1.Loc))
	})

	// A collective inside a callee, whose guard lives in the caller.
	//
	//	void g() { MPI_Barrier(MPI_COMM_WORLD); }
	//	void f() { int r; MPI_Comm_rank(MPI_COMM_WORLD,&r);
	//	           if (r) g(); }
	It("flags a callee's collective guarded by the caller's rank-derived branch", func() {
		comm := &ir.Const{Repr: "MPI_COMM_WORLD"}
		commRankFn := &ir.Function{Name: "MPI_Comm_rank", External: true}
		barrierFn := &ir.Function{Name: "MPI_Barrier", External: true}

		gFn := &ir.Function{Name: "g"}
		gEntry := &ir.BasicBlock{Name: "entry", Func: gFn}
		barrierCall := &ir.Inst{Opcode: ir.OpCall, Block: gEntry, Callee: barrierFn, Args: []ir.Value{comm}, Loc: ir.DebugLoc{File: "s5.c", Line: 1}}
		gEntry.Insts = []*ir.Inst{barrierCall, {Opcode: ir.OpReturn, Block: gEntry}}
		gFn.Blocks = []*ir.BasicBlock{gEntry}
		gFn.Entry = gEntry

		fFn := &ir.Function{Name: "f"}
		entry := &ir.BasicBlock{Name: "entry", Func: fFn}
		thenB := &ir.BasicBlock{Name: "then", Func: fFn}
		elseB := &ir.BasicBlock{Name: "else", Func: fFn}
		merge := &ir.BasicBlock{Name: "merge", Func: fFn}

		rankSite := &ir.Inst{Opcode: ir.OpAlloc, Name: "r", Block: entry}
		rankCall := &ir.Inst{Opcode: ir.OpCall, Block: entry, Callee: commRankFn, Args: []ir.Value{comm, rankSite}}
		loadR := &ir.Inst{Opcode: ir.OpLoad, Block: entry, Pointer: rankSite, Name: "rv", Loc: ir.DebugLoc{File: "s5.c", Line: 2}}
		condBr := &ir.Inst{Opcode: ir.OpCondBr, Block: entry, Operands: []ir.Value{loadR}}
		entry.Insts = []*ir.Inst{rankSite, rankCall, loadR, condBr}
		entry.Succs = []*ir.BasicBlock{thenB, elseB}

		callG := &ir.Inst{Opcode: ir.OpCall, Block: thenB, Callee: gFn, Args: nil}
		thenB.Insts = []*ir.Inst{callG, {Opcode: ir.OpBr, Block: thenB}}
		thenB.Preds = []*ir.BasicBlock{entry}
		thenB.Succs = []*ir.BasicBlock{merge}

		elseB.Insts = []*ir.Inst{{Opcode: ir.OpBr, Block: elseB}}
		elseB.Preds = []*ir.BasicBlock{entry}
		elseB.Succs = []*ir.BasicBlock{merge}

		merge.Insts = []*ir.Inst{{Opcode: ir.OpReturn, Block: merge}}
		merge.Preds = []*ir.BasicBlock{thenB, elseB}

		fFn.Blocks = []*ir.BasicBlock{entry, thenB, elseB, merge}
		fFn.Entry = entry

		mod := &ir.Module{
			Functions: map[string]*ir.Function{"g": gFn, "f": fFn},
			Globals:   map[string]*ir.Global{},
			Order:     []string{"g", "f"},
		}

		pa := &fakePA{sites: []ir.Value{rankSite}, pointsTo: map[ir.Value][]ir.Value{rankSite: {rankSite}}}
		dom := fakeDom{
			idom: map[*ir.BasicBlock]*ir.BasicBlock{thenB: entry, elseB: entry, merge: entry},
			df:   map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {merge}, elseB: {merge}},
			pdf:  map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {entry}}, // gEntry has none: unconditional within g
		}
		cg := fakeCG{
			callers: map[*ir.Function][]*ir.Inst{gFn: {callG}},
			sccs:    [][]*ir.Function{{gFn}, {fFn}}, // callees before callers
		}

		collabs := analyzer.Collaborators{
			PointerAnalysis: pa,
			Dominance:       dom,
			CallGraph:       cg,
			ModRef:          fakeModRef{mod: map[*ir.Function][]collab.Region{commRankFn: {regionRef{site: rankSite}}}},
			CollectiveTable: collective.DefaultTable{},
		}

		result, err := analyzer.Run(mod, collabs, config.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Warnings).To(HaveLen(1))
		Expect(result.Warnings[0].Func).To(Equal("g"))
		Expect(result.Warnings[0].Loc).To(Equal(barrierCall.Loc))
		Expect(result.Warnings[0].TaintedBy).To(ContainElement(loadR.Loc))
	})

	// The two process-terminating branches of a rank-gated if are both
	// collectives in their own right (MPI_Finalize, MPI_Abort); since
	// they disagree on which one each process reaches, both are
	// flagged.
	It("flags both sides of a rank-gated Finalize/Abort split", func() {
		comm := &ir.Const{Repr: "MPI_COMM_WORLD"}
		commRankFn := &ir.Function{Name: "MPI_Comm_rank", External: true}
		finalizeFn := &ir.Function{Name: "MPI_Finalize", External: true}
		abortFn := &ir.Function{Name: "MPI_Abort", External: true}

		fn := &ir.Function{Name: "f"}
		entry := &ir.BasicBlock{Name: "entry", Func: fn}
		thenB := &ir.BasicBlock{Name: "then", Func: fn}
		elseB := &ir.BasicBlock{Name: "else", Func: fn}

		rankSite := &ir.Inst{Opcode: ir.OpAlloc, Name: "r", Block: entry}
		rankCall := &ir.Inst{Opcode: ir.OpCall, Block: entry, Callee: commRankFn, Args: []ir.Value{comm, rankSite}}
		loadR := &ir.Inst{Opcode: ir.OpLoad, Block: entry, Pointer: rankSite, Name: "rv"}
		condBr := &ir.Inst{Opcode: ir.OpCondBr, Block: entry, Operands: []ir.Value{loadR}}
		entry.Insts = []*ir.Inst{rankSite, rankCall, loadR, condBr}
		entry.Succs = []*ir.BasicBlock{thenB, elseB}

		finalizeCall := &ir.Inst{Opcode: ir.OpCall, Block: thenB, Callee: finalizeFn, Args: nil}
		thenB.Insts = []*ir.Inst{finalizeCall, {Opcode: ir.OpReturn, Block: thenB}}
		thenB.Preds = []*ir.BasicBlock{entry}

		abortCall := &ir.Inst{Opcode: ir.OpCall, Block: elseB, Callee: abortFn, Args: []ir.Value{comm, &ir.Const{Repr: "1"}}}
		elseB.Insts = []*ir.Inst{abortCall, {Opcode: ir.OpReturn, Block: elseB}}
		elseB.Preds = []*ir.BasicBlock{entry}

		fn.Blocks = []*ir.BasicBlock{entry, thenB, elseB}
		fn.Entry = entry

		mod := &ir.Module{Functions: map[string]*ir.Function{"f": fn}, Globals: map[string]*ir.Global{}, Order: []string{"f"}}

		Expect(fn.Exits()).To(ConsistOf(thenB, elseB))

		pa := &fakePA{sites: []ir.Value{rankSite}, pointsTo: map[ir.Value][]ir.Value{rankSite: {rankSite}}}
		dom := fakeDom{
			idom: map[*ir.BasicBlock]*ir.BasicBlock{thenB: entry, elseB: entry},
			df:   map[*ir.BasicBlock][]*ir.BasicBlock{},
			pdf:  map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {entry}, elseB: {entry}},
		}
		cg := fakeCG{sccs: [][]*ir.Function{{fn}}}

		collabs := analyzer.Collaborators{
			PointerAnalysis: pa,
			Dominance:       dom,
			CallGraph:       cg,
			ModRef:          fakeModRef{mod: map[*ir.Function][]collab.Region{commRankFn: {regionRef{site: rankSite}}}},
			CollectiveTable: collective.DefaultTable{},
		}

		result, err := analyzer.Run(mod, collabs, config.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Warnings).To(HaveLen(2))
		names := []string{result.Warnings[0].Name, result.Warnings[1].Name}
		Expect(names).To(ConsistOf("MPI_Finalize", "MPI_Abort"))
	})

	// -no-dataflow: every NAVS predicate warns, tainted or not.
	It("honors -no-dataflow by warning on every NAVS predicate regardless of taint", func() {
		comm := &ir.Const{Repr: "MPI_COMM_WORLD"}
		barrierFn := &ir.Function{Name: "MPI_Barrier", External: true}
		x := &ir.Argument{Name: "x"} // not rank-derived at all
		fn := &ir.Function{Name: "f", Params: []*ir.Argument{x}}

		entry := &ir.BasicBlock{Name: "entry", Func: fn}
		thenB := &ir.BasicBlock{Name: "then", Func: fn}
		elseB := &ir.BasicBlock{Name: "else", Func: fn}
		merge := &ir.BasicBlock{Name: "merge", Func: fn}

		entry.Insts = []*ir.Inst{{Opcode: ir.OpCondBr, Block: entry, Operands: []ir.Value{x}}}
		entry.Succs = []*ir.BasicBlock{thenB, elseB}

		barrierCall := &ir.Inst{Opcode: ir.OpCall, Block: thenB, Callee: barrierFn, Args: []ir.Value{comm}}
		thenB.Insts = []*ir.Inst{barrierCall, {Opcode: ir.OpBr, Block: thenB}}
		thenB.Preds = []*ir.BasicBlock{entry}
		thenB.Succs = []*ir.BasicBlock{merge}

		elseB.Insts = []*ir.Inst{{Opcode: ir.OpBr, Block: elseB}}
		elseB.Preds = []*ir.BasicBlock{entry}
		elseB.Succs = []*ir.BasicBlock{merge}

		merge.Insts = []*ir.Inst{{Opcode: ir.OpReturn, Block: merge}}
		merge.Preds = []*ir.BasicBlock{thenB, elseB}

		fn.Blocks = []*ir.BasicBlock{entry, thenB, elseB, merge}
		fn.Entry = entry

		mod := &ir.Module{Functions: map[string]*ir.Function{"f": fn}, Globals: map[string]*ir.Global{}, Order: []string{"f"}}

		dom := fakeDom{
			idom: map[*ir.BasicBlock]*ir.BasicBlock{thenB: entry, elseB: entry, merge: entry},
			df:   map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {merge}, elseB: {merge}},
			pdf:  map[*ir.BasicBlock][]*ir.BasicBlock{thenB: {entry}},
		}
		cg := fakeCG{sccs: [][]*ir.Function{{fn}}}

		collabs := analyzer.Collaborators{
			PointerAnalysis: &fakePA{},
			Dominance:       dom,
			CallGraph:       cg,
			ModRef:          fakeModRef{},
			CollectiveTable: collective.DefaultTable{},
		}

		withDataflow, err := analyzer.Run(mod, collabs, config.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(withDataflow.Warnings).To(BeEmpty(), "x is not rank-derived, so dataflow mode must not warn")

		withoutDataflow, err := analyzer.Run(mod, collabs, config.Options{NoDataflow: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(withoutDataflow.Warnings).To(HaveLen(1), "-no-dataflow must warn on the NAVS predicate even though it is untainted")
	})

	// -statistics short-circuits before the checker runs at all.
	It("honors -statistics by reporting IR counts without running the checker", func() {
		fn := &ir.Function{Name: "f", Blocks: []*ir.BasicBlock{{Name: "entry"}}}
		fn.Entry = fn.Blocks[0]
		fn.Entry.Func = fn
		fn.Entry.Insts = []*ir.Inst{{Opcode: ir.OpReturn, Block: fn.Entry}}
		extFn := &ir.Function{Name: "memcpy", External: true}

		mod := &ir.Module{
			Functions: map[string]*ir.Function{"f": fn, "memcpy": extFn},
			Globals:   map[string]*ir.Global{},
			Order:     []string{"f", "memcpy"},
		}

		result, err := analyzer.Run(mod, analyzer.Collaborators{}, config.Options{Statistics: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Statistics).NotTo(BeNil())
		Expect(result.Statistics.Functions).To(Equal(2))
		Expect(result.Statistics.ExternalFns).To(Equal(1))
		Expect(result.Statistics.BasicBlocks).To(Equal(1))
		Expect(result.Warnings).To(BeNil())
	})

	// Conflicting configuration is refused before any phase runs.
	It("refuses to run with a conflicting configuration", func() {
		_, err := analyzer.Run(&ir.Module{}, analyzer.Collaborators{}, config.Options{
			ContextSensitive: true,
			DotTaintPaths:    true,
		})
		Expect(err).To(MatchError(config.ErrConfigConflict))
	})
})
