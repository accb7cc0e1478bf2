// Package ir defines the low-level intermediate representation the
// analyzer consumes. The parser that produces a Module, like every
// other external collaborator, lives outside this repository; this
// package only fixes the shape of the contract so the analyzer and its
// tests can be written against a stable type.
package ir

// DebugLoc is the (file, line) attached to every instruction.
type DebugLoc struct {
	File string
	Line int
}

// Value is an IR-level scalar computation: a register, constant,
// instruction result, global, or function argument. Identity is by
// pointer — two Values are equal iff they are the same IR node.
type Value interface {
	valueNode()
	String() string
}

// Const is an immediate operand.
type Const struct {
	Repr string
}

func (*Const) valueNode()       {}
func (c *Const) String() string { return c.Repr }

// Global is a module-level variable. PointerTyped globals participate
// in the pointer-to analysis and get a MemoryRegion of their own.
type Global struct {
	Name         string
	PointerTyped bool
}

func (*Global) valueNode()       {}
func (g *Global) String() string { return "@" + g.Name }

// Argument is a formal parameter of a Function.
type Argument struct {
	Name  string
	Func  *Function
	Index int
}

func (*Argument) valueNode()       {}
func (a *Argument) String() string { return "%" + a.Name }

// Opcode enumerates the instruction shapes the analyzer
// pattern-matches on.
type Opcode int

const (
	OpConst Opcode = iota
	OpBinOp
	OpCmp
	OpCast
	OpSelect
	OpGEP
	OpExtract
	OpInsert
	OpLoad
	OpStore
	OpPhi       // value-level phi
	OpCall
	OpBr        // unconditional branch
	OpCondBr    // conditional branch; Operands[0] is the predicate
	OpReturn
	OpAlloc     // allocation site: defines a region
	OpUnhandled // malformed/unrecognized instruction kind, skipped with a log
)

// PhiEdge is one incoming edge of a value-level Phi.
type PhiEdge struct {
	Pred  *BasicBlock
	Value Value
}

// Inst is a single IR instruction. It implements Value when it produces
// a result (loads, calls, phis, binops, ...); instructions with no
// result (stores, branches, returns) are never used as an operand.
type Inst struct {
	Opcode Opcode
	Name   string // result name, empty if the instruction has no result
	Block  *BasicBlock
	Loc    DebugLoc

	Operands []Value // generic operand list

	// Load/Store
	Pointer Value // the pointer operand of a load or store
	Stored  Value // the value operand of a store

	// Phi (value-level)
	Incoming []PhiEdge

	// Call
	Callee           *Function // resolved callee, nil if indirect/unresolved
	CalleeUnresolved bool      // true if this is an indirect call with no resolved target
	Args             []Value
	FormalBinding    map[Value]Value // actual -> formal, filled in by the call-graph collaborator

	// Collective call metadata, set by the collective-table collaborator.
	IsCollective   bool
	CollectiveName string
	Comm           Value // communicator argument value, nil if not applicable
}

func (*Inst) valueNode() {}
func (i *Inst) String() string {
	if i.Name != "" {
		return "%" + i.Name
	}
	return "<inst>"
}

// IsTerminator reports whether i ends its basic block.
func (i *Inst) IsTerminator() bool {
	switch i.Opcode {
	case OpBr, OpCondBr, OpReturn:
		return true
	default:
		return false
	}
}

// BasicBlock is a straight-line sequence of instructions with a single
// terminator.
type BasicBlock struct {
	Name  string
	Func  *Function
	Insts []*Inst
	Preds []*BasicBlock
	Succs []*BasicBlock
}

// Terminator returns the block's terminating instruction, or nil if the
// block is malformed; callers must tolerate nil.
func (b *BasicBlock) Terminator() *Inst {
	if len(b.Insts) == 0 {
		return nil
	}
	last := b.Insts[len(b.Insts)-1]
	if last.IsTerminator() {
		return last
	}
	return nil
}

// PredIndex returns the index of pred among b's predecessors, used to
// fill in the corresponding Phi edge slot.
func (b *BasicBlock) PredIndex(pred *BasicBlock) int {
	for i, p := range b.Preds {
		if p == pred {
			return i
		}
	}
	return -1
}

// Function is a defined or declared (external) function.
type Function struct {
	Name           string
	Params         []*Argument
	Blocks         []*BasicBlock // empty for external declarations
	Entry          *BasicBlock
	External       bool
	Variadic       bool
	ReturnsPointer bool
}

func (f *Function) valueNode()     {}
func (f *Function) String() string { return f.Name }

// Exits returns every block containing a return or a call to one of
// the process-terminating intrinsics.
func (f *Function) Exits() []*BasicBlock {
	var exits []*BasicBlock
	for _, b := range f.Blocks {
		if term := b.Terminator(); term != nil && term.Opcode == OpReturn {
			exits = append(exits, b)
			continue
		}
		for _, inst := range b.Insts {
			if inst.Opcode == OpCall && inst.Callee != nil && isProcessExit(inst.Callee.Name) {
				exits = append(exits, b)
				break
			}
		}
	}
	return exits
}

func isProcessExit(name string) bool {
	switch name {
	case "MPI_Finalize", "MPI_Abort", "abort", "exit":
		return true
	default:
		return false
	}
}

// Module is a whole parsed program.
type Module struct {
	Functions map[string]*Function
	Globals   map[string]*Global
	Order     []string // function names in parse order, for deterministic iteration
}

// Func looks up a function by name, nil if absent.
func (m *Module) Func(name string) *Function {
	return m.Functions[name]
}
