package vm

import (
	"fmt"
	"sort"
	"strings"

	"n2t.dev/hackcore/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (the typed IR produced by the Parser) and produces its
// 'asm.Program' counterpart, ready to be fed into the Assembler's own Lowerer/CodeGenerator.
//
// Unlike the Assembler, a single VM operation usually expands into a handful of Hack assembly
// instructions (the VM is stack based, the Hack CPU is register based), so every 'handle*'
// method below returns a slice of 'asm.Instruction' rather than a single one.
type Lowerer struct {
	program Program // The set of modules (translation units) to lower

	labelSeq uint32 // Monotonic counter, guarantees unique labels for comparisons and calls
	module   string // Name of the module (translation unit) currently being lowered
	function string // Fully qualified name of the function currently being lowered, empty at top-level
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program 'p' to be non-nil.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process for the whole program. Modules are visited in alphabetical
// order of their name so that the emitted assembly (and in turn the generated labels' suffix
// counter) is deterministic across runs given the same input.
func (vl *Lowerer) Lower() (asm.Program, error) {
	if vl.program == nil || len(vl.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	names := make([]string, 0, len(vl.program))
	for name := range vl.program {
		names = append(names, name)
	}
	sort.Strings(names)

	program := asm.Program{}
	for _, name := range names {
		vl.module, vl.function = name, ""

		for _, operation := range vl.program[name] {
			var instrs []asm.Instruction
			var err error

			switch op := operation.(type) {
			case MemoryOp:
				instrs, err = vl.handleMemoryOp(op)
			case ArithmeticOp:
				instrs, err = vl.handleArithmeticOp(op)
			case LabelDecl:
				instrs, err = vl.handleLabelDecl(op)
			case GotoOp:
				instrs, err = vl.handleGotoOp(op)
			case FuncDecl:
				instrs, err = vl.handleFuncDecl(op)
			case FuncCallOp:
				instrs, err = vl.handleFuncCallOp(op)
			case ReturnOp:
				instrs, err = vl.handleReturnOp(op)
			default:
				err = fmt.Errorf("unrecognized operation '%T'", operation)
			}

			if err != nil {
				return nil, err
			}
			program = append(program, instrs...)
		}
	}

	return program, nil
}

// Returns a label with a numeric suffix unique within this Lowerer's output, used to disambiguate generated labels
// (comparison branches, call return addresses) that would otherwise collide across modules.
func (vl *Lowerer) nextLabel(prefix string) string {
	vl.labelSeq++
	return fmt.Sprintf("%s.%d", prefix, vl.labelSeq)
}

// Scope-qualifies a user declared label/jump target with the enclosing function's name, mirroring
// the 'F$L' convention used by the reference VM translator so that labels stay unique program-wide.
func (vl *Lowerer) scopedLabel(name string) string {
	if vl.function == "" {
		return name
	}
	return fmt.Sprintf("%s$%s", vl.function, name)
}

// ----------------------------------------------------------------------------
// Stack helpers

// Emits the instructions that push whatever value is currently in 'D' onto the stack's top
// and then advance the Stack Pointer by one.
func push() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M+1"},
	}
}

// Emits the instructions that decrement the Stack Pointer and load the popped value into 'D'.
func pop() []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
	}
}

// ----------------------------------------------------------------------------
// Memory Op

// 'segmentBase' maps the pointer-backed segments to the Hack built-in symbol holding their
// base address; 'local'/'argument'/'this'/'that' are all resolved relative to this register.
var segmentBase = map[SegmentType]string{
	Local:    "LCL",
	Argument: "ARG",
	This:     "THIS",
	That:     "THAT",
}

func (vl *Lowerer) handleMemoryOp(op MemoryOp) ([]asm.Instruction, error) {
	if op.Segment == Pointer && op.Offset > 1 {
		return nil, fmt.Errorf("invalid 'pointer' offset, got %d", op.Offset)
	}
	if op.Segment == Temp && op.Offset > 7 {
		return nil, fmt.Errorf("invalid 'temp' offset, got %d", op.Offset)
	}

	switch op.Operation {
	case Push:
		return vl.handlePush(op)
	case Pop:
		return vl.handlePop(op)
	default:
		return nil, fmt.Errorf("unrecognized OperationType '%s'", op.Operation)
	}
}

func (vl *Lowerer) handlePush(op MemoryOp) ([]asm.Instruction, error) {
	var load []asm.Instruction

	switch op.Segment {
	case Constant:
		load = []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "A"},
		}

	case Local, Argument, This, That:
		load = []asm.Instruction{
			asm.AInstruction{Location: segmentBase[op.Segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "A", Comp: "D+A"},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}

	case Temp:
		load = []asm.Instruction{
			asm.AInstruction{Location: fmt.Sprint(5 + op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}

	case Pointer:
		load = []asm.Instruction{
			asm.AInstruction{Location: pointerTarget(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}

	case Static:
		load = []asm.Instruction{
			asm.AInstruction{Location: vl.staticLabel(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "M"},
		}

	default:
		return nil, fmt.Errorf("unrecognized SegmentType '%s'", op.Segment)
	}

	return append(load, push()...), nil
}

func (vl *Lowerer) handlePop(op MemoryOp) ([]asm.Instruction, error) {
	switch op.Segment {
	case Constant:
		return nil, fmt.Errorf("cannot 'pop' into the 'constant' segment")

	case Local, Argument, This, That:
		instrs := []asm.Instruction{
			asm.AInstruction{Location: segmentBase[op.Segment]},
			asm.CInstruction{Dest: "D", Comp: "M"},
			asm.AInstruction{Location: fmt.Sprint(op.Offset)},
			asm.CInstruction{Dest: "D", Comp: "D+A"},
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		}
		instrs = append(instrs, pop()...)
		return append(instrs,
			asm.AInstruction{Location: "R13"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Temp:
		instrs := pop()
		return append(instrs,
			asm.AInstruction{Location: fmt.Sprint(5 + op.Offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Pointer:
		instrs := pop()
		return append(instrs,
			asm.AInstruction{Location: pointerTarget(op.Offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	case Static:
		instrs := pop()
		return append(instrs,
			asm.AInstruction{Location: vl.staticLabel(op.Offset)},
			asm.CInstruction{Dest: "M", Comp: "D"},
		), nil

	default:
		return nil, fmt.Errorf("unrecognized SegmentType '%s'", op.Segment)
	}
}

// 'pointer 0'/'pointer 1' are aliases for the 'THIS'/'THAT' base registers themselves.
func pointerTarget(offset uint16) string {
	if offset == 0 {
		return "THIS"
	}
	return "THAT"
}

// Static variables are scoped per translation unit, we qualify them with the module's name so
// that 'static 3' in 'Foo.vm' never collides with 'static 3' declared in 'Bar.vm'.
func (vl *Lowerer) staticLabel(offset uint16) string {
	return fmt.Sprintf("%s.%d", strings.TrimSuffix(vl.module, ".vm"), offset)
}

// ----------------------------------------------------------------------------
// Arithmetic Op

func (vl *Lowerer) handleArithmeticOp(op ArithmeticOp) ([]asm.Instruction, error) {
	switch op.Operation {
	case Add:
		return vl.binaryOp("D+M"), nil
	case Sub:
		return vl.binaryOp("M-D"), nil
	case And:
		return vl.binaryOp("D&M"), nil
	case Or:
		return vl.binaryOp("D|M"), nil
	case Neg:
		return vl.unaryOp("-M"), nil
	case Not:
		return vl.unaryOp("!M"), nil
	case Eq:
		return vl.comparisonOp("JEQ"), nil
	case Gt:
		return vl.comparisonOp("JGT"), nil
	case Lt:
		return vl.comparisonOp("JLT"), nil
	default:
		return nil, fmt.Errorf("unrecognized ArithOpType '%s'", op.Operation)
	}
}

// Pops two values off the stack, combines them with 'comp' (in terms of the old 'M' and the
// popped 'D') and pushes the result back; used for add/sub/and/or.
func (vl *Lowerer) binaryOp(comp string) []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}
}

// Applies 'comp' (in terms of 'M', the stack's top) in place, without changing the Stack Pointer;
// used for neg/not.
func (vl *Lowerer) unaryOp(comp string) []asm.Instruction {
	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: comp},
	}
}

// Pops two values, subtracts them and jumps on 'jump' to decide between pushing -1 (true) or
// 0 (false); used for eq/gt/lt. Each call site gets its own pair of labels via 'nextLabel'.
func (vl *Lowerer) comparisonOp(jump string) []asm.Instruction {
	trueLabel, endLabel := vl.nextLabel("COMP_TRUE"), vl.nextLabel("COMP_END")

	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.CInstruction{Dest: "A", Comp: "A-1"},
		asm.CInstruction{Dest: "D", Comp: "M-D"},
		asm.AInstruction{Location: trueLabel},
		asm.CInstruction{Comp: "D", Jump: jump},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "0"},
		asm.AInstruction{Location: endLabel},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
		asm.LabelDecl{Name: trueLabel},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "A", Comp: "M-1"},
		asm.CInstruction{Dest: "M", Comp: "-1"},
		asm.LabelDecl{Name: endLabel},
	}
}

// ----------------------------------------------------------------------------
// Label Declaration & Branching

func (vl *Lowerer) handleLabelDecl(op LabelDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty label declaration")
	}
	return []asm.Instruction{asm.LabelDecl{Name: vl.scopedLabel(op.Name)}}, nil
}

func (vl *Lowerer) handleGotoOp(op GotoOp) ([]asm.Instruction, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to lower a jump to an empty label")
	}

	target := vl.scopedLabel(op.Label)

	if op.Jump == Unconditional {
		return []asm.Instruction{
			asm.AInstruction{Location: target},
			asm.CInstruction{Comp: "0", Jump: "JMP"},
		}, nil
	}

	return []asm.Instruction{
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: target},
		asm.CInstruction{Comp: "D", Jump: "JNE"},
	}, nil
}

// ----------------------------------------------------------------------------
// Function Declaration, Call & Return

func (vl *Lowerer) handleFuncDecl(op FuncDecl) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower an empty function declaration")
	}
	vl.function = op.Name

	instrs := []asm.Instruction{asm.LabelDecl{Name: op.Name}}
	for i := uint8(0); i < op.NLocal; i++ {
		instrs = append(instrs,
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "A", Comp: "M"},
			asm.CInstruction{Dest: "M", Comp: "0"},
			asm.AInstruction{Location: "SP"},
			asm.CInstruction{Dest: "M", Comp: "M+1"},
		)
	}
	return instrs, nil
}

func (vl *Lowerer) handleFuncCallOp(op FuncCallOp) ([]asm.Instruction, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to lower a call to an empty function name")
	}
	return lowerCall(op.Name, op.NArgs, vl.nextLabel(fmt.Sprintf("%s$ret", op.Name))), nil
}

// Emits the shared call protocol: saves the caller's frame, repositions ARG/LCL for the callee
// and jumps to it. 'retLabel' must already be a unique, fully formed label name.
func lowerCall(name string, nArgs uint8, retLabel string) []asm.Instruction {
	instrs := []asm.Instruction{
		asm.AInstruction{Location: retLabel},
		asm.CInstruction{Dest: "D", Comp: "A"},
	}
	instrs = append(instrs, push()...)

	for _, reg := range []string{"LCL", "ARG", "THIS", "THAT"} {
		instrs = append(instrs,
			asm.AInstruction{Location: reg},
			asm.CInstruction{Dest: "D", Comp: "M"},
		)
		instrs = append(instrs, push()...)
	}

	instrs = append(instrs,
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: fmt.Sprint(5 + nArgs)},
		asm.CInstruction{Dest: "D", Comp: "D-A"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		asm.AInstruction{Location: name},
		asm.CInstruction{Comp: "0", Jump: "JMP"},

		asm.LabelDecl{Name: retLabel},
	)

	return instrs
}

func (vl *Lowerer) handleReturnOp(op ReturnOp) ([]asm.Instruction, error) {
	return []asm.Instruction{
		// FRAME (R13) = LCL
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// RET (R14) = *(FRAME - 5)
		asm.AInstruction{Location: "5"},
		asm.CInstruction{Dest: "A", Comp: "D-A"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// *ARG = pop()
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "M-1"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// SP = ARG + 1
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "D", Comp: "M+1"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// THAT = *(FRAME - 1)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THAT"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// THIS = *(FRAME - 2)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "THIS"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// ARG = *(FRAME - 3)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "ARG"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// LCL = *(FRAME - 4)
		asm.AInstruction{Location: "R13"},
		asm.CInstruction{Dest: "AM", Comp: "M-1"},
		asm.CInstruction{Dest: "D", Comp: "M"},
		asm.AInstruction{Location: "LCL"},
		asm.CInstruction{Dest: "M", Comp: "D"},

		// goto RET
		asm.AInstruction{Location: "R14"},
		asm.CInstruction{Dest: "A", Comp: "M"},
		asm.CInstruction{Comp: "0", Jump: "JMP"},
	}, nil
}

// Bootstrap emits the fixed prologue that every full Hack program carries ahead of the
// translated modules: initialize the Stack Pointer to 256 and call 'Sys.init' as any other
// function, with zero arguments and no caller frame to restore.
func Bootstrap() []asm.Instruction {
	instrs := []asm.Instruction{
		asm.AInstruction{Location: "256"},
		asm.CInstruction{Dest: "D", Comp: "A"},
		asm.AInstruction{Location: "SP"},
		asm.CInstruction{Dest: "M", Comp: "D"},
	}
	return append(instrs, lowerCall("Sys.init", 0, "Bootstrap$ret.0")...)
}
