package vm

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the VM intermediate language.
//
// We declare a shared 'Operation' interface for every macro operation available for the
// language and we define some other useful top-level struct such as Program and Module.
// Is important to note that a VM program can be composed of multiple translation units
// that can be also referenced as file or modules or also classes.

// A VM Program is just a set of multiple modules/files, in the VM spec each Jack class is
// translated to its own .vm file (just like Java .class file) that can be handled as its
// own translation unit during the compilation or lowering phases. Modules are keyed by
// their translation unit name (e.g. 'Main.vm') since that name both identifies the static
// segment ('Main.0', 'Main.1', ...) and disambiguates functions declared across modules.
type Program map[string]Module

// A VM Module is just a linear list of VM operations/instructions
type Module []Operation

// Used to put together all operation in the VM language (Memory, Arithmetic, ... ops).
type Operation interface{}

// ----------------------------------------------------------------------------
// Memory Op

// In memory representation of a Memory operation for the VM language.
//
// In the VM intermediate language there are only two possible memory operation on the stack.
// We could either push a new value taken from the specified segment location on the stack's
// top or take the stack's top and saves its value at the specified segment location.
type MemoryOp struct {
	Operation OperationType // The type of operation, either 'push' or 'pop'
	Segment   SegmentType   // The named memory segment to use (this, that, temp, ...)
	Offset    uint16        // The specific location/offset inside of the memory segment
}

type OperationType string // Enum to manage the operation allowed for a MemoryOp

const (
	Push OperationType = "push"
	Pop  OperationType = "pop"
)

type SegmentType string // Enum to manage the segment accessible for a MemoryOp

const (
	Temp     SegmentType = "temp"     // Real segment used to store intermediate computations
	Constant SegmentType = "constant" // Virtual segment used to access numeric constant

	Local    SegmentType = "local"    // Real segment used to store local function variables
	Static   SegmentType = "static"   // Real segment used to store shared/static variables
	Argument SegmentType = "argument" // Real segment used to store function's argument

	This    SegmentType = "this"    // Virtual segment used to point to a specific memory location
	That    SegmentType = "that"    // Virtual segment used to point to a specific memory location
	Pointer SegmentType = "pointer" // Real segment w/ 2 location used to set the 'this' and 'that' pointers
)

// ----------------------------------------------------------------------------
// Arithmetic Op

// In memory representation of a Arithmetic operation for the VM language.
//
// In the VM intermediate language there are just a handful of operation available.
// In particular each operation acts directly on the top of the stack, of course we have both unary
// and binary operation, the specific management of each op will be handled in the codegen phase.
type ArithmeticOp struct{ Operation ArithOpType }

type ArithOpType string // Enum to manage the operation allowed for an ArithmeticOp

const (
	Eq ArithOpType = "eq" // Comparison operations
	Gt ArithOpType = "gt"
	Lt ArithOpType = "lt"

	Add ArithOpType = "add" // Arithmetic operations
	Sub ArithOpType = "sub"
	Neg ArithOpType = "neg"

	Not ArithOpType = "not" // Bitwise operations
	And ArithOpType = "and"
	Or  ArithOpType = "or"
)

// ----------------------------------------------------------------------------
// Label Declaration & Branching

// In memory representation of a label declaration inside a VM function.
//
// Labels are only valid inside the function they're declared in, during codegen each
// label gets scope-qualified with the enclosing function's name to keep it unique across
// the whole translation unit (e.g. 'label LOOP' inside 'Main.fibonacci' becomes 'Main.fibonacci$LOOP').
type LabelDecl struct {
	Name string // The identifier chosen by the Jack compiler (or hand-written VM source) for the label
}

// In memory representation of an (un)conditional jump to a label, either 'goto' or 'if-goto'.
type GotoOp struct {
	Jump  JumpType // Whether the jump is unconditional ('goto') or conditional on the stack top ('if-goto')
	Label string   // The target label's identifier, scope-qualified the same way as 'LabelDecl'
}

type JumpType string // Enum to distinguish 'goto' from 'if-goto'

const (
	Unconditional JumpType = "goto"    // Always taken
	Conditional   JumpType = "if-goto" // Taken only if the popped stack top is non-zero
)

// ----------------------------------------------------------------------------
// Function Declaration, Call & Return

// In memory representation of a function/subroutine declaration.
//
// Declaring a function reserves 'NLocal' zeroed slots on the stack for its local variables,
// this is part of the calling convention shared between the VM and the upstream Jack compiler.
type FuncDecl struct {
	Name   string // Fully qualified function name (e.g. 'Main.fibonacci')
	NLocal uint8  // The number of local variables to allocate (and zero-initialize) on entry
}

// In memory representation of a function call.
//
// Calling a function saves the caller's frame (return address and segment pointers) on the
// stack, sets up ARG/LCL for the callee and jumps to it; see the VM calling convention.
type FuncCallOp struct {
	Name  string // Fully qualified name of the callee (e.g. 'Math.multiply')
	NArgs uint8  // The number of arguments already pushed on the stack by the caller
}

// In memory representation of a function return statement.
//
// Restores the caller's frame from the callee's stack frame, pops the return value in place
// of the arguments and jumps back to the saved return address.
type ReturnOp struct{}
