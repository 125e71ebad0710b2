package jack

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the Jack programming language.
//
// A program is basically a container of classes (the only top-level construct allowed) and is
// started by locating the Main class and executing its 'main' method. Unlike the teacher's
// original design, this package never builds a Program/Class/Statement/Expression AST: the
// Parser emits VM operations directly during its second pass (see parser.go), since the Jack
// grammar and the VM's stack discipline are simple enough that no intermediate tree earns its
// keep, and the teacher's own goparsec-based attempt at this layer was abandoned (parsing.go's
// 'Parser.Parse not implemented yet'). What remains here are the small shared vocabulary types
// (SubroutineKind) that both passes of the Parser need.

// SubroutineKind distinguishes the three subroutine declaration forms, each with its own
// prologue (see parseSubroutineBody in parser.go, which flushes the prologue once nLocals
// is known).
type SubroutineKind string

const (
	Constructor SubroutineKind = "constructor"
	Function    SubroutineKind = "function"
	Method      SubroutineKind = "method"
)

// KnownClasses is the program-wide set of class names visible to every translation unit,
// collected up front from the .jack file stems passed on the command line plus, only when the
// compiler runs with --stdlib, the Jack standard library's class names; without that option
// a call such as 'Output.printString(...)' does not resolve, since 'Output' is then looked up as
// a variable. It is the only cross-class information the Parser needs: resolving
// 'X.member' at a call site only requires knowing whether X NAMES a class, never that class's
// method signatures (the callee's own prologue handles its arguments).
type KnownClasses map[string]bool

func NewKnownClasses(names ...string) KnownClasses {
	kc := KnownClasses{}
	for _, name := range names {
		kc[name] = true
	}
	return kc
}

func (kc KnownClasses) Has(name string) bool { return kc[name] }
