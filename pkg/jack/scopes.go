package jack

// VarKind identifies which of the four Jack variable kinds a declaration belongs to, which in
// turn fixes the VM segment it's realized on (see segmentOf in parser.go).
type VarKind string

const (
	StaticVar   VarKind = "static"
	FieldVar    VarKind = "field"
	ArgumentVar VarKind = "argument"
	LocalVar    VarKind = "local"
)

// Variable is a single symbol-table entry: its declared kind, data type and, for object-typed
// variables, the Jack class it's an instance of (used to resolve 'X.member' calls where X is an
// instance rather than a class name, per the qualified-call disambiguation rule).
type Variable struct {
	Name      string
	Kind      VarKind
	DataType  string // "int", "boolean", "char", "void", or an object type name
	ClassName string // set when DataType names a user/stdlib class, empty for primitives
	Index     uint16 // position within its kind, i.e. count of prior same-kind declarations
}

// MethodEntry records that a class declares a method of the given name, captured during pass 1
// and queryable through IsMethod. The parser does not consult it: every unqualified call 'X(...)'
// is compiled as a method call on the current class.
type MethodEntry struct {
	Name string
}

// ClassScope holds everything known about one class: its static and field variables (kept for
// the lifetime of the class, unlike subroutine-local declarations) and the set of its own
// method names. Each kind counts independently -- a variable's Index is the number of prior
// declarations of the SAME kind, not a position in a combined list.
type ClassScope struct {
	Name    string
	vars    map[string]Variable
	methods map[string]MethodEntry
	nStatic uint16
	nField  uint16
}

func NewClassScope(name string) *ClassScope {
	return &ClassScope{Name: name, vars: map[string]Variable{}, methods: map[string]MethodEntry{}}
}

// Declares a static or field variable, assigning it the next available index for its kind.
// Only StaticVar and FieldVar are valid kinds at class scope.
func (cs *ClassScope) Declare(name, dataType, className string, kind VarKind) Variable {
	var index uint16
	switch kind {
	case StaticVar:
		index, cs.nStatic = cs.nStatic, cs.nStatic+1
	case FieldVar:
		index, cs.nField = cs.nField, cs.nField+1
	}

	v := Variable{Name: name, Kind: kind, DataType: dataType, ClassName: className, Index: index}
	cs.vars[name] = v
	return v
}

// Records that the class declares a method with the given name (see MethodEntry).
func (cs *ClassScope) DeclareMethod(name string) {
	cs.methods[name] = MethodEntry{Name: name}
}

// Looks up a static or field variable declared directly on this class.
func (cs *ClassScope) Resolve(name string) (Variable, bool) {
	v, found := cs.vars[name]
	return v, found
}

// Reports whether the class declares a method with the given name.
func (cs *ClassScope) IsMethod(name string) bool {
	_, found := cs.methods[name]
	return found
}

// Number of field variables declared so far, i.e. the object size to allocate in a constructor.
func (cs *ClassScope) FieldCount() uint16 { return cs.nField }

// SubroutineScope holds the argument and local variables of one subroutine body; discarded as
// soon as the subroutine has been fully parsed, unlike ClassScope which lives for the whole
// class. A method's implicit receiver is registered as argument 0 by the caller before any
// user-written parameter, matching the Jack calling convention.
type SubroutineScope struct {
	vars   map[string]Variable
	nArg   uint16
	nLocal uint16
}

func NewSubroutineScope() *SubroutineScope {
	return &SubroutineScope{vars: map[string]Variable{}}
}

// Declares an argument or local variable, assigning it the next available index for its kind.
// Only ArgumentVar and LocalVar are valid kinds at subroutine scope.
func (ss *SubroutineScope) Declare(name, dataType, className string, kind VarKind) Variable {
	var index uint16
	switch kind {
	case ArgumentVar:
		index, ss.nArg = ss.nArg, ss.nArg+1
	case LocalVar:
		index, ss.nLocal = ss.nLocal, ss.nLocal+1
	}

	v := Variable{Name: name, Kind: kind, DataType: dataType, ClassName: className, Index: index}
	ss.vars[name] = v
	return v
}

// Looks up an argument or local variable declared in this subroutine.
func (ss *SubroutineScope) Resolve(name string) (Variable, bool) {
	v, found := ss.vars[name]
	return v, found
}

// Number of local variables declared so far, i.e. the 'nLocals' operand of the function's
// prologue 'function Class.name nLocals' directive.
func (ss *SubroutineScope) LocalCount() uint16 { return ss.nLocal }
