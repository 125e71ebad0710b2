package jack

import (
	"fmt"
	"io"

	"n2t.dev/hackcore/pkg/vm"
)

// Parser implements a two-pass recursive-descent compiler for one Jack source file, emitting
// vm.Operation values directly rather than building an intermediate AST: the textbook Jack
// grammar maps onto the VM's stack discipline closely enough that a separate build-then-lower
// step only adds bookkeeping (the teacher's own attempt at that layer, pkg/jack's old
// goparsec-based parsing.go, never got past 'not implemented yet').
//
// Pass 1 runs with emission silenced: it walks the class body just far enough to populate the
// class-level symbol table (static and field declarations, one method-entry record per method)
// and then skips every subroutine body wholesale. Pass 2 rewinds the tokenizer and performs a
// full parse, building a fresh per-subroutine scope and emitting VM operations as it goes.
type Parser struct {
	tok   *Tokenizer
	known KnownClasses

	class     *ClassScope
	className string

	sub      *SubroutineScope
	subKind  SubroutineKind
	ifSeq    uint32
	whileSeq uint32

	ops vm.Module
}

func NewParser(r io.Reader, known KnownClasses) (*Parser, error) {
	tok, err := NewTokenizer(r)
	if err != nil {
		return nil, err
	}
	return &Parser{tok: tok, known: known}, nil
}

// Runs both passes and returns the resulting VM module (one operation list per class, matching
// a translation unit 1:1 with the source .jack file).
func (p *Parser) Parse() (vm.Module, error) {
	p.tok.Restart()
	p.tok.Advance()
	if err := p.parseClass(false); err != nil {
		return nil, fmt.Errorf("pass 1 (symbol scan): %w", err)
	}

	p.tok.Restart()
	p.tok.Advance()
	p.ops = vm.Module{}
	if err := p.parseClass(true); err != nil {
		return nil, fmt.Errorf("pass 2 (emission): %w", err)
	}

	return p.ops, nil
}

// ----------------------------------------------------------------------------
// Token plumbing

func (p *Parser) cur() (Token, bool) { return p.tok.Current() }

func (p *Parser) expectKeyword(kw string) error {
	t, ok := p.cur()
	if !ok || t.Type != Keyword || t.Value != kw {
		return fmt.Errorf("line %d: expected keyword %q, got %q", line(t), kw, t.Value)
	}
	p.tok.Advance()
	return nil
}

func (p *Parser) expectSymbol(sym string) error {
	t, ok := p.cur()
	if !ok || t.Type != Symbol || t.Value != sym {
		return fmt.Errorf("line %d: expected symbol %q, got %q", line(t), sym, t.Value)
	}
	p.tok.Advance()
	return nil
}

func (p *Parser) expectIdentifier() (string, error) {
	t, ok := p.cur()
	if !ok || t.Type != Identifier {
		return "", fmt.Errorf("line %d: expected identifier, got %q", line(t), t.Value)
	}
	p.tok.Advance()
	return t.Value, nil
}

func (p *Parser) atSymbol(sym string) bool {
	t, ok := p.cur()
	return ok && t.Type == Symbol && t.Value == sym
}

func (p *Parser) atKeyword(kws ...string) bool {
	t, ok := p.cur()
	if !ok || t.Type != Keyword {
		return false
	}
	for _, kw := range kws {
		if t.Value == kw {
			return true
		}
	}
	return false
}

func line(t Token) int { return t.Line }

// ----------------------------------------------------------------------------
// Class structure

func (p *Parser) parseClass(emit bool) error {
	if err := p.expectKeyword("class"); err != nil {
		return err
	}
	name, err := p.expectIdentifier()
	if err != nil {
		return err
	}
	p.className = name
	if emit {
		// Pass 1 already built the class scope; pass 2 reuses it as-is.
	} else {
		p.class = NewClassScope(name)
	}

	if err := p.expectSymbol("{"); err != nil {
		return err
	}

	for !p.atSymbol("}") {
		if p.atKeyword("static", "field") {
			if err := p.parseClassVarDec(emit); err != nil {
				return err
			}
			continue
		}
		if p.atKeyword("constructor", "function", "method") {
			if err := p.parseSubroutine(emit); err != nil {
				return err
			}
			continue
		}
		t, _ := p.cur()
		return fmt.Errorf("line %d: unexpected token %q in class body", line(t), t.Value)
	}

	return p.expectSymbol("}")
}

func (p *Parser) parseClassVarDec(emit bool) error {
	t, _ := p.cur()
	kind := StaticVar
	if t.Value == "field" {
		kind = FieldVar
	}
	p.tok.Advance()

	dataType, className, err := p.parseType()
	if err != nil {
		return err
	}

	for {
		name, err := p.expectIdentifier()
		if err != nil {
			return err
		}
		if !emit {
			p.class.Declare(name, dataType, className, kind)
		}
		if p.atSymbol(",") {
			p.tok.Advance()
			continue
		}
		break
	}

	return p.expectSymbol(";")
}

// parseType consumes a type token (int/char/boolean/className) and returns (dataType,
// className); className is only set for object types.
func (p *Parser) parseType() (string, string, error) {
	t, ok := p.cur()
	if !ok {
		return "", "", fmt.Errorf("unexpected end of input, expected a type")
	}
	switch {
	case t.Type == Keyword && (t.Value == "int" || t.Value == "char" || t.Value == "boolean" || t.Value == "void"):
		p.tok.Advance()
		return t.Value, "", nil
	case t.Type == Identifier:
		p.tok.Advance()
		return t.Value, t.Value, nil
	default:
		return "", "", fmt.Errorf("line %d: expected a type, got %q", line(t), t.Value)
	}
}

// ----------------------------------------------------------------------------
// Subroutines

func (p *Parser) parseSubroutine(emit bool) error {
	t, _ := p.cur()
	kind := SubroutineKind(t.Value)
	p.tok.Advance()

	if _, _, err := p.parseType(); err != nil { // return type, unused beyond validation
		return err
	}

	name, err := p.expectIdentifier()
	if err != nil {
		return err
	}

	if !emit && kind == Method {
		p.class.DeclareMethod(name)
	}

	if err := p.expectSymbol("("); err != nil {
		return err
	}

	if !emit {
		// Pass 1 never needs argument details, so the parameter list is skipped wholesale.
		if err := p.skipUntilBalanced("(", ")"); err != nil {
			return err
		}
	} else {
		p.sub = NewSubroutineScope()
		p.subKind = kind
		p.ifSeq, p.whileSeq = 0, 0
		if kind == Method {
			p.sub.Declare("this", p.className, p.className, ArgumentVar)
		}
		if err := p.parseParameterList(); err != nil {
			return err
		}
	}

	if err := p.expectSymbol(")"); err != nil {
		return err
	}

	if !emit {
		if err := p.expectSymbol("{"); err != nil {
			return err
		}
		return p.skipUntilBalancedBody()
	}

	return p.parseSubroutineBody(name)
}

func (p *Parser) parseParameterList() error {
	if p.atSymbol(")") {
		return nil
	}
	for {
		dataType, className, err := p.parseType()
		if err != nil {
			return err
		}
		name, err := p.expectIdentifier()
		if err != nil {
			return err
		}
		p.sub.Declare(name, dataType, className, ArgumentVar)

		if p.atSymbol(",") {
			p.tok.Advance()
			continue
		}
		break
	}
	return nil
}

// parseSubroutineBody implements the prologue-flush scheme of spec 4.5.1: the 'function'
// directive (and, for constructors/methods, the allocation/receiver-binding sequence) is only
// emitted once every 'var' declaration has been scanned, since 'nLocals' isn't known until then.
func (p *Parser) parseSubroutineBody(name string) error {
	if err := p.expectSymbol("{"); err != nil {
		return err
	}

	for p.atKeyword("var") {
		if err := p.parseVarDec(); err != nil {
			return err
		}
	}

	p.emit(vm.FuncDecl{Name: p.className + "." + name, NLocal: uint8(p.sub.LocalCount())})
	switch p.subKind {
	case Constructor:
		p.push(vm.Constant, p.class.FieldCount())
		p.emit(vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1})
		p.pop(vm.Pointer, 0)
	case Method:
		p.push(vm.Argument, 0)
		p.pop(vm.Pointer, 0)
	}

	if err := p.parseStatements(); err != nil {
		return err
	}

	return p.expectSymbol("}")
}

func (p *Parser) parseVarDec() error {
	p.tok.Advance() // 'var'
	dataType, className, err := p.parseType()
	if err != nil {
		return err
	}
	for {
		name, err := p.expectIdentifier()
		if err != nil {
			return err
		}
		p.sub.Declare(name, dataType, className, LocalVar)
		if p.atSymbol(",") {
			p.tok.Advance()
			continue
		}
		break
	}
	return p.expectSymbol(";")
}

// ----------------------------------------------------------------------------
// Pass-1 skipping helpers

func (p *Parser) skipUntilBalanced(open, closeSym string) error {
	depth := 1
	for depth > 0 {
		t, ok := p.cur()
		if !ok {
			return fmt.Errorf("unexpected end of input while skipping %q...%q", open, closeSym)
		}
		if t.Type == Symbol && t.Value == open {
			depth++
		} else if t.Type == Symbol && t.Value == closeSym {
			depth--
			if depth == 0 {
				return nil
			}
		}
		p.tok.Advance()
	}
	return nil
}

func (p *Parser) skipUntilBalancedBody() error {
	depth := 1
	for depth > 0 {
		t, ok := p.cur()
		if !ok {
			return fmt.Errorf("unexpected end of input while skipping subroutine body")
		}
		if t.Type == Symbol && t.Value == "{" {
			depth++
		} else if t.Type == Symbol && t.Value == "}" {
			depth--
		}
		p.tok.Advance()
		if depth == 0 {
			return nil
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Statements

func (p *Parser) parseStatements() error {
	for p.atKeyword("let", "if", "while", "do", "return") {
		if err := p.parseStatement(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseStatement() error {
	t, _ := p.cur()
	switch t.Value {
	case "let":
		return p.parseLet()
	case "if":
		return p.parseIf()
	case "while":
		return p.parseWhile()
	case "do":
		return p.parseDo()
	case "return":
		return p.parseReturn()
	default:
		return fmt.Errorf("line %d: unexpected statement keyword %q", line(t), t.Value)
	}
}

func (p *Parser) parseLet() error {
	p.tok.Advance() // 'let'
	name, err := p.expectIdentifier()
	if err != nil {
		return err
	}

	v, err := p.resolveVar(name)
	if err != nil {
		return err
	}

	if p.atSymbol("[") {
		p.tok.Advance()
		p.push(segmentOf(v.Kind), v.Index)
		if err := p.parseExpression(); err != nil {
			return err
		}
		if err := p.expectSymbol("]"); err != nil {
			return err
		}
		p.arith(vm.Add)

		if err := p.expectSymbol("="); err != nil {
			return err
		}
		if err := p.parseExpression(); err != nil {
			return err
		}
		if err := p.expectSymbol(";"); err != nil {
			return err
		}

		p.pop(vm.Temp, 0)
		p.pop(vm.Pointer, 1)
		p.push(vm.Temp, 0)
		p.pop(vm.That, 0)
		return nil
	}

	if err := p.expectSymbol("="); err != nil {
		return err
	}
	if err := p.parseExpression(); err != nil {
		return err
	}
	if err := p.expectSymbol(";"); err != nil {
		return err
	}
	p.pop(segmentOf(v.Kind), v.Index)
	return nil
}

func (p *Parser) parseIf() error {
	p.tok.Advance() // 'if'
	if err := p.expectSymbol("("); err != nil {
		return err
	}
	if err := p.parseExpression(); err != nil {
		return err
	}
	if err := p.expectSymbol(")"); err != nil {
		return err
	}

	k := p.ifSeq
	p.ifSeq++
	trueLbl, falseLbl, endLbl := fmt.Sprintf("IF_TRUE_%d", k), fmt.Sprintf("IF_FALSE_%d", k), fmt.Sprintf("IF_END_%d", k)

	p.goTo(vm.Conditional, trueLbl)
	p.goTo(vm.Unconditional, falseLbl)
	p.label(trueLbl)

	if err := p.expectSymbol("{"); err != nil {
		return err
	}
	if err := p.parseStatements(); err != nil {
		return err
	}
	if err := p.expectSymbol("}"); err != nil {
		return err
	}

	if p.atKeyword("else") {
		p.tok.Advance()
		p.goTo(vm.Unconditional, endLbl)
		p.label(falseLbl)

		if err := p.expectSymbol("{"); err != nil {
			return err
		}
		if err := p.parseStatements(); err != nil {
			return err
		}
		if err := p.expectSymbol("}"); err != nil {
			return err
		}
		p.label(endLbl)
		return nil
	}

	p.label(falseLbl)
	return nil
}

func (p *Parser) parseWhile() error {
	p.tok.Advance() // 'while'
	k := p.whileSeq
	p.whileSeq++
	expLbl, endLbl := fmt.Sprintf("WHILE_EXP_%d", k), fmt.Sprintf("WHILE_END_%d", k)

	p.label(expLbl)
	if err := p.expectSymbol("("); err != nil {
		return err
	}
	if err := p.parseExpression(); err != nil {
		return err
	}
	if err := p.expectSymbol(")"); err != nil {
		return err
	}
	p.arith(vm.Not)
	p.goTo(vm.Conditional, endLbl)

	if err := p.expectSymbol("{"); err != nil {
		return err
	}
	if err := p.parseStatements(); err != nil {
		return err
	}
	if err := p.expectSymbol("}"); err != nil {
		return err
	}

	p.goTo(vm.Unconditional, expLbl)
	p.label(endLbl)
	return nil
}

func (p *Parser) parseDo() error {
	p.tok.Advance() // 'do'
	name, err := p.expectIdentifier()
	if err != nil {
		return err
	}
	if err := p.parseCall(name); err != nil {
		return err
	}
	if err := p.expectSymbol(";"); err != nil {
		return err
	}
	p.pop(vm.Temp, 0)
	return nil
}

func (p *Parser) parseReturn() error {
	p.tok.Advance() // 'return'
	if p.atSymbol(";") {
		p.push(vm.Constant, 0)
	} else if err := p.parseExpression(); err != nil {
		return err
	}
	if err := p.expectSymbol(";"); err != nil {
		return err
	}
	p.emit(vm.ReturnOp{})
	return nil
}

// ----------------------------------------------------------------------------
// Expressions

func (p *Parser) parseExpression() error {
	if err := p.parseTerm(); err != nil {
		return err
	}
	for p.atBinaryOp() {
		t, _ := p.cur()
		op := t.Value
		p.tok.Advance()
		if err := p.parseTerm(); err != nil {
			return err
		}
		p.emitBinaryOp(op)
	}
	return nil
}

func (p *Parser) atBinaryOp() bool {
	t, ok := p.cur()
	if !ok || t.Type != Symbol {
		return false
	}
	switch t.Value {
	case "+", "-", "*", "/", "&", "|", "<", ">", "=":
		return true
	}
	return false
}

func (p *Parser) emitBinaryOp(op string) {
	switch op {
	case "+":
		p.arith(vm.Add)
	case "-":
		p.arith(vm.Sub)
	case "*":
		p.emit(vm.FuncCallOp{Name: "Math.multiply", NArgs: 2})
	case "/":
		p.emit(vm.FuncCallOp{Name: "Math.divide", NArgs: 2})
	case "&":
		p.arith(vm.And)
	case "|":
		p.arith(vm.Or)
	case "<":
		p.arith(vm.Lt)
	case ">":
		p.arith(vm.Gt)
	case "=":
		p.arith(vm.Eq)
	}
}

func (p *Parser) parseTerm() error {
	t, ok := p.cur()
	if !ok {
		return fmt.Errorf("unexpected end of input, expected a term")
	}

	switch {
	case t.Type == IntConst:
		p.tok.Advance()
		var n uint16
		fmt.Sscanf(t.Value, "%d", &n)
		p.push(vm.Constant, n)
		return nil

	case t.Type == StringConst:
		p.tok.Advance()
		return p.emitStringLiteral(t.Value)

	case t.Type == Keyword && t.Value == "true":
		p.tok.Advance()
		p.push(vm.Constant, 0)
		p.arith(vm.Not)
		return nil

	case t.Type == Keyword && (t.Value == "false" || t.Value == "null"):
		p.tok.Advance()
		p.push(vm.Constant, 0)
		return nil

	case t.Type == Keyword && t.Value == "this":
		p.tok.Advance()
		p.push(vm.Pointer, 0)
		return nil

	case t.Type == Symbol && t.Value == "(":
		p.tok.Advance()
		if err := p.parseExpression(); err != nil {
			return err
		}
		return p.expectSymbol(")")

	case t.Type == Symbol && (t.Value == "-" || t.Value == "~"):
		p.tok.Advance()
		if err := p.parseTerm(); err != nil {
			return err
		}
		if t.Value == "-" {
			p.arith(vm.Neg)
		} else {
			p.arith(vm.Not)
		}
		return nil

	case t.Type == Identifier:
		p.tok.Advance()
		return p.parseIdentifierTerm(t.Value)

	default:
		return fmt.Errorf("line %d: unexpected token %q in expression", line(t), t.Value)
	}
}

// emitStringLiteral realizes a Jack string constant the way String.new/appendChar expect:
// allocate, then append one character at a time, per spec 4.5.3.
func (p *Parser) emitStringLiteral(s string) error {
	p.push(vm.Constant, uint16(len(s)))
	p.emit(vm.FuncCallOp{Name: "String.new", NArgs: 1})
	for i := 0; i < len(s); i++ {
		p.push(vm.Constant, uint16(s[i]))
		p.emit(vm.FuncCallOp{Name: "String.appendChar", NArgs: 2})
	}
	return nil
}

// parseIdentifierTerm implements the four-way disambiguation of spec 4.5.3 for an identifier
// already consumed as the start of a term.
func (p *Parser) parseIdentifierTerm(name string) error {
	if p.atSymbol("[") {
		p.tok.Advance()
		v, err := p.resolveVar(name)
		if err != nil {
			return err
		}
		p.push(segmentOf(v.Kind), v.Index)
		if err := p.parseExpression(); err != nil {
			return err
		}
		if err := p.expectSymbol("]"); err != nil {
			return err
		}
		p.arith(vm.Add)
		p.pop(vm.Pointer, 1)
		p.push(vm.That, 0)
		return nil
	}

	if p.atSymbol(".") || p.atSymbol("(") {
		return p.parseCall(name)
	}

	v, err := p.resolveVar(name)
	if err != nil {
		return err
	}
	p.push(segmentOf(v.Kind), v.Index)
	return nil
}

// parseCall implements the qualified/unqualified call forms of spec 4.5.3/4.5.4; 'name' is the
// identifier already consumed before the '.' or '(' that triggered the call.
func (p *Parser) parseCall(name string) error {
	if p.atSymbol("(") {
		p.tok.Advance()
		p.push(vm.Pointer, 0)
		n, err := p.parseExpressionList()
		if err != nil {
			return err
		}
		if err := p.expectSymbol(")"); err != nil {
			return err
		}
		p.emit(vm.FuncCallOp{Name: p.className + "." + name, NArgs: uint8(n + 1)})
		return nil
	}

	if err := p.expectSymbol("."); err != nil {
		return err
	}
	member, err := p.expectIdentifier()
	if err != nil {
		return err
	}
	if err := p.expectSymbol("("); err != nil {
		return err
	}

	if p.known.Has(name) {
		n, err := p.parseExpressionList()
		if err != nil {
			return err
		}
		if err := p.expectSymbol(")"); err != nil {
			return err
		}
		p.emit(vm.FuncCallOp{Name: name + "." + member, NArgs: uint8(n)})
		return nil
	}

	v, err := p.resolveVar(name)
	if err != nil {
		return err
	}
	p.push(segmentOf(v.Kind), v.Index)
	n, err := p.parseExpressionList()
	if err != nil {
		return err
	}
	if err := p.expectSymbol(")"); err != nil {
		return err
	}
	p.emit(vm.FuncCallOp{Name: v.ClassName + "." + member, NArgs: uint8(n + 1)})
	return nil
}

func (p *Parser) parseExpressionList() (int, error) {
	if p.atSymbol(")") {
		return 0, nil
	}
	n := 0
	for {
		if err := p.parseExpression(); err != nil {
			return 0, err
		}
		n++
		if p.atSymbol(",") {
			p.tok.Advance()
			continue
		}
		break
	}
	return n, nil
}

// ----------------------------------------------------------------------------
// Small emission helpers

func (p *Parser) emit(op vm.Operation)              { p.ops = append(p.ops, op) }
func (p *Parser) push(seg vm.SegmentType, off uint16) { p.emit(vm.MemoryOp{Operation: vm.Push, Segment: seg, Offset: off}) }
func (p *Parser) pop(seg vm.SegmentType, off uint16)  { p.emit(vm.MemoryOp{Operation: vm.Pop, Segment: seg, Offset: off}) }
func (p *Parser) arith(op vm.ArithOpType)             { p.emit(vm.ArithmeticOp{Operation: op}) }
func (p *Parser) label(name string)                   { p.emit(vm.LabelDecl{Name: name}) }
func (p *Parser) goTo(jump vm.JumpType, target string) {
	p.emit(vm.GotoOp{Jump: jump, Label: target})
}

func (p *Parser) resolveVar(name string) (Variable, error) {
	if p.sub != nil {
		if v, found := p.sub.Resolve(name); found {
			return v, nil
		}
	}
	if v, found := p.class.Resolve(name); found {
		return v, nil
	}
	return Variable{}, fmt.Errorf("variable %q undeclared in class %s", name, p.className)
}

func segmentOf(kind VarKind) vm.SegmentType {
	switch kind {
	case StaticVar:
		return vm.Static
	case FieldVar:
		return vm.This
	case ArgumentVar:
		return vm.Argument
	case LocalVar:
		return vm.Local
	default:
		return vm.Local
	}
}
