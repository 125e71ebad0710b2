package jack_test

import (
	"reflect"
	"strings"
	"testing"

	"n2t.dev/hackcore/pkg/jack"
	"n2t.dev/hackcore/pkg/vm"
)

func parse(t *testing.T, source string, known ...string) vm.Module {
	t.Helper()
	parser, err := jack.NewParser(strings.NewReader(source), jack.NewKnownClasses(known...))
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	module, err := parser.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return module
}

// Reproduces spec scenario 6 verbatim: 'function void main() { var int x; let x = (1 + 2) * 3; return; }'
func TestParserArithmeticAssignment(t *testing.T) {
	src := `
	class Main {
		function void main() {
			var int x;
			let x = (1 + 2) * 3;
			return;
		}
	}`

	got := parse(t, src, "Main")
	want := vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocal: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 3},
		vm.FuncCallOp{Name: "Math.multiply", NArgs: 2},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Local, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected module:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestParserConstructorAllocatesAndBindsReceiver(t *testing.T) {
	src := `
	class Point {
		field int x, y;

		constructor Point new(int ax, int ay) {
			let x = ax;
			let y = ay;
			return this;
		}
	}`

	got := parse(t, src, "Point")
	want := vm.Module{
		vm.FuncDecl{Name: "Point.new", NLocal: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.FuncCallOp{Name: "Memory.alloc", NArgs: 1},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.This, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Argument, Offset: 1},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.This, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 0},
		vm.ReturnOp{},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected module:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestParserMethodCallDispatch(t *testing.T) {
	src := `
	class Main {
		function void main() {
			var Point p;
			do p.move(1, 2);
			return;
		}
	}`

	got := parse(t, src, "Main", "Point")
	want := vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocal: 1},
		// p.move(1, 2): instance call, pushes receiver then args, argCount+1
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.FuncCallOp{Name: "Point.move", NArgs: 3},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected module:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestParserArrayAssignmentOrdering(t *testing.T) {
	src := `
	class Main {
		function void main() {
			var Array a;
			let a[0] = a[1];
			return;
		}
	}`

	got := parse(t, src, "Main", "Array")
	want := vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocal: 1},
		// address of a[0]
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ArithmeticOp{Operation: vm.Add},
		// RHS: a[1]
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Local, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
		vm.ArithmeticOp{Operation: vm.Add},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.That, Offset: 0},
		// stash RHS, install LHS address, commit
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Pointer, Offset: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.That, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected module:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestParserIfElseLabels(t *testing.T) {
	src := `
	class Main {
		function void main() {
			if (true) {
				let x = 1;
			} else {
				let x = 2;
			}
			return;
		}

		static int x;
	}`

	got := parse(t, src, "Main")
	want := vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocal: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ArithmeticOp{Operation: vm.Not},
		vm.GotoOp{Jump: vm.Conditional, Label: "IF_TRUE_0"},
		vm.GotoOp{Jump: vm.Unconditional, Label: "IF_FALSE_0"},
		vm.LabelDecl{Name: "IF_TRUE_0"},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 1},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 0},
		vm.GotoOp{Jump: vm.Unconditional, Label: "IF_END_0"},
		vm.LabelDecl{Name: "IF_FALSE_0"},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 0},
		vm.LabelDecl{Name: "IF_END_0"},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected module:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestParserStringLiteral(t *testing.T) {
	src := `
	class Main {
		function void main() {
			do Output.printString("hi");
			return;
		}
	}`

	got := parse(t, src, "Main", "Output")
	want := vm.Module{
		vm.FuncDecl{Name: "Main.main", NLocal: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 2},
		vm.FuncCallOp{Name: "String.new", NArgs: 1},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16('h')},
		vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: uint16('i')},
		vm.FuncCallOp{Name: "String.appendChar", NArgs: 2},
		vm.FuncCallOp{Name: "Output.printString", NArgs: 1},
		vm.MemoryOp{Operation: vm.Pop, Segment: vm.Temp, Offset: 0},
		vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 0},
		vm.ReturnOp{},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected module:\n got: %+v\nwant: %+v", got, want)
	}
}
