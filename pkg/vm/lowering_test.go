package vm_test

import (
	"testing"

	"n2t.dev/hackcore/pkg/asm"
	"n2t.dev/hackcore/pkg/vm"
)

func countMnemonic(instrs []asm.Instruction, location string) int {
	n := 0
	for _, instr := range instrs {
		if a, ok := instr.(asm.AInstruction); ok && a.Location == location {
			n++
		}
	}
	return n
}

func TestLowerPushConstantAdd(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{
		"Main.vm": vm.Module{
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 7},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 8},
			vm.ArithmeticOp{Operation: vm.Add},
		},
	})

	instrs, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if countMnemonic(instrs, "7") != 1 || countMnemonic(instrs, "8") != 1 {
		t.Fatalf("expected literal operands 7 and 8 to appear once each, got:\n%+v", instrs)
	}
}

func TestLowerStaticIsQualifiedByModule(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{
		"Foo.vm": vm.Module{vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 3}},
		"Bar.vm": vm.Module{vm.MemoryOp{Operation: vm.Pop, Segment: vm.Static, Offset: 3}},
	})

	instrs, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if countMnemonic(instrs, "Foo.3") != 1 {
		t.Fatalf("expected Foo.vm's static 3 to be qualified as 'Foo.3', got:\n%+v", instrs)
	}
	if countMnemonic(instrs, "Bar.3") != 1 {
		t.Fatalf("expected Bar.vm's static 3 to be qualified as 'Bar.3', got:\n%+v", instrs)
	}
}

func TestLowerLabelIsScopedToFunction(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{
		"Main.vm": vm.Module{
			vm.FuncDecl{Name: "Main.loop", NLocal: 0},
			vm.LabelDecl{Name: "LOOP"},
			vm.GotoOp{Jump: vm.Unconditional, Label: "LOOP"},
		},
	})

	instrs, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	found := false
	for _, instr := range instrs {
		if l, ok := instr.(asm.LabelDecl); ok && l.Name == "Main.loop$LOOP" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected label 'LOOP' to be scope-qualified as 'Main.loop$LOOP', got:\n%+v", instrs)
	}
	if countMnemonic(instrs, "Main.loop$LOOP") != 1 {
		t.Fatalf("expected the goto to target the scope-qualified label, got:\n%+v", instrs)
	}
}

func TestLowerFunctionCallLinksToCallee(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{
		"Main.vm": vm.Module{
			vm.FuncDecl{Name: "Main.main", NLocal: 0},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 3},
			vm.MemoryOp{Operation: vm.Push, Segment: vm.Constant, Offset: 4},
			vm.FuncCallOp{Name: "Math.multiply", NArgs: 2},
			vm.ReturnOp{},
		},
	})

	instrs, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if countMnemonic(instrs, "Math.multiply") != 1 {
		t.Fatalf("expected a jump into the callee 'Math.multiply', got:\n%+v", instrs)
	}
}

func TestLowerReturnRestoresFrame(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{
		"Main.vm": vm.Module{vm.ReturnOp{}},
	})

	instrs, err := lowerer.Lower()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if countMnemonic(instrs, "R13") == 0 || countMnemonic(instrs, "R14") == 0 {
		t.Fatalf("expected the return sequence to use R13/R14 as scratch registers, got:\n%+v", instrs)
	}
}

func TestLowerEmptyProgram(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{})
	if _, err := lowerer.Lower(); err == nil {
		t.Fatal("expected an error when lowering an empty program")
	}
}

func TestLowerUnboundedPointerOffset(t *testing.T) {
	lowerer := vm.NewLowerer(vm.Program{
		"Main.vm": vm.Module{vm.MemoryOp{Operation: vm.Push, Segment: vm.Pointer, Offset: 2}},
	})
	if _, err := lowerer.Lower(); err == nil {
		t.Fatal("expected an error for an out-of-range 'pointer' offset")
	}
}

func TestBootstrapInitializesStackAndCallsSysInit(t *testing.T) {
	instrs := vm.Bootstrap()
	if countMnemonic(instrs, "256") != 1 {
		t.Fatalf("expected the bootstrap to set SP to 256, got:\n%+v", instrs)
	}
	if countMnemonic(instrs, "Sys.init") != 1 {
		t.Fatalf("expected the bootstrap to jump into 'Sys.init', got:\n%+v", instrs)
	}
}
