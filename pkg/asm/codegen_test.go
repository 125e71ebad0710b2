package asm_test

import (
	"testing"

	"n2t.dev/hackcore/pkg/asm"
)

func TestAInstructions(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := asm.NewCodeGenerator([]asm.Statement{})

	test := func(inst asm.AInstruction, expected string, fail bool) {
		res, err := codegen.GenerateAInst(inst)
		if err != nil {
			if !fail {
				t.Fail()
			}
			return
		}
		if fail || res != expected {
			t.Fail()
		}
	}

	t.Run("Raw memory access", func(t *testing.T) {
		test(asm.AInstruction{Location: "38"}, "@38", false)
		test(asm.AInstruction{Location: "1024"}, "@1024", false)
	})

	t.Run("Hack built-in labels", func(t *testing.T) {
		test(asm.AInstruction{Location: "SP"}, "@SP", false)
		test(asm.AInstruction{Location: "R15"}, "@R15", false)
		test(asm.AInstruction{Location: "KBD"}, "@KBD", false)
		test(asm.AInstruction{Location: "SCREEN"}, "@SCREEN", false)
	})

	t.Run("User-defined labels", func(t *testing.T) {
		test(asm.AInstruction{Location: "Test1"}, "@Test1", false)
		test(asm.AInstruction{Location: "hmny"}, "@hmny", false)
	})

	t.Run("Malformed", func(t *testing.T) {
		test(asm.AInstruction{Location: ""}, "", true)
	})
}

func TestCInstructions(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := asm.NewCodeGenerator([]asm.Statement{})

	test := func(inst asm.CInstruction, expected string, fail bool) {
		res, err := codegen.GenerateCInst(inst)
		if err != nil {
			if !fail {
				t.Fail()
			}
			return
		}
		if fail || res != expected {
			t.Fail()
		}
	}

	t.Run("Comp only", func(t *testing.T) {
		// A bare 'comp' with neither 'dest' nor 'jump' is syntactically valid, if useless at runtime
		test(asm.CInstruction{Comp: "D"}, "D", false)
		test(asm.CInstruction{Comp: "0"}, "0", false)
	})

	t.Run("Comp and Jump", func(t *testing.T) {
		test(asm.CInstruction{Comp: "0", Jump: "JGT"}, "0;JGT", false)
		test(asm.CInstruction{Comp: "D", Jump: "JGE"}, "D;JGE", false)
		test(asm.CInstruction{Comp: "!M", Jump: "JNE"}, "!M;JNE", false)
	})

	t.Run("Dest and Comp", func(t *testing.T) {
		test(asm.CInstruction{Comp: "D-A", Dest: "M"}, "M=D-A", false)
		test(asm.CInstruction{Comp: "D&A", Dest: "A"}, "A=D&A", false)
		test(asm.CInstruction{Comp: "D", Dest: "AMD"}, "AMD=D", false)
	})

	t.Run("Dest, Comp and Jump combined", func(t *testing.T) {
		test(asm.CInstruction{Dest: "D", Comp: "D-1", Jump: "JGT"}, "D=D-1;JGT", false)
		test(asm.CInstruction{Dest: "M", Comp: "M+1", Jump: "JLE"}, "M=M+1;JLE", false)
	})

	t.Run("Malformed", func(t *testing.T) {
		// Missing 'comp' is always invalid, regardless of 'dest'/'jump' being present
		test(asm.CInstruction{Dest: "AM", Jump: "JNE"}, "", true)
		test(asm.CInstruction{Dest: "AMD"}, "", true)
		test(asm.CInstruction{Jump: "JGT"}, "", true)
	})
}

func TestLabelDecl(t *testing.T) {
	// Instantiate a shared codegen instance for every test cases
	codegen := asm.NewCodeGenerator([]asm.Statement{})

	test := func(inst asm.LabelDecl, expected string, fail bool) {
		res, err := codegen.GenerateLabelDecl(inst)
		if err != nil {
			if !fail {
				t.Fail()
			}
			return
		}
		if fail || res != expected {
			t.Fail()
		}
	}

	t.Run("Fuzzy labels", func(t *testing.T) {
		test(asm.LabelDecl{Name: "test123"}, "(test123)", false)
		test(asm.LabelDecl{Name: "PONG"}, "(PONG)", false)
	})

	t.Run("Conflicting with built-ins", func(t *testing.T) {
		test(asm.LabelDecl{Name: "SP"}, "", true)
		test(asm.LabelDecl{Name: "R1"}, "", true)
		test(asm.LabelDecl{Name: "LCL"}, "", true)
		test(asm.LabelDecl{Name: "R15"}, "", true)
	})
}
