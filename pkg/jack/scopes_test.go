package jack_test

import (
	"testing"

	"n2t.dev/hackcore/pkg/jack"
)

func TestClassScope(t *testing.T) {
	test := func(cs *jack.ClassScope, lookup string, expected jack.Variable, found bool) {
		v, ok := cs.Resolve(lookup)
		if ok != found {
			t.Fatalf("expected Resolve(%q) found=%v, got %v", lookup, found, ok)
		}
		if found && v != expected {
			t.Errorf("expected to resolve %q to %+v, got %+v", lookup, expected, v)
		}
	}

	t.Run("static and field counters are independent", func(t *testing.T) {
		cs := jack.NewClassScope("TestClass")

		cs.Declare("test_field", "int", "", jack.FieldVar)
		cs.Declare("test_static", "String", "String", jack.StaticVar)
		cs.Declare("test_field_2", "char", "", jack.FieldVar)
		cs.Declare("test_static_2", "boolean", "", jack.StaticVar)

		test(cs, "test_field", jack.Variable{Name: "test_field", Kind: jack.FieldVar, DataType: "int", Index: 0}, true)
		test(cs, "test_static", jack.Variable{Name: "test_static", Kind: jack.StaticVar, DataType: "String", ClassName: "String", Index: 0}, true)
		test(cs, "test_field_2", jack.Variable{Name: "test_field_2", Kind: jack.FieldVar, DataType: "char", Index: 1}, true)
		test(cs, "test_static_2", jack.Variable{Name: "test_static_2", Kind: jack.StaticVar, DataType: "boolean", Index: 1}, true)

		test(cs, "missing", jack.Variable{}, false)

		if cs.FieldCount() != 2 {
			t.Errorf("expected field count 2, got %d", cs.FieldCount())
		}
	})

	t.Run("method names are tracked separately from variables", func(t *testing.T) {
		cs := jack.NewClassScope("TestClass")
		cs.DeclareMethod("doSomething")

		if !cs.IsMethod("doSomething") {
			t.Errorf("expected doSomething to be registered as a method")
		}
		if cs.IsMethod("somethingElse") {
			t.Errorf("did not expect somethingElse to be registered as a method")
		}
	})
}

func TestSubroutineScope(t *testing.T) {
	test := func(ss *jack.SubroutineScope, lookup string, expected jack.Variable, found bool) {
		v, ok := ss.Resolve(lookup)
		if ok != found {
			t.Fatalf("expected Resolve(%q) found=%v, got %v", lookup, found, ok)
		}
		if found && v != expected {
			t.Errorf("expected to resolve %q to %+v, got %+v", lookup, expected, v)
		}
	}

	t.Run("argument and local counters are independent", func(t *testing.T) {
		ss := jack.NewSubroutineScope()

		ss.Declare("test_arg", "int", "", jack.ArgumentVar)
		ss.Declare("test_local", "String", "String", jack.LocalVar)
		ss.Declare("test_arg_2", "char", "", jack.ArgumentVar)
		ss.Declare("test_local_2", "boolean", "", jack.LocalVar)

		test(ss, "test_arg", jack.Variable{Name: "test_arg", Kind: jack.ArgumentVar, DataType: "int", Index: 0}, true)
		test(ss, "test_local", jack.Variable{Name: "test_local", Kind: jack.LocalVar, DataType: "String", ClassName: "String", Index: 0}, true)
		test(ss, "test_arg_2", jack.Variable{Name: "test_arg_2", Kind: jack.ArgumentVar, DataType: "char", Index: 1}, true)
		test(ss, "test_local_2", jack.Variable{Name: "test_local_2", Kind: jack.LocalVar, DataType: "boolean", Index: 1}, true)

		test(ss, "missing", jack.Variable{}, false)

		if ss.LocalCount() != 2 {
			t.Errorf("expected local count 2, got %d", ss.LocalCount())
		}
	})

	t.Run("method receiver occupies argument slot 0", func(t *testing.T) {
		ss := jack.NewSubroutineScope()
		ss.Declare("this", "TestClass", "TestClass", jack.ArgumentVar)
		ss.Declare("x", "int", "", jack.ArgumentVar)

		test(ss, "x", jack.Variable{Name: "x", Kind: jack.ArgumentVar, DataType: "int", Index: 1}, true)
	})
}
