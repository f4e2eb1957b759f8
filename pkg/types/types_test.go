package types

import (
	"testing"

	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/pattern"
)

func TestInferLinksStoredValueTypeIntoTheVariable(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Header: []pattern.Element{
			{Kind: pattern.Literal, Word: "init"},
			{Kind: pattern.ExpressionSlot, Word: "target"},
		},
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "store", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "target"},
				{Kind: pattern.ArgNumber, Text: "3"},
			}},
		},
	}

	bus := &diag.Bus{}
	out := Infer([]*pattern.Definition{def}, bus)
	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Items())
	}
	// store's variable is an L-value sharing the stored value's type.
	if out[1].ParamTypes["target"] != pattern.I64 {
		t.Errorf("expected target to infer I64 from the value stored into it, got %s", out[1].ParamTypes["target"])
	}
}

func TestInferAllowsStoreThenArithmeticOnTheSameVariable(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Header: []pattern.Element{
			{Kind: pattern.ExpressionSlot, Word: "var"},
			{Kind: pattern.ExpressionSlot, Word: "val"},
		},
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "store", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "var"},
				{Kind: pattern.ArgIdent, Text: "val"},
			}},
			{Name: "add", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "var"},
				{Kind: pattern.ArgNumber, Text: "1"},
			}},
		},
	}
	bus := &diag.Bus{}
	Infer([]*pattern.Definition{def}, bus)
	if bus.HasErrors() {
		t.Errorf("store followed by add on the same variable must not conflict: %v", bus.Items())
	}
}

func TestInferLeavesNumericParameterUnknownWhenOnlyUsedNumerically(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Header: []pattern.Element{
			{Kind: pattern.ExpressionSlot, Word: "a"},
			{Kind: pattern.ExpressionSlot, Word: "b"},
		},
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "add", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "a"},
				{Kind: pattern.ArgIdent, Text: "b"},
			}},
		},
	}

	bus := &diag.Bus{}
	out := Infer([]*pattern.Definition{def}, bus)
	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Items())
	}
	// the numeric rule only checks a parameter that is already known to be
	// a number; it never promotes Unknown on its own.
	if out[1].ParamTypes["a"] != pattern.Unknown {
		t.Errorf("expected a to remain unknown, got %s", out[1].ParamTypes["a"])
	}
}

func TestInferReportsConflictWhenNumericRuleMeetsAKnownNonNumericParameter(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Header: []pattern.Element{
			{Kind: pattern.ExpressionSlot, Word: "v"},
		},
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "store", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "v"},
				{Kind: pattern.ArgString, Text: "text"},
			}},
			{Name: "add", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "v"},
				{Kind: pattern.ArgNumber, Text: "1"},
			}},
		},
	}
	bus := &diag.Bus{}
	Infer([]*pattern.Definition{def}, bus)
	if !bus.HasErrors() {
		t.Fatal("expected a type conflict once v (String via the stored value) is used as a number by add")
	}
	if bus.Items()[0].Kind != diag.KindTypeConflict {
		t.Errorf("expected KindTypeConflict, got %v", bus.Items()[0].Kind)
	}
}

func TestInferReportsUnknownIntrinsic(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "teleport", Args: []pattern.IntrinsicArg{{Kind: pattern.ArgIdent, Text: "x"}}},
		},
	}
	bus := &diag.Bus{}
	Infer([]*pattern.Definition{def}, bus)
	if !bus.HasErrors() {
		t.Fatal("expected an unknown-intrinsic diagnostic")
	}
	if bus.Items()[0].Kind != diag.KindUnknownIntrinsic {
		t.Errorf("expected KindUnknownIntrinsic, got %v", bus.Items()[0].Kind)
	}
}

func TestInferReportsTypeConflictOnStringLiteralPassedToArithmetic(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Header: []pattern.Element{
			{Kind: pattern.ExpressionSlot, Word: "v"},
		},
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "store", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgString, Text: "key"},
				{Kind: pattern.ArgIdent, Text: "v"},
			}},
			{Name: "add", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgString, Text: "not-a-number"},
				{Kind: pattern.ArgIdent, Text: "v"},
			}},
		},
	}
	bus := &diag.Bus{}
	Infer([]*pattern.Definition{def}, bus)
	if !bus.HasErrors() {
		t.Fatal("expected a type conflict diagnostic for the string literal passed to add")
	}
}

func TestInferSetsReturnTypeFromReturnIntrinsic(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "return", Args: []pattern.IntrinsicArg{{Kind: pattern.ArgNumber, Text: "1"}}},
		},
	}
	bus := &diag.Bus{}
	out := Infer([]*pattern.Definition{def}, bus)
	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Items())
	}
	if out[1].ReturnType != pattern.I64 {
		t.Errorf("expected ReturnType I64 from a numeric return argument, got %s", out[1].ReturnType)
	}
}

func TestResultTypeJoinsNumericOperandsAndRejectsUnknownName(t *testing.T) {
	rt, ok := ResultType("add", []pattern.InferredType{pattern.I64, pattern.I64})
	if !ok || rt != pattern.I64 {
		t.Errorf("expected add(I64, I64) -> I64, got %s ok=%v", rt, ok)
	}
	rt, ok = ResultType("add", []pattern.InferredType{pattern.I64, pattern.F64})
	if !ok || rt != pattern.F64 {
		t.Errorf("expected add(I64, F64) -> F64 (wider join), got %s ok=%v", rt, ok)
	}
	if _, ok := ResultType("nonexistent", nil); ok {
		t.Error("expected ok=false for an unrecognized intrinsic name")
	}
}

func TestResultTypeComparisonsReturnBool(t *testing.T) {
	rt, ok := ResultType("cmp_eq", []pattern.InferredType{pattern.I64, pattern.I64})
	if !ok || rt != pattern.Bool {
		t.Errorf("expected cmp_eq -> Bool, got %s ok=%v", rt, ok)
	}
}

func TestInferPropagatesBoolIntoAConditionThunkParameter(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Header: []pattern.Element{
			{Kind: pattern.Literal, Word: "until"},
			{Kind: pattern.LazyCapture, Word: "cond"},
		},
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "loop_while", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "cond"},
				{Kind: pattern.ArgIdent, Text: "body"},
			}},
		},
	}
	bus := &diag.Bus{}
	out := Infer([]*pattern.Definition{def}, bus)
	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Items())
	}
	if out[1].ParamTypes["cond"] != pattern.Bool {
		t.Errorf("expected cond to infer Bool from loop_while, got %s", out[1].ParamTypes["cond"])
	}
}

func TestResultTypeForeignCallReturnsFloat(t *testing.T) {
	rt, ok := ResultType("call", []pattern.InferredType{pattern.String, pattern.String, pattern.F64})
	if !ok || rt != pattern.F64 {
		t.Errorf("expected call -> F64, got %s ok=%v", rt, ok)
	}
	rt, ok = ResultType("execute_if", []pattern.InferredType{pattern.Bool, pattern.Unknown})
	if !ok || rt != pattern.Void {
		t.Errorf("expected execute_if -> Void, got %s ok=%v", rt, ok)
	}
}

func TestResultTypeLoadAndEvaluatePassTheOperandTypeThrough(t *testing.T) {
	rt, ok := ResultType("load", []pattern.InferredType{pattern.I64})
	if !ok || rt != pattern.I64 {
		t.Errorf("expected load of an i64 variable -> I64, got %s ok=%v", rt, ok)
	}
	rt, ok = ResultType("evaluate", []pattern.InferredType{pattern.Bool})
	if !ok || rt != pattern.Bool {
		t.Errorf("expected evaluate of a bool thunk -> Bool, got %s ok=%v", rt, ok)
	}
	rt, ok = ResultType("execute", []pattern.InferredType{pattern.Unknown})
	if !ok || rt != pattern.Void {
		t.Errorf("expected execute -> Void, got %s ok=%v", rt, ok)
	}
}

func TestInferTypesLoadOfABodyLocalThroughAPriorStore(t *testing.T) {
	// store 3 into a body-local, then return load of it: the local's
	// recorded type flows through load into the return type.
	def := &pattern.Definition{
		ID:   1,
		Kind: pattern.ExpressionDef,
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "store", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "tmp"},
				{Kind: pattern.ArgNumber, Text: "3"},
			}},
			{Name: "return", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgExpr, Nested: &pattern.IntrinsicCall{
					Name: "load",
					Args: []pattern.IntrinsicArg{{Kind: pattern.ArgIdent, Text: "tmp"}},
				}},
			}},
		},
	}
	bus := &diag.Bus{}
	out := Infer([]*pattern.Definition{def}, bus)
	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Items())
	}
	if out[1].ReturnType != pattern.I64 {
		t.Errorf("expected ReturnType I64 via store/load of the local, got %s", out[1].ReturnType)
	}
}

func TestInferCountsANestedIntrinsicOperandTowardArity(t *testing.T) {
	def := &pattern.Definition{
		ID: 1,
		Header: []pattern.Element{
			{Kind: pattern.ExpressionSlot, Word: "var"},
		},
		Intrinsics: []pattern.IntrinsicCall{
			{Name: "store", Args: []pattern.IntrinsicArg{
				{Kind: pattern.ArgIdent, Text: "var"},
				{Kind: pattern.ArgExpr, Nested: &pattern.IntrinsicCall{
					Name: "add",
					Args: []pattern.IntrinsicArg{
						{Kind: pattern.ArgIdent, Text: "var"},
						{Kind: pattern.ArgNumber, Text: "1"},
					},
				}},
			}},
		},
	}
	bus := &diag.Bus{}
	Infer([]*pattern.Definition{def}, bus)
	if bus.HasErrors() {
		t.Errorf("a nested add operand must satisfy store's arity and types: %v", bus.Items())
	}
}
