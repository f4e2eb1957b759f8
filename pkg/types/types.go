// Package types implements type inference: a join-lattice unifier over
// a closed type set, seeded by a fixed intrinsic signature table and
// propagated from each pattern definition's own body.
package types

import (
	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/source"
)

// Infer computes a TypedDefinition for every definition, reporting
// unknown intrinsics and type conflicts to bus. The lattice has Unknown
// as bottom and the five concrete types as siblings above it: unifying
// two distinct concrete types is always a conflict.
func Infer(defs []*pattern.Definition, bus *diag.Bus) map[int]*pattern.TypedDefinition {
	out := make(map[int]*pattern.TypedDefinition, len(defs))
	for _, d := range defs {
		out[d.ID] = inferOne(d, bus)
	}
	return out
}

// ResultType looks up an intrinsic's result type given its already
// resolved argument types; ok is false for a name the table doesn't
// recognize. Exported for the IR assembler, which needs a per-call
// result type rather than the whole-definition summary Infer produces.
func ResultType(name string, argTypes []pattern.InferredType) (pattern.InferredType, bool) {
	sig, ok := table[name]
	if !ok {
		return pattern.Unknown, false
	}
	return sig.returns(argTypes), true
}

// inferState carries one definition's bindings during inference: the
// header parameters being typed, plus body-local variables introduced
// by store so that a later load of the same name yields its type.
type inferState struct {
	td     *pattern.TypedDefinition
	locals map[string]pattern.InferredType
}

func (s *inferState) binding(name string) pattern.InferredType {
	if t, isParam := s.td.ParamTypes[name]; isParam {
		return t
	}
	return s.locals[name]
}

func (s *inferState) setBinding(name string, t pattern.InferredType) {
	if _, isParam := s.td.ParamTypes[name]; isParam {
		s.td.ParamTypes[name] = t
		return
	}
	s.locals[name] = t
}

func inferOne(def *pattern.Definition, bus *diag.Bus) *pattern.TypedDefinition {
	td := &pattern.TypedDefinition{
		Def:            def,
		ParamTypes:     map[string]pattern.InferredType{},
		ReturnType:     pattern.Unknown,
		IntrinsicCalls: def.Intrinsics,
	}
	for _, el := range def.Header {
		if el.IsCapture() && el.Kind != pattern.SectionCapture {
			td.ParamTypes[el.Word] = pattern.Unknown
		}
	}
	st := &inferState{td: td, locals: map[string]pattern.InferredType{}}

	// Constraint propagation needs more than one left-to-right pass: a
	// parameter's type may only become known from a call that appears
	// after an earlier call already consulted it. Three passes is
	// enough to reach a fixpoint for the table's non-cyclic signatures;
	// a fourth pass would see no further change. Diagnostics only fire
	// on the final pass, so a conflict is reported once rather than
	// once per pass.
	const passes = 3
	for pass := 0; pass < passes; pass++ {
		report := pass == passes-1
		for _, call := range def.Intrinsics {
			applyCall(st, call, bus, report)
		}
	}
	return td
}

// applyCall types one intrinsic call against the signature table,
// propagating constraints into the state's bindings, and returns the
// call's result type.
func applyCall(st *inferState, call pattern.IntrinsicCall, bus *diag.Bus, report bool) pattern.InferredType {
	sig, ok := table[call.Name]
	if !ok {
		if report {
			bus.Errorf(diag.KindUnknownIntrinsic, source.Range{Start: call.Line}, "unknown intrinsic %q", call.Name)
		}
		return pattern.Unknown
	}
	if report && len(call.Args) < sig.minArgs {
		bus.Errorf(diag.KindUnresolvedParam, source.Range{Start: call.Line},
			"intrinsic %q expects at least %d argument(s), got %d", call.Name, sig.minArgs, len(call.Args))
	}

	argTypes := make([]pattern.InferredType, len(call.Args))
	for i, a := range call.Args {
		rule := sig.varRule
		if i < len(sig.argRules) {
			rule = sig.argRules[i]
		}
		argTypes[i] = resolveArgType(st, a, rule, call, bus, report)
	}

	if sig.linkArgs && len(call.Args) >= 2 {
		linkLValue(st, call, argTypes, bus, report)
	}

	if sig.isReturn {
		ret := pattern.Void
		if len(argTypes) > 0 {
			ret = argTypes[0]
		}
		joined, ok := unify(st.td.ReturnType, ret)
		if !ok {
			if report {
				bus.Errorf(diag.KindTypeConflict, source.Range{Start: call.Line},
					"return type conflict: %s vs %s", st.td.ReturnType, ret)
			}
			return pattern.Void
		}
		st.td.ReturnType = joined
		return pattern.Void
	}
	return sig.returns(argTypes)
}

// linkLValue unifies store's two operands: the stored-into variable is
// an L-value sharing the element type of the value stored into it. A
// non-identifier first operand contributes no type of its own. The
// joined type flows back into whichever operands name bindings.
func linkLValue(st *inferState, call pattern.IntrinsicCall, argTypes []pattern.InferredType, bus *diag.Bus, report bool) {
	varArg, valArg := call.Args[0], call.Args[1]
	varType := pattern.Unknown
	if varArg.Kind == pattern.ArgIdent {
		varType = argTypes[0]
	}
	joined, ok := unify(varType, argTypes[1])
	if !ok {
		if report {
			bus.Errorf(diag.KindTypeConflict, source.Range{Start: call.Line},
				"variable %q holds %s but is stored a %s", varArg.Text, varType, argTypes[1])
		}
		return
	}
	if joined == pattern.Unknown {
		return
	}
	for _, a := range []pattern.IntrinsicArg{varArg, valArg} {
		if a.Kind == pattern.ArgIdent {
			st.setBinding(a.Text, joined)
		}
	}
}

// resolveArgType determines one argument's type, propagating a rule's
// demand back into the binding it names when that binding's type is
// still Unknown: constraints flow from use sites back to the declaring
// parameter. A nested intrinsic operand is typed by recursing into it.
func resolveArgType(st *inferState, a pattern.IntrinsicArg, rule argRule, call pattern.IntrinsicCall, bus *diag.Bus, report bool) pattern.InferredType {
	switch a.Kind {
	case pattern.ArgExpr:
		t := pattern.Unknown
		if a.Nested != nil {
			t = applyCall(st, *a.Nested, bus, report)
		}
		checkRule(rule, t, call, bus, report)
		return t
	case pattern.ArgIdent:
		// handled below
	default:
		t := literalArgType(a)
		checkRule(rule, t, call, bus, report)
		return t
	}

	current := st.binding(a.Text)

	demanded := ruleType(rule)
	if rule == argNumeric {
		if current == pattern.I64 || current == pattern.F64 {
			return current
		}
		if current != pattern.Unknown {
			if report {
				bus.Errorf(diag.KindTypeConflict, source.Range{Start: call.Line},
					"parameter %q used as a number but inferred %s", a.Text, current)
			}
		}
		return current
	}
	if demanded == pattern.Unknown {
		return current // argAny: no constraint to propagate
	}

	joined, ok := unify(current, demanded)
	if !ok {
		if report {
			bus.Errorf(diag.KindTypeConflict, source.Range{Start: call.Line},
				"parameter %q inferred both %s and %s", a.Text, current, demanded)
		}
		return current
	}
	st.setBinding(a.Text, joined)
	return joined
}

func checkRule(rule argRule, actual pattern.InferredType, call pattern.IntrinsicCall, bus *diag.Bus, report bool) {
	if !report {
		return
	}
	demanded := ruleType(rule)
	if rule == argNumeric && actual != pattern.I64 && actual != pattern.F64 && actual != pattern.Unknown {
		bus.Errorf(diag.KindTypeConflict, source.Range{Start: call.Line}, "intrinsic %q expects a number, got %s", call.Name, actual)
		return
	}
	if demanded == pattern.Unknown || demanded == actual || actual == pattern.Unknown {
		return
	}
	bus.Errorf(diag.KindTypeConflict, source.Range{Start: call.Line}, "intrinsic %q expects %s, got %s", call.Name, demanded, actual)
}

// unify joins two types on the Unknown-bottomed lattice.
func unify(a, b pattern.InferredType) (pattern.InferredType, bool) {
	if a == pattern.Unknown {
		return b, true
	}
	if b == pattern.Unknown {
		return a, true
	}
	if a == b {
		return a, true
	}
	return a, false
}
