package types

import (
	"strings"

	"github.com/threebx-lang/threebx/pkg/pattern"
)

// argRule constrains one positional argument of an intrinsic call.
type argRule int

const (
	argAny argRule = iota // unconstrained: type flows from the call site
	argString
	argNumeric
	argBool
)

// signature is one entry of the fixed intrinsic table. Returns computes
// the call's result type from its already-resolved argument types;
// isReturn marks the "return" intrinsic, whose argument type becomes
// its enclosing definition's ReturnType rather than an ordinary value.
type signature struct {
	name     string
	minArgs  int
	argRules []argRule
	varRule  argRule // rule for arguments past argRules (variadic tail)
	returns  func(args []pattern.InferredType) pattern.InferredType
	isReturn bool
	linkArgs bool // first two arguments share one type (store's L-value and value)
}

// table is the complete intrinsic vocabulary. Any name outside it is a
// diagnostic. store's first argument is an L-value sharing the element
// type of the value stored into it, and load/evaluate yield that same
// element type back; add/sub/mul/div prefer integer arithmetic when
// both operands are integers, stay unknown while either operand is
// unknown, and fall back to float otherwise; every
// cmp_* intrinsic yields a boolean.
var table = map[string]signature{
	"print": {name: "print", minArgs: 1, argRules: []argRule{argAny},
		returns: constant(pattern.Void)},
	"store": {name: "store", minArgs: 2, argRules: []argRule{argAny, argAny},
		linkArgs: true, returns: constant(pattern.Void)},
	"load": {name: "load", minArgs: 1, argRules: []argRule{argAny},
		returns: first},
	"add": {name: "add", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: joinNumeric},
	"sub": {name: "sub", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: joinNumeric},
	"mul": {name: "mul", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: joinNumeric},
	"div": {name: "div", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: joinNumeric},
	"cmp_eq":  {name: "cmp_eq", minArgs: 2, argRules: []argRule{argAny, argAny}, returns: constant(pattern.Bool)},
	"cmp_neq": {name: "cmp_neq", minArgs: 2, argRules: []argRule{argAny, argAny}, returns: constant(pattern.Bool)},
	"cmp_lt":  {name: "cmp_lt", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: constant(pattern.Bool)},
	"cmp_gt":  {name: "cmp_gt", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: constant(pattern.Bool)},
	"cmp_lte": {name: "cmp_lte", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: constant(pattern.Bool)},
	"cmp_gte": {name: "cmp_gte", minArgs: 2, argRules: []argRule{argNumeric, argNumeric}, returns: constant(pattern.Bool)},
	"return": {name: "return", minArgs: 0, argRules: []argRule{argAny},
		returns: constant(pattern.Void), isReturn: true},
	"loop_while": {name: "loop_while", minArgs: 2, argRules: []argRule{argBool, argAny},
		returns: constant(pattern.Void)},
	"execute": {name: "execute", minArgs: 1, argRules: []argRule{argAny}, returns: constant(pattern.Void)},
	"execute_if": {name: "execute_if", minArgs: 2, argRules: []argRule{argBool, argAny},
		returns: constant(pattern.Void)},
	"evaluate": {name: "evaluate", minArgs: 1, argRules: []argRule{argAny}, returns: first},
	"call": {name: "call", minArgs: 2, argRules: []argRule{argString, argString},
		varRule: argNumeric, returns: constant(pattern.F64)},
}

func constant(t pattern.InferredType) func([]pattern.InferredType) pattern.InferredType {
	return func([]pattern.InferredType) pattern.InferredType { return t }
}

// first passes the first argument's type through, the shape of load and
// evaluate: both yield whatever their operand holds.
func first(args []pattern.InferredType) pattern.InferredType {
	if len(args) == 0 {
		return pattern.Unknown
	}
	return args[0]
}

// joinNumeric: integer arithmetic when both operands are i64, unknown
// while either operand is still unknown, float arithmetic otherwise.
func joinNumeric(args []pattern.InferredType) pattern.InferredType {
	if len(args) < 2 {
		return pattern.Unknown
	}
	if args[0] == pattern.I64 && args[1] == pattern.I64 {
		return pattern.I64
	}
	if args[0] == pattern.Unknown || args[1] == pattern.Unknown {
		return pattern.Unknown
	}
	return pattern.F64
}

// literalArgType determines the static type of an intrinsic argument
// that is itself a literal (not a reference to a header parameter).
func literalArgType(a pattern.IntrinsicArg) pattern.InferredType {
	switch a.Kind {
	case pattern.ArgString:
		return pattern.String
	case pattern.ArgNumber:
		if strings.Contains(a.Text, ".") {
			return pattern.F64
		}
		return pattern.I64
	default:
		return pattern.Unknown
	}
}

// ruleType is the type an argRule demands, or Unknown for argAny and for
// argNumeric (which admits two types and is handled by the caller).
func ruleType(r argRule) pattern.InferredType {
	switch r {
	case argString:
		return pattern.String
	case argBool:
		return pattern.Bool
	default:
		return pattern.Unknown
	}
}
