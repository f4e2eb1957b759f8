// Package ir flattens the matched and typed pattern tree into a typed
// intermediate representation: one function per pattern definition, plus
// a typed call sequence for the top-level program. Deferred arguments
// stay thunks; nothing here forces an evaluation.
package ir

import (
	"sort"
	"strconv"
	"strings"

	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/resolve"
	"github.com/threebx-lang/threebx/pkg/section"
	"github.com/threebx-lang/threebx/pkg/source"
	"github.com/threebx-lang/threebx/pkg/trie"
	"github.com/threebx-lang/threebx/pkg/types"
)

// CallKind is the closed set of call-node kinds, dispatched with a
// switch rather than a runtime type test.
type CallKind int

const (
	IntrinsicCallKind CallKind = iota
	PatternCallKind
)

// ValueKind is the closed set of IR value kinds.
type ValueKind int

const (
	LiteralValue ValueKind = iota
	ParamRef
	NestedCall
)

// Value is one typed operand: a literal, a reference to a parameter (or
// a body-local name the header doesn't bind), or a nested pattern
// invocation produced by expression substitution.
type Value struct {
	Kind   ValueKind
	Type   pattern.InferredType
	Int    int64
	Float  float64
	Str    string
	Param  string
	Nested *Call
}

// ThunkKind mirrors pattern.ThunkKind for the IR's own Thunk node.
type ThunkKind int

const (
	LazyThunkKind ThunkKind = iota
	BlockThunkKind
)

// Thunk is a deferred argument, preserved rather than inlined.
type Thunk struct {
	Kind   ThunkKind
	Name   string
	Tokens []pattern.Token // LazyThunkKind: the unevaluated sub-expression
	Body   []*Call         // BlockThunkKind: the captured block, itself assembled
}

// Call is one typed invocation, either of a fixed intrinsic (inside a
// Function's Body) or of another pattern definition (inside Main or a
// nested expression/thunk).
type Call struct {
	Kind         CallKind
	Intrinsic    string // IntrinsicCallKind only
	PatternDefID int    // PatternCallKind only
	Args         []Value
	Thunks       []Thunk
	Line         source.Position
	ResultType   pattern.InferredType
}

// Param is one typed function parameter.
type Param struct {
	Name string
	Type pattern.InferredType
}

// Function is the typed IR for one pattern definition: its header's
// captures become typed parameters, its body's intrinsic calls become a
// typed call sequence in source order.
type Function struct {
	DefID      int
	Kind       pattern.DefKind
	Header     string
	Params     []Param
	ReturnType pattern.InferredType
	Body       []*Call
}

// Program is the complete assembled IR: one Function per declared
// pattern, plus Main, the top-level program's typed call sequence.
type Program struct {
	Functions []*Function
	Main      []*Call
}

// assembler carries the read-only inputs every build step consults.
type assembler struct {
	tr    *trie.Trie
	typed map[int]*pattern.TypedDefinition
}

// Assemble builds a Program from a resolved pattern set and its
// inferred types.
func Assemble(prog *resolve.Program, typed map[int]*pattern.TypedDefinition, bus *diag.Bus) *Program {
	a := &assembler{tr: prog.Trie, typed: typed}
	p := &Program{}
	for _, def := range prog.Defs {
		p.Functions = append(p.Functions, buildFunction(def, typed[def.ID]))
	}
	p.Main = a.assembleLines(resolve.ProgramLines(prog.Root), pattern.Scope{})
	return p
}

func buildFunction(def *pattern.Definition, td *pattern.TypedDefinition) *Function {
	f := &Function{DefID: def.ID, Kind: def.Kind, Header: def.Raw, ReturnType: pattern.Void}
	if td != nil {
		f.ReturnType = td.ReturnType
	}
	for _, el := range def.Header {
		if el.IsCapture() && el.Kind != pattern.SectionCapture {
			t := pattern.Unknown
			if td != nil {
				t = td.ParamTypes[el.Word]
			}
			f.Params = append(f.Params, Param{Name: el.Word, Type: t})
		}
	}
	paramTypes := map[string]pattern.InferredType{}
	if td != nil {
		paramTypes = td.ParamTypes
	}
	for _, call := range def.Intrinsics {
		f.Body = append(f.Body, buildIntrinsicCall(call, paramTypes))
	}
	return f
}

func buildIntrinsicCall(call pattern.IntrinsicCall, paramTypes map[string]pattern.InferredType) *Call {
	ic := &Call{Kind: IntrinsicCallKind, Intrinsic: call.Name, Line: call.Line}
	argTypes := make([]pattern.InferredType, len(call.Args))
	for i, a := range call.Args {
		v := convertIntrinsicArg(a, paramTypes)
		ic.Args = append(ic.Args, v)
		argTypes[i] = v.Type
	}
	if rt, ok := types.ResultType(call.Name, argTypes); ok {
		ic.ResultType = rt
	}
	return ic
}

func convertIntrinsicArg(a pattern.IntrinsicArg, paramTypes map[string]pattern.InferredType) Value {
	switch a.Kind {
	case pattern.ArgIdent:
		t, known := paramTypes[a.Text]
		if !known {
			t = pattern.Unknown
		}
		return Value{Kind: ParamRef, Param: a.Text, Type: t}
	case pattern.ArgExpr:
		if a.Nested == nil {
			return Value{Kind: LiteralValue, Type: pattern.Unknown}
		}
		nested := buildIntrinsicCall(*a.Nested, paramTypes)
		return Value{Kind: NestedCall, Nested: nested, Type: nested.ResultType}
	case pattern.ArgString:
		return Value{Kind: LiteralValue, Type: pattern.String, Str: a.Text}
	case pattern.ArgNumber:
		if strings.Contains(a.Text, ".") {
			f, _ := strconv.ParseFloat(a.Text, 64)
			return Value{Kind: LiteralValue, Type: pattern.F64, Float: f}
		}
		n, _ := strconv.ParseInt(a.Text, 10, 64)
		return Value{Kind: LiteralValue, Type: pattern.I64, Int: n}
	default:
		return Value{Kind: LiteralValue, Type: pattern.Unknown}
	}
}

// assembleLines re-matches each line against the completed trie and
// converts every winning match into a Call, recursing into any block
// thunk it captures so the IR mirrors the program's real nesting
// instead of the resolver's flat work queue.
func (a *assembler) assembleLines(lines []*section.CodeLine, scope pattern.Scope) []*Call {
	var calls []*Call
	for _, cl := range lines {
		toks := pattern.Tokenize(resolve.MatchText(cl), cl.Origin)
		if len(toks) == 0 {
			continue
		}
		results := a.tr.Match(toks, cl.Child, scope, pattern.EffectDef, pattern.SectionDef, pattern.ClassDef)
		if len(results) == 0 {
			continue // already diagnosed during resolution
		}
		winner := results[0]
		m := &pattern.Match{DefID: winner.Def.ID, Arguments: winner.Arguments, Thunks: winner.Thunks}
		calls = append(calls, a.buildPatternCall(m, cl.Origin))
	}
	return calls
}

// buildPatternCall converts one match into a typed call node, with
// arguments and thunks in stable (name-sorted) order.
func (a *assembler) buildPatternCall(m *pattern.Match, origin source.Position) *Call {
	call := &Call{Kind: PatternCallKind, PatternDefID: m.DefID, Line: origin}
	argTypes := map[string]pattern.InferredType{}

	names := make([]string, 0, len(m.Arguments))
	for name := range m.Arguments {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := a.convertMatchedValue(m.Arguments[name], origin)
		call.Args = append(call.Args, v)
		argTypes[name] = v.Type
	}

	thunkNames := make([]string, 0, len(m.Thunks))
	for name := range m.Thunks {
		thunkNames = append(thunkNames, name)
	}
	sort.Strings(thunkNames)
	for _, name := range thunkNames {
		call.Thunks = append(call.Thunks, a.convertThunk(name, m.Thunks[name]))
	}

	call.ResultType = a.callResultType(m.DefID, argTypes)
	return call
}

func (a *assembler) convertMatchedValue(v pattern.Value, origin source.Position) Value {
	switch v.Kind {
	case pattern.IntegerValue:
		return Value{Kind: LiteralValue, Type: pattern.I64, Int: v.Int}
	case pattern.FloatValue:
		return Value{Kind: LiteralValue, Type: pattern.F64, Float: v.Float}
	case pattern.StringValue:
		return Value{Kind: LiteralValue, Type: pattern.String, Str: v.Str}
	case pattern.IdentifierValue:
		return Value{Kind: ParamRef, Param: v.Ident, Type: pattern.Unknown}
	case pattern.NestedValue:
		if v.Nested == nil {
			return Value{Kind: LiteralValue, Type: pattern.Unknown}
		}
		nested := a.buildPatternCall(v.Nested, origin)
		return Value{Kind: NestedCall, Nested: nested, Type: nested.ResultType}
	default:
		return Value{Kind: LiteralValue, Type: pattern.Unknown}
	}
}

func (a *assembler) convertThunk(name string, th *pattern.Thunk) Thunk {
	switch th.Kind {
	case pattern.BlockThunk:
		var body []*Call
		if th.Block != nil {
			body = a.assembleLines(th.Block.Lines, th.Scope)
		}
		return Thunk{Kind: BlockThunkKind, Name: name, Body: body}
	default:
		return Thunk{Kind: LazyThunkKind, Name: name, Tokens: th.Tokens}
	}
}

// callResultType types one pattern call site. An expression whose
// definition-level return type stayed unknown (its arithmetic depends
// on the operand widths) is re-typed here by instantiating its final
// intrinsic with the caller's actual argument types.
func (a *assembler) callResultType(defID int, argTypes map[string]pattern.InferredType) pattern.InferredType {
	td := a.typed[defID]
	if td == nil {
		return pattern.Unknown
	}
	if td.Def.Kind != pattern.ExpressionDef {
		return pattern.Void
	}
	if td.ReturnType != pattern.Unknown {
		return td.ReturnType
	}
	if len(td.Def.Intrinsics) == 0 {
		return pattern.Unknown
	}
	last := td.Def.Intrinsics[len(td.Def.Intrinsics)-1]
	ts := make([]pattern.InferredType, len(last.Args))
	for i, arg := range last.Args {
		switch arg.Kind {
		case pattern.ArgIdent:
			if t, ok := argTypes[arg.Text]; ok && t != pattern.Unknown {
				ts[i] = t
			} else {
				ts[i] = td.ParamTypes[arg.Text]
			}
		case pattern.ArgString:
			ts[i] = pattern.String
		case pattern.ArgNumber:
			if strings.Contains(arg.Text, ".") {
				ts[i] = pattern.F64
			} else {
				ts[i] = pattern.I64
			}
		}
	}
	if rt, ok := types.ResultType(last.Name, ts); ok {
		return rt
	}
	return pattern.Unknown
}
