// Package trie implements candidate selection over pattern-header
// elements, with expression substitution and the specificity tiebreak.
//
// Definitions that share a literal-word prefix are indexed together so a
// reference line only has to check the candidates that could possibly
// match its first token, rather than every definition in the program;
// definitions are the stable identity, and the index is just a lookup
// accelerator kept internally consistent by Insert. Capture bindings
// stay traceable to the one definition that owns them.
package trie

import (
	"sort"
	"strings"

	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/section"
)

// Trie indexes pattern definitions for matching.
type Trie struct {
	defs         []*pattern.Definition
	byFirstWord  map[string][]int // first literal word -> definition indices
	captureFirst []int            // definitions whose header starts with a capture
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{byFirstWord: map[string][]int{}}
}

// Insert adds a definition to the trie. Alternative brackets in the
// first element are expanded into multiple index keys sharing the rest
// of the definition.
func (t *Trie) Insert(def *pattern.Definition) {
	idx := len(t.defs)
	t.defs = append(t.defs, def)

	if len(def.Header) == 0 {
		t.captureFirst = append(t.captureFirst, idx)
		return
	}

	first := def.Header[0]
	switch first.Kind {
	case pattern.Literal:
		t.index(first.Word, idx)
	case pattern.OptionalLiteral:
		// The path that skips an optional first literal starts like a
		// capture-first definition; the path that takes it starts like
		// a literal-first one. Index under both so either entry point
		// finds this definition.
		t.index(first.Word, idx)
		t.captureFirst = append(t.captureFirst, idx)
	default:
		t.captureFirst = append(t.captureFirst, idx)
	}
}

func (t *Trie) index(word string, idx int) {
	for _, alt := range alternatives(word) {
		t.byFirstWord[alt] = append(t.byFirstWord[alt], idx)
	}
}

// alternatives expands "a|b|c" alternative-bracket literals into their
// constituent words; a plain literal expands to itself.
func alternatives(word string) []string {
	if !strings.Contains(word, "|") {
		return []string{word}
	}
	return strings.Split(word, "|")
}

// Definitions returns every inserted definition, in insertion order.
func (t *Trie) Definitions() []*pattern.Definition {
	return t.defs
}

// candidates returns the definition indices that could possibly match a
// token stream starting with tok (or the capture-first set if tok is
// nil, meaning "end of input" or "no literal to anchor on").
func (t *Trie) candidates(tok *pattern.Token, kinds map[pattern.DefKind]bool) []int {
	seen := map[int]bool{}
	var out []int
	add := func(idx int) {
		if seen[idx] {
			return
		}
		def := t.defs[idx]
		if !kinds[def.Kind] {
			return
		}
		seen[idx] = true
		out = append(out, idx)
	}
	if tok != nil {
		for _, idx := range t.byFirstWord[tok.Text] {
			add(idx)
		}
	}
	for _, idx := range t.captureFirst {
		add(idx)
	}
	return out
}

// Result is a successful match together with the definition's tiebreak
// inputs.
type Result struct {
	Def       *pattern.Definition
	Arguments map[string]pattern.Value
	Thunks    map[string]*pattern.Thunk
	Consumed  int // tokens consumed from the input slice
}

// kindSet builds the kind filter map used by candidates/Match.
func kindSet(kinds ...pattern.DefKind) map[pattern.DefKind]bool {
	m := make(map[pattern.DefKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// Match attempts to match toks (already a full line's tokens, or a
// candidate sub-expression span) against every definition of the
// requested kinds, returning every full-length match found. child is
// the CodeLine's own child section, consulted by SectionCapture
// elements; it is nil when matching a sub-expression span.
func (t *Trie) Match(toks []pattern.Token, child *section.Section, scope pattern.Scope, kinds ...pattern.DefKind) []Result {
	return t.matchGuarded(toks, child, scope, kindSet(kinds...), nil)
}

// activeSpan marks an in-progress expression match over some outer
// token slice, used to block self-recursive zero-progress expression
// matches.
type activeSpan struct {
	toks   []pattern.Token
	parent *activeSpan
}

func (t *Trie) matchGuarded(toks []pattern.Token, child *section.Section, scope pattern.Scope, kinds map[pattern.DefKind]bool, active *activeSpan) []Result {
	var tok *pattern.Token
	if len(toks) > 0 {
		tok = &toks[0]
	}

	// active is the marker bestExpression created for toks itself; the
	// zero-progress case is its parent already matching the same span.
	selfRecursive := active != nil && active.parent != nil && sameSlice(active.parent.toks, toks)

	var results []Result
	for _, idx := range t.candidates(tok, kinds) {
		def := t.defs[idx]
		if selfRecursive && len(def.Header) > 0 && def.Header[0].Kind == pattern.ExpressionSlot {
			continue // would recurse at the same span with zero progress
		}
		args, thunks, consumed, ok := t.matchDefinition(def, toks, child, scope, active)
		if !ok || consumed != len(toks) {
			continue
		}
		results = append(results, Result{Def: def, Arguments: args, Thunks: thunks, Consumed: consumed})
	}
	return rankBySpecificity(results)
}

func sameSlice(a, b []pattern.Token) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// rankBySpecificity orders results by greatest literal count, then
// fewer captures, then definition appearance order. The caller decides
// what "selected" vs "ambiguous" means; this just sorts so index 0 is
// the unique winner when one exists.
func rankBySpecificity(results []Result) []Result {
	if len(results) < 2 {
		return results
	}
	sort.SliceStable(results, func(i, j int) bool { return better(results[i], results[j]) })
	return results
}

func better(a, b Result) bool {
	if a.Def.Specificity() != b.Def.Specificity() {
		return a.Def.Specificity() > b.Def.Specificity()
	}
	if a.Def.CaptureCount() != b.Def.CaptureCount() {
		return a.Def.CaptureCount() < b.Def.CaptureCount()
	}
	if a.Def.Priority != 0 && b.Def.Priority != 0 && a.Def.Priority != b.Def.Priority {
		return a.Def.Priority < b.Def.Priority
	}
	return a.Def.ID < b.Def.ID
}

// Tied reports whether results contains two or more results tied on the
// full tiebreak: an ambiguous match.
func Tied(results []Result) bool {
	if len(results) < 2 {
		return false
	}
	a, b := results[0], results[1]
	if a.Def.Specificity() != b.Def.Specificity() || a.Def.CaptureCount() != b.Def.CaptureCount() {
		return false
	}
	if a.Def.Priority != 0 && b.Def.Priority != 0 && a.Def.Priority != b.Def.Priority {
		return false
	}
	return true
}

// matchDefinition walks def.Header against toks starting at position 0,
// returning the bindings produced and how many tokens were consumed.
func (t *Trie) matchDefinition(def *pattern.Definition, toks []pattern.Token, child *section.Section, scope pattern.Scope, active *activeSpan) (map[string]pattern.Value, map[string]*pattern.Thunk, int, bool) {
	args := map[string]pattern.Value{}
	thunks := map[string]*pattern.Thunk{}
	pos := 0

	for i, el := range def.Header {
		switch el.Kind {
		case pattern.Literal:
			if pos >= len(toks) {
				return nil, nil, 0, false
			}
			matched := false
			for _, alt := range alternatives(el.Word) {
				if toks[pos].Text == alt {
					matched = true
				}
			}
			if !matched {
				return nil, nil, 0, false
			}
			pos++

		case pattern.OptionalLiteral:
			if pos < len(toks) && toks[pos].Text == el.Word {
				pos++
			}

		case pattern.WordCapture:
			if pos >= len(toks) || toks[pos].Kind != pattern.TokWord {
				return nil, nil, 0, false
			}
			args[el.Word] = pattern.Value{Kind: pattern.IdentifierValue, Ident: toks[pos].Text}
			pos++

		case pattern.ExpressionSlot:
			stop := nextLiteral(def.Header, i+1)
			end := boundary(toks, pos, stop)
			sub := toks[pos:end]
			v, ok := t.matchExpressionSlot(sub, scope, active)
			if !ok {
				return nil, nil, 0, false
			}
			args[el.Word] = v
			pos = end

		case pattern.LazyCapture:
			stop := nextLiteral(def.Header, i+1)
			end := boundary(toks, pos, stop)
			thunks[el.Word] = &pattern.Thunk{Kind: pattern.LazyThunk, Tokens: append([]pattern.Token{}, toks[pos:end]...), Scope: scope.Clone()}
			pos = end

		case pattern.SectionCapture:
			if child == nil {
				return nil, nil, 0, false
			}
			thunks[el.Word] = &pattern.Thunk{Kind: pattern.BlockThunk, Block: child, Scope: scope.Clone()}
		}
	}

	return args, thunks, pos, true
}

// matchExpressionSlot fills an ExpressionSlot. A declared
// Expression-kind definition is tried first, so a user pattern can
// still claim a single-token span; a bare literal or identifier token
// is the atomic fallback every program needs even before any Expression
// definition exists (`set 3 to x` binds val straight to the integer 3,
// with no arithmetic pattern declared at all).
func (t *Trie) matchExpressionSlot(sub []pattern.Token, scope pattern.Scope, active *activeSpan) (pattern.Value, bool) {
	if m, ok := t.bestExpression(sub, scope, active); ok {
		return pattern.Value{Kind: pattern.NestedValue, Nested: m}, true
	}
	if len(sub) == 1 {
		if v, ok := atomicValue(sub[0]); ok {
			return v, true
		}
	}
	return pattern.Value{}, false
}

// atomicValue converts a single token directly into a MatchedValue,
// with no pattern definition involved.
func atomicValue(tok pattern.Token) (pattern.Value, bool) {
	switch tok.Kind {
	case pattern.TokInt:
		return pattern.Value{Kind: pattern.IntegerValue, Int: tok.Int}, true
	case pattern.TokFloat:
		return pattern.Value{Kind: pattern.FloatValue, Float: tok.Float}, true
	case pattern.TokString:
		return pattern.Value{Kind: pattern.StringValue, Str: tok.Text}, true
	case pattern.TokWord:
		return pattern.Value{Kind: pattern.IdentifierValue, Ident: tok.Text}, true
	default:
		return pattern.Value{}, false
	}
}

// bestExpression matches sub fully against Expression-kind definitions,
// applying the specificity tiebreak, and wraps the winner as a nested
// Match.
func (t *Trie) bestExpression(sub []pattern.Token, scope pattern.Scope, active *activeSpan) (*pattern.Match, bool) {
	if len(sub) == 0 {
		return nil, false
	}
	nextActive := &activeSpan{toks: sub, parent: active}
	results := t.matchGuarded(sub, nil, scope, kindSet(pattern.ExpressionDef), nextActive)
	if len(results) == 0 {
		return nil, false
	}
	winner := results[0]
	return &pattern.Match{DefID: winner.Def.ID, Arguments: winner.Arguments, Thunks: winner.Thunks}, true
}

// nextLiteral returns the word of the next Literal/OptionalLiteral
// element at or after idx, or "" if there is none: the lookahead that
// bounds a capture.
func nextLiteral(header []pattern.Element, idx int) string {
	for i := idx; i < len(header); i++ {
		if header[i].Kind == pattern.Literal || header[i].Kind == pattern.OptionalLiteral {
			return header[i].Word
		}
	}
	return ""
}

// boundary finds where a capture starting at from should stop: at the
// next occurrence of stop (at bracket depth 0), or at end of input if
// stop is empty.
func boundary(toks []pattern.Token, from int, stop string) int {
	depth := 0
	for i := from; i < len(toks); i++ {
		switch toks[i].Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && stop != "" && toks[i].Text == stop {
			return i
		}
	}
	return len(toks)
}
