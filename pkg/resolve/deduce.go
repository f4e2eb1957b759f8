package resolve

import (
	"strings"

	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/section"
	"github.com/threebx-lang/threebx/pkg/source"
)

// deduceHeader turns a definition's raw header text into a slice of
// pattern.Element: explicit {name} and [word] bracket syntax is taken
// literally, and every remaining bare word is classified as a literal
// or a parameter by how it is used in the body.
func deduceHeader(def *pattern.Definition) []pattern.Element {
	toks := pattern.Tokenize(def.Raw, def.Line)
	def.Intrinsics = scanIntrinsics(def.Body)
	params := candidateParams(def.Intrinsics)

	items := collapseBrackets(toks)
	elements := make([]pattern.Element, 0, len(items))

	for _, it := range items {
		if it.isElem {
			elements = append(elements, it.element)
			continue
		}
		tok := it.token
		switch tok.Kind {
		case pattern.TokWord:
			elements = append(elements, classifyWord(tok.Text, params))
		default:
			elements = append(elements, pattern.Element{Kind: pattern.Literal, Word: tok.Text})
		}
	}

	if def.Kind == pattern.SectionDef && !hasSectionCapture(elements) {
		name := sectionCaptureName(def.Intrinsics)
		elements = append(elements, pattern.Element{Kind: pattern.SectionCapture, Word: name})
	}

	return elements
}

// classifyWord classifies one bare header word, in priority order: an
// explicit possessive marker always wins; then a word used as a
// bare-identifier intrinsic argument is a parameter; anything left over
// is a literal. Body usage outranks position: in a header like "a + b"
// whose body computes with a and b, even the first word is a parameter,
// while an unused first word stays the pattern's name.
func classifyWord(word string, params map[string]bool) pattern.Element {
	if base, ok := possessive(word); ok {
		return pattern.Element{Kind: pattern.ExpressionSlot, Word: base}
	}
	if params[word] {
		return pattern.Element{Kind: pattern.ExpressionSlot, Word: word}
	}
	return pattern.Element{Kind: pattern.Literal, Word: word}
}

func possessive(word string) (string, bool) {
	if strings.HasSuffix(word, "'s") && len(word) > 2 {
		return word[:len(word)-2], true
	}
	return "", false
}

func hasSectionCapture(els []pattern.Element) bool {
	for _, e := range els {
		if e.Kind == pattern.SectionCapture {
			return true
		}
	}
	return false
}

// sectionCaptureName picks a bound name for the implicit trailing block
// capture every section-kind definition needs. The body's own intrinsic
// calls name the block argument explicitly far more often than not;
// fall back to a conventional name otherwise.
func sectionCaptureName(calls []pattern.IntrinsicCall) string {
	for _, c := range calls {
		for _, a := range c.Args {
			if a.Kind == pattern.ArgIdent && (a.Text == "body" || a.Text == "block" || a.Text == "section") {
				return a.Text
			}
		}
	}
	return "body"
}

// item is either a plain token awaiting classification or an
// already-built element (from explicit bracket syntax).
type item struct {
	token   pattern.Token
	element pattern.Element
	isElem  bool
}

// collapseBrackets scans a header's tokens for {name} lazy-capture
// syntax and [word] / [a|b|c] optional-literal syntax, folding each
// matched group into one element; every other token passes through
// untouched for classifyWord to handle.
func collapseBrackets(toks []pattern.Token) []item {
	var out []item
	i := 0
	for i < len(toks) {
		if toks[i].Kind == pattern.TokPunct && toks[i].Text == "{" {
			if j, name, ok := matchBraceCapture(toks, i); ok {
				out = append(out, item{element: pattern.Element{Kind: pattern.LazyCapture, Word: name}, isElem: true})
				i = j
				continue
			}
		}
		if toks[i].Kind == pattern.TokPunct && toks[i].Text == "[" {
			if j, el, ok := matchBracketLiteral(toks, i); ok {
				out = append(out, item{element: el, isElem: true})
				i = j
				continue
			}
		}
		out = append(out, item{token: toks[i]})
		i++
	}
	return out
}

// matchBraceCapture recognizes "{" word "}" starting at i.
func matchBraceCapture(toks []pattern.Token, i int) (next int, name string, ok bool) {
	if i+2 >= len(toks) {
		return 0, "", false
	}
	if toks[i+1].Kind != pattern.TokWord {
		return 0, "", false
	}
	if !(toks[i+2].Kind == pattern.TokPunct && toks[i+2].Text == "}") {
		return 0, "", false
	}
	return i + 3, toks[i+1].Text, true
}

// matchBracketLiteral recognizes "[" word ("|" word)* "]" starting at i,
// producing an OptionalLiteral for a single word or a Literal carrying
// the "a|b|c" alternation spelling for several, which the trie expands
// at insertion time.
func matchBracketLiteral(toks []pattern.Token, i int) (next int, el pattern.Element, ok bool) {
	j := i + 1
	var words []string
	for {
		if j >= len(toks) || toks[j].Kind != pattern.TokWord {
			return 0, pattern.Element{}, false
		}
		words = append(words, toks[j].Text)
		j++
		if j < len(toks) && toks[j].Kind == pattern.TokPunct && toks[j].Text == "|" {
			j++
			continue
		}
		break
	}
	if j >= len(toks) || !(toks[j].Kind == pattern.TokPunct && toks[j].Text == "]") {
		return 0, pattern.Element{}, false
	}
	j++
	if len(words) == 1 {
		return j, pattern.Element{Kind: pattern.OptionalLiteral, Word: words[0]}, true
	}
	return j, pattern.Element{Kind: pattern.Literal, Word: strings.Join(words, "|")}, true
}

// scanIntrinsics walks a definition's body, including nested sections,
// collecting every @intrinsic(...) call.
func scanIntrinsics(body *section.Section) []pattern.IntrinsicCall {
	if body == nil {
		return nil
	}
	var calls []pattern.IntrinsicCall
	section.Walk(body, func(s *section.Section) {
		for _, cl := range s.Lines {
			toks := pattern.Tokenize(cl.Trimmed, cl.Origin)
			if c, ok := parseIntrinsicCall(toks, cl.Origin); ok {
				calls = append(calls, c)
			}
		}
	})
	return calls
}

// parseIntrinsicCall recognizes "@" "intrinsic" "(" name "," arg, ...  ")"
// anywhere in a tokenized line: the intrinsic name is the call's first
// argument, a string literal; every later argument that is exactly one
// bare identifier token is a candidate header parameter as well as a
// typed operand. A multi-token argument is kept as an expression
// operand, parsed recursively when it is itself an @intrinsic(...) call.
func parseIntrinsicCall(toks []pattern.Token, origin source.Position) (pattern.IntrinsicCall, bool) {
	for i := 0; i+2 < len(toks); i++ {
		if !(toks[i].Kind == pattern.TokPunct && toks[i].Text == "@") {
			continue
		}
		if !(toks[i+1].Kind == pattern.TokWord && toks[i+1].Text == "intrinsic") {
			continue
		}
		if !(toks[i+2].Kind == pattern.TokPunct && toks[i+2].Text == "(") {
			continue
		}
		close := matchParen(toks, i+2)
		if close < 0 {
			return pattern.IntrinsicCall{}, false
		}
		groups := splitArgs(toks[i+3 : close])
		if len(groups) == 0 || len(groups[0]) != 1 || groups[0][0].Kind != pattern.TokString {
			return pattern.IntrinsicCall{}, false
		}
		call := pattern.IntrinsicCall{Name: groups[0][0].Text, Line: origin}
		for _, g := range groups[1:] {
			if len(g) != 1 {
				arg := pattern.IntrinsicArg{Kind: pattern.ArgExpr}
				if nested, ok := parseIntrinsicCall(g, origin); ok {
					arg.Nested = &nested
				}
				call.Args = append(call.Args, arg)
				continue
			}
			switch g[0].Kind {
			case pattern.TokWord:
				call.Args = append(call.Args, pattern.IntrinsicArg{Kind: pattern.ArgIdent, Text: g[0].Text})
			case pattern.TokString:
				call.Args = append(call.Args, pattern.IntrinsicArg{Kind: pattern.ArgString, Text: g[0].Text})
			case pattern.TokInt, pattern.TokFloat:
				call.Args = append(call.Args, pattern.IntrinsicArg{Kind: pattern.ArgNumber, Text: g[0].Text})
			}
		}
		return call, true
	}
	return pattern.IntrinsicCall{}, false
}

// matchParen returns the index of the "(" at open's matching ")", or -1.
func matchParen(toks []pattern.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		switch toks[i].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits a call's argument tokens on top-level commas.
func splitArgs(toks []pattern.Token) [][]pattern.Token {
	if len(toks) == 0 {
		return nil
	}
	var groups [][]pattern.Token
	depth := 0
	start := 0
	for i, t := range toks {
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		case ",":
			if depth == 0 {
				groups = append(groups, toks[start:i])
				start = i + 1
			}
		}
	}
	groups = append(groups, toks[start:])
	return groups
}

// candidateParams collects the set of words usable as header parameters
// because they appear as a bare-identifier argument to some body
// intrinsic call, including calls nested inside another's operands.
func candidateParams(calls []pattern.IntrinsicCall) map[string]bool {
	params := map[string]bool{}
	var walk func(c pattern.IntrinsicCall)
	walk = func(c pattern.IntrinsicCall) {
		for _, a := range c.Args {
			if a.Kind == pattern.ArgIdent {
				params[a.Text] = true
			}
			if a.Kind == pattern.ArgExpr && a.Nested != nil {
				walk(*a.Nested)
			}
		}
	}
	for _, c := range calls {
		walk(c)
	}
	return params
}
