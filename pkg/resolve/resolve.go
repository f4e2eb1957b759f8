// Package resolve turns a section tree into a set of deduced pattern
// definitions and a resolved program, matching every executable line
// against the trie and walking into captured blocks as they come into
// scope.
package resolve

import (
	"strings"

	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/section"
	"github.com/threebx-lang/threebx/pkg/source"
	"github.com/threebx-lang/threebx/pkg/trie"
)

// Resolved is one program line matched to a definition.
type Resolved struct {
	Line  *section.CodeLine
	Match *pattern.Match
}

// Program is the output of resolution: every pattern definition the
// source declared, the trie built from them, and every program line
// that could be matched, in the order resolution discovered them.
type Program struct {
	Root  *section.Section
	Trie  *trie.Trie
	Defs  []*pattern.Definition
	Lines []Resolved
}

// Resolve runs definition collection, header deduction, the optional
// precedence DAG, and the bounded resolution loop that matches program
// lines and walks into thunked sub-bodies as they are forced.
func Resolve(root *section.Section, cfg config.ResolverConfig, bus *diag.Bus) *Program {
	defs := collect(root, bus)
	for _, d := range defs {
		d.Header = deduceHeader(d)
	}
	if cfg.Precedence == config.PrecedenceDAG {
		applyPrecedence(defs, bus)
	}

	tr := trie.New()
	for _, d := range defs {
		tr.Insert(d)
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 256
	}

	type work struct {
		line  *section.CodeLine
		scope pattern.Scope
	}

	var queue []work
	for _, cl := range ProgramLines(root) {
		queue = append(queue, work{line: cl, scope: pattern.Scope{}})
	}

	var resolved []Resolved
	iterations := 0
	for len(queue) > 0 {
		iterations++
		if iterations > maxIter {
			bus.Errorf(diag.KindNonTermination, source.Range{},
				"pattern resolution did not converge within %d iterations", maxIter)
			break
		}

		w := queue[0]
		queue = queue[1:]

		toks := pattern.Tokenize(MatchText(w.line), w.line.Origin)
		if len(toks) == 0 {
			continue
		}

		results := tr.Match(toks, w.line.Child, w.scope, pattern.EffectDef, pattern.SectionDef, pattern.ClassDef)
		if len(results) == 0 {
			bus.Errorf(diag.KindUnresolvedPattern, source.Range{Start: w.line.Origin},
				"no pattern matches %q", w.line.Trimmed)
			continue
		}
		if trie.Tied(results) {
			bus.Errorf(diag.KindUnresolvedPattern, source.Range{Start: w.line.Origin},
				"ambiguous match for %q: %d definitions tie on specificity", w.line.Trimmed, countTied(results))
		}

		winner := results[0]
		m := &pattern.Match{
			DefID:         winner.Def.ID,
			Arguments:     winner.Arguments,
			Thunks:        winner.Thunks,
			ConsumedRange: source.Range{Start: w.line.Origin},
		}
		resolved = append(resolved, Resolved{Line: w.line, Match: m})

		for _, th := range winner.Thunks {
			if th.Kind == pattern.BlockThunk && th.Block != nil {
				for _, cl := range th.Block.Lines {
					queue = append(queue, work{line: cl, scope: th.Scope})
				}
			}
		}
	}

	return &Program{Root: root, Trie: tr, Defs: defs, Lines: resolved}
}

// countTied reports how many leading results in a ranked slice are tied
// with the winner, for a more informative ambiguity diagnostic.
func countTied(results []trie.Result) int {
	n := 1
	for trie.Tied(results[n-1:]) {
		n++
		if n >= len(results) {
			break
		}
	}
	return n
}

// MatchText returns the text of a line as the matcher sees it: a line
// that opens a child section sheds its trailing ':' — the colon belongs
// to the block structure, not to the pattern being referenced.
func MatchText(cl *section.CodeLine) string {
	if cl.Child != nil {
		return strings.TrimSuffix(cl.Trimmed, ":")
	}
	return cl.Trimmed
}

// ProgramLines returns root's own executable lines, skipping the header
// lines of pattern-definition sections (Effect/Expression/Section/
// Class/Patterns): those declare the language, they are not part of the
// program that runs in it. Exported so the IR assembler can walk the
// same top-level sequence resolution did, without re-deriving it.
func ProgramLines(root *section.Section) []*section.CodeLine {
	var out []*section.CodeLine
	for _, cl := range root.Lines {
		if cl.Child != nil && isDefinitionKind(cl.Child.Kind) {
			continue
		}
		out = append(out, cl)
	}
	return out
}

func isDefinitionKind(k section.Kind) bool {
	switch k {
	case section.Effect, section.Expression, section.SectionKind, section.Class, section.Patterns:
		return true
	default:
		return false
	}
}
