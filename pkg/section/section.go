// Package section splits a merged source buffer into a tree of
// indentation-structured sections and code lines.
package section

import (
	"strings"

	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/merge"
	"github.com/threebx-lang/threebx/pkg/source"
)

// Kind is the closed set of section kinds, derived from the first word
// of the header line that opened the section.
type Kind int

const (
	Root Kind = iota
	Effect
	Expression
	SectionKind
	Class
	Patterns
	Custom
)

func (k Kind) String() string {
	switch k {
	case Root:
		return "root"
	case Effect:
		return "effect"
	case Expression:
		return "expression"
	case SectionKind:
		return "section"
	case Class:
		return "class"
	case Patterns:
		return "patterns"
	default:
		return "custom"
	}
}

var firstTokenKind = map[string]Kind{
	"effect":     Effect,
	"expression": Expression,
	"section":    SectionKind,
	"class":      Class,
	"patterns":   Patterns,
}

// Section is a node in the indentation tree. Parent is a non-owning
// back-reference; Go's garbage collector handles the resulting
// reference cycle, so no weak-pointer machinery is needed.
type Section struct {
	Kind     Kind
	Header   *CodeLine // nil for Root
	Parent   *Section  // non-owning; nil for Root
	Indent   int       // content indent level; Root is 0
	Lines    []*CodeLine
	Children []*Section
}

// CodeLine is a single line inside a Section.
type CodeLine struct {
	Raw      string
	Trimmed  string
	StartCol int
	EndCol   int
	Origin   source.Position
	Section  *Section // owning section
	Child    *Section // non-nil iff Trimmed ends with ':'
}

// Analyze builds the section tree from a merger's line stream.
func Analyze(lines []merge.MergedLine, bus *diag.Bus) *Section {
	a := &analyzer{bus: bus}
	return a.run(lines)
}

type analyzer struct {
	bus      *diag.Bus
	unit     int
	unitChar byte
	unitSet  bool
}

type stackFrame struct {
	section *Section
	level   int
}

func (a *analyzer) run(lines []merge.MergedLine) *Section {
	root := &Section{Kind: Root, Indent: 0}
	stack := []stackFrame{{section: root, level: 0}}

	for _, ml := range lines {
		trimmed := strings.TrimSpace(ml.Text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue // blank and comment-only lines are skipped for structure
		}

		indentRun, ok := a.measureIndent(ml.Text, ml.Origin)
		if !ok {
			continue // malformed indentation: skip this line, try siblings
		}
		level := 0
		if a.unit > 0 {
			level = indentRun / a.unit
		}

		for len(stack) > 1 && level < stack[len(stack)-1].level {
			stack = stack[:len(stack)-1]
		}

		top := &stack[len(stack)-1]
		if level > top.level {
			a.bus.Errorf(diag.KindIndentation, source.Range{Start: ml.Origin},
				"indenting by more than one level in one step is not allowed")
			level = top.level // resynchronize structure to the actual indent
		}

		startCol := len(ml.Text) - len(strings.TrimLeft(ml.Text, " \t"))
		cl := &CodeLine{
			Raw:      ml.Text,
			Trimmed:  trimmed,
			StartCol: startCol + 1,
			EndCol:   len(ml.Text) + 1,
			Origin:   ml.Origin,
			Section:  top.section,
		}
		top.section.Lines = append(top.section.Lines, cl)

		if strings.HasSuffix(trimmed, ":") {
			child := &Section{
				Kind:   classify(trimmed),
				Header: cl,
				Parent: top.section,
				Indent: top.section.Indent + 1,
			}
			top.section.Children = append(top.section.Children, child)
			cl.Child = child
			stack = append(stack, stackFrame{section: child, level: child.Indent})
		}
	}

	return root
}

// measureIndent returns the raw count of leading whitespace characters,
// validating it against the unit inferred from the first indented line:
// every later indent must be a multiple of that run, in the same
// whitespace character.
func (a *analyzer) measureIndent(raw string, origin source.Position) (int, bool) {
	i := 0
	var ch byte
	for i < len(raw) && (raw[i] == ' ' || raw[i] == '\t') {
		if i == 0 {
			ch = raw[i]
		} else if raw[i] != ch {
			a.bus.Errorf(diag.KindIndentation, source.Range{Start: origin},
				"indent mixes tabs and spaces within one line")
			return 0, false
		}
		i++
	}
	if i == 0 {
		return 0, true
	}
	if !a.unitSet {
		a.unit = i
		a.unitChar = ch
		a.unitSet = true
		return i, true
	}
	if ch != a.unitChar {
		a.bus.Errorf(diag.KindIndentation, source.Range{Start: origin},
			"indent uses a different whitespace character than the first indented line")
		return 0, false
	}
	if i%a.unit != 0 {
		a.bus.Errorf(diag.KindIndentation, source.Range{Start: origin},
			"indent run of %d is not a multiple of the inferred unit %d", i, a.unit)
		return 0, false
	}
	return i, true
}

func classify(trimmedHeader string) Kind {
	fields := strings.Fields(trimmedHeader)
	if len(fields) == 0 {
		return Custom
	}
	if k, ok := firstTokenKind[fields[0]]; ok {
		return k
	}
	return Custom
}

// Walk visits every section in the tree in document order, root first.
func Walk(root *Section, visit func(*Section)) {
	visit(root)
	for _, c := range root.Children {
		Walk(c, visit)
	}
}
