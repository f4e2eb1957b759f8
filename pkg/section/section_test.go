package section

import (
	"testing"

	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/merge"
	"github.com/threebx-lang/threebx/pkg/source"
)

func buildLines(texts ...string) []merge.MergedLine {
	out := make([]merge.MergedLine, len(texts))
	for i, text := range texts {
		out[i] = merge.MergedLine{Text: text, Origin: source.Position{File: "t.3bx", Line: i + 1, Col: 1}}
	}
	return out
}

func TestAnalyzeBuildsNestedSections(t *testing.T) {
	bus := &diag.Bus{}
	root := Analyze(buildLines(
		"effect {x} does something:",
		"    print x",
		"    store x at y",
		"print done",
	), bus)

	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Items())
	}
	if len(root.Lines) != 2 {
		t.Fatalf("expected 2 top-level lines, got %d", len(root.Lines))
	}
	if len(root.Children) != 1 {
		t.Fatalf("expected 1 child section, got %d", len(root.Children))
	}
	effect := root.Children[0]
	if effect.Kind != Effect {
		t.Errorf("expected Effect kind, got %v", effect.Kind)
	}
	if len(effect.Lines) != 2 {
		t.Errorf("expected 2 lines inside the effect body, got %d", len(effect.Lines))
	}
}

func TestAnalyzeRejectsIndentSkip(t *testing.T) {
	bus := &diag.Bus{}
	root := Analyze(buildLines(
		"effect does something:",
		"    section nested:",
		"            print too deep",
	), bus)
	_ = root
	if !bus.HasErrors() {
		t.Error("expected an indentation diagnostic for skipping a level")
	}
}

func TestAnalyzeSkipsBlankAndCommentLines(t *testing.T) {
	bus := &diag.Bus{}
	root := Analyze(buildLines(
		"print a",
		"",
		"# just a comment",
		"print b",
	), bus)
	if bus.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bus.Items())
	}
	if len(root.Lines) != 2 {
		t.Errorf("expected blank/comment lines to be skipped, got %d lines", len(root.Lines))
	}
}

func TestWalkVisitsRootFirst(t *testing.T) {
	bus := &diag.Bus{}
	root := Analyze(buildLines(
		"effect one:",
		"    print a",
		"class two:",
		"    print b",
	), bus)

	var order []Kind
	Walk(root, func(s *Section) { order = append(order, s.Kind) })
	if len(order) != 3 || order[0] != Root {
		t.Fatalf("expected root-first traversal, got %v", order)
	}
}

func TestClassifyUnknownHeaderIsCustom(t *testing.T) {
	bus := &diag.Bus{}
	root := Analyze(buildLines(
		"whenever something happens:",
		"    print a",
	), bus)
	if len(root.Children) != 1 || root.Children[0].Kind != Custom {
		t.Fatalf("expected an unrecognized header to classify as Custom")
	}
}
