package compiler

import (
	"testing"

	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/source"
)

func TestCompileSucceedsOnAWellFormedProgram(t *testing.T) {
	fs := source.MapFS{
		"main.3bx": "effect greet name:\n    @intrinsic(\"print\", name)\ngreet world\n",
	}
	res := Compile(fs, config.Default(), "main.3bx")
	if !res.Succeeded() {
		t.Fatalf("expected compilation to succeed, diagnostics: %v", res.Bus.Items())
	}
	if res.IR == nil || len(res.IR.Main) != 1 {
		t.Fatalf("expected exactly 1 top-level IR call, got %+v", res.IR)
	}
	if len(res.ResolvedPatterns()) != 1 {
		t.Errorf("expected 1 resolved pattern definition, got %d", len(res.ResolvedPatterns()))
	}
}

func TestCompileStopsAtImportErrorsBeforeLaterStages(t *testing.T) {
	fs := source.MapFS{"main.3bx": "import nowhere\n"}
	res := Compile(fs, config.Default(), "main.3bx")
	if res.Succeeded() {
		t.Fatal("expected compilation to fail on an unresolved import")
	}
	if res.Root != nil || res.Program != nil || res.IR != nil {
		t.Errorf("expected every later-stage field to stay nil after an import failure, got %+v", res)
	}
}

func TestCompileStopsAtResolutionErrorsBeforeTypeInference(t *testing.T) {
	fs := source.MapFS{"main.3bx": "do something nobody declared\n"}
	res := Compile(fs, config.Default(), "main.3bx")
	if res.Succeeded() {
		t.Fatal("expected compilation to fail on an unresolved pattern")
	}
	if res.Typed != nil || res.IR != nil {
		t.Errorf("expected Typed and IR to stay nil after a resolution failure, got typed=%v ir=%v", res.Typed, res.IR)
	}
}

func TestLineLooksUpTheMergedLineMap(t *testing.T) {
	fs := source.MapFS{"main.3bx": "print ready\n"}
	res := Compile(fs, config.Default(), "main.3bx")
	pos, ok := res.Line(1)
	if !ok || pos.File != "main.3bx" || pos.Line != 1 {
		t.Errorf("expected line 1 to map back to main.3bx:1, got %+v ok=%v", pos, ok)
	}
}

func TestResolvedPatternsIsEmptyBeforeResolution(t *testing.T) {
	fs := source.MapFS{"main.3bx": "import nowhere\n"}
	res := Compile(fs, config.Default(), "main.3bx")
	if got := res.ResolvedPatterns(); got != nil {
		t.Errorf("expected no resolved patterns when resolution never ran, got %v", got)
	}
}
