package sourcemap

import (
	"encoding/json"
	"testing"

	"github.com/threebx-lang/threebx/pkg/merge"
	"github.com/threebx-lang/threebx/pkg/source"
)

func TestBuildLookupReturnsTheOriginalOrigin(t *testing.T) {
	lines := []merge.MergedLine{
		{Text: "print ready", Origin: source.Position{File: "main.3bx", Line: 1, Col: 1}},
		{Text: "effect prepare:", Origin: source.Position{File: "util.3bx", Line: 1, Col: 1}},
		{Text: "    print preparing", Origin: source.Position{File: "util.3bx", Line: 2, Col: 5}},
	}
	lm := Build("out.3bx", lines)

	for i, want := range lines {
		got, ok := lm.Lookup(i + 1)
		if !ok {
			t.Fatalf("Lookup(%d): expected ok=true", i+1)
		}
		if got != want.Origin {
			t.Errorf("Lookup(%d): got %+v, want %+v", i+1, got, want.Origin)
		}
	}
}

func TestLookupRejectsOutOfRangeLines(t *testing.T) {
	lm := Build("out.3bx", []merge.MergedLine{
		{Text: "x", Origin: source.Position{File: "a.3bx", Line: 1, Col: 1}},
	})
	if _, ok := lm.Lookup(0); ok {
		t.Error("expected Lookup(0) to fail")
	}
	if _, ok := lm.Lookup(2); ok {
		t.Error("expected Lookup(2) to fail when there is only 1 line")
	}
}

func TestJSONProducesAWellFormedV3Document(t *testing.T) {
	lm := Build("out.3bx", []merge.MergedLine{
		{Text: "x", Origin: source.Position{File: "a.3bx", Line: 1, Col: 1}},
	})
	data, err := lm.JSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output did not unmarshal as a source map document: %v", err)
	}
	if doc.Version != 3 {
		t.Errorf("expected version 3, got %d", doc.Version)
	}
	if doc.File != "out.3bx" {
		t.Errorf("expected file out.3bx, got %q", doc.File)
	}
	if len(doc.Sources) != 1 || doc.Sources[0] != "a.3bx" {
		t.Errorf("expected sources [a.3bx], got %v", doc.Sources)
	}
}

func TestDecodeRoundTripsThroughARealV3Consumer(t *testing.T) {
	lines := []merge.MergedLine{
		{Text: "print ready", Origin: source.Position{File: "main.3bx", Line: 1, Col: 1}},
		{Text: "effect prepare:", Origin: source.Position{File: "util.3bx", Line: 5, Col: 1}},
		{Text: "    print preparing", Origin: source.Position{File: "util.3bx", Line: 6, Col: 5}},
	}
	lm := Build("out.3bx", lines)

	for i, want := range lines {
		file, line, col, ok := lm.Decode(i+1, 1)
		if !ok {
			t.Fatalf("Decode(%d, 1): expected ok=true", i+1)
		}
		if file != want.Origin.File || line != want.Origin.Line || col != want.Origin.Col {
			t.Errorf("Decode(%d, 1): got (%s, %d, %d), want (%s, %d, %d)",
				i+1, file, line, col, want.Origin.File, want.Origin.Line, want.Origin.Col)
		}
	}
}

func TestEncodeVLQMatchesKnownSourceMapExamples(t *testing.T) {
	cases := map[int]string{
		0:  "A",
		1:  "C",
		-1: "D",
		15: "e",
		16: "gB",
	}
	for n, want := range cases {
		got := string(encodeVLQ(n))
		if got != want {
			t.Errorf("encodeVLQ(%d) = %q, want %q", n, got, want)
		}
	}
}
