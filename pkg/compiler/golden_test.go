package compiler

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/source"
)

// Golden archives bundle a multi-file program with the error kinds the
// compile is expected to record. Every *.3bx member becomes an in-memory
// file; main.3bx is the compilation root; want.errors lists one
// diagnostic kind per line, empty meaning a clean compile. Extra
// per-archive structural checks live in goldenChecks.
func TestGoldenArchives(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no golden archives under testdata/")
	}

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".txtar")
		t.Run(name, func(t *testing.T) {
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			archive := txtar.Parse(data)

			fs := source.MapFS{}
			var wantErrors []string
			for _, f := range archive.Files {
				switch {
				case f.Name == "want.errors":
					wantErrors = nonEmptyLines(string(f.Data))
				case strings.HasSuffix(f.Name, ".3bx"):
					fs[f.Name] = string(f.Data)
				default:
					t.Fatalf("unrecognized archive member %q", f.Name)
				}
			}

			res := Compile(fs, config.Default(), "main.3bx")

			gotErrors := errorKinds(res.Bus)
			sort.Strings(gotErrors)
			sort.Strings(wantErrors)
			if strings.Join(gotErrors, ",") != strings.Join(wantErrors, ",") {
				t.Errorf("error kinds = %v, want %v\ndiagnostics: %v", gotErrors, wantErrors, res.Bus.Items())
			}

			if len(wantErrors) > 0 && res.IR != nil {
				t.Error("expected no typed IR when errors are recorded")
			}
			if len(wantErrors) == 0 && res.IR == nil {
				t.Error("expected a typed IR from a clean compile")
			}

			if check, ok := goldenChecks[name]; ok {
				check(t, res)
			}
		})
	}
}

var goldenChecks = map[string]func(*testing.T, *Result){
	"s1_assignment": func(t *testing.T, res *Result) {
		if len(res.IR.Main) != 1 {
			t.Fatalf("expected exactly 1 top-level call, got %d", len(res.IR.Main))
		}
	},
	"s2_expression": func(t *testing.T, res *Result) {
		if len(res.IR.Main) != 1 {
			t.Fatalf("expected exactly 1 top-level call, got %d", len(res.IR.Main))
		}
		nested := 0
		for _, arg := range res.IR.Main[0].Args {
			if arg.Nested != nil {
				nested++
			}
		}
		if nested != 1 {
			t.Errorf("expected the val argument to nest a + call, got %d nested args", nested)
		}
	},
	"s3_lazy_block": func(t *testing.T, res *Result) {
		if len(res.IR.Main) != 1 {
			t.Fatalf("expected exactly 1 top-level call, got %d", len(res.IR.Main))
		}
		call := res.IR.Main[0]
		if len(call.Thunks) != 2 {
			t.Fatalf("expected a lazy cond thunk and a block thunk, got %d thunks", len(call.Thunks))
		}
	},
	"s5_import_cycle": func(t *testing.T, res *Result) {
		for _, want := range []string{"effect ping:", "effect pong:"} {
			n := 0
			for _, ml := range res.Merged {
				if ml.Text == want {
					n++
				}
			}
			if n != 1 {
				t.Errorf("merged output contains %q %d times, want exactly once", want, n)
			}
		}
	},
	"s6_unknown_intrinsic": func(t *testing.T, res *Result) {
		if res.Program == nil || len(res.Program.Defs) != 1 {
			t.Fatal("expected the go effect to still resolve before type checking failed")
		}
	},
}

func errorKinds(bus *diag.Bus) []string {
	var kinds []string
	for _, d := range bus.Items() {
		if d.Severity == diag.Error {
			kinds = append(kinds, string(d.Kind))
		}
	}
	return kinds
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
