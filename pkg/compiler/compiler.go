// Package compiler orchestrates the full 3BX pipeline: import merging,
// section analysis, pattern resolution, type inference, and IR
// assembly, gated by the diagnostics bus's error state. No partial
// typed IR is ever handed downstream once an error is recorded.
package compiler

import (
	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/ir"
	"github.com/threebx-lang/threebx/pkg/merge"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/resolve"
	"github.com/threebx-lang/threebx/pkg/section"
	"github.com/threebx-lang/threebx/pkg/source"
	"github.com/threebx-lang/threebx/pkg/sourcemap"
	"github.com/threebx-lang/threebx/pkg/types"
)

// Result is everything one compilation produced: the diagnostics bus is
// always populated; Program and IR are nil if the bus recorded an error
// at any stage before they could be assembled.
type Result struct {
	Bus     *diag.Bus
	Merged  []merge.MergedLine
	Root    *section.Section
	Program *resolve.Program
	Typed   map[int]*pattern.TypedDefinition
	IR      *ir.Program
	LineMap *sourcemap.LineMap
}

// Compile runs the full pipeline against rootPath. fs is the
// collaborator file system, letting the LSP server substitute an
// in-memory overlay for open buffers without touching disk.
func Compile(fs source.FileSystem, cfg *config.Config, rootPath string) *Result {
	bus := &diag.Bus{}
	res := &Result{Bus: bus}

	res.Merged = merge.Merge(fs, cfg.Import, bus, rootPath)
	if bus.HasErrors() {
		return res
	}
	res.LineMap = sourcemap.Build(rootPath, res.Merged)

	res.Root = section.Analyze(res.Merged, bus)
	if bus.HasErrors() {
		return res
	}

	res.Program = resolve.Resolve(res.Root, cfg.Resolver, bus)
	if bus.HasErrors() {
		return res
	}

	res.Typed = types.Infer(res.Program.Defs, bus)
	if bus.HasErrors() {
		return res
	}

	res.IR = ir.Assemble(res.Program, res.Typed, bus)
	if bus.HasErrors() {
		res.IR = nil
	}
	return res
}

// ResolvedPatterns exposes every pattern definition the source
// declared, in declaration order, regardless of whether compilation
// ultimately succeeded. Editor features list patterns through this.
func (r *Result) ResolvedPatterns() []*pattern.Definition {
	if r.Program == nil {
		return nil
	}
	return r.Program.Trie.Definitions()
}

// Line returns the origin of merged-buffer line n, for mapping
// downstream diagnostics back to the files they came from.
func (r *Result) Line(n int) (source.Position, bool) {
	if r.LineMap == nil {
		return source.Position{}, false
	}
	return r.LineMap.Lookup(n)
}

// Succeeded reports whether compilation produced a usable typed IR.
func (r *Result) Succeeded() bool {
	return !r.Bus.HasErrors() && r.IR != nil
}
