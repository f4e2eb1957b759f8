// Package merge resolves `import <path>` lines recursively, producing
// one merged source buffer with a line-map back to the files of origin,
// and breaks import cycles.
package merge

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/source"
)

const extension = ".3bx"

// MergedLine is one line of the merged buffer together with the file and
// line it originated from.
type MergedLine struct {
	Text   string
	Origin source.Position
}

// Merger resolves import directives into one merged view.
type Merger struct {
	FS     source.FileSystem
	Config config.ImportConfig
	Bus    *diag.Bus

	visited map[string]bool
}

// Merge merges rootPath and everything it (transitively) imports.
func Merge(fs source.FileSystem, cfg config.ImportConfig, bus *diag.Bus, rootPath string) []MergedLine {
	m := &Merger{FS: fs, Config: cfg, Bus: bus, visited: map[string]bool{}}
	return m.mergeRoot(rootPath)
}

func (m *Merger) mergeRoot(rootPath string) []MergedLine {
	m.visited[rootPath] = true // a cycle back to the root emits nothing
	rootLines := m.readLines(rootPath)
	startLine := 1
	if m.Config.Prelude != "" && !preludeAlreadyImported(rootLines, m.Config.Prelude) {
		rootLines = append([]string{"import " + m.Config.Prelude}, rootLines...)
		// The synthetic prelude line has no real origin; attribute it to
		// line 0 of the root file so it never collides with a real line.
		startLine = 0
	}
	return m.mergeLines(rootPath, rootLines, startLine)
}

// startLine is 1 if rootLines is the file's real lines, or 0 if a
// synthetic prelude import was prepended (shifting every real line down
// by one without an origin of its own).
func (m *Merger) mergeLines(file string, lines []string, startLine int) []MergedLine {
	var out []MergedLine
	origin := startLine
	for _, line := range lines {
		lineNo := origin
		origin++
		if p, ok := importPath(line); ok {
			out = append(out, m.expandImport(file, p)...)
			continue
		}
		out = append(out, MergedLine{Text: line, Origin: source.Position{File: file, Line: lineNo, Col: 1}})
	}
	return out
}

func (m *Merger) expandImport(fromFile, importedPath string) []MergedLine {
	resolved, ok := m.resolve(fromFile, importedPath)
	if !ok {
		m.Bus.Errorf(diag.KindImportUnresolved, source.Range{Start: source.Position{File: fromFile}},
			"cannot find import %s", importedPath)
		return []MergedLine{{
			Text:   fmt.Sprintf("# ERROR: Cannot find import %s", importedPath),
			Origin: source.Position{File: fromFile},
		}}
	}
	if m.visited[resolved] {
		// Repeat visit: prevents cycles, preserves first-inclusion order.
		return nil
	}
	m.visited[resolved] = true

	lines := m.readLines(resolved)
	var out []MergedLine
	out = append(out, MergedLine{Text: fmt.Sprintf("# Begin import %s", importedPath), Origin: source.Position{File: fromFile}})
	out = append(out, m.mergeLines(resolved, lines, 1)...)
	out = append(out, MergedLine{Text: fmt.Sprintf("# End import %s", importedPath), Origin: source.Position{File: fromFile}})
	return out
}

func (m *Merger) readLines(p string) []string {
	content, err := m.FS.Read(p)
	if err != nil {
		m.Bus.Errorf(diag.KindIO, source.Range{Start: source.Position{File: p}}, "cannot read %s: %v", p, err)
		return nil
	}
	return strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
}

// resolve tries the three resolution roots in order, returning the
// first candidate that exists.
func (m *Merger) resolve(fromFile, importedPath string) (string, bool) {
	candidate := withExtension(importedPath)

	// 1. relative to the importing file's directory.
	rel := path.Join(path.Dir(fromFile), candidate)
	if m.exists(rel) {
		return rel, true
	}

	// 2. a lib/ directory walked upward from that directory.
	dir := path.Dir(fromFile)
	for step := 0; step <= m.Config.MaxUpwardSteps; step++ {
		libCandidate := path.Join(dir, "lib", candidate)
		if m.exists(libCandidate) {
			return libCandidate, true
		}
		parent := path.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// 3. a lib/ under a caller-supplied base directory.
	for _, base := range m.Config.LibDirs {
		baseCandidate := path.Join(base, "lib", candidate)
		if m.exists(baseCandidate) {
			return baseCandidate, true
		}
	}

	return "", false
}

func (m *Merger) exists(p string) bool {
	_, err := m.FS.Read(p)
	return err == nil
}

func withExtension(p string) string {
	base := path.Base(p)
	if strings.Contains(base, ".") {
		return p
	}
	return p + extension
}

// importPath recognizes `import <path>` as a soft textual directive:
// import is not a reserved keyword, merely the name the merger looks
// for at the start of a line.
func importPath(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, "import") {
		return "", false
	}
	rest := trimmed[len("import"):]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	p := strings.TrimSpace(rest)
	if p == "" {
		return "", false
	}
	if unquoted, err := strconv.Unquote(p); err == nil {
		p = unquoted
	}
	return p, true
}

func preludeAlreadyImported(lines []string, prelude string) bool {
	for _, line := range lines {
		if p, ok := importPath(line); ok && p == prelude {
			return true
		}
	}
	return false
}
