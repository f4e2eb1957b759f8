// Package errors renders diagnostics as framed source snippets: the
// offending line with two lines of context, a caret run under the
// error span, and the message as a header. Snippets are read back
// through the same FileSystem collaborator the compiler reads from, so
// the LSP overlay's in-editor buffers frame correctly too.
package errors

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/source"
)

const contextLines = 2

// Frame is one diagnostic prepared for framed rendering.
type Frame struct {
	Message  string
	Severity diag.Severity
	Filename string
	Line     int // 1-indexed
	Column   int // 1-indexed
	Length   int // caret run length

	// SourceLines holds the snippet; HighlightLine indexes the
	// offending line within it.
	SourceLines   []string
	HighlightLine int
}

// Renderer frames diagnostics against the files they point into. The
// line cache is bounded so a long-running process (the LSP server
// recompiles on every keystroke) does not grow without limit.
type Renderer struct {
	FS source.FileSystem

	mu    sync.Mutex
	cache map[string][]string
	keys  []string
}

const cacheLimit = 100

// NewRenderer creates a Renderer reading through fs.
func NewRenderer(fs source.FileSystem) *Renderer {
	return &Renderer{FS: fs, cache: map[string][]string{}}
}

// Frame prepares one diagnostic for rendering. A diagnostic with no
// usable position still frames: it just carries no snippet.
func (r *Renderer) Frame(d diag.Diagnostic) *Frame {
	f := &Frame{
		Message:  d.Message,
		Severity: d.Severity,
		Filename: d.Range.Start.File,
		Line:     d.Range.Start.Line,
		Column:   d.Range.Start.Col,
		Length:   spanLength(d.Range),
	}
	if f.Filename == "" || f.Line < 1 {
		return f
	}
	lines, err := r.fileLines(f.Filename)
	if err != nil || f.Line > len(lines) {
		return f
	}
	start := f.Line - 1 - contextLines
	if start < 0 {
		start = 0
	}
	end := f.Line + contextLines
	if end > len(lines) {
		end = len(lines)
	}
	f.SourceLines = lines[start:end]
	f.HighlightLine = f.Line - 1 - start
	return f
}

// Format produces the framed snippet.
func (f *Frame) Format() string {
	var buf strings.Builder

	if f.Line > 0 {
		fmt.Fprintf(&buf, "%s: %s in %s:%d:%d\n", title(f.Severity), f.Message, f.Filename, f.Line, f.Column)
	} else {
		fmt.Fprintf(&buf, "%s: %s\n", title(f.Severity), f.Message)
	}

	if len(f.SourceLines) == 0 {
		return buf.String()
	}
	buf.WriteByte('\n')

	startLine := f.Line - f.HighlightLine
	for i, line := range f.SourceLines {
		fmt.Fprintf(&buf, "  %4d | %s\n", startLine+i, line)
		if i != f.HighlightLine {
			continue
		}
		col := f.Column - 1
		if col > len(line) {
			col = len(line)
		}
		if col < 0 {
			col = 0
		}
		indent := utf8.RuneCountInString(line[:col])
		carets := f.Length
		if carets < 1 {
			carets = 1
		}
		fmt.Fprintf(&buf, "       | %s%s\n", strings.Repeat(" ", indent), strings.Repeat("^", carets))
	}
	return buf.String()
}

// Render writes every diagnostic on the bus as a framed snippet, in the
// bus's source order, separated by blank lines.
func (r *Renderer) Render(w io.Writer, bus *diag.Bus) {
	for _, d := range bus.Items() {
		fmt.Fprintln(w, r.Frame(d).Format())
	}
}

func title(sev diag.Severity) string {
	switch sev {
	case diag.Error:
		return "Error"
	case diag.Warning:
		return "Warning"
	case diag.Info:
		return "Info"
	default:
		return "Hint"
	}
}

// spanLength is the caret run for a single-line range; multi-line and
// unset ranges underline one character.
func spanLength(rng source.Range) int {
	if rng.End.Line != rng.Start.Line {
		return 1
	}
	if n := rng.End.Col - rng.Start.Col; n > 0 {
		return n
	}
	return 1
}

// fileLines reads and splits a file once, then serves it from the
// bounded cache. Oldest entries are evicted first.
func (r *Renderer) fileLines(path string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lines, ok := r.cache[path]; ok {
		r.touch(path)
		return lines, nil
	}

	content, err := r.FS.Read(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s is not valid UTF-8", path)
	}
	normalized := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	if len(r.keys) >= cacheLimit {
		oldest := r.keys[0]
		delete(r.cache, oldest)
		r.keys = r.keys[1:]
	}
	r.cache[path] = lines
	r.keys = append(r.keys, path)
	return lines, nil
}

// touch moves path to the most-recently-used end of the eviction order.
func (r *Renderer) touch(path string) {
	for i, key := range r.keys {
		if key == path {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			r.keys = append(r.keys, path)
			return
		}
	}
}
