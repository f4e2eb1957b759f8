// Package diag implements the compilation's diagnostics bus: a flat,
// append-only, source-ordered stream of records consumed by the CLI and
// LSP collaborators.
package diag

import (
	"fmt"
	"sort"

	"github.com/threebx-lang/threebx/pkg/source"
)

// Severity is the closed severity set.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	default:
		return "unknown"
	}
}

// Kind is the error taxonomy. It is informational (for tests and
// tooling) and never changes Severity on its own.
type Kind string

const (
	KindIO                 Kind = "io_error"
	KindIndentation        Kind = "indentation_error"
	KindUnknownIntrinsic   Kind = "unknown_intrinsic"
	KindUnresolvedPattern  Kind = "unresolved_pattern"
	KindUnresolvedParam    Kind = "unresolved_parameter"
	KindTypeConflict       Kind = "type_conflict"
	KindCyclicPrecedence   Kind = "cyclic_precedence"
	KindNonTermination     Kind = "resolver_non_termination"
	KindImportUnresolved   Kind = "import_unresolved"
)

// Diagnostic is one record on the bus.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Range    source.Range
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Range.Start, d.Severity, d.Message)
}

// Bus is the compilation's append-only diagnostics sink, owned by one
// compilation. It is not safe for concurrent use; compilations running
// in parallel each own their own Bus.
type Bus struct {
	items []Diagnostic
}

// Add appends a diagnostic to the bus.
func (b *Bus) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Errorf is a convenience for Add with Severity Error.
func (b *Bus) Errorf(kind Kind, rng source.Range, format string, args ...any) {
	b.Add(Diagnostic{Severity: Error, Kind: kind, Message: fmt.Sprintf(format, args...), Range: rng})
}

// Warnf is a convenience for Add with Severity Warning.
func (b *Bus) Warnf(kind Kind, rng source.Range, format string, args ...any) {
	b.Add(Diagnostic{Severity: Warning, Kind: kind, Message: fmt.Sprintf(format, args...), Range: rng})
}

// Items returns the diagnostics in source order, deterministic given
// identical inputs.
func (b *Bus) Items() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i].Range.Start, out[j].Range.Start
		if a.File != c.File {
			return a.File < c.File
		}
		if a.Line != c.Line {
			return a.Line < c.Line
		}
		return a.Col < c.Col
	})
	return out
}

// HasErrors reports whether any Severity-Error diagnostic was recorded.
// This gates whether a typed IR may be forwarded downstream.
func (b *Bus) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Len reports the number of diagnostics recorded so far.
func (b *Bus) Len() int {
	return len(b.items)
}
