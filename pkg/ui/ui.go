// Package ui renders diagnostics and compiler output for the terminal,
// styled with lipgloss.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/threebx-lang/threebx/pkg/diag"
)

var (
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	hintStyle     = lipgloss.NewStyle().Faint(true)
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	kindStyle     = lipgloss.NewStyle().Faint(true)
	okStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// PrintDiagnostics renders every diagnostic on the bus, one per line, in
// the bus's own (source-ordered) sequence.
func PrintDiagnostics(w io.Writer, bus *diag.Bus) {
	for _, d := range bus.Items() {
		fmt.Fprintln(w, FormatDiagnostic(d))
	}
}

// FormatDiagnostic renders one diagnostic the way rustc-style tooling
// does: severity, location, message, and the taxonomy kind in a dim tag.
func FormatDiagnostic(d diag.Diagnostic) string {
	var sev string
	switch d.Severity {
	case diag.Error:
		sev = errorStyle.Render("error")
	case diag.Warning:
		sev = warningStyle.Render("warning")
	case diag.Info:
		sev = infoStyle.Render("info")
	default:
		sev = hintStyle.Render("hint")
	}
	loc := locationStyle.Render(d.Range.Start.String())
	tag := kindStyle.Render("[" + string(d.Kind) + "]")
	return fmt.Sprintf("%s: %s %s %s", loc, sev, d.Message, tag)
}

// jsonDiagnostic is the machine-readable record shape: severity and
// kind as strings, the range flattened to start/end line and column.
type jsonDiagnostic struct {
	Severity  string `json:"severity"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// PrintJSON renders the bus as a JSON array for tooling consumers.
func PrintJSON(w io.Writer, bus *diag.Bus) error {
	records := make([]jsonDiagnostic, 0, bus.Len())
	for _, d := range bus.Items() {
		records = append(records, jsonDiagnostic{
			Severity:  d.Severity.String(),
			Kind:      string(d.Kind),
			Message:   d.Message,
			File:      d.Range.Start.File,
			StartLine: d.Range.Start.Line,
			StartCol:  d.Range.Start.Col,
			EndLine:   d.Range.End.Line,
			EndCol:    d.Range.End.Col,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// PrintSummary prints a one-line pass/fail summary.
func PrintSummary(w io.Writer, bus *diag.Bus) {
	if !bus.HasErrors() {
		fmt.Fprintln(w, okStyle.Render("ok"))
		return
	}
	n := 0
	for _, d := range bus.Items() {
		if d.Severity == diag.Error {
			n++
		}
	}
	fmt.Fprintln(w, errorStyle.Render(fmt.Sprintf("failed: %d error(s)", n)))
}

// Rule renders a horizontal divider sized to the terminal-friendly
// default width, used to separate sections of CLI output.
func Rule(title string) string {
	if title == "" {
		return strings.Repeat("-", 60)
	}
	pad := strings.Repeat("-", 3)
	return lipgloss.NewStyle().Bold(true).Render(pad + " " + title + " " + strings.Repeat("-", 60-len(pad)-len(title)-2))
}
