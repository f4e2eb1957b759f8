package resolve

import (
	"strings"

	"github.com/threebx-lang/threebx/pkg/diag"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/section"
	"github.com/threebx-lang/threebx/pkg/source"
)

// collect walks the section tree and gathers every pattern definition:
// an Effect/Expression/Section/Class child section is one definition
// whose header is the section's own header line; a Patterns section's
// bare (non-colon) lines are each one more definition.
//
// Patterns-section entries carry no introducer keyword and no body, so
// there is nothing in their own text to classify them by; they default
// to EffectDef, the same default every other kind-less construct in the
// language falls back to.
func collect(root *section.Section, bus *diag.Bus) []*pattern.Definition {
	var defs []*pattern.Definition
	id := 0
	section.Walk(root, func(s *section.Section) {
		switch s.Kind {
		case section.Effect, section.Expression, section.SectionKind, section.Class:
			raw, ok := headerText(s)
			if !ok {
				def := &pattern.Definition{ID: id, Kind: defKind(s.Kind), Body: s, Line: s.Header.Origin}
				bus.Errorf(diag.KindUnresolvedPattern, headerOrigin(def), "%s definition has no header words to match on", s.Kind)
				return
			}
			defs = append(defs, &pattern.Definition{
				ID:   id,
				Kind: defKind(s.Kind),
				Body: s,
				Line: s.Header.Origin,
				Raw:  raw,
			})
			id++
		case section.Patterns:
			for _, cl := range s.Lines {
				if cl.Child != nil {
					continue // has a body; handled as its own section elsewhere
				}
				defs = append(defs, &pattern.Definition{
					ID:   id,
					Kind: pattern.EffectDef,
					Body: nil,
					Line: cl.Origin,
					Raw:  cl.Trimmed,
				})
				id++
			}
		}
	})
	return defs
}

func defKind(k section.Kind) pattern.DefKind {
	switch k {
	case section.Effect:
		return pattern.EffectDef
	case section.Expression:
		return pattern.ExpressionDef
	case section.SectionKind:
		return pattern.SectionDef
	case section.Class:
		return pattern.ClassDef
	default:
		return pattern.EffectDef
	}
}

// headerText strips the introducer keyword ("effect", "expression",
// "section", "class") and the trailing ':' from a definition section's
// header line, leaving only the words that participate in matching.
func headerText(s *section.Section) (string, bool) {
	trimmed := strings.TrimSuffix(s.Header.Trimmed, ":")
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", false
	}
	rest := strings.TrimSpace(trimmed[len(fields[0]):])
	return rest, true
}

// headerOrigin returns the origin to attribute a deduction diagnostic to.
func headerOrigin(d *pattern.Definition) source.Range {
	return source.Range{Start: d.Line}
}
