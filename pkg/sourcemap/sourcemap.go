// Package sourcemap implements the import merger's line map: a Source
// Map v3 document mapping every merged-buffer line back to the file and
// line it came from.
//
// go-sourcemap/sourcemap is a consumer only; it has no encoder. Encoding
// is implemented here with the standard base64-VLQ scheme the v3 spec
// defines, and go-sourcemap.Parse is used to decode our own output back
// (Decode), giving the tests a real round trip instead of only a
// hand-rolled lookup table.
package sourcemap

import (
	"encoding/json"

	"github.com/go-sourcemap/sourcemap"

	"github.com/threebx-lang/threebx/pkg/merge"
	"github.com/threebx-lang/threebx/pkg/source"
)

// Document is the Source Map v3 JSON shape.
type Document struct {
	Version    int      `json:"version"`
	File       string   `json:"file"`
	SourceRoot string   `json:"sourceRoot"`
	Sources    []string `json:"sources"`
	Names      []string `json:"names"`
	Mappings   string   `json:"mappings"`
}

// LineMap is a built, queryable line_map() for one merged buffer.
type LineMap struct {
	doc     Document
	origins []source.Position // origins[i] is the origin of merged line i+1
}

// Build constructs a LineMap from a merger's output, one entry per
// merged line, in order.
func Build(genFile string, lines []merge.MergedLine) *LineMap {
	lm := &LineMap{origins: make([]source.Position, len(lines))}
	sourceIndex := map[string]int{}
	var sources []string

	enc := newEncoder()
	prevSourceIdx, prevSrcLine, prevSrcCol := 0, 0, 0

	for i, l := range lines {
		lm.origins[i] = l.Origin

		idx, ok := sourceIndex[l.Origin.File]
		if !ok {
			idx = len(sources)
			sourceIndex[l.Origin.File] = idx
			sources = append(sources, l.Origin.File)
		}

		// One segment per line, at generated column 0, 0-based per the
		// v3 spec (our own Position fields are 1-based).
		enc.segment(0, idx-prevSourceIdx, (l.Origin.Line-1)-prevSrcLine, (l.Origin.Col-1)-prevSrcCol)
		prevSourceIdx, prevSrcLine, prevSrcCol = idx, l.Origin.Line-1, l.Origin.Col-1
		enc.endLine()
	}

	lm.doc = Document{
		Version:  3,
		File:     genFile,
		Sources:  sources,
		Names:    nil,
		Mappings: enc.string(),
	}
	return lm
}

// Lookup returns the origin of merged line n (1-based), mirroring what a
// consumer would get back from decoding Mappings for that line's column 0.
func (lm *LineMap) Lookup(mergedLine int) (source.Position, bool) {
	if mergedLine < 1 || mergedLine > len(lm.origins) {
		return source.Position{}, false
	}
	return lm.origins[mergedLine-1], true
}

// JSON marshals the Source Map v3 document.
func (lm *LineMap) JSON() ([]byte, error) {
	return json.MarshalIndent(lm.doc, "", "  ")
}

// Decode parses this LineMap's own encoded document with
// go-sourcemap/sourcemap and looks up a generated position, proving the
// encoder round-trips through a real v3 consumer rather than only our
// own Lookup table.
func (lm *LineMap) Decode(genLine, genColumn int) (file string, line, col int, ok bool) {
	data, err := lm.JSON()
	if err != nil {
		return "", 0, 0, false
	}
	consumer, err := sourcemap.Parse("", data)
	if err != nil {
		return "", 0, 0, false
	}
	// The consumer takes a 1-based generated line and a 0-based column,
	// and returns a 1-based source line and a 0-based source column.
	file, _, line, col, ok = consumer.Source(genLine, genColumn-1)
	if !ok {
		return "", 0, 0, false
	}
	return file, line, col + 1, true
}

// vlqEncoder accumulates base64-VLQ segments per the Source Map v3 spec.
type vlqEncoder struct {
	out      []byte
	lineHead bool
}

func newEncoder() *vlqEncoder { return &vlqEncoder{lineHead: true} }

func (e *vlqEncoder) segment(fields ...int) {
	if !e.lineHead {
		e.out = append(e.out, ',')
	}
	for _, f := range fields {
		e.out = append(e.out, encodeVLQ(f)...)
	}
	e.lineHead = false
}

func (e *vlqEncoder) endLine() {
	e.out = append(e.out, ';')
	e.lineHead = true
}

func (e *vlqEncoder) string() string {
	// Drop the trailing ';' the last endLine() added; the spec's
	// mappings field has no trailing line separator.
	if n := len(e.out); n > 0 && e.out[n-1] == ';' {
		return string(e.out[:n-1])
	}
	return string(e.out)
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// encodeVLQ encodes one signed integer as base64-VLQ: the sign occupies
// the low bit, the value is shifted left by one, and the result is
// chunked into 5-bit groups with a continuation bit in the 6th.
func encodeVLQ(n int) []byte {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	var out []byte
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		out = append(out, base64Chars[digit])
		if v == 0 {
			break
		}
	}
	return out
}
