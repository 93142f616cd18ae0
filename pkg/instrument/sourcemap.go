package instrument

import (
	"encoding/json"
	"slices"
	"strings"
	"unicode/utf8"
)

// SourceMap is a version 3 source map. Instrumentation only inserts text
// within existing lines, so generated and original line numbers are equal.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// JSON encodes the map.
func (m *SourceMap) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// edit inserts text before the byte at off.
type edit struct {
	off  uint32
	text string
}

// applyEdits returns src with every edit applied. Edits at the same
// offset keep their relative order.
func applyEdits(src []byte, edits []edit) []byte {
	slices.SortStableFunc(edits, func(a, b edit) int { return int(a.off) - int(b.off) })
	size := len(src)
	for _, e := range edits {
		size += len(e.text)
	}
	out := make([]byte, 0, size)
	var last uint32
	for _, e := range edits {
		out = append(out, src[last:e.off]...)
		out = append(out, e.text...)
		last = e.off
	}
	return append(out, src[last:]...)
}

// segment maps a generated column to an original position. Columns count
// UTF-16 code units, as browsers expect.
type segment struct {
	line, genCol, srcCol int
}

// buildMappings maps the start of every token, and every inserted
// fragment, back to its original position. edits must be sorted.
func buildMappings(src []byte, toks []token, edits []edit) string {
	var points []uint32
	for _, t := range toks {
		if t.kind != tokEOF {
			points = append(points, t.start)
		}
	}
	for _, e := range edits {
		points = append(points, e.off)
	}
	slices.Sort(points)
	points = slices.Compact(points)

	var segs []segment
	line, col := 0, 0
	var pos uint32
	ei := 0
	shift := 0 // UTF-16 units inserted so far on the current line
	for _, p := range points {
		for pos < p {
			r, size := utf8.DecodeRune(src[pos:])
			if r == '\n' {
				line++
				col = 0
				shift = 0
			} else {
				col += utf16Len(r)
			}
			pos += uint32(size)
		}
		// Edits at or before p on this line: inserted text maps to p.
		for ei < len(edits) && edits[ei].off <= p {
			if edits[ei].off == p {
				segs = append(segs, segment{line: line, genCol: col + shift, srcCol: col})
			}
			shift += utf16Count(edits[ei].text)
			ei++
		}
		segs = append(segs, segment{line: line, genCol: col + shift, srcCol: col})
	}
	return encodeMappings(segs)
}

func encodeMappings(segs []segment) string {
	var b strings.Builder
	line, prevGen, prevLine, prevCol := 0, -1, 0, 0
	for _, s := range segs {
		for line < s.line {
			b.WriteByte(';')
			line++
			prevGen = -1
		}
		if prevGen == s.genCol {
			continue
		}
		if prevGen >= 0 {
			b.WriteByte(',')
		}
		gen := s.genCol
		if prevGen > 0 {
			gen -= prevGen
		}
		writeVLQ(&b, gen)
		writeVLQ(&b, 0)
		writeVLQ(&b, s.line-prevLine)
		writeVLQ(&b, s.srcCol-prevCol)
		prevGen, prevLine, prevCol = s.genCol, s.line, s.srcCol
	}
	return b.String()
}

const base64Digits = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ appends v in base64 VLQ, sign in the lowest bit.
func writeVLQ(b *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & 31
		u >>= 5
		if u > 0 {
			digit |= 32
		}
		b.WriteByte(base64Digits[digit])
		if u == 0 {
			return
		}
	}
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

func utf16Count(s string) int {
	n := 0
	for _, r := range s {
		n += utf16Len(r)
	}
	return n
}
