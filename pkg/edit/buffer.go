// Package edit renders byte-range edits over an immutable source text.
//
// Every edit replaces a half-open range [Start, End) of the original source
// with a list of pieces. A piece is either literal text or a span of the
// original source; spans are rendered recursively, so edits nested inside a
// span survive while everything else inside a replaced range is dropped.
// Text outside every edit is emitted byte-for-byte.
package edit

import (
	"fmt"
	"sort"
	"strings"
)

// Piece is one fragment of replacement output.
type Piece struct {
	text  string
	start uint
	end   uint
	span  bool
}

// Indent rewrites the leading whitespace of every line after the first
// within a span: a From prefix becomes To.
type Indent struct {
	From string
	To   string
}

// Text returns a literal piece.
func Text(s string) Piece {
	return Piece{text: s}
}

// Span returns a piece that renders the original range [start, end) with
// the edits nested inside it.
func Span(start, end uint) Piece {
	return Piece{start: start, end: end, span: true}
}

// Edit is one registered replacement.
type Edit struct {
	Start  uint
	End    uint
	Pieces []Piece
	seq    int
}

func (e *Edit) empty() bool {
	return e.Start == e.End
}

// OverlapError reports two edits whose ranges cross without nesting.
// Buffers panic with it: it means the caller computed inconsistent edits.
type OverlapError struct {
	A, B [2]uint
}

func (e OverlapError) Error() string {
	return fmt.Sprintf("edit: overlapping edits [%d,%d) and [%d,%d)", e.A[0], e.A[1], e.B[0], e.B[1])
}

// Buffer collects edits over a source text.
type Buffer struct {
	source []byte
	edits  []*Edit
	seq    int
}

// NewBuffer creates an empty edit buffer over source.
func NewBuffer(source []byte) *Buffer {
	return &Buffer{source: source}
}

// Source returns the original text.
func (b *Buffer) Source() []byte {
	return b.source
}

// Len returns the number of registered edits.
func (b *Buffer) Len() int {
	return len(b.edits)
}

// Mark returns a checkpoint that Rollback can return to.
func (b *Buffer) Mark() int {
	return len(b.edits)
}

// Rollback discards every edit registered after mark.
func (b *Buffer) Rollback(mark int) {
	if mark < len(b.edits) {
		b.edits = b.edits[:mark]
	}
}

// Replace replaces [start, end) with pieces.
func (b *Buffer) Replace(start, end uint, pieces ...Piece) {
	if start > end || end > uint(len(b.source)) {
		panic(fmt.Sprintf("edit: invalid range [%d,%d) over %d bytes", start, end, len(b.source)))
	}
	for _, p := range pieces {
		if p.span && (p.start < start || p.end > end) && start != end {
			panic(fmt.Sprintf("edit: span [%d,%d) escapes edit [%d,%d)", p.start, p.end, start, end))
		}
	}
	b.seq++
	b.edits = append(b.edits, &Edit{Start: start, End: end, Pieces: pieces, seq: b.seq})
}

// ReplaceText replaces [start, end) with literal text.
func (b *Buffer) ReplaceText(start, end uint, text string) {
	b.Replace(start, end, Text(text))
}

// Insert inserts text at offset. Insertions at the same offset keep their
// registration order.
func (b *Buffer) Insert(offset uint, text string) {
	b.Replace(offset, offset, Text(text))
}

// Delete removes [start, end).
func (b *Buffer) Delete(start, end uint) {
	b.Replace(start, end)
}

// Reindent registers line-prefix rewrites for every line starting inside
// (start, end). Lines that start within any of the protected ranges (for
// example multi-line template literals) are left alone.
func (b *Buffer) Reindent(start, end uint, ind Indent, protected [][2]uint) {
	if ind.From == ind.To {
		return
	}
	for i := start; i < end; i++ {
		if b.source[i] != '\n' {
			continue
		}
		line := i + 1
		if line >= end || isProtected(line, protected) {
			continue
		}
		if strings.HasPrefix(string(b.source[line:min(end, line+uint(len(ind.From)))]), ind.From) {
			b.Replace(line, line+uint(len(ind.From)), Text(ind.To))
		}
	}
}

func isProtected(offset uint, protected [][2]uint) bool {
	for _, r := range protected {
		if r[0] < offset && offset < r[1] {
			return true
		}
	}
	return false
}

// String renders the whole source with every edit applied.
func (b *Buffer) String() string {
	return b.Render(0, uint(len(b.source)))
}

// Bytes renders the whole source with every edit applied.
func (b *Buffer) Bytes() []byte {
	return []byte(b.String())
}

// Render renders the original range [start, end) with the edits that lie
// inside it.
func (b *Buffer) Render(start, end uint) string {
	var sb strings.Builder
	b.render(&sb, start, end, nil)
	return sb.String()
}

// render writes [start, end) to sb. owner is the edit whose span is being
// rendered, or nil at the top.
func (b *Buffer) render(sb *strings.Builder, start, end uint, owner *Edit) {
	cursor := start
	for _, e := range b.topLevel(start, end, owner) {
		sb.Write(b.source[cursor:e.Start])
		for _, p := range e.Pieces {
			if p.span {
				b.render(sb, p.start, p.end, e)
			} else {
				sb.WriteString(p.text)
			}
		}
		cursor = e.End
	}
	sb.Write(b.source[cursor:end])
}

// topLevel returns the edits inside [start, end) that are not nested in
// another edit of the same range, ordered by position.
//
// Inside a span of owner, insertions on owner's boundaries are skipped
// (they render outside owner), as are owner itself and any later edit
// with owner's exact range.
func (b *Buffer) topLevel(start, end uint, owner *Edit) []*Edit {
	var candidates []*Edit
	for _, e := range b.edits {
		if e.Start < start || e.End > end {
			continue
		}
		if owner != nil {
			if e == owner {
				continue
			}
			if e.empty() && (e.Start == owner.Start || e.Start == owner.End) {
				continue
			}
			if e.Start == owner.Start && e.End == owner.End && e.seq > owner.seq {
				continue
			}
		}
		candidates = append(candidates, e)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, c := candidates[i], candidates[j]
		if a.Start != c.Start {
			return a.Start < c.Start
		}
		// Insertions come before replacements starting at the same offset.
		if a.empty() != c.empty() {
			return a.empty()
		}
		if a.End != c.End {
			return a.End > c.End
		}
		return a.seq < c.seq
	})

	var out []*Edit
	var outer *Edit
	for _, e := range candidates {
		if outer != nil && !outer.empty() {
			switch {
			case e.Start >= outer.End:
				// Disjoint, or an insertion at the outer edit's end.
			case e.Start == outer.Start && e.End == outer.End:
				// Identical range: the later registration wins.
				if e.seq > outer.seq {
					out[len(out)-1] = e
					outer = e
				}
				continue
			case e.End <= outer.End:
				continue
			default:
				panic(OverlapError{A: [2]uint{outer.Start, outer.End}, B: [2]uint{e.Start, e.End}})
			}
		}
		out = append(out, e)
		if !e.empty() {
			outer = e
		}
	}
	return out
}
