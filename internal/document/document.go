// Package document holds the host editor's view of one open text document:
// its identity, version, text, and the line index used to convert between
// byte offsets and editor positions.
package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/phobologic/saccade/internal/model"
)

// ErrInvalidRange is returned when a change range ends before it starts.
var ErrInvalidRange = errors.New("invalid change range")

// Document is an immutable snapshot of one document version.
// Offsets are byte offsets into Text; Position columns are UTF-16 code units.
type Document struct {
	uri        string
	languageID string
	version    int
	text       string
	lines      []int // byte offset of the first byte of each line
}

// New builds a snapshot for the given identity, language, version and text.
func New(uri, languageID string, version int, text string) *Document {
	return &Document{
		uri:        uri,
		languageID: languageID,
		version:    version,
		text:       text,
		lines:      lineOffsets(text),
	}
}

func (d *Document) URI() string        { return d.uri }
func (d *Document) LanguageID() string { return d.languageID }
func (d *Document) Version() int       { return d.version }
func (d *Document) Text() string       { return d.text }
func (d *Document) Len() int           { return len(d.text) }

// LineCount returns the number of lines. A trailing newline opens an
// empty final line, matching editor behavior.
func (d *Document) LineCount() int {
	return len(d.lines)
}

// LineStart returns the byte offset where line i begins.
func (d *Document) LineStart(i int) int {
	i = d.clampLine(i)
	return d.lines[i]
}

// LineEnd returns the byte offset just past the content of line i,
// excluding its terminator.
func (d *Document) LineEnd(i int) int {
	i = d.clampLine(i)
	end := len(d.text)
	if i+1 < len(d.lines) {
		end = d.lines[i+1] - 1
	}
	if end > d.lines[i] && d.text[end-1] == '\r' {
		end--
	}
	return end
}

// Line returns the text of line i without its terminator.
func (d *Document) Line(i int) string {
	return d.text[d.LineStart(i):d.LineEnd(i)]
}

// IsBlankLine reports whether line i holds only whitespace.
func (d *Document) IsBlankLine(i int) bool {
	return strings.TrimSpace(d.Line(i)) == ""
}

// Slice returns the text between two byte offsets, clamped to the document.
func (d *Document) Slice(from, to int) string {
	from, to = d.clampOffset(from), d.clampOffset(to)
	if from >= to {
		return ""
	}
	return d.text[from:to]
}

// Lines returns lines start..end inclusive joined by "\n".
func (d *Document) Lines(start, end int) string {
	if end < start {
		return ""
	}
	return d.Slice(d.LineStart(start), d.LineEnd(end))
}

// LineOf returns the line containing byte offset off.
func (d *Document) LineOf(off int) int {
	off = d.clampOffset(off)
	return sort.Search(len(d.lines), func(i int) bool { return d.lines[i] > off }) - 1
}

// OffsetAt converts an editor position to a byte offset, clamping
// positions past the end of a line or the document.
func (d *Document) OffsetAt(p model.Position) int {
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(d.lines) {
		return len(d.text)
	}
	i := d.lines[p.Line]
	end := d.LineEnd(p.Line)
	need := p.Character
	for i < end && need > 0 {
		r, sz := utf8.DecodeRuneInString(d.text[i:])
		need -= utf16Len(r)
		i += sz
	}
	return i
}

// PositionAt converts a byte offset to an editor position.
func (d *Document) PositionAt(off int) model.Position {
	off = d.clampOffset(off)
	line := d.LineOf(off)
	start := d.lines[line]
	if end := d.LineEnd(line); off > end {
		off = end
	}
	col := 0
	for k := start; k < off; {
		r, sz := utf8.DecodeRuneInString(d.text[k:])
		col += utf16Len(r)
		k += sz
	}
	return model.Position{Line: line, Character: col}
}

// LineEndPosition returns the position just after the last character of line i.
func (d *Document) LineEndPosition(i int) model.Position {
	return d.PositionAt(d.LineEnd(i))
}

// Point returns the tree-sitter style row and byte column of offset off.
func (d *Document) Point(off int) Point {
	off = d.clampOffset(off)
	line := d.LineOf(off)
	return Point{Row: line, Column: off - d.lines[line]}
}

// Point is a row and byte column.
type Point struct {
	Row    int
	Column int
}

// Edit describes one replacement in byte terms: the bytes
// [StartByte, OldEndByte) of the previous text became [StartByte, NewEndByte).
type Edit struct {
	StartByte   int
	OldEndByte  int
	NewEndByte  int
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Apply returns the next document version with changes applied in order,
// along with the byte-level edits that produced it. A change without a
// range replaces the whole text; in that case the returned edits are nil
// because nothing of the previous text can be reused.
func (d *Document) Apply(version int, changes []model.Change) (*Document, []Edit, error) {
	cur := d
	var edits []Edit
	full := false
	for _, ch := range changes {
		if ch.Range == nil {
			cur = New(d.uri, d.languageID, version, ch.Text)
			full = true
			continue
		}
		if ch.Range.End.Before(ch.Range.Start) {
			return nil, nil, fmt.Errorf("%w: %v > %v", ErrInvalidRange, ch.Range.Start, ch.Range.End)
		}
		start := cur.OffsetAt(ch.Range.Start)
		oldEnd := cur.OffsetAt(ch.Range.End)
		next := New(d.uri, d.languageID, version, cur.text[:start]+ch.Text+cur.text[oldEnd:])
		newEnd := start + len(ch.Text)
		edits = append(edits, Edit{
			StartByte:   start,
			OldEndByte:  oldEnd,
			NewEndByte:  newEnd,
			StartPoint:  cur.Point(start),
			OldEndPoint: cur.Point(oldEnd),
			NewEndPoint: next.Point(newEnd),
		})
		cur = next
	}
	if cur == d {
		cur = New(d.uri, d.languageID, version, d.text)
	}
	if full {
		edits = nil
	}
	return cur, edits, nil
}

func (d *Document) clampLine(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(d.lines) {
		return len(d.lines) - 1
	}
	return i
}

func (d *Document) clampOffset(off int) int {
	if off < 0 {
		return 0
	}
	if off > len(d.text) {
		return len(d.text)
	}
	return off
}

func lineOffsets(text string) []int {
	offs := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offs = append(offs, i+1)
		}
	}
	return offs
}

func utf16Len(r rune) int {
	if r >= 0x10000 {
		return 2
	}
	return 1
}
