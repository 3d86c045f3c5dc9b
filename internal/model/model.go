// Package model defines core data structures for saccade.
package model

// Mode selects how cell boundaries are resolved.
type Mode string

const (
	Implicit Mode = "implicit"
	Explicit Mode = "explicit"
	Auto     Mode = "auto"
)

// ParseMode converts a user-supplied mode name, falling back to Auto.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case Implicit, Explicit:
		return Mode(s)
	default:
		return Auto
	}
}

// Position is a zero-based line and UTF-16 column, as editors report them.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Character < o.Character)
}

// Range is a start/end pair of positions with Start <= End.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range covers no text.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// LargerThan orders ranges by line span first and, for equal line spans,
// by the column distance between the start and end positions.
func (r Range) LargerThan(o Range) bool {
	rl, ol := r.End.Line-r.Start.Line, o.End.Line-o.Start.Line
	if rl != ol {
		return rl > ol
	}
	return r.End.Character-r.Start.Character > o.End.Character-o.Start.Character
}

// Selection is a directed range: Anchor stays put, Active follows the cursor.
type Selection struct {
	Anchor Position `json:"anchor"`
	Active Position `json:"active"`
}

// Caret returns an empty selection at p.
func Caret(p Position) Selection {
	return Selection{Anchor: p, Active: p}
}

// Range returns the normalized start/end pair of the selection.
func (s Selection) Range() Range {
	if s.Active.Before(s.Anchor) {
		return Range{Start: s.Active, End: s.Anchor}
	}
	return Range{Start: s.Anchor, End: s.Active}
}

// Empty reports whether the selection is a bare cursor.
func (s Selection) Empty() bool {
	return s.Anchor == s.Active
}

// Cell is one executable or narrative unit of a document.
// StartLine and EndLine are inclusive and zero-based.
type Cell struct {
	StartLine int               `json:"startLine"`
	EndLine   int               `json:"endLine"`
	Metadata  map[string]string `json:"metadata"`
	Text      string            `json:"text"`

	// Markdown is set for explicit cells tagged [markdown] and for implicit
	// cells made only of comments.
	Markdown bool `json:"markdown"`
	Explicit bool `json:"explicit"`
}

// Type returns "markdown" or "code".
func (c Cell) Type() string {
	if c.Markdown {
		return "markdown"
	}
	return "code"
}

// Change is one text replacement reported by the host. A nil Range
// replaces the whole document.
type Change struct {
	Range *Range `json:"range,omitempty"`
	Text  string `json:"text"`
}
