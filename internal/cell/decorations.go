package cell

import (
	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/model"
)

// DecorationKind names a border or highlight style the host paints.
type DecorationKind string

const (
	TopAbove    DecorationKind = "cellTopAbove"
	TopOn       DecorationKind = "cellTopOn"
	BottomBelow DecorationKind = "cellBottomBelow"
	BottomOn    DecorationKind = "cellBottomOn"
	Evaluating  DecorationKind = "evaluating"
)

// Decoration is one styled range.
type Decoration struct {
	Kind  DecorationKind `json:"kind"`
	Range model.Range    `json:"range"`
}

// Borders returns the top and bottom border decorations for c. Borders sit
// on the neighbouring lines when there are any, and on the cell's own first
// or last line at the edges of the document.
func Borders(doc *document.Document, c model.Cell) []Decoration {
	span := Span(doc, c)
	out := make([]Decoration, 0, 2)

	if c.StartLine == 0 {
		out = append(out, Decoration{Kind: TopOn, Range: model.Range{Start: span.Start, End: span.Start}})
	} else {
		above := doc.LineEndPosition(c.StartLine - 1)
		out = append(out, Decoration{Kind: TopAbove, Range: model.Range{Start: above, End: above}})
	}

	if c.EndLine >= doc.LineCount()-1 {
		out = append(out, Decoration{Kind: BottomOn, Range: model.Range{Start: span.End, End: span.End}})
	} else {
		below := model.Position{Line: c.EndLine + 1}
		out = append(out, Decoration{Kind: BottomBelow, Range: model.Range{Start: below, End: below}})
	}
	return out
}
