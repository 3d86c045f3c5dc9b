// Package cell resolves cell boundaries in a document, either from marker
// comments or from the grouping of top-level statements in its syntax tree.
package cell

import (
	"strings"

	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/parse"
)

// Resolver answers cell queries for one document snapshot.
type Resolver struct {
	Doc  *document.Document
	Tree *parse.Tree // nil when the document is not in a supported language
	Opts Options

	// HasMarkers is the cached result of Opts.HasMarkers(Doc).
	HasMarkers bool
}

// NewResolver builds a resolver, scanning doc for markers.
func NewResolver(doc *document.Document, tree *parse.Tree, opts Options) *Resolver {
	return &Resolver{Doc: doc, Tree: tree, Opts: opts, HasMarkers: opts.HasMarkers(doc)}
}

// Effective returns the concrete mode auto resolves to for this document.
func (r *Resolver) Effective(mode model.Mode) model.Mode {
	if mode == model.Auto {
		if r.Opts.PreferExplicit && r.HasMarkers {
			return model.Explicit
		}
		return model.Implicit
	}
	return mode
}

// At returns the cell containing pos.
func (r *Resolver) At(pos model.Position, mode model.Mode) (model.Cell, bool) {
	switch r.Effective(mode) {
	case model.Explicit:
		if !r.HasMarkers {
			return model.Cell{}, false
		}
		return Explicit(r.Doc, pos.Line, r.Opts)
	default:
		return Implicit(r.Doc, r.Tree, r.Doc.OffsetAt(pos), r.Opts)
	}
}

// Cells enumerates the document's cells in order. When upTo is
// non-negative, enumeration stops at cells that begin after that line.
func (r *Resolver) Cells(mode model.Mode, upTo int) []model.Cell {
	mode = r.Effective(mode)
	last := r.Doc.LineCount() - 1
	if upTo >= 0 && upTo < last {
		last = upTo
	}

	var cells []model.Cell
	line := 0
	for line <= last {
		if r.skippable(line, mode) {
			line++
			continue
		}
		c, ok := r.At(model.Position{Line: line}, mode)
		if !ok || c.EndLine < line {
			line++
			continue
		}
		if len(cells) == 0 || c.StartLine > cells[len(cells)-1].EndLine {
			cells = append(cells, c)
		}
		line = max(c.EndLine+1, line+1)
	}
	return cells
}

// Next returns the first cell after c.
func (r *Resolver) Next(c model.Cell, mode model.Mode) (model.Cell, bool) {
	mode = r.Effective(mode)
	for line := c.EndLine + 1; line < r.Doc.LineCount(); line++ {
		if r.skippable(line, mode) {
			continue
		}
		next, ok := r.At(model.Position{Line: line}, mode)
		if ok && next.StartLine > c.EndLine {
			return next, true
		}
	}
	return model.Cell{}, false
}

// Previous returns the last cell before c.
func (r *Resolver) Previous(c model.Cell, mode model.Mode) (model.Cell, bool) {
	mode = r.Effective(mode)
	for line := c.StartLine - 1; line >= 0; line-- {
		if r.skippable(line, mode) || (mode == model.Explicit && r.Opts.IsStart(r.Doc.Line(line))) {
			continue
		}
		prev, ok := r.At(model.Position{Line: line}, mode)
		if ok && prev.EndLine < c.StartLine {
			return prev, true
		}
	}
	return model.Cell{}, false
}

// FromSelection turns a non-empty selection into an ad-hoc cell.
func (r *Resolver) FromSelection(sel model.Selection) (model.Cell, bool) {
	if sel.Empty() {
		return model.Cell{}, false
	}
	rng := sel.Range()
	return model.Cell{
		StartLine: rng.Start.Line,
		EndLine:   rng.End.Line,
		Metadata:  map[string]string{},
		Text:      r.Doc.Slice(r.Doc.OffsetAt(rng.Start), r.Doc.OffsetAt(rng.End)),
	}, true
}

func (r *Resolver) skippable(line int, mode model.Mode) bool {
	if r.Doc.IsBlankLine(line) {
		return true
	}
	return mode == model.Explicit && r.Opts.IsEnd(r.Doc.Line(line))
}

// Span returns the full-line range of c.
func Span(doc *document.Document, c model.Cell) model.Range {
	return model.Range{
		Start: model.Position{Line: c.StartLine},
		End:   doc.LineEndPosition(c.EndLine),
	}
}

// SelectionRange returns the range a selection covering c should have:
// the last line stops before trailing whitespace.
func SelectionRange(doc *document.Document, c model.Cell) model.Range {
	last := doc.Line(c.EndLine)
	trimmed := strings.TrimRight(last, " \t\r\n\v\f")
	end := doc.PositionAt(doc.LineStart(c.EndLine) + len(trimmed))
	return model.Range{Start: model.Position{Line: c.StartLine}, End: end}
}
