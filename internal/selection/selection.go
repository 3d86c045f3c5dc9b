// Package selection grows and shrinks editor selections along syntax nodes
// and cells, keeping a history so every expand can be undone exactly.
package selection

import (
	"github.com/phobologic/saccade/internal/cell"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/parse"
	"github.com/phobologic/saccade/internal/ranking"
)

// Expand records sel in h and returns the smallest candidate strictly
// larger than it. sel is recorded even when nothing larger exists, so a
// following shrink always restores it.
func Expand(r *cell.Resolver, h *History, sel model.Selection) (model.Selection, bool) {
	h.Push(sel)
	next, ok := ranking.Next(Candidates(r, sel), sel.Range())
	if !ok {
		return sel, false
	}
	return model.Selection{Anchor: next.Range.Start, Active: next.Range.End}, true
}

// Shrink restores the newest entry of h. With an empty history it finds
// the first node inside sel, searching down from the smallest node that
// covers it, and narrows sel to that node's deepest first descendant that
// still fits.
func Shrink(r *cell.Resolver, h *History, sel model.Selection) (model.Selection, bool) {
	if prev, ok := h.Pop(); ok {
		return prev, true
	}
	if r.Tree == nil {
		return sel, false
	}

	rng := sel.Range()
	start, end := r.Doc.OffsetAt(rng.Start), r.Doc.OffsetAt(rng.End)
	src, l := r.Tree.Source(), r.Tree.Language()

	found := false
	var bs, be int
	n := r.Tree.SmallestContaining(start, end)
	for {
		s, e := parse.Bounds(n, src, l)
		inside := start <= s && e <= end
		if found && !inside {
			break
		}
		if inside {
			found, bs, be = true, s, e
			child, ok := n.FirstChild()
			if !ok {
				break
			}
			n = child
			continue
		}
		next, ok := firstOverlapping(n, start, end)
		if !ok {
			break
		}
		n = next
	}
	if !found || (bs == start && be == end) {
		return sel, false
	}
	return model.Selection{Anchor: r.Doc.PositionAt(bs), Active: r.Doc.PositionAt(be)}, true
}

// firstOverlapping returns the first non-empty child of n that reaches into
// (start, end), skipping children that finish before start.
func firstOverlapping(n parse.Node, start, end int) (parse.Node, bool) {
	for _, c := range n.Children() {
		if c.End <= start || c.Len() == 0 {
			continue
		}
		if c.Start >= end {
			break
		}
		return c, true
	}
	return parse.Node{}, false
}

// Candidates returns the ranges an expand from sel chooses between: the
// enclosing syntax node, the implicit cell and, when the document has
// markers, the explicit cell.
func Candidates(r *cell.Resolver, sel model.Selection) []ranking.Candidate {
	var out []ranking.Candidate
	if rng, ok := syntaxRange(r, sel); ok {
		out = append(out, ranking.Candidate{Source: ranking.Syntax, Range: rng})
	}
	if c, ok := r.At(sel.Active, model.Implicit); ok {
		out = append(out, ranking.Candidate{Source: ranking.Implicit, Range: cell.SelectionRange(r.Doc, c)})
	}
	if r.HasMarkers {
		if c, ok := r.At(sel.Active, model.Explicit); ok {
			out = append(out, ranking.Candidate{Source: ranking.Explicit, Range: cell.SelectionRange(r.Doc, c)})
		}
	}
	return out
}

func syntaxRange(r *cell.Resolver, sel model.Selection) (model.Range, bool) {
	if r.Tree == nil {
		return model.Range{}, false
	}
	var n parse.Node
	if sel.Empty() {
		n = nodeAtCaret(r.Tree, r.Doc.OffsetAt(sel.Active))
	} else {
		n = enclosing(r, sel.Range())
	}
	if !n.Valid() {
		return model.Range{}, false
	}
	s, e := parse.Bounds(n, r.Tree.Source(), r.Tree.Language())
	return model.Range{Start: r.Doc.PositionAt(s), End: r.Doc.PositionAt(e)}, true
}

// nodeAtCaret returns the smallest of the nodes around off. Ties go to the
// node strictly containing off, then the one ending there, then the one
// starting there.
func nodeAtCaret(t *parse.Tree, off int) parse.Node {
	best := t.Resolve(off, parse.Inside)
	for _, side := range []parse.Side{parse.Before, parse.After} {
		if n := t.Resolve(off, side); n.Len() < best.Len() {
			best = n
		}
	}
	return best
}

// enclosing walks up from the node starting the selection to the first
// ancestor that reaches outside it, or the root.
func enclosing(r *cell.Resolver, rng model.Range) parse.Node {
	start, end := r.Doc.OffsetAt(rng.Start), r.Doc.OffsetAt(rng.End)
	src, l := r.Tree.Source(), r.Tree.Language()

	n := r.Tree.Resolve(start, parse.After)
	for {
		s, e := parse.Bounds(n, src, l)
		if s < start || e > end {
			return n
		}
		parent, ok := n.Parent()
		if !ok {
			return n
		}
		n = parent
	}
}
