package cell

import (
	"strings"

	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/model"
	"github.com/phobologic/saccade/internal/parse"
)

// Implicit groups the top-level statements around off into a cell.
// Neighbouring statements join the cell until a boundary separates them.
// A cell made only of comments is marked as markdown.
func Implicit(doc *document.Document, tree *parse.Tree, off int, opts Options) (model.Cell, bool) {
	if tree == nil {
		return model.Cell{}, false
	}
	top := tree.TopLevel()
	if len(top) == 0 {
		return model.Cell{}, false
	}
	src := tree.Source()
	l := tree.Language()

	cur := 0
	for i, n := range top {
		if n.Start > off {
			break
		}
		cur = i
	}

	first, last := cur, cur
	for first > 0 && !opts.boundary(src, top[first-1], top[first], top[first-1]) {
		first--
	}
	for last+1 < len(top) && !opts.boundary(src, top[last], top[last+1], top[last+1]) {
		last++
	}

	comments := true
	for _, n := range top[first : last+1] {
		if !l.IsComment(n.Type) {
			comments = false
			break
		}
	}

	startLine := doc.LineOf(top[first].Start)
	endLine := doc.LineOf(top[last].End)
	text := doc.Lines(startLine, endLine)
	for endLine > startLine && strings.HasSuffix(text, "\n") {
		text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
		endLine--
	}

	return model.Cell{
		StartLine: startLine,
		EndLine:   endLine,
		Metadata:  map[string]string{},
		Text:      text,
		Markdown:  comments,
	}, true
}

// boundary reports whether earlier and later belong to different cells.
// entered is whichever of the two the walk is about to take in; only a
// hard-cut comment being entered stops it.
func (o Options) boundary(src []byte, earlier, later, entered parse.Node) bool {
	if o.isHardCut(entered.Text(src)) {
		return true
	}
	newlines := strings.Count(string(src[earlier.End:later.Start]), "\n")
	if strings.HasSuffix(earlier.Text(src), "\n") {
		newlines++
	}
	// One newline ends the earlier line; each further one is a blank line.
	return newlines-1 > 1
}
