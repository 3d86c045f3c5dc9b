package cell

import (
	"github.com/phobologic/saccade/internal/document"
	"github.com/phobologic/saccade/internal/model"
)

// Explicit returns the marker-delimited cell around line. A cell opened by
// a marker starts on the line after it; without a marker above, the cell
// starts at the top of the document. It ends before the next start or end
// marker, or at the last line.
func Explicit(doc *document.Document, line int, opts Options) (model.Cell, bool) {
	count := doc.LineCount()
	if line < 0 || line >= count {
		return model.Cell{}, false
	}

	start := line
	meta := map[string]string{}
	if cur := doc.Line(line); opts.IsStart(cur) {
		meta = ParseMetadata(cur)
		start = line + 1
	} else {
		for start > 0 {
			above := doc.Line(start - 1)
			if opts.IsStart(above) {
				meta = ParseMetadata(above)
				break
			}
			start--
		}
	}

	end := count - 1
	for i := max(start, line+1); i < count; i++ {
		if opts.isMarker(doc.Line(i)) {
			end = i - 1
			break
		}
	}
	if opts.IsEnd(doc.Line(line)) {
		end = line - 1
	}
	if start > end {
		return model.Cell{}, false
	}

	return model.Cell{
		StartLine: start,
		EndLine:   end,
		Metadata:  meta,
		Text:      doc.Lines(start, end),
		Markdown:  meta["type"] == "markdown",
		Explicit:  true,
	}, true
}
