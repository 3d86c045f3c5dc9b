package notebook

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/model"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Preview writes an HTML fragment showing cells in order: markdown cells
// rendered, code cells as escaped code blocks.
func Preview(w io.Writer, cells []model.Cell, l *lang.Language) error {
	name := "text"
	if l != nil {
		name = l.Name
	}
	nb := Build(cells, l)
	for i, c := range nb.Cells {
		src := cells[i]
		if _, err := fmt.Fprintf(w, "<section class=\"cell cell-%s\" data-lines=\"%d-%d\">\n",
			c.Type, src.StartLine+1, src.EndLine+1); err != nil {
			return err
		}
		if c.Type == "markdown" {
			var buf bytes.Buffer
			if err := markdown.Convert([]byte(c.Text()), &buf); err != nil {
				return fmt.Errorf("rendering cell at line %d: %w", src.StartLine+1, err)
			}
			if _, err := w.Write(buf.Bytes()); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "<pre><code class=\"language-%s\">%s</code></pre>\n",
				name, html.EscapeString(c.Text())); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</section>\n"); err != nil {
			return err
		}
	}
	return nil
}
