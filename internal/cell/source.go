package cell

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/phobologic/saccade/internal/model"
)

const (
	displayImport  = "from IPython.display import display, Markdown"
	markdownImport = "# \n" + displayImport
)

var (
	markerPrefixRe = regexp.MustCompile(`^#[ \t]*`)
	keepCommentRe  = regexp.MustCompile(`^\s*-[-*]-`)
)

// Source returns the code a kernel should run for c. An empty result means
// there is nothing to run.
func (r *Resolver) Source(c model.Cell) string {
	display := r.Tree != nil && r.Tree.Language().DisplayCalls
	switch {
	case c.Explicit && c.Markdown:
		if !display {
			return ""
		}
		return displayImport + "\n" + displayCall(StripCommentMarkers(c.Text))
	case c.Explicit:
		return StripComments(c.Text)
	case r.Opts.RenderComments && display:
		return r.renderComments(c)
	default:
		return StripComments(c.Text)
	}
}

// renderComments rewrites runs of column-zero comments in c as markdown
// display calls and keeps everything else verbatim.
func (r *Resolver) renderComments(c model.Cell) string {
	from, to := r.Doc.LineStart(c.StartLine), r.Doc.LineEnd(c.EndLine)
	src := r.Tree.Source()
	l := r.Tree.Language()

	var (
		out      []string
		chunk    []string
		markdown bool
	)
	flush := func() {
		var kept []string
		for _, line := range chunk {
			if strings.TrimSpace(line) != "" {
				kept = append(kept, line)
			}
		}
		chunk = nil
		if len(kept) == 0 {
			return
		}
		out = append(out, wrapMarkdown(strings.Join(kept, "\n")))
		markdown = true
	}

	for _, n := range r.Tree.TopLevel() {
		if n.Start < from {
			continue
		}
		if n.Start >= to {
			break
		}
		text := n.Text(src)
		if l.IsComment(n.Type) && r.Doc.PositionAt(n.Start).Character == 0 {
			chunk = append(chunk, strings.TrimSpace(strings.TrimPrefix(text, "#")))
			continue
		}
		if !l.IsComment(n.Type) {
			flush()
		}
		out = append(out, text)
	}
	flush()

	if markdown {
		out = append([]string{markdownImport}, out...)
	}
	return strings.Join(out, "\n")
}

func wrapMarkdown(text string) string {
	if keepCommentRe.MatchString(text) {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = "# -" + line
		}
		return strings.Join(lines, "\n")
	}
	return "# \n" + displayCall(text)
}

func displayCall(text string) string {
	return "display(Markdown(" + pyString(text) + "))"
}

// pyString quotes s as a JSON string, which Python reads as a str literal.
func pyString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `""`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// StripComments drops every line that starts with "#".
func StripComments(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(line, "#") {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// StripCommentMarkers removes the leading "#" and the spaces after it from
// each line.
func StripCommentMarkers(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = markerPrefixRe.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}
