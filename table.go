package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/phobologic/saccade/internal/toon"
)

const (
	tablePadding   = 2
	minTypeWidth   = 8
	minLinesWidth  = 7
	heavySeparator = "="
	lightSeparator = "-"
)

type tableStyles struct {
	title    lipgloss.Style
	header   lipgloss.Style
	markdown lipgloss.Style
	dim      lipgloss.Style
}

func newTableStyles(color bool) tableStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return tableStyles{title: plain, header: plain, markdown: plain, dim: plain}
	}
	return tableStyles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		header:   lipgloss.NewStyle().Bold(true),
		markdown: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// colorEnabled reports whether w is a terminal.
func colorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderTable lays listings out as one table per script.
func renderTable(listings []toon.Listing, color bool) string {
	st := newTableStyles(color)
	var b strings.Builder
	for i, l := range listings {
		if i > 0 {
			b.WriteString("\n")
		}
		rows := make([][]string, 0, len(l.Cells))
		for _, c := range l.Cells {
			rows = append(rows, []string{
				fmt.Sprintf("%d-%d", c.StartLine+1, c.EndLine+1),
				c.Type(),
				toon.Tags(c.Metadata),
				toon.Preview(c.Text),
			})
		}
		headers := []string{"LINES", "TYPE", "TAGS", "PREVIEW"}
		widths := columnWidths(headers, rows)

		b.WriteString(st.title.Render(fmt.Sprintf("%s (%s, %s, %d cells)", l.Path, l.Language, l.Mode, len(l.Cells))))
		b.WriteString("\n")
		b.WriteString(st.header.Render(formatRow(headers, widths)))
		b.WriteString("\n")
		b.WriteString(st.dim.Render(separator(widths, heavySeparator)))
		b.WriteString("\n")
		for j, row := range rows {
			line := formatRow(row, widths)
			if l.Cells[j].Markdown {
				line = st.markdown.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString(st.dim.Render(separator(widths, lightSeparator)))
		b.WriteString("\n")
	}
	return b.String()
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	widths[0] = max(widths[0], minLinesWidth)
	widths[1] = max(widths[1], minTypeWidth)
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	return widths
}

func formatRow(cols []string, widths []int) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if i == len(cols)-1 {
			parts[i] = c
			continue
		}
		parts[i] = c + strings.Repeat(" ", widths[i]-lipgloss.Width(c))
	}
	return strings.TrimRight(strings.Join(parts, strings.Repeat(" ", tablePadding)), " ")
}

func separator(widths []int, ch string) string {
	total := 0
	for _, w := range widths {
		total += w
	}
	total += tablePadding * (len(widths) - 1)
	return strings.Repeat(ch, total)
}
