// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of cell listings and selection chains.
package toon

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/phobologic/saccade/internal/lang"
	"github.com/phobologic/saccade/internal/model"
)

// PreviewWidth is the maximum number of runes kept in a cell preview.
const PreviewWidth = 60

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Listing is the cell breakdown of one script.
type Listing struct {
	Path     string
	Language string
	Mode     model.Mode
	Cells    []model.Cell
}

// Encode converts listings into TOON, separating scripts by a blank line.
// Line numbers are one-based.
func Encode(listings ...Listing) string {
	blocks := make([]string, 0, len(listings))
	for _, l := range listings {
		blocks = append(blocks, encodeListing(l))
	}
	return strings.Join(blocks, "\n\n")
}

func encodeListing(l Listing) string {
	parts := []string{
		fmt.Sprintf("file: %s", encodeValue(l.Path)),
		fmt.Sprintf("language: %s", encodeValue(l.Language)),
		fmt.Sprintf("mode: %s", encodeValue(string(l.Mode))),
	}

	rows := make([][]string, 0, len(l.Cells))
	for i, c := range l.Cells {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.Itoa(c.StartLine + 1),
			strconv.Itoa(c.EndLine + 1),
			c.Type(),
			Tags(c.Metadata),
			Preview(c.Text),
		})
	}
	parts = append(parts, formatTabular("cells", []string{"index", "start", "end", "type", "tags", "preview"}, rows))
	return strings.Join(parts, "\n")
}

// EncodeRanges renders a chain of selection ranges, innermost first.
func EncodeRanges(path string, ranges []model.Range) string {
	rows := make([][]string, 0, len(ranges))
	for _, r := range ranges {
		rows = append(rows, []string{
			strconv.Itoa(r.Start.Line + 1),
			strconv.Itoa(r.Start.Character),
			strconv.Itoa(r.End.Line + 1),
			strconv.Itoa(r.End.Character),
		})
	}
	return fmt.Sprintf("file: %s\n%s", encodeValue(path),
		formatTabular("ranges", []string{"startLine", "startChar", "endLine", "endChar"}, rows))
}

// Preview returns the first non-blank line of text with whitespace
// collapsed, cut to PreviewWidth runes.
func Preview(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = lang.CollapseWhitespace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > PreviewWidth {
			runes := []rune(line)
			line = string(runes[:PreviewWidth-3]) + "..."
		}
		return line
	}
	return ""
}

// Tags flattens cell metadata into sorted key=value pairs.
func Tags(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + meta[k]
	}
	return strings.Join(pairs, " ")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value), strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}
	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	if looksNumeric.MatchString(value) {
		return value
	}
	if needsQuoting.MatchString(value) || strings.HasPrefix(value, "-") {
		return quote(value)
	}
	return value
}

func quote(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(value) + `"`
}
