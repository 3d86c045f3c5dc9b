package cell

import (
	"regexp"
	"strings"

	"github.com/phobologic/saccade/internal/document"
)

var (
	tagRe  = regexp.MustCompile(`(?i)\[([a-z\-]+)\]`)
	pairRe = regexp.MustCompile(`(\w+)\s*=\s*"([^"]*)"`)
)

// Options configures marker recognition and cell rendering.
type Options struct {
	// StartMarkers are line prefixes that open an explicit cell.
	StartMarkers []string
	// EndMarkers close an explicit cell when they make up the whole line.
	EndMarkers []string
	// HardCutMarker is a comment prefix that always separates implicit cells.
	HardCutMarker string
	// PreferExplicit makes auto mode use markers when the document has any.
	PreferExplicit bool
	// ScanLines bounds the marker detection scan.
	ScanLines int
	// RenderComments wraps prose comments as display calls in implicit cells.
	RenderComments bool
}

// DefaultOptions returns the stock marker set.
func DefaultOptions() Options {
	return Options{
		StartMarkers:   []string{"# +", "# %+", "# %%"},
		EndMarkers:     []string{"# -", "# %-"},
		HardCutMarker:  "# %%",
		ScanLines:      100,
		RenderComments: true,
	}
}

// IsStart reports whether line opens an explicit cell.
func (o Options) IsStart(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, m := range o.StartMarkers {
		if m != "" && strings.HasPrefix(trimmed, m) {
			return true
		}
	}
	return false
}

// IsEnd reports whether line closes an explicit cell.
func (o Options) IsEnd(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, m := range o.EndMarkers {
		if m != "" && trimmed == m {
			return true
		}
	}
	return false
}

func (o Options) isMarker(line string) bool {
	return o.IsStart(line) || o.IsEnd(line)
}

func (o Options) isHardCut(text string) bool {
	return o.HardCutMarker != "" && strings.HasPrefix(strings.TrimSpace(text), o.HardCutMarker)
}

// HasMarkers reports whether any of the first ScanLines lines opens an
// explicit cell.
func (o Options) HasMarkers(doc *document.Document) bool {
	n := doc.LineCount()
	if o.ScanLines > 0 && o.ScanLines < n {
		n = o.ScanLines
	}
	for i := 0; i < n; i++ {
		if o.IsStart(doc.Line(i)) {
			return true
		}
	}
	return false
}

// ParseMetadata reads the trailer of a marker line. The first bracketed tag
// becomes "type"; key="value" pairs fill the remaining keys, last one wins.
// Malformed pairs are skipped.
func ParseMetadata(line string) map[string]string {
	meta := map[string]string{}
	if m := tagRe.FindStringSubmatch(line); m != nil {
		meta["type"] = m[1]
	}
	for _, m := range pairRe.FindAllStringSubmatch(line, -1) {
		meta[m[1]] = m[2]
	}
	return meta
}
