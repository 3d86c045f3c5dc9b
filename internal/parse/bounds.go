package parse

import (
	"strings"

	"github.com/phobologic/saccade/internal/lang"
)

// Bounds returns the byte span of n as a user would select it. Body nodes
// lose a leading block introducer and trailing newlines; every other node
// loses trailing whitespace. The result never widens the node.
func Bounds(n Node, src []byte, l *lang.Language) (start, end int) {
	body, intro := false, ""
	if l != nil {
		body, intro = l.IsBody(n.Type), l.BlockIntroducer
	}
	return Trim(src, n.Start, n.End, body, intro)
}

// Trim narrows [start, end) of src. A body loses at most one introducer, so
// applying Trim to its own output is stable for any span that does not open
// with the introducer twice.
func Trim(src []byte, start, end int, body bool, introducer string) (int, int) {
	if end > len(src) {
		end = len(src)
	}
	if start > end {
		start = end
	}
	if !body {
		for end > start && isSpace(src[end-1]) {
			end--
		}
		return start, end
	}
	if introducer != "" && strings.HasPrefix(string(src[start:end]), introducer) {
		start += len(introducer)
		for start < end && isSpace(src[start]) {
			start++
		}
	}
	for end > start && src[end-1] == '\n' {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
