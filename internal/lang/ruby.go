package lang

import (
	"github.com/smacker/go-tree-sitter/ruby"
)

// Ruby shares Python's "#" line comments, so the percent-style cell markers
// work unchanged. There is no block introducer and no kernel display call.
func init() {
	Languages["ruby"] = &Language{
		Name:         "ruby",
		Extensions:   []string{".rb"},
		lang:         ruby.GetLanguage(),
		CommentTypes: []string{"comment"},
		BodyTypes:    []string{"body_statement", "do_block", "block"},
	}
}
