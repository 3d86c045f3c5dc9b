package lang

import (
	"github.com/smacker/go-tree-sitter/python"
)

func init() {
	Languages["python"] = &Language{
		Name:            "python",
		Extensions:      []string{".py"},
		lang:            python.GetLanguage(),
		CommentTypes:    []string{"comment"},
		BodyTypes:       []string{"block"},
		BlockIntroducer: ":",
		DisplayCalls:    true,
	}
}
