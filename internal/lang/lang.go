// Package lang provides a language registry mapping documents to tree-sitter
// grammars and the node kinds the cell engine cares about.
package lang

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-enry/go-enry/v2"
	sitter "github.com/smacker/go-tree-sitter"
)

// ErrUnsupported is returned when a language name has no registered grammar.
var ErrUnsupported = errors.New("unsupported language")

var whitespaceRe = regexp.MustCompile(`\s+`)

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	// CommentTypes are node types that hold prose rather than code.
	CommentTypes []string

	// BodyTypes are indented-block constructs whose range should be trimmed
	// of the block introducer and trailing newlines when selected.
	BodyTypes []string

	// BlockIntroducer is the token that may lead a body node's text.
	BlockIntroducer string

	// DisplayCalls reports whether prose can be sent to the kernel wrapped
	// in a markdown display call.
	DisplayCalls bool
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Parsers are not safe for concurrent use.
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// IsComment reports whether nodeType is a comment node.
func (l *Language) IsComment(nodeType string) bool {
	return contains(l.CommentTypes, nodeType)
}

// IsBody reports whether nodeType is a block body.
func (l *Language) IsBody(nodeType string) bool {
	return contains(l.BodyTypes, nodeType)
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[ext]
}

// Lookup returns the registered language called name.
func Lookup(name string) (*Language, error) {
	l, ok := Languages[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, name)
	}
	return l, nil
}

// Detect picks the grammar for a document. An explicit host language id
// wins; otherwise the file extension, then enry's filename, shebang and
// content heuristics are consulted. It returns nil when the document is
// not in a recognized language.
func Detect(path, languageID string, content []byte) *Language {
	if languageID != "" {
		if l, ok := Languages[strings.ToLower(languageID)]; ok {
			return l
		}
	}
	base := filepath.Base(path)
	if name := ForExtension(filepath.Ext(base)); name != "" {
		return Languages[name]
	}
	if name := enry.GetLanguage(base, content); name != "" {
		if l, ok := Languages[strings.ToLower(name)]; ok {
			return l
		}
	}
	return nil
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
